// Package storage defines the common interfaces for object storage adapters.
// They abstract archive uploads and downloads so the exporter can target a
// local directory or a cloud bucket through a unified API.
package storage

import (
	"context"
	"io"

	"github.com/cascadiahydro/streamsync/internal/adapter"
)

// StorageExecutor defines generic object storage operations.
type StorageExecutor interface {
	// Upload writes data to the given bucket and object name. contentType is
	// the MIME type of the data.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download opens the given object for reading. The returned ReadCloser
	// must be closed by the caller.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for every object under the given prefix, so large
	// listings never have to be held in memory.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject deletes the given object. A missing object is not an error.
	DeleteObject(ctx context.Context, bucket, objectName string) error
}

// StorageConnection represents an established object storage connection.
type StorageConnection interface {
	adapter.ResourceConnection
	StorageExecutor
}

// StorageProvider manages the acquisition and lifecycle of storage connections
// of one backend type.
type StorageProvider interface {
	// GetConnection retrieves the storage connection registered under name,
	// establishing it on first use.
	GetConnection(name string) (StorageConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the storage type handled by this provider (e.g., "local", "gcs").
	Type() string
	// ForceReconnect closes and re-establishes the named connection.
	ForceReconnect(name string) (StorageConnection, error)
}

// StorageConnectionResolver resolves logical connection names to established
// storage connections across all registered providers.
type StorageConnectionResolver interface {
	adapter.ResourceConnectionResolver

	// ResolveStorageConnection resolves a storage connection instance by name.
	ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error)
}

// StorageProviderGroup is the Fx group name under which all StorageProvider
// implementations are collected.
const StorageProviderGroup = "storage_providers"
