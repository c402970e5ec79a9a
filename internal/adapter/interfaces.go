// Package adapter defines the generic resource connection contracts shared by
// the database and storage adapter trees.
package adapter

import (
	"context"
)

// ResourceConnection represents a generic connection to any resource
// (e.g., database, object storage).
type ResourceConnection interface {
	// Close closes the resource connection.
	Close() error
	// Type returns the type of the resource (e.g., "sqlite", "gcs").
	Type() string
	// Name returns the connection name (e.g., "primary", "archive").
	Name() string
}

// ResourceProvider provides resource connections based on configuration.
type ResourceProvider interface {
	// GetConnection retrieves a resource connection with the specified name.
	GetConnection(name string) (ResourceConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the type of resource handled by this provider (e.g., "database", "storage").
	Type() string
	// Name returns the unique name of this resource provider.
	Name() string
}

// ResourceConnectionResolver resolves resource connection instances by name,
// re-establishing them when necessary.
type ResourceConnectionResolver interface {
	// ResolveConnection resolves a resource connection instance by name.
	ResolveConnection(ctx context.Context, name string) (ResourceConnection, error)
}
