package testutil

import (
	"context"

	"github.com/cascadiahydro/streamsync/internal/adapter"
	"github.com/cascadiahydro/streamsync/internal/adapter/database"
	"github.com/cascadiahydro/streamsync/internal/adapter/storage"
)

// testSingleConnectionResolver is a concrete implementation of
// database.DBConnectionResolver designed for tests that always return a
// single, predefined DBConnection.
type testSingleConnectionResolver struct {
	conn database.DBConnection // The single database connection to be returned.
}

// ResolveDBConnection implements the database.DBConnectionResolver interface.
// It always returns the pre-configured DBConnection.
func (r *testSingleConnectionResolver) ResolveDBConnection(ctx context.Context, name string) (database.DBConnection, error) {
	return r.conn, nil
}

// ResolveConnection implements the adapter.ResourceConnectionResolver interface.
// It always returns the pre-configured DBConnection.
func (r *testSingleConnectionResolver) ResolveConnection(ctx context.Context, name string) (adapter.ResourceConnection, error) {
	return r.conn, nil
}

// NewTestSingleConnectionResolver creates a new instance of testSingleConnectionResolver.
// This helper is useful for tests that need a predictable DBConnectionResolver
// that always returns a specific connection.
func NewTestSingleConnectionResolver(conn database.DBConnection) database.DBConnectionResolver {
	return &testSingleConnectionResolver{conn: conn}
}

// Ensure that testSingleConnectionResolver implements database.DBConnectionResolver.
var _ database.DBConnectionResolver = (*testSingleConnectionResolver)(nil)

// testSingleStorageResolver is the storage counterpart of
// testSingleConnectionResolver: it always returns one predefined
// StorageConnection.
type testSingleStorageResolver struct {
	conn storage.StorageConnection
}

// ResolveStorageConnection implements storage.StorageConnectionResolver.
func (r *testSingleStorageResolver) ResolveStorageConnection(ctx context.Context, name string) (storage.StorageConnection, error) {
	return r.conn, nil
}

// ResolveConnection implements the adapter.ResourceConnectionResolver interface.
func (r *testSingleStorageResolver) ResolveConnection(ctx context.Context, name string) (adapter.ResourceConnection, error) {
	return r.conn, nil
}

// NewTestSingleStorageResolver creates a resolver that always returns the
// given storage connection.
func NewTestSingleStorageResolver(conn storage.StorageConnection) storage.StorageConnectionResolver {
	return &testSingleStorageResolver{conn: conn}
}

var _ storage.StorageConnectionResolver = (*testSingleStorageResolver)(nil)
