package storage

import (
	"context"
	"errors"
)

// ErrStorageNotConfigured is returned when storage operations are attempted without configuration
var ErrStorageNotConfigured = errors.New("storage not configured")

// NoopStorage is a storage implementation that returns errors for all operations.
// Used when running with --storage=none, so every read falls through to the local cache.
type NoopStorage struct{}

// Ensure NoopStorage implements Storage interface
var _ Storage = (*NoopStorage)(nil)

// NewNoopStorage creates a new noop storage client
func NewNoopStorage() *NoopStorage {
	return &NoopStorage{}
}

// CheckConnection always succeeds for noop storage
func (s *NoopStorage) CheckConnection(ctx context.Context) error {
	return nil
}

func (s *NoopStorage) Put(ctx context.Context, tenant, collection, id string, content []byte) (*Item, error) {
	return nil, ErrStorageNotConfigured
}

func (s *NoopStorage) Get(ctx context.Context, tenant, collection, id string) (*Item, error) {
	return nil, ErrStorageNotConfigured
}

func (s *NoopStorage) Delete(ctx context.Context, tenant, collection, id string) error {
	return ErrStorageNotConfigured
}

func (s *NoopStorage) List(ctx context.Context, tenant, collection string) ([]*Item, error) {
	return nil, ErrStorageNotConfigured
}

func (s *NoopStorage) Exists(ctx context.Context, tenant, collection, id string) (bool, error) {
	return false, ErrStorageNotConfigured
}
