package storage

import (
	"context"
	"errors"
	"time"
)

// Environment represents the deployment environment
type Environment string

const (
	Production  Environment = "production"
	Development Environment = "development"
)

// Collections used by the application
const (
	CollectionInvoices        = "invoices"
	CollectionPatients        = "patients"
	CollectionTreatments      = "treatments"
	CollectionAppointments    = "appointments"
	CollectionInsuranceClaims = "insurance-claims"
	CollectionWebsiteBuilder  = "website-builder"
)

// ErrNotFound is returned when a document does not exist
var ErrNotFound = errors.New("document not found")

// Item represents a stored JSON document
type Item struct {
	Key          string
	Collection   string
	ID           string
	Content      []byte
	ContentType  string
	VersionID    string
	LastModified time.Time
	Size         int64
	ETag         string
}

// Storage defines the interface for tenant-scoped document storage backends.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Connection
	CheckConnection(ctx context.Context) error

	// Document Operations
	Put(ctx context.Context, tenant, collection, id string, content []byte) (*Item, error)
	Get(ctx context.Context, tenant, collection, id string) (*Item, error)
	Delete(ctx context.Context, tenant, collection, id string) error
	List(ctx context.Context, tenant, collection string) ([]*Item, error)
	Exists(ctx context.Context, tenant, collection, id string) (bool, error)
}

// LegacyReader lists raw records from a secondary document store
type LegacyReader interface {
	List(ctx context.Context, tenant, collection string) ([]map[string]any, error)
}

// Closer is implemented by backends holding connections
type Closer interface {
	Close() error
}

// Close releases a backend if it holds resources
func Close(s any) error {
	if c, ok := s.(Closer); ok {
		return c.Close()
	}
	return nil
}
