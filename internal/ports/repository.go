// Package ports define repository interfaces for data persistence abstraction.
// These interfaces enable the repository pattern and allow swapping persistence mechanisms.
package ports

import (
	"context"

	"github.com/tejashwikalptaru/dstream/internal/domain"
)

// CacheRepository persists the remote URI to local file mapping.
// At most one record exists per remote URI.
type CacheRepository interface {
	// Find returns the record for a remote URI, or domain.ErrCacheMiss.
	Find(ctx context.Context, remoteURI string) (*domain.CacheRecord, error)

	// Insert stores a new record with PlayCount 1 and returns it with its ID assigned.
	// Inserting an existing remote URI replaces its local location.
	Insert(ctx context.Context, record domain.CacheRecord) (*domain.CacheRecord, error)

	// RecordPlay increments the play count and touches LastPlayedAt.
	RecordPlay(ctx context.Context, remoteURI string) error

	// Delete removes the record for a remote URI. Deleting a missing record is a no-op.
	Delete(ctx context.Context, remoteURI string) error

	// List returns all records, most played first.
	List(ctx context.Context) ([]domain.CacheRecord, error)

	// Close releases the underlying storage.
	Close() error
}
