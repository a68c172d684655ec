// Package memory provides in-process repository implementations.
// Nothing is persisted across restarts; it backs tests and "cache.path = :memory:" setups
// that do not need SQLite.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tejashwikalptaru/dstream/internal/domain"
	"github.com/tejashwikalptaru/dstream/internal/ports"
)

// CacheRepository implements ports.CacheRepository with a map keyed by remote URI.
//
// Thread-safe: All operations protected by sync.RWMutex.
type CacheRepository struct {
	mu      sync.RWMutex
	records map[string]domain.CacheRecord
	nextID  int64

	// failure injection for tests
	findErr   error
	insertErr error
}

// NewCacheRepository creates an empty repository.
func NewCacheRepository() *CacheRepository {
	return &CacheRepository{
		records: make(map[string]domain.CacheRecord),
		nextID:  1,
	}
}

// SetFindError makes Find return err until reset with nil.
func (r *CacheRepository) SetFindError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findErr = err
}

// SetInsertError makes Insert return err until reset with nil.
func (r *CacheRepository) SetInsertError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertErr = err
}

// Find returns the record for a remote URI, or domain.ErrCacheMiss.
func (r *CacheRepository) Find(_ context.Context, remoteURI string) (*domain.CacheRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.findErr != nil {
		return nil, domain.NewRepositoryError("find", "cache", "injected failure", r.findErr)
	}
	record, ok := r.records[remoteURI]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return &record, nil
}

// Insert stores a record; an existing URI keeps its ID and play count.
func (r *CacheRepository) Insert(_ context.Context, record domain.CacheRecord) (*domain.CacheRecord, error) {
	if record.RemoteURI == "" {
		return nil, domain.NewValidationError("remote_uri", record.RemoteURI, "must not be empty")
	}
	if record.LocalURI == "" {
		return nil, domain.NewValidationError("local_uri", record.LocalURI, "must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.insertErr != nil {
		return nil, domain.NewRepositoryError("insert", "cache", "injected failure", r.insertErr)
	}

	now := time.Now().UTC()
	if existing, ok := r.records[record.RemoteURI]; ok {
		existing.LocalURI = record.LocalURI
		existing.Title, existing.Artist, existing.Album = record.Title, record.Artist, record.Album
		existing.LastPlayedAt = now
		r.records[record.RemoteURI] = existing
		return &existing, nil
	}

	record.ID = r.nextID
	r.nextID++
	record.PlayCount = 1
	record.CreatedAt = now
	record.LastPlayedAt = now
	r.records[record.RemoteURI] = record
	return &record, nil
}

// RecordPlay increments the play count of an existing record.
func (r *CacheRepository) RecordPlay(_ context.Context, remoteURI string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[remoteURI]
	if !ok {
		return domain.ErrCacheMiss
	}
	record.PlayCount++
	record.LastPlayedAt = time.Now().UTC()
	r.records[remoteURI] = record
	return nil
}

// Delete removes the record for a remote URI.
func (r *CacheRepository) Delete(_ context.Context, remoteURI string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, remoteURI)
	return nil
}

// List returns all records, most played first.
func (r *CacheRepository) List(_ context.Context) ([]domain.CacheRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]domain.CacheRecord, 0, len(r.records))
	for _, record := range r.records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].PlayCount != records[j].PlayCount {
			return records[i].PlayCount > records[j].PlayCount
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// Close is a no-op.
func (r *CacheRepository) Close() error {
	return nil
}

var _ ports.CacheRepository = (*CacheRepository)(nil)
