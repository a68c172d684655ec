package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tejashwikalptaru/dstream/internal/domain"
	"github.com/tejashwikalptaru/dstream/internal/ports"
)

const repoType = "cache"

// CacheRepository implements ports.CacheRepository on SQLite.
// The UNIQUE constraint on remote_uri guarantees one record per track.
type CacheRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewCacheRepository creates a repository on an open, migrated database.
func NewCacheRepository(db *sql.DB) *CacheRepository {
	return &CacheRepository{db: db, now: time.Now}
}

const selectColumns = `
	SELECT id, remote_uri, local_uri, play_count, title, artist, album, created_at, last_played_at
	FROM cache_records
`

// Find returns the record for a remote URI, or domain.ErrCacheMiss.
func (r *CacheRepository) Find(ctx context.Context, remoteURI string) (*domain.CacheRecord, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+" WHERE remote_uri = ?", remoteURI)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, domain.NewRepositoryError("find", repoType, "query failed", err)
	}
	return record, nil
}

// Insert stores a new record. A concurrent insert for the same URI wins on local_uri
// and keeps the existing play count.
func (r *CacheRepository) Insert(ctx context.Context, record domain.CacheRecord) (*domain.CacheRecord, error) {
	if record.RemoteURI == "" {
		return nil, domain.NewValidationError("remote_uri", record.RemoteURI, "must not be empty")
	}
	if record.LocalURI == "" {
		return nil, domain.NewValidationError("local_uri", record.LocalURI, "must not be empty")
	}

	now := r.now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cache_records (remote_uri, local_uri, play_count, title, artist, album, created_at, last_played_at)
		VALUES (?, ?, 1, ?, ?, ?, ?, ?)
		ON CONFLICT(remote_uri) DO UPDATE SET
			local_uri = excluded.local_uri,
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			last_played_at = excluded.last_played_at
	`, record.RemoteURI, record.LocalURI, record.Title, record.Artist, record.Album, now, now)
	if err != nil {
		return nil, domain.NewRepositoryError("insert", repoType, "insert failed", err)
	}

	return r.Find(ctx, record.RemoteURI)
}

// RecordPlay increments the play count of an existing record.
func (r *CacheRepository) RecordPlay(ctx context.Context, remoteURI string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE cache_records
		SET play_count = play_count + 1, last_played_at = ?
		WHERE remote_uri = ?
	`, r.now().UTC(), remoteURI)
	if err != nil {
		return domain.NewRepositoryError("record_play", repoType, "update failed", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return domain.NewRepositoryError("record_play", repoType, "failed to get affected rows", err)
	}
	if rows == 0 {
		return domain.ErrCacheMiss
	}
	return nil
}

// Delete removes the record for a remote URI.
func (r *CacheRepository) Delete(ctx context.Context, remoteURI string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM cache_records WHERE remote_uri = ?", remoteURI); err != nil {
		return domain.NewRepositoryError("delete", repoType, "delete failed", err)
	}
	return nil
}

// List returns all records, most played first.
func (r *CacheRepository) List(ctx context.Context) ([]domain.CacheRecord, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+" ORDER BY play_count DESC, last_played_at DESC, id ASC")
	if err != nil {
		return nil, domain.NewRepositoryError("list", repoType, "query failed", err)
	}
	defer rows.Close()

	var records []domain.CacheRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, domain.NewRepositoryError("list", repoType, "scan failed", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewRepositoryError("list", repoType, "iteration failed", err)
	}
	return records, nil
}

// Close closes the database.
func (r *CacheRepository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*domain.CacheRecord, error) {
	var record domain.CacheRecord
	err := s.Scan(
		&record.ID,
		&record.RemoteURI,
		&record.LocalURI,
		&record.PlayCount,
		&record.Title,
		&record.Artist,
		&record.Album,
		&record.CreatedAt,
		&record.LastPlayedAt,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

var _ ports.CacheRepository = (*CacheRepository)(nil)
