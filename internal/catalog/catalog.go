// Package catalog is the authoritative record of which objects exist.
// Each stored blob has exactly one row here; a handle with chunks but
// no catalog row is treated as not found by the layers above.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shelf/internal/errs"
)

// Metadata describes one stored blob, independent of its public path.
type Metadata struct {
	ID             string    `json:"id"`
	Name           string    `json:"name,omitempty"`
	ContentType    string    `json:"contentType"`
	Size           int64     `json:"size"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	Checksum       string    `json:"checksum"`
	ChunkCount     int       `json:"chunkCount"`
	ChunkSize      int       `json:"chunkSize"`
	StorageBackend string    `json:"storageBackend"`
}

// Stats aggregates the catalog.
type Stats struct {
	TotalFiles int64 `json:"totalFiles"`
	TotalSize  int64 `json:"totalSize"`
}

// Catalog stores metadata rows in SQLite.
type Catalog struct {
	db *sql.DB
}

// New creates the files table if needed.
func New(db *sql.DB) (*Catalog, error) {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS files (
			id TEXT PRIMARY KEY,
			name TEXT,
			content_type TEXT NOT NULL,
			size INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			checksum TEXT NOT NULL,
			chunk_count INTEGER NOT NULL,
			chunk_size INTEGER NOT NULL,
			storage_backend TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_files_updated_at ON files(updated_at);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("init files schema: %w", err)
		}
	}
	return &Catalog{db: db}, nil
}

// Save upserts a metadata row by id.
func (c *Catalog) Save(ctx context.Context, meta *Metadata) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO files(id, name, content_type, size, created_at, updated_at, checksum, chunk_count, chunk_size, storage_backend)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			content_type=excluded.content_type,
			size=excluded.size,
			updated_at=excluded.updated_at,
			checksum=excluded.checksum,
			chunk_count=excluded.chunk_count,
			chunk_size=excluded.chunk_size,
			storage_backend=excluded.storage_backend`,
		meta.ID, meta.Name, meta.ContentType, meta.Size,
		meta.CreatedAt.UTC(), meta.UpdatedAt.UTC(),
		meta.Checksum, meta.ChunkCount, meta.ChunkSize, meta.StorageBackend,
	)
	if err != nil {
		return fmt.Errorf("save metadata %s: %w", meta.ID, err)
	}
	return nil
}

// Load returns the row for id, or errs.ErrNotFound.
func (c *Catalog) Load(ctx context.Context, id string) (*Metadata, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT id, name, content_type, size, created_at, updated_at, checksum, chunk_count, chunk_size, storage_backend
		 FROM files WHERE id = ?`, id)

	meta, err := scanMetadata(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("object %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load metadata %s: %w", id, err)
	}
	return meta, nil
}

// Delete removes the row for id. Absence is not an error: deletion is
// idempotent so object-delete retries converge.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete metadata %s: %w", id, err)
	}
	return nil
}

// Exists reports whether a row exists for id.
func (c *Catalog) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx, `SELECT 1 FROM files WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check metadata %s: %w", id, err)
	}
	return true, nil
}

// List returns rows ordered newest-updated first, optionally filtered
// by id prefix.
func (c *Catalog) List(ctx context.Context, prefix string, limit, offset int) ([]*Metadata, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, name, content_type, size, created_at, updated_at, checksum, chunk_count, chunk_size, storage_backend FROM files`
	args := []any{}
	if prefix != "" {
		query += ` WHERE id LIKE ?`
		args = append(args, prefix+"%")
	}
	query += ` ORDER BY updated_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	defer rows.Close()

	out := make([]*Metadata, 0)
	for rows.Next() {
		meta, err := scanMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("scan metadata row: %w", err)
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}

// GetStats aggregates over all rows.
func (c *Catalog) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM files`,
	).Scan(&stats.TotalFiles, &stats.TotalSize)
	if err != nil {
		return Stats{}, fmt.Errorf("aggregate file stats: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMetadata(row rowScanner) (*Metadata, error) {
	var (
		meta Metadata
		name sql.NullString
	)
	err := row.Scan(
		&meta.ID, &name, &meta.ContentType, &meta.Size,
		&meta.CreatedAt, &meta.UpdatedAt,
		&meta.Checksum, &meta.ChunkCount, &meta.ChunkSize, &meta.StorageBackend,
	)
	if err != nil {
		return nil, err
	}
	meta.Name = name.String
	return &meta, nil
}
