// Package pathmap maintains the one-to-one mapping from public path
// strings to internal object ids. A path with no mapping is not found,
// regardless of whether orphan blobs exist underneath.
package pathmap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shelf/internal/errs"
)

// Mapping binds a public path to an object id.
type Mapping struct {
	Path      string    `json:"path"`
	FileID    string    `json:"fileId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Mapper stores path mappings in SQLite.
type Mapper struct {
	db *sql.DB
}

// New creates the paths table if needed.
func New(db *sql.DB) (*Mapper, error) {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS paths (
			path TEXT PRIMARY KEY,
			file_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_paths_file_id ON paths(file_id);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("init paths schema: %w", err)
		}
	}
	return &Mapper{db: db}, nil
}

// FileID resolves path to its object id, or errs.ErrNotFound.
func (m *Mapper) FileID(ctx context.Context, path string) (string, error) {
	var fileID string
	err := m.db.QueryRowContext(ctx, `SELECT file_id FROM paths WHERE path = ?`, path).Scan(&fileID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errs.NotFound("path %s", path)
	}
	if err != nil {
		return "", fmt.Errorf("lookup path %s: %w", path, err)
	}
	return fileID, nil
}

// Set inserts or replaces the mapping for path, covering both create
// and retarget-on-update.
func (m *Mapper) Set(ctx context.Context, path, fileID string) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO paths(path, file_id, created_at) VALUES(?, ?, ?)`,
		path, fileID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set mapping %s -> %s: %w", path, fileID, err)
	}
	return nil
}

// Delete removes the mapping for path. Absence is not an error.
func (m *Mapper) Delete(ctx context.Context, path string) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM paths WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete mapping %s: %w", path, err)
	}
	return nil
}

// Path is the reverse lookup: the path currently bound to fileID, or
// errs.ErrNotFound. Used for diagnostics and listing by id.
func (m *Mapper) Path(ctx context.Context, fileID string) (string, error) {
	var path string
	err := m.db.QueryRowContext(ctx, `SELECT path FROM paths WHERE file_id = ?`, fileID).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errs.NotFound("no path for object %s", fileID)
	}
	if err != nil {
		return "", fmt.Errorf("reverse lookup %s: %w", fileID, err)
	}
	return path, nil
}

// List returns mappings ordered newest first.
func (m *Mapper) List(ctx context.Context, limit, offset int) ([]Mapping, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := m.db.QueryContext(ctx,
		`SELECT path, file_id, created_at FROM paths ORDER BY created_at DESC, path LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	out := make([]Mapping, 0)
	for rows.Next() {
		var mp Mapping
		if err := rows.Scan(&mp.Path, &mp.FileID, &mp.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mapping row: %w", err)
		}
		out = append(out, mp)
	}
	return out, rows.Err()
}

// Count reports the total number of mappings.
func (m *Mapper) Count(ctx context.Context) (int, error) {
	var count int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM paths`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count mappings: %w", err)
	}
	return count, nil
}
