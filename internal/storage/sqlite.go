package storage

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"shelf/internal/chunk"
	"shelf/internal/errs"
)

// SQLProvider stores chunk sequences as rows in a relational table,
// one row per chunk. Payloads are base64-encoded into a text column so
// binary data (including NUL and non-UTF8 sequences) round-trips
// byte-for-byte. The first row of each handle carries the total chunk
// count, and every row carries its decoded size.
type SQLProvider struct {
	db        *sql.DB
	chunkSize int
}

// NewSQLProvider creates the chunk table if needed and returns a
// provider writing chunks of chunkSize bytes.
func NewSQLProvider(db *sql.DB, chunkSize int) (*SQLProvider, error) {
	if db == nil {
		return nil, errs.Unavailable("relational store not configured")
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chunks (
			handle TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			data TEXT NOT NULL,
			size INTEGER NOT NULL,
			total_chunks INTEGER,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (handle, chunk_index)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_handle ON chunks(handle);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("init chunks schema: %w", err)
		}
	}

	return &SQLProvider{db: db, chunkSize: chunkSize}, nil
}

func (p *SQLProvider) Backend() string { return BackendRelational }

func (p *SQLProvider) ChunkSize() int { return p.chunkSize }

func (p *SQLProvider) Write(ctx context.Context, handle string, data []byte) error {
	chunks := chunk.Split(data, p.chunkSize)
	now := time.Now().UTC()

	return withTransaction(ctx, p.db, func(tx *sql.Tx) error {
		for i, c := range chunks {
			var total any
			if i == 0 {
				total = len(chunks)
			}
			_, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO chunks(handle, chunk_index, data, size, total_chunks, created_at)
				 VALUES(?, ?, ?, ?, ?, ?)`,
				handle, i, base64.StdEncoding.EncodeToString(c), len(c), total, now,
			)
			if err != nil {
				return fmt.Errorf("insert chunk %d of %s: %w", i, handle, err)
			}
		}
		return nil
	})
}

func (p *SQLProvider) Read(ctx context.Context, handle string) ([]byte, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT chunk_index, data, size FROM chunks WHERE handle = ? ORDER BY chunk_index`,
		handle,
	)
	if err != nil {
		return nil, fmt.Errorf("query chunks for %s: %w", handle, err)
	}
	defer rows.Close()

	var (
		chunks    [][]byte
		nextIndex int
	)
	for rows.Next() {
		var (
			index   int
			encoded string
			size    int64
		)
		if err := rows.Scan(&index, &encoded, &size); err != nil {
			return nil, fmt.Errorf("scan chunk of %s: %w", handle, err)
		}
		if index != nextIndex {
			return nil, errs.Corrupted("chunk sequence gap for %s: expected index %d, got %d", handle, nextIndex, index)
		}

		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, errs.Corrupted("chunk %d of %s is not valid base64: %v", index, handle, err)
		}
		if int64(len(decoded)) != size {
			return nil, errs.Corrupted("chunk %d of %s: recorded size %d, decoded %d", index, handle, size, len(decoded))
		}

		chunks = append(chunks, decoded)
		nextIndex++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks for %s: %w", handle, err)
	}

	if len(chunks) == 0 {
		return nil, errs.NotFound("no chunks for handle %s", handle)
	}

	return chunk.Merge(chunks), nil
}

func (p *SQLProvider) Delete(ctx context.Context, handle string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM chunks WHERE handle = ?`, handle); err != nil {
		return fmt.Errorf("delete chunks for %s: %w", handle, err)
	}
	return nil
}

func (p *SQLProvider) Exists(ctx context.Context, handle string) (bool, error) {
	var one int
	err := p.db.QueryRowContext(ctx,
		`SELECT 1 FROM chunks WHERE handle = ? AND chunk_index = 0`, handle,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probe chunks for %s: %w", handle, err)
	}
	return true, nil
}

// ChunkCount is a direct query; unlike the key-value backend there is
// no probing.
func (p *SQLProvider) ChunkCount(ctx context.Context, handle string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE handle = ?`, handle,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chunks for %s: %w", handle, err)
	}
	return count, nil
}

// withTransaction runs fn within a database transaction.
func withTransaction(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}
