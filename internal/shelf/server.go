// Package shelf is the HTTP surface of the object store: server
// construction, routing, middleware, and the JSON envelope handlers
// that translate between requests and the storage adapter.
package shelf

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"shelf/internal/blob"
	"shelf/internal/catalog"
	"shelf/internal/errs"
	"shelf/internal/pathmap"
	"shelf/internal/storage"
	"shelf/internal/store"
)

// Server wires the storage engine together and serves the API.
type Server struct {
	cfg     Config
	db      *sql.DB
	blobs   *blob.Service
	adapter *store.Adapter
}

// NewServer opens the metadata database, constructs both storage
// providers per the configuration, and returns a ready Server.
func NewServer(ctx context.Context, cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("DBPath must not be empty")
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	srv, err := newServerWithDB(ctx, cfg, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return srv, nil
}

func newServerWithDB(ctx context.Context, cfg Config, db *sql.DB) (*Server, error) {
	kvTransport, err := newKVTransport(ctx, cfg)
	if err != nil {
		return nil, err
	}

	kvProvider, err := storage.NewKVProvider(kvTransport, cfg.KVChunkSize)
	if err != nil {
		return nil, err
	}

	sqlProvider, err := storage.NewSQLProvider(db, cfg.SQLChunkSize)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.New(db)
	if err != nil {
		return nil, err
	}

	paths, err := pathmap.New(db)
	if err != nil {
		return nil, err
	}

	blobs, err := blob.NewService(kvProvider, sqlProvider, cat, blob.RoutingPolicy{
		Backend:         cfg.Backend,
		HybridThreshold: cfg.HybridThreshold,
	})
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:     cfg,
		db:      db,
		blobs:   blobs,
		adapter: store.NewAdapter(blobs, paths),
	}, nil
}

func newKVTransport(ctx context.Context, cfg Config) (storage.KV, error) {
	switch cfg.KVDriver {
	case "", KVDriverMemory:
		return storage.NewMemoryKV(), nil
	case KVDriverMinio:
		return storage.NewMinioKV(ctx, cfg.Minio)
	case KVDriverNats:
		return storage.NewNatsKV(ctx, cfg.Nats)
	default:
		return nil, errs.Invalid("unknown kv driver %q", cfg.KVDriver)
	}
}

// Close releases the server's resources.
func (s *Server) Close() error {
	return s.db.Close()
}
