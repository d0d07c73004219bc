// Package blob orchestrates the storage providers and the metadata
// catalog: it generates object ids, routes writes to a backend,
// verifies checksums on read, and reports aggregate statistics. It
// knows nothing about public paths; that indirection lives a layer up.
package blob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"shelf/internal/catalog"
	"shelf/internal/checksum"
	"shelf/internal/chunk"
	"shelf/internal/errs"
	"shelf/internal/metrics"
	"shelf/internal/storage"
)

// RoutingPolicy decides which backend a write lands on.
type RoutingPolicy struct {
	// Backend pins every write to one backend when set to
	// storage.BackendKV or storage.BackendRelational. Empty means
	// size-based hybrid routing.
	Backend string

	// HybridThreshold is the payload size in bytes at or above which
	// hybrid routing picks the key-value backend. Defaults to 1MB.
	HybridThreshold int64
}

// DefaultHybridThreshold routes objects of 1MB and larger to the
// key-value backend.
const DefaultHybridThreshold = 1024 * 1024

// WriteOptions carries caller-supplied metadata for a write.
type WriteOptions struct {
	Name        string
	ContentType string
}

// VerifyResult is the structured outcome of a verify pass. A failed
// verification is data, not an error: the operation is diagnostic and
// expected to degrade gracefully.
type VerifyResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Service is the file storage service.
type Service struct {
	kv         storage.Provider
	relational storage.Provider
	catalog    *catalog.Catalog
	policy     RoutingPolicy
}

// NewService wires the providers and catalog together. Either provider
// may be nil; writes routed to a missing provider fail with
// errs.ErrUnavailable.
func NewService(kv, relational storage.Provider, cat *catalog.Catalog, policy RoutingPolicy) (*Service, error) {
	if cat == nil {
		return nil, errs.Unavailable("metadata catalog not configured")
	}
	if policy.HybridThreshold <= 0 {
		policy.HybridThreshold = DefaultHybridThreshold
	}
	switch policy.Backend {
	case "", storage.BackendKV, storage.BackendRelational:
	default:
		return nil, errs.Invalid("unknown backend %q", policy.Backend)
	}
	return &Service{kv: kv, relational: relational, catalog: cat, policy: policy}, nil
}

// NewID generates an object id: file_<unix-ts>_<16-hex-random>.
func NewID() string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	return fmt.Sprintf("file_%d_%s", time.Now().Unix(), random)
}

// selectBackend applies the routing policy to a payload size. The
// decision is made once per write and recorded in metadata, so reads
// never have to guess.
func (s *Service) selectBackend(size int64) string {
	if s.policy.Backend != "" {
		return s.policy.Backend
	}
	if size >= s.policy.HybridThreshold {
		return storage.BackendKV
	}
	return storage.BackendRelational
}

// provider resolves a backend name to its provider, failing with
// errs.ErrUnavailable when that backend was never configured.
func (s *Service) provider(backend string) (storage.Provider, error) {
	switch backend {
	case storage.BackendKV:
		if s.kv == nil {
			return nil, errs.Unavailable("kv backend not configured")
		}
		return s.kv, nil
	case storage.BackendRelational:
		if s.relational == nil {
			return nil, errs.Unavailable("relational backend not configured")
		}
		return s.relational, nil
	default:
		return nil, errs.Internal("object recorded with unknown backend %q", backend)
	}
}

// Write stores data and returns the new object's metadata. The
// checksum is computed over the original unsplit payload before any
// backend sees it, and metadata is saved only after the chunk write
// succeeds.
func (s *Service) Write(ctx context.Context, data []byte, opts WriteOptions) (*catalog.Metadata, error) {
	backend := s.selectBackend(int64(len(data)))
	provider, err := s.provider(backend)
	if err != nil {
		return nil, err
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	id := NewID()
	sum := checksum.Sum(data)

	if err := provider.Write(ctx, id, data); err != nil {
		return nil, errs.Wrap(err, fmt.Sprintf("write object %s", id))
	}

	now := time.Now().UTC()
	meta := &catalog.Metadata{
		ID:             id,
		Name:           opts.Name,
		ContentType:    contentType,
		Size:           int64(len(data)),
		CreatedAt:      now,
		UpdatedAt:      now,
		Checksum:       sum,
		ChunkCount:     chunk.Count(int64(len(data)), provider.ChunkSize()),
		ChunkSize:      provider.ChunkSize(),
		StorageBackend: backend,
	}

	if err := s.catalog.Save(ctx, meta); err != nil {
		// The catalog row is the source of truth for existence, so
		// without it the chunks are unreachable; reclaim them.
		if delErr := provider.Delete(ctx, id); delErr != nil {
			slog.Warn("Orphan chunks left after failed metadata save", "id", id, "err", delErr)
		}
		return nil, errs.Wrap(err, fmt.Sprintf("save metadata for %s", id))
	}

	metrics.Writes.WithLabelValues(backend).Inc()
	metrics.BytesWritten.WithLabelValues(backend).Add(float64(len(data)))

	return meta, nil
}

// Read returns the metadata for id without touching chunk storage.
func (s *Service) Read(ctx context.Context, id string) (*catalog.Metadata, error) {
	return s.catalog.Load(ctx, id)
}

// ReadData reassembles the payload for id and verifies its checksum.
// It fails with errs.ErrNotFound when the object does not exist and
// errs.ErrCorrupted when the reassembled bytes do not match the
// recorded digest.
func (s *Service) ReadData(ctx context.Context, id string) ([]byte, error) {
	meta, err := s.catalog.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	provider, err := s.provider(meta.StorageBackend)
	if err != nil {
		return nil, err
	}

	data, err := provider.Read(ctx, id)
	if err != nil {
		return nil, errs.Wrap(err, fmt.Sprintf("read object %s", id))
	}

	if sum := checksum.Sum(data); sum != meta.Checksum {
		metrics.CorruptionDetected.Inc()
		return nil, errs.Corrupted("object %s: checksum %s does not match recorded %s", id, sum, meta.Checksum)
	}

	metrics.Reads.WithLabelValues(meta.StorageBackend).Inc()
	return data, nil
}

// Delete removes the chunks and the catalog row for id. Both steps are
// attempted even when the first fails: orphan metadata is worse than
// orphan chunks, since metadata drives existence answers.
func (s *Service) Delete(ctx context.Context, id string) error {
	meta, err := s.catalog.Load(ctx, id)
	if err != nil {
		return err
	}

	provider, providerErr := s.provider(meta.StorageBackend)

	var chunkErr error
	if providerErr == nil {
		chunkErr = provider.Delete(ctx, id)
	} else {
		chunkErr = providerErr
	}

	rowErr := s.catalog.Delete(ctx, id)

	if chunkErr != nil {
		return errs.Wrap(chunkErr, fmt.Sprintf("delete chunks for %s", id))
	}
	if rowErr != nil {
		return errs.Wrap(rowErr, fmt.Sprintf("delete metadata for %s", id))
	}

	metrics.Deletes.WithLabelValues(meta.StorageBackend).Inc()
	return nil
}

// Exists reports whether id has a catalog row. Chunk storage is not
// consulted.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	return s.catalog.Exists(ctx, id)
}

// List returns metadata rows, newest-updated first.
func (s *Service) List(ctx context.Context, prefix string, limit, offset int) ([]*catalog.Metadata, error) {
	return s.catalog.List(ctx, prefix, limit, offset)
}

// GetStats aggregates the catalog.
func (s *Service) GetStats(ctx context.Context) (catalog.Stats, error) {
	return s.catalog.GetStats(ctx)
}

// Verify reads the blob back and checks its byte length and checksum
// against the recorded metadata. Failures are returned as data; only
// the object being absent is an error.
func (s *Service) Verify(ctx context.Context, id string) (VerifyResult, error) {
	meta, err := s.catalog.Load(ctx, id)
	if err != nil {
		return VerifyResult{}, err
	}

	provider, err := s.provider(meta.StorageBackend)
	if err != nil {
		return VerifyResult{Valid: false, Error: err.Error()}, nil
	}

	data, err := provider.Read(ctx, id)
	if err != nil {
		return VerifyResult{Valid: false, Error: fmt.Sprintf("read chunks: %v", err)}, nil
	}

	if int64(len(data)) != meta.Size {
		metrics.CorruptionDetected.Inc()
		return VerifyResult{Valid: false, Error: fmt.Sprintf("size mismatch: stored %d bytes, recorded %d", len(data), meta.Size)}, nil
	}

	if sum := checksum.Sum(data); sum != meta.Checksum {
		metrics.CorruptionDetected.Inc()
		return VerifyResult{Valid: false, Error: fmt.Sprintf("checksum mismatch: computed %s, recorded %s", sum, meta.Checksum)}, nil
	}

	return VerifyResult{Valid: true}, nil
}

// IsNotFound reports whether err denotes a missing object, letting
// callers distinguish absence from failure cheaply.
func IsNotFound(err error) bool {
	return errors.Is(err, errs.ErrNotFound)
}
