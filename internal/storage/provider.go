// Package storage persists object payloads as ordered chunk sequences
// under opaque handles. Two providers implement the same contract: one
// against a key-value store and one against a relational row-per-chunk
// table. Callers never branch on the concrete type; they dispatch
// through the Provider interface using the backend name recorded in
// object metadata.
package storage

import "context"

// Backend names as persisted in object metadata. The relational value
// is "d1" so rows written by earlier deployments stay readable.
const (
	BackendKV         = "kv"
	BackendRelational = "d1"
)

// MaxKVChunkSize is the largest single value the key-value backends
// are assumed to accept (~25MB). Configured chunk sizes must stay
// under this.
const MaxKVChunkSize = 25 * 1024 * 1024

// DefaultChunkSize is the chunk boundary used when none is configured.
const DefaultChunkSize = 1024 * 1024

// Provider stores, retrieves, and deletes chunk sequences under a
// handle. The handle is supplied by the caller: object metadata does
// not record a separate handle, so the object id doubles as one.
type Provider interface {
	// Write splits data using the provider's chunk size and persists
	// every chunk under handle. It is all-or-nothing from the caller's
	// perspective: on failure no partial chunk set should be assumed
	// readable.
	Write(ctx context.Context, handle string, data []byte) error

	// Read reassembles all chunks for handle in index order. It fails
	// with errs.ErrNotFound when no chunks exist.
	Read(ctx context.Context, handle string) ([]byte, error)

	// Delete removes all chunks for handle. Best-effort: it succeeds
	// even when fewer chunks exist than expected.
	Delete(ctx context.Context, handle string) error

	// Exists reports whether any chunk is stored under handle.
	Exists(ctx context.Context, handle string) (bool, error)

	// ChunkCount reports the number of chunks stored under handle,
	// zero when none exist.
	ChunkCount(ctx context.Context, handle string) (int, error)

	// Backend returns the provider's backend name (BackendKV or
	// BackendRelational).
	Backend() string

	// ChunkSize returns the chunk boundary the provider writes with.
	ChunkSize() int
}
