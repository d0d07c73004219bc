package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"shelf/internal/chunk"
	"shelf/internal/errs"
)

// KV is the narrow transport contract the key-value provider needs:
// point get, put, and delete by string key. There is deliberately no
// listing or counting operation; the provider discovers chunk counts
// by probing, which keeps the contract satisfiable by stores that
// offer nothing beyond get/put/delete.
type KV interface {
	// Get returns the value stored under key, or an error satisfying
	// errors.Is(err, errs.ErrNotFound) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// KVProvider stores chunk sequences in a key-value store under keys of
// the form "chunk:<handle>:<index>", index zero-padded to six digits.
type KVProvider struct {
	kv        KV
	chunkSize int
}

// NewKVProvider creates a provider over the given transport. chunkSize
// defaults to DefaultChunkSize and is capped below MaxKVChunkSize,
// the largest value the backing stores are assumed to accept.
func NewKVProvider(kv KV, chunkSize int) (*KVProvider, error) {
	if kv == nil {
		return nil, errs.Unavailable("kv transport not configured")
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize >= MaxKVChunkSize {
		return nil, errs.Invalid("chunk size %d exceeds kv value limit %d", chunkSize, MaxKVChunkSize)
	}
	return &KVProvider{kv: kv, chunkSize: chunkSize}, nil
}

func (p *KVProvider) Backend() string { return BackendKV }

func (p *KVProvider) ChunkSize() int { return p.chunkSize }

// chunkKey formats the storage key for one chunk. The index is
// zero-padded so keys sort in chunk order.
func chunkKey(handle string, index int) string {
	return fmt.Sprintf("chunk:%s:%06d", handle, index)
}

func (p *KVProvider) Write(ctx context.Context, handle string, data []byte) error {
	chunks := chunk.Split(data, p.chunkSize)

	for i, c := range chunks {
		if err := p.kv.Put(ctx, chunkKey(handle, i), c); err != nil {
			// Roll back whatever made it in so a failed write does
			// not leave a readable partial chunk set behind.
			p.cleanup(ctx, handle, i)
			return errs.Wrap(err, fmt.Sprintf("kv write chunk %d of %s", i, handle))
		}
	}
	return nil
}

// cleanup removes chunks [0, written) after a failed write.
func (p *KVProvider) cleanup(ctx context.Context, handle string, written int) {
	for i := 0; i < written; i++ {
		if err := p.kv.Delete(ctx, chunkKey(handle, i)); err != nil {
			slog.Warn("Orphan chunk left after failed write", "handle", handle, "index", i, "err", err)
		}
	}
}

func (p *KVProvider) Read(ctx context.Context, handle string) ([]byte, error) {
	count, err := p.ChunkCount(ctx, handle)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errs.NotFound("no chunks for handle %s", handle)
	}

	chunks := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		c, err := p.kv.Get(ctx, chunkKey(handle, i))
		if err != nil {
			return nil, errs.Wrap(err, fmt.Sprintf("kv read chunk %d of %s", i, handle))
		}
		chunks = append(chunks, c)
	}

	return chunk.Merge(chunks), nil
}

func (p *KVProvider) Delete(ctx context.Context, handle string) error {
	count, err := p.ChunkCount(ctx, handle)
	if err != nil {
		return err
	}

	for i := 0; i < count; i++ {
		if err := p.kv.Delete(ctx, chunkKey(handle, i)); err != nil {
			return errs.Wrap(err, fmt.Sprintf("kv delete chunk %d of %s", i, handle))
		}
	}
	return nil
}

func (p *KVProvider) Exists(ctx context.Context, handle string) (bool, error) {
	return p.hasChunk(ctx, handle, 0)
}

// ChunkCount discovers the chunk count by probing for the highest
// existing index: the store has no native listing or counting, so the
// provider doubles an upper bound and then binary-searches within it.
// This trades a handful of point reads for not maintaining a separate
// count record that could drift from the chunks themselves.
func (p *KVProvider) ChunkCount(ctx context.Context, handle string) (int, error) {
	exists, err := p.hasChunk(ctx, handle, 0)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	// Find an upper bound: the first power-of-two index that is
	// missing. lo always names an index known to exist.
	lo, hi := 0, 1
	for {
		exists, err := p.hasChunk(ctx, handle, hi)
		if err != nil {
			return 0, err
		}
		if !exists {
			break
		}
		lo, hi = hi, hi*2
	}

	// Binary search in (lo, hi) for the highest existing index.
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		exists, err := p.hasChunk(ctx, handle, mid)
		if err != nil {
			return 0, err
		}
		if exists {
			lo = mid
		} else {
			hi = mid
		}
	}

	return lo + 1, nil
}

func (p *KVProvider) hasChunk(ctx context.Context, handle string, index int) (bool, error) {
	_, err := p.kv.Get(ctx, chunkKey(handle, index))
	if errors.Is(err, errs.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errs.Wrap(err, fmt.Sprintf("kv probe chunk %d of %s", index, handle))
	}
	return true, nil
}
