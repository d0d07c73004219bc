package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"shelf/internal/errs"
)

func newKVProvider(t *testing.T, chunkSize int) (*KVProvider, *MemoryKV) {
	t.Helper()

	kv := NewMemoryKV()
	p, err := NewKVProvider(kv, chunkSize)
	require.NoError(t, err, "NewKVProvider error")
	return p, kv
}

func TestKVProviderWriteReadDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, kv := newKVProvider(t, 8)

	payload := []byte("this payload spans several eight byte chunks")
	require.NoError(t, p.Write(ctx, "h1", payload), "Write error")

	got, err := p.Read(ctx, "h1")
	require.NoError(t, err, "Read error")
	require.Equal(t, payload, got, "payload mismatch")

	count, err := p.ChunkCount(ctx, "h1")
	require.NoError(t, err, "ChunkCount error")
	require.Equal(t, 6, count, "44 bytes in 8-byte chunks")

	exists, err := p.Exists(ctx, "h1")
	require.NoError(t, err, "Exists error")
	require.True(t, exists, "handle should exist after write")

	require.NoError(t, p.Delete(ctx, "h1"), "Delete error")
	require.Zero(t, kv.Len(), "all chunk keys should be removed")

	_, err = p.Read(ctx, "h1")
	require.True(t, errors.Is(err, errs.ErrNotFound), "read after delete should be not found, got %v", err)
}

func TestKVProviderEmptyPayload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, kv := newKVProvider(t, 8)

	require.NoError(t, p.Write(ctx, "empty", nil), "Write error")
	require.Equal(t, 1, kv.Len(), "empty payload stores exactly one chunk")

	got, err := p.Read(ctx, "empty")
	require.NoError(t, err, "Read error")
	require.Empty(t, got, "empty payload should read back empty")

	count, err := p.ChunkCount(ctx, "empty")
	require.NoError(t, err, "ChunkCount error")
	require.Equal(t, 1, count, "empty payload counts as one chunk")
}

func TestKVProviderChunkCountProbe(t *testing.T) {
	t.Parallel()

	// Counts around powers of two exercise both the doubling phase and
	// the binary search of the probe.
	for _, n := range []int{1, 2, 3, 4, 5, 7, 8, 9, 16, 17, 31, 33} {
		n := n
		t.Run(fmt.Sprintf("%d chunks", n), func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			p, _ := newKVProvider(t, 4)

			payload := bytes.Repeat([]byte{0x42}, n*4)
			require.NoError(t, p.Write(ctx, "probe", payload), "Write error")

			count, err := p.ChunkCount(ctx, "probe")
			require.NoError(t, err, "ChunkCount error")
			require.Equal(t, n, count, "probed chunk count")

			got, err := p.Read(ctx, "probe")
			require.NoError(t, err, "Read error")
			require.Equal(t, payload, got, "payload mismatch")
		})
	}
}

func TestKVProviderMissingHandle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p, _ := newKVProvider(t, 8)

	count, err := p.ChunkCount(ctx, "nope")
	require.NoError(t, err, "ChunkCount error")
	require.Zero(t, count, "missing handle has zero chunks")

	exists, err := p.Exists(ctx, "nope")
	require.NoError(t, err, "Exists error")
	require.False(t, exists, "missing handle should not exist")

	_, err = p.Read(ctx, "nope")
	require.True(t, errors.Is(err, errs.ErrNotFound), "read of missing handle should be not found, got %v", err)

	// Deleting a missing handle is a no-op.
	require.NoError(t, p.Delete(ctx, "nope"), "Delete of missing handle should not error")
}

func TestKVProviderWriteRollback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := &failingKV{KV: NewMemoryKV(), failAfter: 3}
	p, err := NewKVProvider(kv, 4)
	require.NoError(t, err, "NewKVProvider error")

	payload := bytes.Repeat([]byte{0x1}, 6*4)
	err = p.Write(ctx, "partial", payload)
	require.Error(t, err, "write should fail when the transport fails")

	// The chunks written before the failure must be rolled back so the
	// handle is not readable in a truncated state.
	exists, err := p.Exists(ctx, "partial")
	require.NoError(t, err, "Exists error")
	require.False(t, exists, "partial write should leave no readable chunks")
}

func TestKVChunkSizeLimit(t *testing.T) {
	t.Parallel()

	_, err := NewKVProvider(NewMemoryKV(), MaxKVChunkSize)
	require.Error(t, err, "chunk size at the value limit should be rejected")
	require.Equal(t, errs.KindInvalid, errs.KindOf(err), "error kind")

	_, err = NewKVProvider(nil, 0)
	require.Error(t, err, "nil transport should be rejected")
}

// failingKV fails every Put after the first failAfter calls.
type failingKV struct {
	KV
	puts      int
	failAfter int
}

func (f *failingKV) Put(ctx context.Context, key string, value []byte) error {
	f.puts++
	if f.puts > f.failAfter {
		return errors.New("transport failure")
	}
	return f.KV.Put(ctx, key, value)
}
