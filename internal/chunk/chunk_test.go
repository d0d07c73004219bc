package chunk

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitAndMergeRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		size      int
		chunkSize int
		want      int
	}{
		{name: "smaller than chunk", size: 10, chunkSize: 64, want: 1},
		{name: "exact multiple", size: 128, chunkSize: 64, want: 2},
		{name: "one byte over", size: 129, chunkSize: 64, want: 3},
		{name: "single byte", size: 1, chunkSize: 64, want: 1},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			data := bytes.Repeat([]byte{0xAB}, tc.size)
			chunks := Split(data, tc.chunkSize)
			require.Len(t, chunks, tc.want, "chunk count")

			for i, c := range chunks[:len(chunks)-1] {
				require.Lenf(t, c, tc.chunkSize, "interior chunk %d should be full", i)
			}

			require.Equal(t, data, Merge(chunks), "merged payload mismatch")
		})
	}
}

func TestSplitEmptyInput(t *testing.T) {
	t.Parallel()

	// Zero-length data still produces exactly one empty chunk, so an
	// empty object is representable in chunk storage.
	chunks := Split(nil, 64)
	require.Len(t, chunks, 1, "empty input should yield one chunk")
	require.Empty(t, chunks[0], "the single chunk should be empty")

	merged := Merge(chunks)
	require.Empty(t, merged, "merging an empty chunk should yield empty data")
}

func TestMergePreservesOrder(t *testing.T) {
	t.Parallel()

	// Merge concatenates in the order given and never sorts.
	chunks := [][]byte{[]byte("cc"), []byte("aa"), []byte("bb")}
	require.Equal(t, []byte("ccaabb"), Merge(chunks), "Merge must preserve input order")
}

func TestCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		size      int64
		chunkSize int
		want      int
	}{
		{name: "zero bytes", size: 0, chunkSize: 64, want: 1},
		{name: "under one chunk", size: 63, chunkSize: 64, want: 1},
		{name: "exactly one chunk", size: 64, chunkSize: 64, want: 1},
		{name: "one byte over", size: 65, chunkSize: 64, want: 2},
		{name: "large", size: 1024*1024 + 1, chunkSize: 1024 * 1024, want: 2},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Count(tc.size, tc.chunkSize), "chunk count")
		})
	}
}
