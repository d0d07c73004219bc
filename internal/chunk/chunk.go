// Package chunk splits byte buffers into fixed-size chunks and
// reassembles them. Both operations are pure and total: Split never
// fails for chunkSize >= 1, and Merge is plain concatenation.
package chunk

// Split cuts data into chunks of at most chunkSize bytes, in order.
// The last chunk may be shorter. Empty input yields a single empty
// chunk so that a stored object always has at least one chunk.
//
// The returned slices alias data; callers that need to retain chunks
// past the lifetime of data must copy them.
func Split(data []byte, chunkSize int) [][]byte {
	if chunkSize < 1 {
		chunkSize = 1
	}

	if len(data) == 0 {
		return [][]byte{{}}
	}

	chunks := make([][]byte, 0, (len(data)+chunkSize-1)/chunkSize)
	for start := 0; start < len(data); start += chunkSize {
		end := min(start+chunkSize, len(data))
		chunks = append(chunks, data[start:end])
	}
	return chunks
}

// Merge concatenates chunks in the order given. It does not sort;
// callers must supply chunks already ordered by index so that
// out-of-order bugs surface as corrupted payloads instead of being
// papered over here.
func Merge(chunks [][]byte) []byte {
	var total int
	for _, c := range chunks {
		total += len(c)
	}

	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// Count returns the number of chunks Split would produce for a payload
// of the given size: ceil(size/chunkSize), never less than 1.
func Count(size int64, chunkSize int) int {
	if chunkSize < 1 {
		chunkSize = 1
	}
	if size <= 0 {
		return 1
	}
	return int((size + int64(chunkSize) - 1) / int64(chunkSize))
}
