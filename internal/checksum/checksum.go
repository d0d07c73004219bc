// Package checksum computes the integrity digest stored alongside
// every object and recomputed on read. It is a corruption detector,
// not a security primitive, so a fast non-cryptographic hash is used.
package checksum

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// HexLen is the width of a digest string: xxhash64 rendered as hex.
const HexLen = 16

// Sum returns the xxhash64 digest of data as a fixed-width lowercase
// hex string. The digest is stable across process restarts and
// platforms; it is what gets persisted in object metadata.
func Sum(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
