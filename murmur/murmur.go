// Package murmur derives the filter's bit positions from the 128-bit x64
// variant of MurmurHash3.
//
// The filter computes every bit position it touches with Sum128, so the
// output must stay stable across releases: a persisted filter is only
// readable by code that hashes keys to the same positions. Blocks and tail
// bytes are read little-endian regardless of the host byte order.
//
// MurmurHash3 is a non-cryptographic hash. It mixes well but gives no
// protection against adversarially chosen keys.
package murmur

import "github.com/twmb/murmur3"

// Sum128 returns the two 64-bit halves of MurmurHash3_x64_128(data, seed).
// Both accumulators are seeded with the same value.
func Sum128(data []byte, seed uint32) (h1, h2 uint64) {
	return murmur3.SeedSum128(uint64(seed), uint64(seed), data)
}
