/*
Package bloom provides a Bloom filter for cheap set-membership checks.

A Bloom filter represents a set of _n_ items without storing them. It has two
parameters: _m_, the number of bits in its bit array, and _k_, the number of
bit positions derived from each key. Adding a key sets its _k_ bits; testing
a key checks them. A filter never reports an added key as absent (no false
negatives), but it may report a key that was never added as present. The art
is to choose _k_ and _m_ correctly, which NewWithEstimates does for a target
capacity and false positive rate:

	f, err := bloom.NewWithEstimates(1000, 0.01) // m = 9586, k = 7
	if err != nil {
		return err
	}
	f.AddString("Love")
	if f.TestString("Love") {
		// maybe present
	}

Bit positions come from murmur.Sum128 re-seeded once per hash: the i-th
position of a key is the first half of Sum128(key, i) modulo _m_. Because the
positions are a pure function of the key bytes and _m_, a filter written with
SaveToFile (or WriteTo) can be read back by any implementation using the same
hash and layout. See WriteTo for the on-disk format.

The filter is insertion only. There is no removal and no resizing.

A Filter is not safe for concurrent use. Test updates the query counter, so
even read-only callers sharing a filter must hold a single lock around every
call.
*/
package bloom

import (
	"math"

	"github.com/bits-and-blooms/bitset"
)

// MaxBits is the largest bit count New and the loaders accept.
const MaxBits uint64 = 1 << 40

// New creates a Bloom filter with _m_ bits and _k_ hash positions per key.
// A zero _k_ is raised to one; a zero _m_ is rejected.
func New(m uint64, k uint32) (*Filter, error) {
	if m == 0 {
		return nil, ErrZeroBits
	}
	if m > MaxBits {
		return nil, ErrTooManyBits
	}
	return &Filter{
		m: m,
		k: max(1, k),
		b: bitset.New(uint(m)),
	}, nil
}

// NewWithEstimates creates a Bloom filter sized for about n items at false
// positive rate fp.
func NewWithEstimates(n uint64, fp float64) (*Filter, error) {
	if n == 0 {
		return nil, ErrZeroCapacity
	}
	if !(fp > 0 && fp < 1) {
		return nil, ErrBadFalsePositiveRate
	}
	m, k := EstimateParameters(n, fp)
	return New(m, k)
}

// EstimateParameters estimates requirements for m and k.
func EstimateParameters(n uint64, p float64) (m uint64, k uint32) {
	m = OptimalNumBits(n, p)
	k = OptimalNumHashes(m, n)
	return
}

// OptimalNumBits returns ceil(-n * ln(p) / ln(2)^2), the bit count that
// holds n items at false positive rate p.
func OptimalNumBits(n uint64, p float64) uint64 {
	return uint64(math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)))
}

// OptimalNumHashes returns round(m/n * ln(2)), never less than one.
func OptimalNumHashes(m, n uint64) uint32 {
	if n == 0 {
		return 1
	}
	k := uint32(math.Round(float64(m) / float64(n) * math.Ln2))
	return max(1, k)
}
