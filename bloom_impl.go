package bloom

import (
	"math"

	"github.com/bits-and-blooms/bitset"

	"github.com/membership/bloom/murmur"
)

// A Filter is a Bloom filter of m bits with k hash positions per key. It
// also counts insertions and positive queries.
//
// The zero value is not usable: build a Filter with New, NewWithEstimates
// or Read, or decode into one with UnmarshalBinary or GobDecode.
type Filter struct {
	m          uint64
	k          uint32
	b          *bitset.BitSet
	insertions uint64
	queries    uint64
}

// Stats is a snapshot of a filter's counters and occupancy.
type Stats struct {
	Insertions   uint64  `json:"insertions"`
	Queries      uint64  `json:"queries"`
	BitCount     uint64  `json:"bit_count"`
	BitsSet      uint64  `json:"bits_set"`
	HashCount    uint32  `json:"hash_count"`
	FillRatio    float64 `json:"fill_ratio"`
	EstimatedFPR float64 `json:"estimated_fpr"`
}

// location returns the ith bit position of data: the first half of
// Sum128(data, i) reduced modulo m.
func (f *Filter) location(data []byte, i uint32) uint {
	h1, _ := murmur.Sum128(data, i)
	return uint(h1 % f.m)
}

// Locations returns the k bit positions of data, in seed order.
func (f *Filter) Locations(data []byte) []uint64 {
	locs := make([]uint64, f.k)
	for i := uint32(0); i < f.k; i++ {
		locs[i] = uint64(f.location(data, i))
	}
	return locs
}

// Cap returns the number of bits, _m_, of the filter.
func (f *Filter) Cap() uint64 {
	return f.m
}

// K returns the number of hash positions per key.
func (f *Filter) K() uint32 {
	return f.k
}

// SizeBytes returns the size of the bit array in bytes, whole words.
func (f *Filter) SizeBytes() uint64 {
	return wordCount(f.m) * wordBytes
}

func (f *Filter) Insertions() uint64 {
	return f.insertions
}

func (f *Filter) Queries() uint64 {
	return f.queries
}

// Add sets the bits of data and counts one insertion, even when every bit
// was already set. Returns the filter (allows chaining).
func (f *Filter) Add(data []byte) *Filter {
	for i := uint32(0); i < f.k; i++ {
		f.b.Set(f.location(data, i))
	}
	f.insertions++
	return f
}

func (f *Filter) AddString(data string) *Filter {
	return f.Add([]byte(data))
}

// AddBatch adds every key in order, exactly as repeated calls to Add.
func (f *Filter) AddBatch(keys [][]byte) *Filter {
	for _, key := range keys {
		f.Add(key)
	}
	return f
}

func (f *Filter) AddStrings(keys []string) *Filter {
	for _, key := range keys {
		f.AddString(key)
	}
	return f
}

// Test returns false if data is definitely not in the filter. A true result
// might be a false positive and is counted as a query; definite misses are
// not counted.
func (f *Filter) Test(data []byte) bool {
	for i := uint32(0); i < f.k; i++ {
		if !f.b.Test(f.location(data, i)) {
			return false
		}
	}
	f.queries++
	return true
}

func (f *Filter) TestString(data string) bool {
	return f.Test([]byte(data))
}

// AddNew sets the bits of data and reports whether any of them was unset.
// The insertion counter moves only when it returns true. A key never seen
// before can still return false if all of its bits collide with earlier keys.
func (f *Filter) AddNew(data []byte) bool {
	isNew := false
	for i := uint32(0); i < f.k; i++ {
		l := f.location(data, i)
		if !f.b.Test(l) {
			isNew = true
			f.b.Set(l)
		}
	}
	if isNew {
		f.insertions++
	}
	return isNew
}

func (f *Filter) AddNewString(data string) bool {
	return f.AddNew([]byte(data))
}

// FilterNew returns the indices of the keys Test reports absent, in input
// order. Bits are not modified, so a key absent from the filter is reported
// at every index it appears.
func (f *Filter) FilterNew(keys [][]byte) []int {
	var fresh []int
	for i, key := range keys {
		if !f.Test(key) {
			fresh = append(fresh, i)
		}
	}
	return fresh
}

func (f *Filter) FilterNewStrings(keys []string) []int {
	data := make([][]byte, len(keys))
	for i, key := range keys {
		data[i] = []byte(key)
	}
	return f.FilterNew(data)
}

// ClearAll zeroes the bit array and both counters. m and k are kept.
func (f *Filter) ClearAll() *Filter {
	f.b.ClearAll()
	f.insertions = 0
	f.queries = 0
	return f
}

// bitsSet is the population count over every word, including any bits a
// loaded image carried past m in its last word.
func (f *Filter) bitsSet() uint64 {
	return uint64(f.b.Count())
}

// FillRatio returns the fraction of bits set.
func (f *Filter) FillRatio() float64 {
	return float64(f.bitsSet()) / float64(f.m)
}

// EstimatedFalsePositiveRate returns (1 - e^(-k*n/m))^k where n is the
// insertion counter. It assumes uniform hashing; it is not measured.
func (f *Filter) EstimatedFalsePositiveRate() float64 {
	if f.insertions == 0 {
		return 0
	}
	k := float64(f.k)
	exponent := -k * float64(f.insertions) / float64(f.m)
	return math.Pow(1-math.Exp(exponent), k)
}

func (f *Filter) Stats() Stats {
	set := f.bitsSet()
	return Stats{
		Insertions:   f.insertions,
		Queries:      f.queries,
		BitCount:     f.m,
		BitsSet:      set,
		HashCount:    f.k,
		FillRatio:    float64(set) / float64(f.m),
		EstimatedFPR: f.EstimatedFalsePositiveRate(),
	}
}

// ApproximatedSize approximates the number of distinct items from the fill
// ratio. A saturated filter returns math.MaxUint64.
// https://en.wikipedia.org/wiki/Bloom_filter#Approximating_the_number_of_items_in_a_Bloom_filter
func (f *Filter) ApproximatedSize() uint64 {
	x := float64(f.bitsSet())
	m := float64(f.m)
	if x >= m {
		return math.MaxUint64
	}
	k := float64(f.k)
	size := -1 * m / k * math.Log(1-x/m)
	return uint64(math.Floor(size + 0.5)) // round
}

// Equal reports whether g has the same m, k and bits. Counters are ignored.
func (f *Filter) Equal(g *Filter) bool {
	return f.m == g.m && f.k == g.k && f.b.Equal(g.b)
}
