package bloom

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bits-and-blooms/bitset"
)

const (
	wordBits  = 64
	wordBytes = 8

	// words moved per Read/Write call while streaming the bit array
	chunkWords = 4096
)

// wordCount returns ceil(m/64), the number of 64-bit words backing m bits.
func wordCount(m uint64) uint64 {
	return (m + wordBits - 1) / wordBits
}

// writeWords writes words little-endian, in index order.
func writeWords(w io.Writer, words []uint64) (int64, error) {
	buf := make([]byte, min(len(words), chunkWords)*wordBytes)
	var written int64
	for len(words) > 0 {
		n := min(len(words), chunkWords)
		for i, word := range words[:n] {
			binary.LittleEndian.PutUint64(buf[i*wordBytes:], word)
		}
		c, err := w.Write(buf[:n*wordBytes])
		written += int64(c)
		if err != nil {
			return written, err
		}
		words = words[n:]
	}
	return written, nil
}

// readBitSet reads exactly wordCount(m) little-endian words into a new
// bitset of length m. The words are read a chunk at a time so the
// allocation never runs ahead of the data the stream actually holds, and
// the decoded words become the bitset's storage without a copy.
func readBitSet(r io.Reader, m uint64) (*bitset.BitSet, int64, error) {
	want := wordCount(m)
	words := make([]uint64, 0, min(want, chunkWords))
	buf := make([]byte, min(want, chunkWords)*wordBytes)

	var read int64
	for remaining := want; remaining > 0; {
		n := min(remaining, chunkWords)
		c, err := io.ReadFull(r, buf[:n*wordBytes])
		read += int64(c)
		if err != nil {
			return nil, read, fmt.Errorf("%w: bit array has %d of %d words: %w",
				ErrTruncated, uint64(len(words))+uint64(c/wordBytes), want, err)
		}
		for i := uint64(0); i < n; i++ {
			words = append(words, binary.LittleEndian.Uint64(buf[i*wordBytes:]))
		}
		remaining -= n
	}

	return bitset.FromWithLength(uint(m), words), read, nil
}
