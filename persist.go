package bloom

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// headerSize is m (u64), k (u32), insertions (u64) and queries (u64).
const headerSize = 8 + 4 + 8 + 8

// WriteTo writes the binary image of the filter to stream:
//
//	offset  size  field
//	0       8     m, bit count
//	8       4     k, hash count
//	12      8     insertions
//	20      8     queries
//	28      8*w   bit array, w = ceil(m/64) words in index order
//
// Every field is little-endian and there is no magic or version. Bit i of
// the filter is bit i%64 of word i/64.
func (f *Filter) WriteTo(stream io.Writer) (int64, error) {
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint64(hdr[0:], f.m)
	binary.LittleEndian.PutUint32(hdr[8:], f.k)
	binary.LittleEndian.PutUint64(hdr[12:], f.insertions)
	binary.LittleEndian.PutUint64(hdr[20:], f.queries)
	n, err := stream.Write(hdr[:])
	if err != nil {
		return int64(n), err
	}
	numBytes, err := writeWords(stream, f.b.Bytes())
	return int64(n) + numBytes, err
}

// Read decodes a filter written by WriteTo. It fails with ErrTruncated if
// the stream ends early and never returns a partially populated filter.
func Read(stream io.Reader) (*Filter, error) {
	f, _, err := decode(stream)
	return f, err
}

// ReadFrom replaces f with the filter decoded from stream. On error f is
// left untouched.
func (f *Filter) ReadFrom(stream io.Reader) (int64, error) {
	g, n, err := decode(stream)
	if err != nil {
		return n, err
	}
	*f = *g
	return n, nil
}

func decode(stream io.Reader) (*Filter, int64, error) {
	var hdr [headerSize]byte
	n, err := io.ReadFull(stream, hdr[:])
	if err != nil {
		return nil, int64(n), fmt.Errorf("%w: header: %w", ErrTruncated, err)
	}
	m := binary.LittleEndian.Uint64(hdr[0:])
	k := binary.LittleEndian.Uint32(hdr[8:])
	switch {
	case m == 0:
		return nil, int64(n), ErrZeroBits
	case m > MaxBits:
		return nil, int64(n), fmt.Errorf("%w: header declares %d bits", ErrTooManyBits, m)
	case k == 0:
		return nil, int64(n), ErrZeroHashes
	}

	b, numBytes, err := readBitSet(stream, m)
	if err != nil {
		return nil, int64(n) + numBytes, err
	}
	return &Filter{
		m:          m,
		k:          k,
		b:          b,
		insertions: binary.LittleEndian.Uint64(hdr[12:]),
		queries:    binary.LittleEndian.Uint64(hdr[20:]),
	}, int64(n) + numBytes, nil
}

// SaveToFile writes the filter image to path, replacing any existing file.
// The image goes to a temporary file in the same directory first and is
// renamed over path only once fully written, so a failed save leaves the
// previous file intact.
func (f *Filter) SaveToFile(path string) (err error) {
	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("bloom: save %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = file.Close()
			_ = os.Remove(file.Name())
			err = fmt.Errorf("bloom: save %s: %w", path, err)
		}
	}()

	w := bufio.NewWriter(file)
	if _, err = f.WriteTo(w); err != nil {
		return err
	}
	if err = w.Flush(); err != nil {
		return err
	}
	if err = file.Chmod(0o644); err != nil {
		return err
	}
	if err = file.Close(); err != nil {
		return err
	}
	return os.Rename(file.Name(), path)
}

// LoadFromFile reads a filter saved with SaveToFile.
func LoadFromFile(path string) (*Filter, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bloom: load %s: %w", path, err)
	}
	defer file.Close()

	f, err := Read(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("bloom: load %s: %w", path, err)
	}
	return f, nil
}

// MarshalBinary implements encoding.BinaryMarshaler with the WriteTo image.
func (f *Filter) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(headerSize + int(f.SizeBytes()))
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. Trailing bytes
// after the bit array are ignored.
func (f *Filter) UnmarshalBinary(data []byte) error {
	_, err := f.ReadFrom(bytes.NewReader(data))
	return err
}

// GobEncode implements gob.GobEncoder interface.
func (f *Filter) GobEncode() ([]byte, error) {
	return f.MarshalBinary()
}

// GobDecode implements gob.GobDecoder interface.
func (f *Filter) GobDecode(data []byte) error {
	return f.UnmarshalBinary(data)
}
