package bloom

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func populated(t *testing.T) *Filter {
	t.Helper()
	f := newEstimated(t, 1000, 0.01)
	for _, key := range []string{"one", "two", "three", "four"} {
		f.AddString(key)
	}
	f.TestString("one")
	f.TestString("two")
	f.TestString("absent")
	return f
}

func TestImageLayout(t *testing.T) {
	f := newFilter(t, 100, 3)
	f.AddString("a")
	f.TestString("a")

	data, err := f.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, headerSize+16)

	require.Equal(t, uint64(100), binary.LittleEndian.Uint64(data[0:8]))
	require.Equal(t, uint32(3), binary.LittleEndian.Uint32(data[8:12]))
	require.Equal(t, uint64(1), binary.LittleEndian.Uint64(data[12:20]))
	require.Equal(t, uint64(1), binary.LittleEndian.Uint64(data[20:28]))

	words := f.b.Bytes()
	require.Equal(t, words[0], binary.LittleEndian.Uint64(data[28:36]))
	require.Equal(t, words[1], binary.LittleEndian.Uint64(data[36:44]))

	// bit i lives in word i/64 at position i%64
	for _, loc := range f.Locations([]byte("a")) {
		word := binary.LittleEndian.Uint64(data[28+8*(loc/64):])
		require.NotZero(t, word&(1<<(loc%64)), "bit %d", loc)
	}
}

func TestWriteToReadFrom(t *testing.T) {
	f := populated(t)
	var b bytes.Buffer
	written, err := f.WriteTo(&b)
	require.NoError(t, err)
	require.Equal(t, int64(b.Len()), written)
	require.Equal(t, int64(headerSize)+int64(f.SizeBytes()), written)

	g := newFilter(t, 10, 1)
	read, err := g.ReadFrom(&b)
	require.NoError(t, err)
	require.Equal(t, written, read)
	require.Equal(t, f.Cap(), g.Cap())
	require.Equal(t, f.K(), g.K())
	require.Equal(t, f.Insertions(), g.Insertions())
	require.Equal(t, f.Queries(), g.Queries())
	require.True(t, g.Equal(f))
	require.Equal(t, uint(f.Cap()), g.b.Len())
	require.Len(t, g.b.Bytes(), int(wordCount(f.Cap())))
}

func TestSaveLoadFile(t *testing.T) {
	f := populated(t)
	path := filepath.Join(t.TempDir(), "filter.bloom")
	require.NoError(t, f.SaveToFile(path))

	g, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, f.Stats(), g.Stats())
	require.Equal(t, f.b.Bytes(), g.b.Bytes())

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	image, err := g.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, onDisk, image, "reloaded filter must serialise byte for byte")

	for _, key := range []string{"one", "two", "three", "four"} {
		require.True(t, g.TestString(key))
	}
}

func TestSaveToFileReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "filter.bloom")

	f := newFilter(t, 1000, 4)
	f.AddString("first")
	require.NoError(t, f.SaveToFile(path))

	g := populated(t)
	require.NoError(t, g.SaveToFile(path))

	h, err := LoadFromFile(path)
	require.NoError(t, err)
	require.True(t, h.Equal(g))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary file may be left behind")

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

// A save that cannot complete leaves the existing image and no temp file.
func TestSaveToFileFailureKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "filter.bloom")

	// A non-empty directory at path makes the final rename fail.
	require.NoError(t, os.MkdirAll(filepath.Join(path, "keep"), 0o755))

	f := populated(t)
	require.Error(t, f.SaveToFile(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.True(t, info.IsDir())
	_, err = os.Stat(filepath.Join(path, "keep"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestLoadFromFileMissing(t *testing.T) {
	f, err := LoadFromFile(filepath.Join(t.TempDir(), "nope"))
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Nil(t, f)
}

func TestSaveToFileUnwritable(t *testing.T) {
	f := newFilter(t, 64, 1)
	err := f.SaveToFile(filepath.Join(t.TempDir(), "missing-dir", "filter.bloom"))
	require.Error(t, err)
}

// Every proper prefix of an image is rejected.
func TestReadTruncated(t *testing.T) {
	f := newFilter(t, 200, 3)
	f.AddString("x")
	data, err := f.MarshalBinary()
	require.NoError(t, err)

	for n := 0; n < len(data); n++ {
		g, err := Read(bytes.NewReader(data[:n]))
		require.ErrorIs(t, err, ErrTruncated, "prefix %d", n)
		require.Nil(t, g)
	}

	path := filepath.Join(t.TempDir(), "short.bloom")
	require.NoError(t, os.WriteFile(path, data[:len(data)-1], 0o644))
	g, err := LoadFromFile(path)
	require.ErrorIs(t, err, ErrTruncated)
	require.Nil(t, g)
}

func TestReadFromFailureLeavesFilter(t *testing.T) {
	f := populated(t)
	before := f.Stats()

	_, err := f.ReadFrom(bytes.NewReader([]byte{1, 2, 3}))
	require.ErrorIs(t, err, ErrTruncated)
	require.Equal(t, before, f.Stats())
}

func header(m uint64, k uint32) []byte {
	hdr := make([]byte, headerSize)
	binary.LittleEndian.PutUint64(hdr[0:], m)
	binary.LittleEndian.PutUint32(hdr[8:], k)
	return hdr
}

func TestReadRejectsBadHeader(t *testing.T) {
	_, err := Read(bytes.NewReader(header(0, 3)))
	require.ErrorIs(t, err, ErrZeroBits)

	_, err = Read(bytes.NewReader(append(header(64, 0), make([]byte, 8)...)))
	require.ErrorIs(t, err, ErrZeroHashes)

	_, err = Read(bytes.NewReader(header(MaxBits+1, 3)))
	require.ErrorIs(t, err, ErrTooManyBits)
}

// A header may claim far more words than the stream carries.
func TestReadOversizedDeclaredBits(t *testing.T) {
	data := append(header(1<<32, 3), make([]byte, 1024)...)
	f, err := Read(bytes.NewReader(data))
	require.ErrorIs(t, err, ErrTruncated)
	require.Nil(t, f)
}

func TestUnmarshalBinaryIgnoresTrailingBytes(t *testing.T) {
	f := populated(t)
	data, err := f.MarshalBinary()
	require.NoError(t, err)

	var g Filter
	require.NoError(t, g.UnmarshalBinary(append(data, 0xff, 0xff)))
	require.True(t, g.Equal(f))
}
