package tacozip

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

// testFile is one named content blob used to build archives.
type testFile struct {
	name string
	data []byte
}

// memArchive is in-memory positional storage.
type memArchive struct {
	data []byte
}

func (m *memArchive) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}

	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

func (m *memArchive) WriteAt(p []byte, off int64) (int, error) {
	if end := off + int64(len(p)); end > int64(len(m.data)) {
		m.data = append(m.data, make([]byte, end-int64(len(m.data)))...)
	}

	return copy(m.data[off:], p), nil
}

func (m *memArchive) size() int64 {
	return int64(len(m.data))
}

// bytesInput returns an input serving data.
func bytesInput(name string, data []byte) Input {
	return Input{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// testInputs converts files to inputs.
func testInputs(files []testFile) []Input {
	inputs := make([]Input, 0, len(files))
	for _, f := range files {
		inputs = append(inputs, bytesInput(f.name, f.data))
	}

	return inputs
}

// defaultTestFiles returns a small set of user files.
func defaultTestFiles() []testFile {
	return []testFile{
		{name: "f.bin", data: bytes.Repeat([]byte{0xAB}, 1000)},
		{name: "meta/info.json", data: []byte(`{"rows":3}`)},
	}
}

// createTestArchiveBytes builds an archive in memory.
func createTestArchiveBytes(t testing.TB, files []testFile, entries []MetaEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	_, err := New(Options{}).Create(context.Background(), &buf, testInputs(files), entries, CreateOptions{})
	require.NoError(t, err)

	return buf.Bytes()
}

// createTestArchive writes an archive file in a temp dir and returns its path.
func createTestArchive(t testing.TB, files []testFile, entries []MetaEntry) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "archive.zip")
	_, err := New(Options{}).CreateFile(context.Background(), path, testInputs(files), entries, CreateOptions{})
	require.NoError(t, err)

	return path
}

// writeTestFile writes data to a temp file and returns its path.
func writeTestFile(t testing.TB, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

// endOfDirectory returns EOCD offset, central directory offset and size of an
// archive without comment.
func endOfDirectory(t testing.TB, data []byte) (int, int, int) {
	t.Helper()

	eocd := len(data) - eocdSize
	require.GreaterOrEqual(t, eocd, 0)
	require.Equal(t, uint32(sigEOCD), binary.LittleEndian.Uint32(data[eocd:]))

	dirSize := int(binary.LittleEndian.Uint32(data[eocd+12:]))
	dirOffset := int(binary.LittleEndian.Uint32(data[eocd+16:]))

	return eocd, dirOffset, dirSize
}

// centralRecordLen returns the length of the central record at off.
func centralRecordLen(data []byte, off int) int {
	nameLen := int(binary.LittleEndian.Uint16(data[off+cdhNameLenOffset:]))
	extraLen := int(binary.LittleEndian.Uint16(data[off+cdhExtraLenOffset:]))
	commentLen := int(binary.LittleEndian.Uint16(data[off+cdhCommentLenOffset:]))

	return cdhSize + nameLen + extraLen + commentLen
}

// swapFirstCentralRecords returns a copy of data with the first two central
// directory records swapped, as a repacking tool would leave it. Local
// headers and the TACO header bytes stay where they are.
func swapFirstCentralRecords(t testing.TB, data []byte) []byte {
	t.Helper()

	_, dirOffset, _ := endOfDirectory(t, data)
	firstLen := centralRecordLen(data, dirOffset)
	secondLen := centralRecordLen(data, dirOffset+firstLen)

	out := bytes.Clone(data)
	first := data[dirOffset : dirOffset+firstLen]
	second := data[dirOffset+firstLen : dirOffset+firstLen+secondLen]
	copy(out[dirOffset:], second)
	copy(out[dirOffset+secondLen:], first)

	return out
}

// tacoCentralCRCOffset returns the absolute offset of the TACO central record CRC.
func tacoCentralCRCOffset(t testing.TB, data []byte) int {
	t.Helper()

	_, dirOffset, _ := endOfDirectory(t, data)
	require.Equal(t, HeaderName, string(data[dirOffset+cdhSize:dirOffset+cdhSize+len(HeaderName)]))

	return dirOffset + cdhCRCOffset
}

// toZip64Tail rewrites the end records of a comment-less archive into a
// ZIP64 EOCD record, locator and an EOCD holding ZIP64 markers.
func toZip64Tail(t testing.TB, data []byte) []byte {
	t.Helper()

	eocd, dirOffset, dirSize := endOfDirectory(t, data)
	entries := binary.LittleEndian.Uint16(data[eocd+10:])

	out := bytes.Clone(data[:eocd])
	recOffset := len(out)

	rec := make([]byte, zip64EOCDSize)
	binary.LittleEndian.PutUint32(rec[0:], sigZip64EOCD)
	binary.LittleEndian.PutUint64(rec[4:], zip64EOCDSize-12)
	binary.LittleEndian.PutUint16(rec[12:], 45)
	binary.LittleEndian.PutUint16(rec[14:], 45)
	binary.LittleEndian.PutUint64(rec[24:], uint64(entries))
	binary.LittleEndian.PutUint64(rec[32:], uint64(entries))
	binary.LittleEndian.PutUint64(rec[40:], uint64(dirSize))
	binary.LittleEndian.PutUint64(rec[48:], uint64(dirOffset))
	out = append(out, rec...)

	loc := make([]byte, zip64LocatorSize)
	binary.LittleEndian.PutUint32(loc[0:], sigZip64Locate)
	binary.LittleEndian.PutUint64(loc[8:], uint64(recOffset))
	binary.LittleEndian.PutUint32(loc[16:], 1)
	out = append(out, loc...)

	end := make([]byte, eocdSize)
	binary.LittleEndian.PutUint32(end[0:], sigEOCD)
	binary.LittleEndian.PutUint16(end[8:], uint16max)
	binary.LittleEndian.PutUint16(end[10:], uint16max)
	binary.LittleEndian.PutUint32(end[12:], uint32max)
	binary.LittleEndian.PutUint32(end[16:], uint32max)

	return append(out, end...)
}

// shortHeaderArchive builds an archive whose first member is a stored
// TACO_HEADER of payloadLen zero bytes, followed by user.bin holding userData.
func shortHeaderArchive(t testing.TB, payloadLen int, userData []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range []testFile{
		{name: HeaderName, data: make([]byte, payloadLen)},
		{name: "user.bin", data: userData},
	} {
		w, err := zw.CreateRaw(&zip.FileHeader{
			Name:               f.name,
			Method:             zip.Store,
			CRC32:              crc32.ChecksumIEEE(f.data),
			CompressedSize64:   uint64(len(f.data)),
			UncompressedSize64: uint64(len(f.data)),
		})
		require.NoError(t, err)
		_, err = w.Write(f.data)
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// entryLayoutMutations returns edits that keep the header parseable but
// break the 116-byte stored layout of the TACO entry in data.
func entryLayoutMutations(t testing.TB, data []byte) map[string]func([]byte) {
	t.Helper()

	_, dirOffset, _ := endOfDirectory(t, data)
	le := binary.LittleEndian

	return map[string]func([]byte){
		"local method":          func(b []byte) { le.PutUint16(b[lfhMethodOffset:], 8) },
		"local data descriptor": func(b []byte) { b[lfhFlagsOffset] |= flagDataDescriptor },
		"local compressed size": func(b []byte) { le.PutUint32(b[lfhCompressedOffset:], 20) },
		"local size":            func(b []byte) { le.PutUint32(b[lfhUncompressedOffset:], 20) },
		"local extra":           func(b []byte) { le.PutUint16(b[lfhExtraLenOffset:], 4) },
		"central method":        func(b []byte) { le.PutUint16(b[dirOffset+cdhMethodOffset:], 8) },
		"central size":          func(b []byte) { le.PutUint32(b[dirOffset+cdhUncompressedOffset:], 20) },
		"central encrypted":     func(b []byte) { b[dirOffset+cdhFlagsOffset] |= flagEncrypted },
	}
}
