package tacozip

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect(t *testing.T) {
	t.Parallel()

	entries := []MetaEntry{{Offset: 1, Length: 2}}
	path := createTestArchive(t, defaultTestFiles(), entries)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	info, err := Inspect(path)
	require.NoError(t, err)

	_, dirOffset, dirSize := endOfDirectory(t, data)
	assert.Equal(t, int64(len(data)), info.Size)
	assert.Equal(t, FormatZip32, info.Format)
	assert.Equal(t, entries, info.Header.Entries())
	assert.Equal(t, digest.FromBytes(data[:HeaderSize]), info.HeaderDigest)
	require.NoError(t, info.HeaderDigest.Validate())
	assert.Equal(t, digest.SHA256, info.HeaderDigest.Algorithm())
	assert.Equal(t, int64(dirOffset), info.CentralDirectoryOffset)
	assert.Equal(t, int64(dirSize), info.CentralDirectorySize)
	assert.Equal(t, int64(len(defaultTestFiles())+1), info.EntryCount)
	assert.Equal(t, int64(dirOffset), info.TacoRecordOffset)
	assert.True(t, info.TacoRecordFirst)

	raw, err := json.Marshal(info)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "zip32", decoded["format"])
	assert.Equal(t, info.HeaderDigest.String(), decoded["header_digest"])
}

func TestInspect_ReorderedAndMissing(t *testing.T) {
	t.Parallel()

	base := createTestArchiveBytes(t, defaultTestFiles(), nil)
	h := New(Options{})

	m := &memArchive{data: swapFirstCentralRecords(t, base)}
	info, err := h.InspectAt(m, m.size())
	require.NoError(t, err)
	assert.False(t, info.TacoRecordFirst)
	assert.Greater(t, info.TacoRecordOffset, info.CentralDirectoryOffset)

	renamed := append([]byte(nil), base...)
	_, dirOffset, _ := endOfDirectory(t, renamed)
	renamed[dirOffset+cdhSize] = 'X'

	m = &memArchive{data: renamed}
	info, err = h.InspectAt(m, m.size())
	require.NoError(t, err)
	assert.Equal(t, int64(-1), info.TacoRecordOffset)
	assert.False(t, info.TacoRecordFirst)
}

func TestInspect_InvalidHeader(t *testing.T) {
	t.Parallel()

	data := createTestArchiveBytes(t, nil, nil)
	data[PayloadOffset] = 200

	m := &memArchive{data: data}
	_, err := New(Options{}).InspectAt(m, m.size())
	require.ErrorIs(t, err, ErrCountOutOfRange)
}
