// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tacozip

package tacozip

import (
	"errors"
	"io"

	"github.com/opencontainers/go-digest"
)

// ArchiveInfo summarizes the TACO-relevant structure of an archive.
type ArchiveInfo struct {
	// HeaderDigest is the sha256 digest of the first HeaderSize bytes.
	HeaderDigest digest.Digest `json:"header_digest" yaml:"header_digest"`
	// Header is the parsed TACO header.
	Header Header `json:"header" yaml:"header"`
	// Size is the archive size in bytes.
	Size int64 `json:"size" yaml:"size"`
	// CentralDirectoryOffset is the central directory start.
	CentralDirectoryOffset int64 `json:"central_directory_offset" yaml:"central_directory_offset"`
	// CentralDirectorySize is the central directory length in bytes.
	CentralDirectorySize int64 `json:"central_directory_size" yaml:"central_directory_size"`
	// EntryCount is the number of central directory records, TACO entry included.
	EntryCount int64 `json:"entry_count" yaml:"entry_count"`
	// TacoRecordOffset is the TACO central record offset, -1 when absent.
	TacoRecordOffset int64 `json:"taco_record_offset" yaml:"taco_record_offset"`
	// Format is the detected ZIP flavor.
	Format Format `json:"format" yaml:"format"`
	// TacoRecordFirst reports whether the TACO record is the first central record.
	TacoRecordFirst bool `json:"taco_record_first" yaml:"taco_record_first"`
}

// Inspect reads the header and central directory summary of the archive at path.
func (h *Handle) Inspect(path string) (*ArchiveInfo, error) {
	f, size, err := openFileWithSize(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	return h.InspectAt(f, size)
}

// InspectAt reads the header and central directory summary from ra.
// The header must parse; a missing or misplaced TACO record is reported in
// the result rather than as an error.
func (h *Handle) InspectAt(ra io.ReaderAt, size int64) (*ArchiveInfo, error) {
	buf, n, err := readHeaderBytes(ra)
	if err != nil {
		return nil, err
	}

	header, err := ParseHeader(buf[:n])
	if err != nil {
		return nil, err
	}

	end, err := findEndRecord(ra, size, h.opts.SearchWindow)
	if err != nil {
		return nil, err
	}

	if err := end.checkDirectoryBounds(); err != nil {
		return nil, err
	}

	info := &ArchiveInfo{
		Size:                   size,
		Format:                 end.format(),
		Header:                 header,
		HeaderDigest:           digest.FromBytes(buf[:]),
		CentralDirectoryOffset: int64(end.dirOffset),
		CentralDirectorySize:   int64(end.dirSize),
		EntryCount:             int64(end.entries),
		TacoRecordOffset:       -1,
	}

	rec, index, err := scanTacoRecord(ra, end)
	switch {
	case err == nil:
		info.TacoRecordOffset = rec.offset
		info.TacoRecordFirst = index == 0
	case errors.Is(err, ErrTacoEntryMissing), errors.Is(err, ErrHeaderReordered):
	default:
		return nil, err
	}

	return info, nil
}

// Inspect reads the archive summary at path using a fresh Handle.
func Inspect(path string) (*ArchiveInfo, error) {
	return New(Options{}).Inspect(path)
}
