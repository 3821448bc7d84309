// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tacozip

package tacozip

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// endRecord holds the end of central directory fields used by this package.
// For ZIP64 archives the directory fields come from the ZIP64 EOCD record.
type endRecord struct {
	// offset is the absolute offset of the EOCD signature.
	offset int64
	// dirEnd is the first byte after the central directory area:
	// the ZIP64 EOCD record when present, otherwise the EOCD record.
	dirEnd int64
	// entries is the total number of central directory records.
	entries uint64
	// dirSize is the central directory size in bytes.
	dirSize uint64
	// dirOffset is the absolute central directory offset.
	dirOffset uint64
	// commentLen is the archive comment length.
	commentLen int
	// zip64 reports whether a ZIP64 locator precedes the EOCD.
	zip64 bool
	// markers reports whether 32-bit EOCD fields hold ZIP64 sentinel values.
	markers bool
}

// format classifies the record.
func (r *endRecord) format() Format {
	switch {
	case r.zip64:
		return FormatZip64
	case r.markers:
		return FormatUnknown
	default:
		return FormatZip32
	}
}

// findEndRecord searches the last window bytes of ra for the EOCD record.
// It returns ErrEOCDNotFound when no record fits inside the window.
func findEndRecord(ra io.ReaderAt, size int64, window int) (*endRecord, error) {
	if size < eocdSize {
		return nil, opError("find EOCD", -1, ErrEOCDNotFound)
	}

	n := int64(window)
	if n > size {
		n = size
	}

	start := size - n
	buf := make([]byte, n)
	if err := readFullAt(ra, buf, start); err != nil {
		return nil, ioError("find EOCD", start, err)
	}

	idx := findEndSignature(buf)
	if idx < 0 {
		return nil, opError("find EOCD", -1, ErrEOCDNotFound)
	}

	b := buf[idx:]
	rec := &endRecord{
		offset:     start + int64(idx),
		entries:    uint64(binary.LittleEndian.Uint16(b[10:12])),
		dirSize:    uint64(binary.LittleEndian.Uint32(b[12:16])),
		dirOffset:  uint64(binary.LittleEndian.Uint32(b[16:20])),
		commentLen: int(binary.LittleEndian.Uint16(b[20:22])),
	}
	rec.dirEnd = rec.offset
	rec.markers = rec.entries == uint16max || rec.dirSize == uint32max || rec.dirOffset == uint32max

	if err := readZip64Records(ra, rec); err != nil {
		return nil, err
	}

	return rec, nil
}

// findEndSignature returns the index of the last EOCD signature in buf whose
// comment fits inside buf, or -1.
func findEndSignature(buf []byte) int {
	for i := len(buf) - eocdSize; i >= 0; i-- {
		if binary.LittleEndian.Uint32(buf[i:]) != sigEOCD {
			continue
		}

		commentLen := int(binary.LittleEndian.Uint16(buf[i+20:]))
		if i+eocdSize+commentLen <= len(buf) {
			return i
		}
	}

	return -1
}

// readZip64Records reads the ZIP64 locator right before the EOCD and, when
// present, replaces directory fields with ZIP64 EOCD record values.
func readZip64Records(ra io.ReaderAt, rec *endRecord) error {
	locOffset := rec.offset - zip64LocatorSize
	if locOffset < 0 {
		return nil
	}

	var loc [zip64LocatorSize]byte
	if err := readFullAt(ra, loc[:], locOffset); err != nil {
		return ioError("read ZIP64 locator", locOffset, err)
	}

	if binary.LittleEndian.Uint32(loc[0:4]) != sigZip64Locate {
		return nil
	}

	rec.zip64 = true

	recOffset := binary.LittleEndian.Uint64(loc[8:16])
	if recOffset > uint64(locOffset) || uint64(locOffset)-recOffset < zip64EOCDSize {
		return opError("read ZIP64 EOCD", locOffset, ErrCentralDirectoryBounds)
	}

	var b [zip64EOCDSize]byte
	if err := readFullAt(ra, b[:], int64(recOffset)); err != nil {
		return ioError("read ZIP64 EOCD", int64(recOffset), err)
	}

	if binary.LittleEndian.Uint32(b[0:4]) != sigZip64EOCD {
		return opError("read ZIP64 EOCD", int64(recOffset), ErrCentralDirectoryCorrupt)
	}

	rec.entries = binary.LittleEndian.Uint64(b[32:40])
	rec.dirSize = binary.LittleEndian.Uint64(b[40:48])
	rec.dirOffset = binary.LittleEndian.Uint64(b[48:56])
	rec.dirEnd = int64(recOffset)

	return nil
}

// checkDirectoryBounds verifies the central directory lies between the
// header and the end records.
func (r *endRecord) checkDirectoryBounds() error {
	if r.dirOffset < HeaderSize || r.dirOffset > uint64(r.dirEnd) ||
		r.dirSize > uint64(r.dirEnd)-r.dirOffset {
		return opError("check central directory", int64(r.dirOffset), fmt.Errorf(
			"%w: offset=%d size=%d end=%d", ErrCentralDirectoryBounds, r.dirOffset, r.dirSize, r.dirEnd,
		))
	}

	if r.entries == 0 {
		return opError("check central directory", int64(r.dirOffset), ErrTacoEntryMissing)
	}

	return nil
}

// DetectFormat classifies the archive at path.
func (h *Handle) DetectFormat(path string) (Format, error) {
	f, size, err := openFileWithSize(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer func() { _ = f.Close() }()

	return h.DetectFormatAt(f, size)
}

// DetectFormatAt classifies an archive without parsing it fully.
// An archive without an EOCD record in the search window is FormatUnknown
// with a nil error; only storage failures return an error.
func (h *Handle) DetectFormatAt(ra io.ReaderAt, size int64) (Format, error) {
	if ra == nil {
		return FormatUnknown, ErrNilReader
	}

	rec, err := findEndRecord(ra, size, h.opts.SearchWindow)
	if err != nil {
		if errors.Is(err, ErrEOCDNotFound) {
			h.log().Debug("format undeterminable", "size", size, "window", h.opts.SearchWindow)
			return FormatUnknown, nil
		}

		if errors.Is(err, ErrIO) {
			return FormatUnknown, err
		}

		// Locator present but ZIP64 record unreadable: still a ZIP64 layout.
		return FormatZip64, nil
	}

	return rec.format(), nil
}

// readFullAt fills buf from ra at off. An io.EOF on a full read is ignored.
func readFullAt(ra io.ReaderAt, buf []byte, off int64) error {
	n, err := ra.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}

	if err == nil || errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}

	return err
}

// DetectFormat classifies the archive at path using a fresh Handle.
func DetectFormat(path string) (Format, error) {
	return New(Options{}).DetectFormat(path)
}
