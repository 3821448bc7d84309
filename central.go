// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tacozip

package tacozip

import (
	"encoding/binary"
	"fmt"
	"io"
)

// zip64ExtraID is the extra field tag of ZIP64 extended information.
const zip64ExtraID = 0x0001

// centralRecord is one parsed central directory file header.
type centralRecord struct {
	// name is the stored entry name.
	name string
	// offset is the absolute offset of the record signature.
	offset int64
	// length is the full record length including name, extra and comment.
	length int64
	// localOffset is the offset of the matching local file header.
	localOffset uint64
	// crc32 is the stored CRC-32.
	crc32 uint32
	// compressedSize and uncompressedSize are the raw 32-bit size fields.
	compressedSize   uint32
	uncompressedSize uint32
	// flags and method are the general purpose flags and compression method.
	flags  uint16
	method uint16
}

// crcOffset returns the absolute offset of the record CRC-32 field.
func (r centralRecord) crcOffset() int64 {
	return r.offset + cdhCRCOffset
}

// isTaco reports whether the record describes a TACO entry at offset 0.
func (r centralRecord) isTaco() bool {
	return r.name == HeaderName && r.localOffset == 0
}

// checkLayout requires the record to describe an unencrypted STORE entry
// of exactly PayloadSize bytes.
func (r centralRecord) checkLayout() error {
	if r.method != methodStore || r.flags&(flagEncrypted|flagDataDescriptor) != 0 ||
		r.compressedSize != PayloadSize || r.uncompressedSize != PayloadSize {
		return opError("check central layout", r.offset, fmt.Errorf(
			"%w: method=%d flags=%#x sizes=%d/%d",
			ErrEntryLayout, r.method, r.flags, r.compressedSize, r.uncompressedSize,
		))
	}

	return nil
}

// readCentralRecord parses the central directory record at off; the record
// must end at or before limit.
func readCentralRecord(ra io.ReaderAt, off int64, limit int64) (centralRecord, error) {
	var rec centralRecord

	if off < 0 || off+cdhSize > limit {
		return rec, opError("read central record", off, ErrCentralDirectoryCorrupt)
	}

	var fixed [cdhSize]byte
	if err := readFullAt(ra, fixed[:], off); err != nil {
		return rec, ioError("read central record", off, err)
	}

	if binary.LittleEndian.Uint32(fixed[0:4]) != sigCentralFile {
		return rec, opError("read central record", off, fmt.Errorf("%w: bad signature", ErrCentralDirectoryCorrupt))
	}

	nameLen := int64(binary.LittleEndian.Uint16(fixed[cdhNameLenOffset:]))
	extraLen := int64(binary.LittleEndian.Uint16(fixed[cdhExtraLenOffset:]))
	commentLen := int64(binary.LittleEndian.Uint16(fixed[cdhCommentLenOffset:]))

	rec.offset = off
	rec.length = cdhSize + nameLen + extraLen + commentLen
	rec.crc32 = binary.LittleEndian.Uint32(fixed[cdhCRCOffset:])
	rec.compressedSize = binary.LittleEndian.Uint32(fixed[cdhCompressedOffset:])
	rec.uncompressedSize = binary.LittleEndian.Uint32(fixed[cdhUncompressedOffset:])
	rec.flags = binary.LittleEndian.Uint16(fixed[cdhFlagsOffset:])
	rec.method = binary.LittleEndian.Uint16(fixed[cdhMethodOffset:])
	rec.localOffset = uint64(binary.LittleEndian.Uint32(fixed[cdhLocalOffsetOffset:]))

	if off+rec.length > limit {
		return rec, opError("read central record", off, fmt.Errorf("%w: record overruns directory", ErrCentralDirectoryCorrupt))
	}

	vars := make([]byte, nameLen+extraLen)
	if err := readFullAt(ra, vars, off+cdhSize); err != nil {
		return rec, ioError("read central record", off+cdhSize, err)
	}

	rec.name = string(vars[:nameLen])

	if rec.localOffset == uint32max {
		rec.localOffset = zip64LocalOffset(fixed[:], vars[nameLen:], rec.localOffset)
	}

	return rec, nil
}

// zip64LocalOffset resolves the local header offset from a ZIP64 extra field.
// Fields inside the extra appear only for 32-bit values set to the marker.
func zip64LocalOffset(fixed []byte, extra []byte, fallback uint64) uint64 {
	skip := 0
	if binary.LittleEndian.Uint32(fixed[cdhUncompressedOffset:]) == uint32max {
		skip += 8
	}

	if binary.LittleEndian.Uint32(fixed[cdhCompressedOffset:]) == uint32max {
		skip += 8
	}

	for len(extra) >= 4 {
		tag := binary.LittleEndian.Uint16(extra[0:2])
		size := int(binary.LittleEndian.Uint16(extra[2:4]))
		if 4+size > len(extra) {
			break
		}

		body := extra[4 : 4+size]
		if tag == zip64ExtraID && len(body) >= skip+8 {
			return binary.LittleEndian.Uint64(body[skip:])
		}

		extra = extra[4+size:]
	}

	return fallback
}

// scanTacoRecord walks the central directory and returns the TACO record
// pointing at offset 0 together with its position. A TACO-named record that
// points elsewhere yields ErrHeaderReordered, none at all ErrTacoEntryMissing.
func scanTacoRecord(ra io.ReaderAt, rec *endRecord) (centralRecord, int, error) {
	limit := int64(rec.dirOffset + rec.dirSize)
	off := int64(rec.dirOffset)
	misplaced := false

	for i := uint64(0); i < rec.entries; i++ {
		cr, err := readCentralRecord(ra, off, limit)
		if err != nil {
			return centralRecord{}, -1, err
		}

		if cr.isTaco() {
			return cr, int(i), nil
		}

		if cr.name == HeaderName {
			misplaced = true
		}

		off += cr.length
	}

	if misplaced {
		return centralRecord{}, -1, opError("scan central directory", int64(rec.dirOffset), ErrHeaderReordered)
	}

	return centralRecord{}, -1, opError("scan central directory", int64(rec.dirOffset), ErrTacoEntryMissing)
}
