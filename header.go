// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tacozip

package tacozip

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// MetaEntry is an opaque (offset, length) byte range. The header never
// interprets or bounds-checks these values.
type MetaEntry struct {
	// Offset is the range start.
	Offset uint64 `json:"offset" yaml:"offset"`
	// Length is the range size in bytes.
	Length uint64 `json:"length" yaml:"length"`
}

// Header is a TACO header: up to MaxEntries metadata ranges in fixed slots.
// Only the first Count slots are meaningful; the rest are kept zero.
// The zero value is a valid header with no entries.
type Header struct {
	entries [MaxEntries]MetaEntry
	count   uint8
}

// NewHeader builds a header from up to MaxEntries entries.
func NewHeader(entries ...MetaEntry) (Header, error) {
	var h Header
	if len(entries) > MaxEntries {
		return h, fmt.Errorf("%w: got %d", ErrTooManyEntries, len(entries))
	}

	h.count = uint8(len(entries))
	copy(h.entries[:], entries)

	return h, nil
}

// placeholderHeader is written when an archive is created without entries.
func placeholderHeader() Header {
	return Header{count: 1}
}

// Count returns the number of meaningful entries.
func (h Header) Count() int {
	return int(h.count)
}

// Entries returns a copy of the meaningful entries.
func (h Header) Entries() []MetaEntry {
	out := make([]MetaEntry, h.count)
	copy(out, h.entries[:h.count])

	return out
}

// Entry returns entry i and reports whether i is within Count.
func (h Header) Entry(i int) (MetaEntry, bool) {
	if i < 0 || i >= int(h.count) {
		return MetaEntry{}, false
	}

	return h.entries[i], true
}

// PayloadCRC32 returns the CRC-32 of the serialized payload.
func (h Header) PayloadCRC32() uint32 {
	var payload [PayloadSize]byte
	h.putPayload(payload[:])

	return checksum(payload[:])
}

// Encode serializes the header into its fixed 157-byte form.
func (h Header) Encode() [HeaderSize]byte {
	var buf [HeaderSize]byte

	payload := buf[PayloadOffset:]
	h.putPayload(payload)
	crc := checksum(payload)

	binary.LittleEndian.PutUint32(buf[0:4], sigLocalFile)
	binary.LittleEndian.PutUint16(buf[lfhVersionOffset:], zipVersion20)
	binary.LittleEndian.PutUint16(buf[lfhFlagsOffset:], 0)
	binary.LittleEndian.PutUint16(buf[lfhMethodOffset:], methodStore)
	binary.LittleEndian.PutUint16(buf[lfhTimeOffset:], dosEpochTime)
	binary.LittleEndian.PutUint16(buf[lfhDateOffset:], dosEpochDate)
	binary.LittleEndian.PutUint32(buf[lfhCRCOffset:], crc)
	binary.LittleEndian.PutUint32(buf[lfhCompressedOffset:], PayloadSize)
	binary.LittleEndian.PutUint32(buf[lfhUncompressedOffset:], PayloadSize)
	binary.LittleEndian.PutUint16(buf[lfhNameLenOffset:], uint16(len(HeaderName)))
	binary.LittleEndian.PutUint16(buf[lfhExtraLenOffset:], 0)
	copy(buf[lfhSize:PayloadOffset], HeaderName)

	return buf
}

// putPayload writes count, zero padding and all slots into dst[:PayloadSize].
// Slots past count are written as zero.
func (h Header) putPayload(dst []byte) {
	clear(dst[:PayloadSize])
	dst[0] = h.count

	for i := 0; i < int(h.count); i++ {
		off := payloadEntriesOffset + i*payloadEntrySize
		binary.LittleEndian.PutUint64(dst[off:], h.entries[i].Offset)
		binary.LittleEndian.PutUint64(dst[off+8:], h.entries[i].Length)
	}
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (h Header) MarshalBinary() ([]byte, error) {
	if h.count > MaxEntries {
		return nil, ErrTooManyEntries
	}

	buf := h.Encode()
	return buf[:], nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (h *Header) UnmarshalBinary(data []byte) error {
	parsed, err := ParseHeader(data)
	if err != nil {
		return err
	}

	*h = parsed
	return nil
}

// MarshalJSON encodes the meaningful entries as a JSON array.
func (h Header) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Entries())
}

// ParseHeader decodes a TACO header from the first HeaderSize bytes of buf.
// Checks run in fixed order: signature, reserved filename, count.
// Padding bytes and unused slots are ignored.
func ParseHeader(buf []byte) (Header, error) {
	var h Header

	if len(buf) < HeaderSize {
		return h, opError("parse", -1, fmt.Errorf("%w: got %d", ErrBufferTooShort, len(buf)))
	}

	if binary.LittleEndian.Uint32(buf[0:4]) != sigLocalFile {
		return h, opError("parse", 0, ErrBadSignature)
	}

	if binary.LittleEndian.Uint16(buf[lfhNameLenOffset:]) != uint16(len(HeaderName)) ||
		string(buf[lfhSize:PayloadOffset]) != HeaderName {
		return h, opError("parse", lfhSize, ErrBadFilename)
	}

	payload := buf[PayloadOffset:HeaderSize]
	if payload[0] > MaxEntries {
		return h, opError("parse", PayloadOffset, fmt.Errorf("%w: %d", ErrCountOutOfRange, payload[0]))
	}

	h.count = payload[0]
	for i := 0; i < int(h.count); i++ {
		off := payloadEntriesOffset + i*payloadEntrySize
		h.entries[i] = MetaEntry{
			Offset: binary.LittleEndian.Uint64(payload[off:]),
			Length: binary.LittleEndian.Uint64(payload[off+8:]),
		}
	}

	return h, nil
}

// ParseEntries decodes a TACO header from buf and returns its meaningful entries.
func ParseEntries(buf []byte) ([]MetaEntry, error) {
	h, err := ParseHeader(buf)
	if err != nil {
		return nil, err
	}

	return h.Entries(), nil
}

// SerializeHeader builds the 157-byte header for entries.
// It fails with ErrTooManyEntries for more than MaxEntries entries.
func SerializeHeader(entries ...MetaEntry) ([]byte, error) {
	h, err := NewHeader(entries...)
	if err != nil {
		return nil, err
	}

	return h.MarshalBinary()
}

// checkEntryLayout requires the local header in buf to describe an
// unencrypted STORE entry of exactly PayloadSize bytes with no extra field,
// so that the payload occupies [PayloadOffset, HeaderSize).
func checkEntryLayout(buf []byte) error {
	method := binary.LittleEndian.Uint16(buf[lfhMethodOffset:])
	flags := binary.LittleEndian.Uint16(buf[lfhFlagsOffset:])
	compressed := binary.LittleEndian.Uint32(buf[lfhCompressedOffset:])
	uncompressed := binary.LittleEndian.Uint32(buf[lfhUncompressedOffset:])
	extra := binary.LittleEndian.Uint16(buf[lfhExtraLenOffset:])

	if method != methodStore || flags&(flagEncrypted|flagDataDescriptor) != 0 ||
		compressed != PayloadSize || uncompressed != PayloadSize || extra != 0 {
		return opError("check local layout", 0, fmt.Errorf(
			"%w: method=%d flags=%#x sizes=%d/%d extra=%d",
			ErrEntryLayout, method, flags, compressed, uncompressed, extra,
		))
	}

	return nil
}

// storedLocalCRC returns the CRC-32 recorded in the local header bytes.
func storedLocalCRC(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[lfhCRCOffset:])
}

// payloadOf returns the payload region of a serialized header.
func payloadOf(buf []byte) []byte {
	return buf[PayloadOffset:HeaderSize]
}
