// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tacozip

package tacozip

import (
	"fmt"
	"io"
	"strings"
)

// ValidationLevel selects how much of an archive Validate checks.
// Each level performs every check of the levels below it.
type ValidationLevel uint8

// Validation levels.
const (
	// LevelQuick parses the TACO header at offset 0.
	LevelQuick ValidationLevel = iota + 1
	// LevelNormal also verifies the TACO entry is a stored 116-byte member
	// listed first in the central directory.
	LevelNormal
	// LevelDeep also verifies both stored CRC-32 values against the payload.
	LevelDeep
)

// String returns the level name.
func (l ValidationLevel) String() string {
	switch l {
	case LevelQuick:
		return "quick"
	case LevelNormal:
		return "normal"
	case LevelDeep:
		return "deep"
	default:
		return fmt.Sprintf("level(%d)", uint8(l))
	}
}

// Valid reports whether l is a known level.
func (l ValidationLevel) Valid() bool {
	return l >= LevelQuick && l <= LevelDeep
}

// MarshalText implements encoding.TextMarshaler.
func (l ValidationLevel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLevel, uint8(l))
	}

	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *ValidationLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseValidationLevel(string(text))
	if err != nil {
		return err
	}

	*l = parsed
	return nil
}

// ParseValidationLevel parses "quick", "normal" or "deep" (case-insensitive).
func ParseValidationLevel(s string) (ValidationLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quick":
		return LevelQuick, nil
	case "normal":
		return LevelNormal, nil
	case "deep":
		return LevelDeep, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
}

// Validate checks the archive at path at the given level. A nil error means
// the archive passed every check of that level.
func (h *Handle) Validate(path string, level ValidationLevel) error {
	if !level.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, uint8(level))
	}

	f, size, err := openFileWithSize(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := h.ValidateAt(f, size, level); err != nil {
		h.log().Debug("validation failed", "path", path, "level", level.String(), "error", err)
		return err
	}

	return nil
}

// ValidateAt checks an archive held in ra with the given total size.
func (h *Handle) ValidateAt(ra io.ReaderAt, size int64, level ValidationLevel) error {
	if !level.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, uint8(level))
	}

	buf, n, err := readHeaderBytes(ra)
	if err != nil {
		return err
	}

	if _, err := ParseHeader(buf[:n]); err != nil {
		return err
	}

	if level == LevelQuick {
		return nil
	}

	if err := checkEntryLayout(buf[:]); err != nil {
		return err
	}

	rec, err := h.checkCentralOrder(ra, size)
	if err != nil {
		return err
	}

	if err := rec.checkLayout(); err != nil {
		return err
	}

	if level == LevelNormal {
		return nil
	}

	crc := checksum(payloadOf(buf[:]))
	if local := storedLocalCRC(buf[:]); local != crc {
		return opError("validate", lfhCRCOffset, fmt.Errorf(
			"%w: stored=%08x computed=%08x", ErrLocalCRCMismatch, local, crc,
		))
	}

	if rec.crc32 != crc {
		return opError("validate", rec.crcOffset(), fmt.Errorf(
			"%w: stored=%08x computed=%08x", ErrCentralCRCMismatch, rec.crc32, crc,
		))
	}

	return nil
}

// checkCentralOrder requires the TACO record to be the first central
// directory record and to point at offset 0.
func (h *Handle) checkCentralOrder(ra io.ReaderAt, size int64) (centralRecord, error) {
	end, err := findEndRecord(ra, size, h.opts.SearchWindow)
	if err != nil {
		return centralRecord{}, err
	}

	if err := end.checkDirectoryBounds(); err != nil {
		return centralRecord{}, err
	}

	rec, index, err := scanTacoRecord(ra, end)
	if err != nil {
		return centralRecord{}, err
	}

	if index != 0 {
		return centralRecord{}, opError("validate", rec.offset, fmt.Errorf(
			"%w: TACO record is entry %d", ErrHeaderReordered, index,
		))
	}

	return rec, nil
}

// Validate checks the archive at path using a fresh Handle.
func Validate(path string, level ValidationLevel) error {
	return New(Options{}).Validate(path, level)
}
