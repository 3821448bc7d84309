// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tacozip

package tacozip

import (
	"errors"
	"fmt"
	"io"
)

// ReadHeader reads the metadata entries of the archive at path.
// Only the first HeaderSize bytes are read.
func ReadHeader(path string) ([]MetaEntry, error) {
	h, err := ReadHeaderFile(path)
	if err != nil {
		return nil, err
	}

	return h.Entries(), nil
}

// ReadHeaderFile reads and parses the TACO header of the archive at path.
func ReadHeaderFile(path string) (Header, error) {
	f, _, err := openFileWithSize(path)
	if err != nil {
		return Header{}, err
	}
	defer func() { _ = f.Close() }()

	return ReadHeaderAt(f)
}

// ReadHeaderFrom reads the metadata entries from any random-access source,
// such as an open file or an HTTP range reader. Only bytes [0, HeaderSize)
// are requested.
func ReadHeaderFrom(ra io.ReaderAt) ([]MetaEntry, error) {
	h, err := ReadHeaderAt(ra)
	if err != nil {
		return nil, err
	}

	return h.Entries(), nil
}

// ReadHeaderAt reads and parses the TACO header from a random-access source.
func ReadHeaderAt(ra io.ReaderAt) (Header, error) {
	buf, n, err := readHeaderBytes(ra)
	if err != nil {
		return Header{}, err
	}

	return ParseHeader(buf[:n])
}

// readHeaderBytes reads up to HeaderSize bytes from offset 0.
// A short source returns fewer bytes without error so parsing can report it.
func readHeaderBytes(ra io.ReaderAt) ([HeaderSize]byte, int, error) {
	var buf [HeaderSize]byte
	if ra == nil {
		return buf, 0, ErrNilReader
	}

	n, err := ra.ReadAt(buf[:], 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return buf, n, ioError("read header", 0, err)
	}

	return buf, n, nil
}

// OpenEntry returns a reader over the byte range described by entry.
// The range must lie within [0, size).
func OpenEntry(ra io.ReaderAt, size int64, entry MetaEntry) (*io.SectionReader, error) {
	if ra == nil {
		return nil, ErrNilReader
	}

	if size < 0 || entry.Offset > uint64(size) || entry.Length > uint64(size)-entry.Offset {
		return nil, fmt.Errorf("%w: offset=%d length=%d size=%d", ErrEntryOutOfBounds, entry.Offset, entry.Length, size)
	}

	return io.NewSectionReader(ra, int64(entry.Offset), int64(entry.Length)), nil
}

// ReadEntry reads the full byte range described by entry.
func ReadEntry(ra io.ReaderAt, size int64, entry MetaEntry) ([]byte, error) {
	sr, err := OpenEntry(ra, size, entry)
	if err != nil {
		return nil, err
	}

	data := make([]byte, sr.Size())
	if _, err := io.ReadFull(sr, data); err != nil {
		return nil, ioError("read entry", int64(entry.Offset), err)
	}

	return data, nil
}
