// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tacozip

package tacozip

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package matches at least one of
// them through errors.Is, except context cancellation: Create and
// ValidateMany return ctx.Err() unwrapped, so callers test it with
// context.Canceled or context.DeadlineExceeded.
var (
	// ErrIO means the storage layer failed to open, read, write, seek or flush.
	ErrIO = errors.New("storage I/O failure")
	// ErrInvalidParameter means the caller passed an argument the operation cannot accept.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrInvalidHeader means the bytes at offset 0 are not a TACO header.
	ErrInvalidHeader = errors.New("invalid TACO header")
	// ErrStructural means the enclosing ZIP structure is missing or inconsistent.
	ErrStructural = errors.New("ZIP structural error")
	// ErrIntegrity means a stored checksum does not match the header payload.
	ErrIntegrity = errors.New("integrity check failed")
	// ErrCapacityExceeded means the archive would exceed the 32-bit ZIP limits.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrNotFound means a requested entry or source is absent.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists means an entry with the same name is already present.
	ErrAlreadyExists = errors.New("already exists")
)

// Sentinel errors for specific failures. Each wraps its kind.
var (
	// ErrBufferTooShort means the buffer is shorter than HeaderSize.
	ErrBufferTooShort = fmt.Errorf("%w: buffer shorter than %d bytes", ErrInvalidParameter, HeaderSize)
	// ErrTooManyEntries means more than MaxEntries metadata entries were requested.
	ErrTooManyEntries = fmt.Errorf("%w: more than %d metadata entries", ErrInvalidParameter, MaxEntries)
	// ErrNameCountMismatch means source and name lists have different lengths.
	ErrNameCountMismatch = fmt.Errorf("%w: source and name counts differ", ErrInvalidParameter)
	// ErrInvalidEntryName means an archive entry name is empty or invalid after normalization.
	ErrInvalidEntryName = fmt.Errorf("%w: invalid entry name", ErrInvalidParameter)
	// ErrNilReader means the reader is nil.
	ErrNilReader = fmt.Errorf("%w: reader is nil", ErrInvalidParameter)
	// ErrNilWriter means the writer is nil.
	ErrNilWriter = fmt.Errorf("%w: writer is nil", ErrInvalidParameter)
	// ErrInvalidLevel means the validation level is not quick, normal or deep.
	ErrInvalidLevel = fmt.Errorf("%w: unknown validation level", ErrInvalidParameter)
	// ErrEntryOutOfBounds means a metadata range points outside the source.
	ErrEntryOutOfBounds = fmt.Errorf("%w: entry range outside source", ErrInvalidParameter)
	// ErrInvalidSourceRules means directory selection rules failed to compile.
	ErrInvalidSourceRules = fmt.Errorf("%w: invalid source rules", ErrInvalidParameter)

	// ErrBadSignature means offset 0 does not hold a local file header signature.
	ErrBadSignature = fmt.Errorf("%w: bad local file header signature", ErrInvalidHeader)
	// ErrBadFilename means the first entry is not named TACO_HEADER.
	ErrBadFilename = fmt.Errorf("%w: reserved filename mismatch", ErrInvalidHeader)
	// ErrCountOutOfRange means the stored entry count exceeds MaxEntries.
	ErrCountOutOfRange = fmt.Errorf("%w: entry count out of range", ErrInvalidHeader)

	// ErrEOCDNotFound means no end of central directory record was found in the search window.
	ErrEOCDNotFound = fmt.Errorf("%w: end of central directory not found", ErrStructural)
	// ErrCentralDirectoryBounds means central directory offsets disagree with the file size.
	ErrCentralDirectoryBounds = fmt.Errorf("%w: central directory offset inconsistent with file size", ErrStructural)
	// ErrCentralDirectoryCorrupt means a central directory record is malformed.
	ErrCentralDirectoryCorrupt = fmt.Errorf("%w: malformed central directory record", ErrStructural)
	// ErrTacoEntryMissing means the central directory has no TACO_HEADER entry at offset 0.
	ErrTacoEntryMissing = fmt.Errorf("%w: TACO entry missing from central directory", ErrStructural)
	// ErrHeaderReordered means the TACO entry exists but is not the first record pointing at offset 0.
	ErrHeaderReordered = fmt.Errorf("%w: TACO entry moved away from first position", ErrStructural)
	// ErrNotTacoArchive means an update was refused because offset 0 holds no TACO header.
	ErrNotTacoArchive = fmt.Errorf("%w: archive has no TACO header at offset 0", ErrStructural)
	// ErrEntryLayout means the TACO entry is not a 116-byte stored member without extra field.
	ErrEntryLayout = fmt.Errorf("%w: TACO entry is not a %d-byte stored member", ErrStructural, PayloadSize)
	// ErrBackendLayout means the ZIP backend did not write the header bytes verbatim.
	ErrBackendLayout = fmt.Errorf("%w: backend altered TACO header layout", ErrStructural)

	// ErrLocalCRCMismatch means the local file header CRC does not match the payload.
	ErrLocalCRCMismatch = fmt.Errorf("%w: local header CRC-32 mismatch", ErrIntegrity)
	// ErrCentralCRCMismatch means the central directory CRC does not match the payload.
	ErrCentralCRCMismatch = fmt.Errorf("%w: central directory CRC-32 mismatch", ErrIntegrity)
	// ErrSourceChanged means an input changed between the checksum and copy passes.
	ErrSourceChanged = fmt.Errorf("%w: source changed while writing", ErrIntegrity)

	// ErrArchiveTooLarge means an offset, size or entry count would need ZIP64.
	ErrArchiveTooLarge = fmt.Errorf("%w: archive exceeds 32-bit ZIP limits", ErrCapacityExceeded)

	// ErrSourceNotFound means an input source file does not exist.
	ErrSourceNotFound = fmt.Errorf("%w: source file", ErrNotFound)

	// ErrDuplicateName means two inputs resolve to the same archive name.
	ErrDuplicateName = fmt.Errorf("%w: duplicate entry name", ErrAlreadyExists)
	// ErrReservedName means an input uses the reserved TACO_HEADER name.
	ErrReservedName = fmt.Errorf("%w: reserved entry name %q", ErrAlreadyExists, HeaderName)
)

// kinds lists error kinds in lookup order for Kind.
// A refused update wraps both ErrStructural and ErrInvalidHeader and must report the former.
var kinds = []error{
	ErrInvalidParameter,
	ErrStructural,
	ErrInvalidHeader,
	ErrIntegrity,
	ErrCapacityExceeded,
	ErrNotFound,
	ErrAlreadyExists,
	ErrIO,
}

// Error carries the operation and, where one exists, the byte offset that failed.
type Error struct {
	// Err is the underlying error, usually one of the package sentinels.
	Err error
	// Op names the failing operation ("parse", "update", "validate"...).
	Op string
	// Offset is the byte offset in the archive, or -1 when not applicable.
	Offset int64
}

// Error implements error.
func (e *Error) Error() string {
	if e.Offset < 0 {
		return e.Op + ": " + e.Err.Error()
	}

	return fmt.Sprintf("%s at offset %d: %v", e.Op, e.Offset, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Kind returns the error kind sentinel err belongs to, or nil for nil err.
// Errors not produced by this package, context errors included, map to ErrIO.
func Kind(err error) error {
	if err == nil {
		return nil
	}

	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}

	return ErrIO
}

// opError wraps err with operation name and offset.
func opError(op string, offset int64, err error) error {
	return &Error{Op: op, Offset: offset, Err: err}
}

// ioError wraps a storage failure so it matches ErrIO.
func ioError(op string, offset int64, err error) error {
	return &Error{Op: op, Offset: offset, Err: fmt.Errorf("%w: %w", ErrIO, err)}
}
