// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tacozip

package tacozip

import (
	"io"
	"log/slog"
	"time"

	"github.com/woozymasta/pathrules"
)

// Public format constants.
const (
	// HeaderSize is the fixed size of the serialized TACO header in bytes.
	HeaderSize = 157
	// HeaderName is the reserved file name of the TACO entry.
	HeaderName = "TACO_HEADER"
	// MaxEntries is the number of metadata slots in a TACO header.
	MaxEntries = 7
	// PayloadSize is the size of the TACO entry content in bytes.
	PayloadSize = 116
	// PayloadOffset is the absolute offset of the payload inside the archive:
	// the local file header followed by the 11-byte HeaderName.
	PayloadOffset = lfhSize + 11
	// CRCOffset is the absolute offset of the local header CRC-32 field.
	CRCOffset = lfhCRCOffset
)

// Internal binary layout of the ZIP records touched by this package.
const (
	sigLocalFile   = 0x04034b50 // "PK\x03\x04"
	sigCentralFile = 0x02014b50 // "PK\x01\x02"
	sigEOCD        = 0x06054b50 // "PK\x05\x06"
	sigZip64EOCD   = 0x06064b50 // "PK\x06\x06"
	sigZip64Locate = 0x07064b50 // "PK\x06\x07"

	lfhSize               = 30
	lfhVersionOffset      = 4
	lfhFlagsOffset        = 6
	lfhMethodOffset       = 8
	lfhTimeOffset         = 10
	lfhDateOffset         = 12
	lfhCRCOffset          = 14
	lfhCompressedOffset   = 18
	lfhUncompressedOffset = 22
	lfhNameLenOffset      = 26
	lfhExtraLenOffset     = 28

	cdhSize               = 46
	cdhFlagsOffset        = 8
	cdhMethodOffset       = 10
	cdhCRCOffset          = 16
	cdhCompressedOffset   = 20
	cdhUncompressedOffset = 24
	cdhNameLenOffset      = 28
	cdhExtraLenOffset     = 30
	cdhCommentLenOffset   = 32
	cdhLocalOffsetOffset  = 42

	eocdSize             = 22
	eocdMaxComment       = 0xffff
	zip64LocatorSize     = 20
	zip64EOCDSize        = 56
	defaultSearchWindow  = eocdSize + eocdMaxComment
	payloadEntriesOffset = 4
	payloadEntrySize     = 16

	zipVersion20 = 20
	methodStore  = 0

	// flagEncrypted and flagDataDescriptor must be clear on the TACO entry.
	flagEncrypted      = 0x1
	flagDataDescriptor = 0x8
	// flagUTF8 marks entry names encoded as UTF-8.
	flagUTF8 = 0x800

	// dosEpochDate is 1980-01-01 in MS-DOS date encoding.
	dosEpochDate = 1<<5 | 1
	dosEpochTime = 0

	uint16max = 0xffff
	uint32max = 0xffffffff
)

// Format classifies the ZIP flavor of an archive.
type Format uint8

// Detected archive formats.
const (
	// FormatUnknown means no usable end of central directory record was found.
	FormatUnknown Format = iota
	// FormatZip32 is a classic ZIP archive with 32-bit fields.
	FormatZip32
	// FormatZip64 is an archive carrying a ZIP64 end of central directory locator.
	FormatZip64
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatZip32:
		return "zip32"
	case FormatZip64:
		return "zip64"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Options configures a Handle.
type Options struct {
	// Logger receives debug and info records; nil discards them.
	Logger *slog.Logger `json:"-" yaml:"-"`
	// SearchWindow bounds the backward EOCD search in bytes.
	// Zero or values above 22+65535 use the full comment-sized window.
	SearchWindow int `json:"search_window,omitempty" yaml:"search_window,omitempty"`
	// DisableCache turns off the central directory offset cache.
	DisableCache bool `json:"disable_cache,omitempty" yaml:"disable_cache,omitempty"`
}

// Input describes one source stream stored in the archive after the TACO entry.
type Input struct {
	// ModTime is optional entry timestamp; zero uses CreateOptions.ModTime.
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`
	// Open returns the source stream. It is called twice: once for the
	// checksum pass and once for the copy pass.
	Open func() (io.ReadCloser, error) `json:"-" yaml:"-"`
	// Name is the entry name inside the archive.
	Name string `json:"name" yaml:"name"`
}

// EntryInfo describes one user entry written by Create.
type EntryInfo struct {
	// Name is the normalized entry name.
	Name string `json:"name" yaml:"name"`
	// HeaderOffset is the offset of the entry local file header.
	HeaderOffset int64 `json:"header_offset" yaml:"header_offset"`
	// DataOffset is the offset of the first stored content byte.
	DataOffset int64 `json:"data_offset" yaml:"data_offset"`
	// Size is the stored (and uncompressed) size in bytes.
	Size int64 `json:"size" yaml:"size"`
	// CRC32 is the IEEE checksum of the content.
	CRC32 uint32 `json:"crc32" yaml:"crc32"`
}

// Range returns a MetaEntry covering the entry content.
func (e EntryInfo) Range() MetaEntry {
	return MetaEntry{Offset: uint64(e.DataOffset), Length: uint64(e.Size)}
}

// CreateOptions configures archive creation.
type CreateOptions struct {
	// OnEntryDone is called after one user entry is fully written.
	OnEntryDone func(entry EntryInfo) `json:"-" yaml:"-"`
	// ModTime is the timestamp for inputs without their own; zero means 1980-01-01.
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`
	// Comment is the archive comment stored in the EOCD record.
	Comment string `json:"comment,omitempty" yaml:"comment,omitempty"`
	// CopyBufferSize is the streaming buffer size in bytes.
	CopyBufferSize int `json:"copy_buffer_size,omitempty" yaml:"copy_buffer_size,omitempty"`
}

// CreateResult contains archive creation output.
type CreateResult struct {
	// Header is the TACO header written at offset 0.
	Header Header `json:"header" yaml:"header"`
	// Entries lists user entries in archive order.
	Entries []EntryInfo `json:"entries" yaml:"entries"`
	// Size is the total archive size in bytes.
	Size int64 `json:"size" yaml:"size"`
	// Duration is end-to-end create duration.
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// UpdateOptions configures in-place header updates.
type UpdateOptions struct {
	// BackupKeep controls write-ahead backup generations kept before raw writes.
	// 0 disables the backup, 1 keeps only `<archive>.bak`, N keeps `.bak` + `.bak.1..N-1`.
	BackupKeep int `json:"backup_keep,omitempty" yaml:"backup_keep,omitempty"`
	// NoSync skips fsync after the three writes.
	NoSync bool `json:"no_sync,omitempty" yaml:"no_sync,omitempty"`
}

// DirOptions configures InputsFromDir source selection.
type DirOptions struct {
	// Rules are ordered include/exclude rules matched against slash-separated relative paths.
	// Empty rules select every regular file.
	Rules []pathrules.Rule `json:"rules,omitempty" yaml:"rules,omitempty"`
	// MatcherOptions control rule matching.
	MatcherOptions pathrules.MatcherOptions `json:"matcher_options,omitzero" yaml:"matcher_options,omitzero"`
}

// BatchOptions configures ValidateMany.
type BatchOptions struct {
	// MaxWorkers is number of validation workers (zero means GOMAXPROCS).
	MaxWorkers int `json:"max_workers,omitempty" yaml:"max_workers,omitempty"`
}

// Default tuning values.
const (
	DefaultCopyBufferSize = 64 * 1024
)

// applyDefaults fills zero-valued handle options with defaults.
func (opts *Options) applyDefaults() {
	if opts.SearchWindow <= 0 || opts.SearchWindow > defaultSearchWindow {
		opts.SearchWindow = defaultSearchWindow
	}

	if opts.SearchWindow < eocdSize {
		opts.SearchWindow = eocdSize
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
}

// applyDefaults fills zero-valued create options with defaults.
func (opts *CreateOptions) applyDefaults() {
	if opts.CopyBufferSize < 4096 {
		opts.CopyBufferSize = DefaultCopyBufferSize
	}
}

// applyDefaults fills zero-valued update options with defaults.
func (opts *UpdateOptions) applyDefaults() {
	if opts.BackupKeep < 0 {
		opts.BackupKeep = 0
	}
}

// applyDefaults fills zero-valued directory options with defaults.
func (opts *DirOptions) applyDefaults() {
	if opts.MatcherOptions == (pathrules.MatcherOptions{}) {
		opts.MatcherOptions = pathrules.MatcherOptions{
			CaseInsensitive: false,
			DefaultAction:   pathrules.ActionInclude,
		}
	}

	if opts.MatcherOptions.DefaultAction == pathrules.ActionUnknown {
		opts.MatcherOptions.DefaultAction = pathrules.ActionInclude
	}
}
