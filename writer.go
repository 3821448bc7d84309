// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tacozip

package tacozip

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/klauspost/compress/zip"
)

var (
	// defaultCopyBufferPool reuses default-sized copy buffers between Create calls.
	defaultCopyBufferPool = sync.Pool{
		New: func() any {
			return new([DefaultCopyBufferSize]byte)
		},
	}
)

// createEntry is one normalized input scheduled for writing.
type createEntry struct {
	input Input
	name  string
}

// Create writes a new archive to dst: the TACO header first, then every input
// stored without compression in the given order. A nil entries slice writes a
// single zero placeholder entry.
//
// All parameter checks run before the first byte is written. A failure after
// that leaves dst with a truncated archive; CreateFile removes it.
func (h *Handle) Create(
	ctx context.Context,
	dst io.Writer,
	inputs []Input,
	entries []MetaEntry,
	opts CreateOptions,
) (*CreateResult, error) {
	startedAt := time.Now()

	if dst == nil {
		return nil, ErrNilWriter
	}

	if ctx == nil {
		ctx = context.Background()
	}

	header, err := headerForCreate(entries)
	if err != nil {
		return nil, err
	}

	plan, err := prepareCreatePlan(inputs)
	if err != nil {
		return nil, err
	}

	if err := checkComment(opts.Comment); err != nil {
		return nil, err
	}

	opts.applyDefaults()
	h.log().Info("creating archive", "inputs", len(plan), "entries", header.Count())

	buf, releaseBuf := acquireCopyBuffer(opts.CopyBufferSize)
	defer releaseBuf()

	zw := zip.NewWriter(dst)
	enc := header.Encode()
	if err := writeHeaderEntry(zw, &enc); err != nil {
		return nil, err
	}

	res := &CreateResult{
		Header:  header,
		Entries: make([]EntryInfo, 0, len(plan)),
	}

	offset := int64(HeaderSize)
	dirSize := int64(cdhSize + len(HeaderName))
	for _, item := range plan {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := writeStoredEntry(zw, item, offset, opts, buf)
		if err != nil {
			return nil, err
		}

		res.Entries = append(res.Entries, info)
		offset = info.DataOffset + info.Size
		dirSize += int64(cdhSize + len(info.Name))

		h.log().Debug("entry written", "name", info.Name, "data_offset", info.DataOffset, "size", info.Size)
		if opts.OnEntryDone != nil {
			opts.OnEntryDone(info)
		}
	}

	if offset >= uint32max || dirSize >= uint32max {
		return nil, opError("create", offset, ErrArchiveTooLarge)
	}

	if opts.Comment != "" {
		if err := zw.SetComment(opts.Comment); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, ioError("write central directory", offset, err)
	}

	res.Size = offset + dirSize + eocdSize + int64(len(opts.Comment))
	res.Duration = time.Since(startedAt)
	h.log().Info("archive created", "size", res.Size, "entries", len(res.Entries), "duration", res.Duration)

	return res, nil
}

// CreateFile writes a new archive to path, truncating any existing file.
// After writing it reads back the first HeaderSize bytes and fails with
// ErrBackendLayout unless they equal the serialized header. A failed create
// removes the partial file.
func (h *Handle) CreateFile(
	ctx context.Context,
	path string,
	inputs []Input,
	entries []MetaEntry,
	opts CreateOptions,
) (res *CreateResult, err error) {
	// Parameter checks must not touch the destination.
	if _, err := headerForCreate(entries); err != nil {
		return nil, err
	}

	if _, err := prepareCreatePlan(inputs); err != nil {
		return nil, err
	}

	if err := checkComment(opts.Comment); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, ioError("create", -1, fmt.Errorf("create archive file: %w", err))
	}
	defer func() {
		if f != nil {
			_ = f.Close()
		}

		if err != nil {
			_ = os.Remove(path)
		}
	}()

	res, err = h.Create(ctx, f, inputs, entries, opts)
	if err != nil {
		return nil, err
	}

	if err := verifyHeaderBytes(f, res.Header); err != nil {
		return nil, err
	}

	if err := f.Sync(); err != nil {
		return nil, ioError("sync", -1, err)
	}

	if err := f.Close(); err != nil {
		f = nil
		return nil, ioError("close", -1, err)
	}
	f = nil

	h.Forget(path)
	return res, nil
}

// CreateFromFiles writes a new archive to path from source files.
// names follows InputsFromFiles rules; a nil entries slice writes the
// placeholder header. Entry count and name count are checked before the
// destination is touched.
func (h *Handle) CreateFromFiles(
	ctx context.Context,
	path string,
	sources []string,
	names []string,
	entries []MetaEntry,
	opts CreateOptions,
) (*CreateResult, error) {
	if _, err := headerForCreate(entries); err != nil {
		return nil, err
	}

	inputs, err := InputsFromFiles(sources, names)
	if err != nil {
		return nil, err
	}

	return h.CreateFile(ctx, path, inputs, entries, opts)
}

// headerForCreate builds the header written by Create.
func headerForCreate(entries []MetaEntry) (Header, error) {
	if entries == nil {
		return placeholderHeader(), nil
	}

	return NewHeader(entries...)
}

// checkComment rejects archive comments that do not fit the EOCD length field.
func checkComment(comment string) error {
	if len(comment) > uint16max {
		return fmt.Errorf("%w: comment is %d bytes", ErrInvalidParameter, len(comment))
	}

	return nil
}

// nameFlags returns the UTF-8 name flag for valid UTF-8 names outside ASCII.
func nameFlags(name string) uint16 {
	if !utf8.ValidString(name) {
		return 0
	}

	for i := 0; i < len(name); i++ {
		if name[i] >= utf8.RuneSelf {
			return flagUTF8
		}
	}

	return 0
}

// prepareCreatePlan normalizes names and rejects duplicates and reserved names.
// Input order is preserved.
func prepareCreatePlan(inputs []Input) ([]createEntry, error) {
	if len(inputs)+1 >= uint16max {
		return nil, fmt.Errorf("%w: %d inputs", ErrArchiveTooLarge, len(inputs))
	}

	plan := make([]createEntry, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for i := range inputs {
		name, err := normalizeEntryName(inputs[i].Name)
		if err != nil {
			return nil, err
		}

		if inputs[i].Open == nil {
			return nil, fmt.Errorf("%w: input %s: Open is nil", ErrInvalidParameter, name)
		}

		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		seen[name] = struct{}{}

		plan = append(plan, createEntry{name: name, input: inputs[i]})
	}

	return plan, nil
}

// headerFileHeader returns the backend header describing the TACO entry.
// Every field mirrors Header.Encode so the backend writes the same bytes.
func headerFileHeader(crc uint32) *zip.FileHeader {
	return &zip.FileHeader{
		Name:               HeaderName,
		CreatorVersion:     zipVersion20,
		ReaderVersion:      zipVersion20,
		Method:             zip.Store,
		ModifiedTime:       dosEpochTime, //nolint:staticcheck // CreateRaw writes the DOS fields verbatim.
		ModifiedDate:       dosEpochDate, //nolint:staticcheck // CreateRaw writes the DOS fields verbatim.
		CRC32:              crc,
		CompressedSize64:   PayloadSize,
		UncompressedSize64: PayloadSize,
	}
}

// writeHeaderEntry writes the TACO entry as the first archive member.
func writeHeaderEntry(zw *zip.Writer, enc *[HeaderSize]byte) error {
	w, err := zw.CreateRaw(headerFileHeader(storedLocalCRC(enc[:])))
	if err != nil {
		return ioError("write header entry", 0, err)
	}

	if _, err := w.Write(enc[PayloadOffset:]); err != nil {
		return ioError("write header payload", PayloadOffset, err)
	}

	return nil
}

// writeStoredEntry writes one input with the STORE method. The first pass
// computes CRC-32 and size so no data descriptor is needed; the second pass
// copies content and verifies it did not change.
func writeStoredEntry(zw *zip.Writer, item createEntry, offset int64, opts CreateOptions, buf []byte) (EntryInfo, error) {
	info := EntryInfo{
		Name:         item.name,
		HeaderOffset: offset,
		DataOffset:   offset + lfhSize + int64(len(item.name)),
	}

	crc, size, err := checksumInput(item, buf)
	if err != nil {
		return info, err
	}

	info.CRC32 = crc
	info.Size = size
	if offset >= uint32max || size >= uint32max || info.DataOffset+size >= uint32max {
		return info, opError("create", offset, fmt.Errorf("%w: entry %s", ErrArchiveTooLarge, item.name))
	}

	modTime := item.input.ModTime
	if modTime.IsZero() {
		modTime = opts.ModTime
	}
	dosDate, dosTime := dosDateTime(modTime)

	fh := &zip.FileHeader{
		Name:               item.name,
		CreatorVersion:     zipVersion20,
		ReaderVersion:      zipVersion20,
		Flags:              nameFlags(item.name),
		Method:             zip.Store,
		ModifiedTime:       dosTime, //nolint:staticcheck // CreateRaw writes the DOS fields verbatim.
		ModifiedDate:       dosDate, //nolint:staticcheck // CreateRaw writes the DOS fields verbatim.
		CRC32:              crc,
		CompressedSize64:   uint64(size),
		UncompressedSize64: uint64(size),
	}

	w, err := zw.CreateRaw(fh)
	if err != nil {
		return info, ioError("write entry header", offset, err)
	}

	rc, err := openInput(item)
	if err != nil {
		return info, err
	}
	defer func() { _ = rc.Close() }()

	cw := &crcWriter{w: w}
	if _, err := io.CopyBuffer(cw, io.LimitReader(rc, size), buf); err != nil {
		return info, ioError("write entry data", info.DataOffset, err)
	}

	if cw.n != size || cw.crc != crc {
		return info, opError("write entry data", info.DataOffset, fmt.Errorf("%w: %s", ErrSourceChanged, item.name))
	}

	return info, nil
}

// checksumInput runs the checksum pass over one input.
func checksumInput(item createEntry, buf []byte) (uint32, int64, error) {
	rc, err := openInput(item)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = rc.Close() }()

	crc, size, err := checksumStream(rc, buf)
	if err != nil {
		return 0, 0, ioError("read input", -1, fmt.Errorf("input %s: %w", item.name, err))
	}

	return crc, size, nil
}

// openInput opens source stream for one input.
func openInput(item createEntry) (io.ReadCloser, error) {
	rc, err := item.input.Open()
	if err != nil {
		return nil, ioError("open input", -1, fmt.Errorf("input %s: %w", item.name, err))
	}

	return rc, nil
}

// acquireCopyBuffer returns a copy buffer and release callback.
func acquireCopyBuffer(size int) ([]byte, func()) {
	if size != DefaultCopyBufferSize {
		return make([]byte, size), func() {}
	}

	arr := defaultCopyBufferPool.Get().(*[DefaultCopyBufferSize]byte) //nolint:forcetypeassert // pool contains only fixed-size buffers
	return arr[:], func() {
		defaultCopyBufferPool.Put(arr)
	}
}

// verifyHeaderBytes reads the first HeaderSize bytes back and compares them
// with the serialized header.
func verifyHeaderBytes(ra io.ReaderAt, header Header) error {
	var got [HeaderSize]byte
	if err := readFullAt(ra, got[:], 0); err != nil {
		return ioError("verify header", 0, err)
	}

	want := header.Encode()
	if !bytes.Equal(got[:], want[:]) {
		return opError("verify header", 0, ErrBackendLayout)
	}

	return nil
}

// dosDateTime converts t to MS-DOS date and time. Times outside the DOS
// range map to 1980-01-01 00:00:00.
func dosDateTime(t time.Time) (uint16, uint16) {
	if t.IsZero() || t.Year() < 1980 || t.Year() > 2107 {
		return dosEpochDate, dosEpochTime
	}

	date := uint16(t.Day() + int(t.Month())<<5 + (t.Year()-1980)<<9)
	clock := uint16(t.Second()/2 + t.Minute()<<5 + t.Hour()<<11)

	return date, clock
}

// Create writes a new archive to dst using a fresh Handle.
func Create(ctx context.Context, dst io.Writer, inputs []Input, entries []MetaEntry, opts CreateOptions) (*CreateResult, error) {
	return New(Options{}).Create(ctx, dst, inputs, entries, opts)
}

// CreateFile writes a new archive to path using a fresh Handle.
func CreateFile(ctx context.Context, path string, inputs []Input, entries []MetaEntry, opts CreateOptions) (*CreateResult, error) {
	return New(Options{}).CreateFile(ctx, path, inputs, entries, opts)
}

// CreateFromFiles writes a new archive to path from source files using a fresh Handle.
func CreateFromFiles(ctx context.Context, path string, sources []string, names []string, entries []MetaEntry) (*CreateResult, error) {
	return New(Options{}).CreateFromFiles(ctx, path, sources, names, entries, CreateOptions{})
}
