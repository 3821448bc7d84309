// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tacozip

/*
Package tacozip writes, reads, updates and validates TACO ZIP archives.

A TACO archive is a standard ZIP file whose first member is a stored entry
named TACO_HEADER. Its local file header and 116-byte payload occupy the
first 157 bytes of the file and hold up to seven (offset, length) ranges
pointing at metadata elsewhere in the archive, so a reader fetches a fixed
byte range and never parses the central directory. Every other member is
stored without compression; the archive stays readable by any ZIP tool.

Header layout (all integers little-endian):

	0..29       ZIP local file header (store, DOS date 1980-01-01, CRC at 14)
	30..40      "TACO_HEADER"
	41          entry count (0..7)
	42..44      zero padding
	45 + 16*i   entry i offset (u64) and length (u64)

# Creating

Build inputs and write an archive (names keep input order):

	inputs, err := tacozip.InputsFromFiles(
		[]string{"data/part-0.parquet", "data/meta.json"},
		[]string{"part-0.parquet", "meta.json"},
	)
	if err != nil {
		return err
	}
	res, err := tacozip.CreateFile(ctx, "dataset.zip", inputs, nil, tacozip.CreateOptions{})
	if err != nil {
		return err
	}

Create with nil entries writes one zero placeholder range. The result
reports data offsets of every user entry, so ranges can be filled in later:

	meta := res.Entries[1].Range()
	if err := tacozip.UpdateHeader("dataset.zip", []tacozip.MetaEntry{meta}); err != nil {
		return err
	}

Select directory sources with github.com/woozymasta/pathrules:

	inputs, err := tacozip.InputsFromDir("data", tacozip.DirOptions{
		Rules: []pathrules.Rule{
			{Action: pathrules.ActionExclude, Pattern: "*.tmp"},
		},
	})

# Reading

Read the header with a single 157-byte read:

	entries, err := tacozip.ReadHeader("dataset.zip")
	if err != nil {
		return err
	}

Any io.ReaderAt works, including a remote object behind HTTP range requests
(see package httprange):

	src, err := httprange.NewSource(ctx, "https://example.org/dataset.zip")
	if err != nil {
		return err
	}
	entries, err := tacozip.ReadHeaderFrom(src)
	if err != nil {
		return err
	}
	meta, err := tacozip.ReadEntry(src, src.Size(), entries[0])

# Updating

UpdateHeader rewrites exactly three regions: the payload, the local header
CRC-32 and the TACO central directory record CRC-32. Archive size and every
other byte stay unchanged. The writes are not atomic; UpdateOptions.BackupKeep
keeps rotated `.bak` copies for recovery.

	h := tacozip.New(tacozip.Options{Logger: slog.Default()})
	err := h.UpdateHeader("dataset.zip", entries, tacozip.UpdateOptions{BackupKeep: 2})

A Handle caches the central directory record location per path and
revalidates it on every update, so repeated updates skip the directory scan.

# Validating

Each level includes the checks of the one before. LevelQuick parses the
header. LevelNormal also requires TACO_HEADER to be a 116-byte stored member
listed first in the central directory and pointing at offset 0. LevelDeep
also compares the local and central CRC-32 against the payload.

	if err := tacozip.Validate("dataset.zip", tacozip.LevelDeep); err != nil {
		switch tacozip.Kind(err) {
		case tacozip.ErrIntegrity:
			// header was modified without CRC refresh
		case tacozip.ErrStructural:
			// archive was rewritten by a tool that reordered entries
		}
	}

Validate many archives with bounded concurrency:

	reports, err := h.ValidateMany(ctx, paths, tacozip.LevelNormal, tacozip.BatchOptions{MaxWorkers: 8})
*/
package tacozip
