// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tacozip

package tacozip

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ReadWriterAt is positional storage an update reads from and writes to.
type ReadWriterAt interface {
	io.ReaderAt
	io.WriterAt
}

// updatePlan holds the three targeted writes of one header update.
type updatePlan struct {
	header    Header
	enc       [HeaderSize]byte
	centralAt int64
}

// UpdateHeader replaces the metadata entries of the archive at path in place.
//
// Exactly three regions are rewritten: the 116-byte payload, the local header
// CRC-32 and the central directory CRC-32 of the TACO entry. The writes are
// not atomic. A failure or a concurrent reader between them can observe a new
// payload with a stale CRC; the error is returned and recovery (re-running the
// update or restoring a backup, see UpdateOptions.BackupKeep) is up to the caller.
// Writers against one path must be serialized by the caller.
func (h *Handle) UpdateHeader(path string, entries []MetaEntry, opts UpdateOptions) error {
	header, err := NewHeader(entries...)
	if err != nil {
		return err
	}

	opts.applyDefaults()

	key, err := cacheKey(path)
	if err != nil {
		return ioError("update", -1, err)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return ioError("update", -1, fmt.Errorf("open archive: %w", err))
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return ioError("update", -1, err)
	}

	plan, err := h.prepareUpdate(f, fi.Size(), key, header)
	if err != nil {
		return err
	}

	if opts.BackupKeep > 0 {
		if err := writeBackup(path, opts.BackupKeep); err != nil {
			return ioError("update backup", -1, err)
		}
	}

	if err := applyUpdate(f, plan); err != nil {
		return err
	}

	if !opts.NoSync {
		if err := f.Sync(); err != nil {
			return ioError("update sync", -1, err)
		}
	}

	if err := f.Close(); err != nil {
		return ioError("update close", -1, err)
	}

	h.log().Info("header updated", "path", path, "entries", header.Count(), "central_crc_offset", plan.centralAt)
	return nil
}

// UpdateHeaderAt replaces the metadata entries of an archive held in rw with
// the given total size. It performs the same three writes as UpdateHeader
// without caching or backups.
func (h *Handle) UpdateHeaderAt(rw ReadWriterAt, size int64, entries []MetaEntry) error {
	header, err := NewHeader(entries...)
	if err != nil {
		return err
	}

	if rw == nil {
		return ErrNilWriter
	}

	plan, err := h.prepareUpdate(rw, size, "", header)
	if err != nil {
		return err
	}

	return applyUpdate(rw, plan)
}

// prepareUpdate verifies the existing header and locates the central
// directory CRC field. Nothing is written.
func (h *Handle) prepareUpdate(ra io.ReaderAt, size int64, key string, header Header) (updatePlan, error) {
	buf, n, err := readHeaderBytes(ra)
	if err != nil {
		return updatePlan{}, err
	}

	if _, err := ParseHeader(buf[:n]); err != nil {
		return updatePlan{}, opError("update", 0, fmt.Errorf("%w: %w", ErrNotTacoArchive, err))
	}

	if err := checkEntryLayout(buf[:]); err != nil {
		return updatePlan{}, opError("update", 0, fmt.Errorf("%w: %w", ErrNotTacoArchive, err))
	}

	rec, err := h.locateTacoRecord(ra, size, key)
	if err != nil {
		return updatePlan{}, err
	}

	if err := rec.checkLayout(); err != nil {
		return updatePlan{}, opError("update", rec.offset, fmt.Errorf("%w: %w", ErrNotTacoArchive, err))
	}

	return updatePlan{
		header:    header,
		enc:       header.Encode(),
		centralAt: rec.crcOffset(),
	}, nil
}

// applyUpdate issues the payload, local CRC and central CRC writes in that order.
func applyUpdate(wa io.WriterAt, plan updatePlan) error {
	crc := plan.enc[lfhCRCOffset : lfhCRCOffset+4]

	if _, err := wa.WriteAt(payloadOf(plan.enc[:]), PayloadOffset); err != nil {
		return ioError("update payload", PayloadOffset, err)
	}

	if _, err := wa.WriteAt(crc, lfhCRCOffset); err != nil {
		return ioError("update local CRC", lfhCRCOffset, err)
	}

	if _, err := wa.WriteAt(crc, plan.centralAt); err != nil {
		return ioError("update central CRC", plan.centralAt, err)
	}

	return nil
}

// writeBackup rotates backup generations and copies path to `<path>.bak`.
func writeBackup(path string, keep int) error {
	backupPath := path + ".bak"
	if err := prepareBackupSlot(backupPath, keep); err != nil {
		return err
	}

	return copyFile(path, backupPath)
}

// copyFile copies src to a new file dst and syncs it.
func copyFile(src string, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy to %s: %w", dst, err)
	}

	if err := out.Sync(); err != nil {
		_ = out.Close()
		return fmt.Errorf("sync %s: %w", dst, err)
	}

	return out.Close()
}

// prepareBackupSlot rotates/removes existing backup generations before a new backup.
func prepareBackupSlot(backupPath string, keep int) error {
	if keep < 0 {
		keep = 0
	}

	switch keep {
	case 0, 1:
		return removeIfExists(backupPath)
	default:
		oldest := fmt.Sprintf("%s.%d", backupPath, keep-1)
		if err := removeIfExists(oldest); err != nil {
			return err
		}

		for i := keep - 2; i >= 1; i-- {
			from := fmt.Sprintf("%s.%d", backupPath, i)
			to := fmt.Sprintf("%s.%d", backupPath, i+1)
			if err := renameIfExists(from, to); err != nil {
				return err
			}
		}

		return renameIfExists(backupPath, backupPath+".1")
	}
}

// renameIfExists renames source to destination when source exists.
func renameIfExists(from string, to string) error {
	_, err := os.Stat(from)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", from, err)
	}

	if err := removeIfExists(to); err != nil {
		return err
	}

	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("rename %s to %s: %w", from, to, err)
	}

	return nil
}

// removeIfExists removes file when present.
func removeIfExists(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) || err == nil {
		return nil
	}

	return fmt.Errorf("remove %s: %w", path, err)
}

// UpdateHeader replaces the metadata entries of the archive at path using a fresh Handle.
func UpdateHeader(path string, entries []MetaEntry) error {
	return New(Options{}).UpdateHeader(path, entries, UpdateOptions{})
}
