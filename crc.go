// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tacozip

package tacozip

import (
	"fmt"
	"hash/crc32"
	"io"
)

// checksum returns the IEEE CRC-32 of data, as used by ZIP.
func checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// PayloadCRC32 recomputes the CRC-32 over the payload region of a serialized header.
func PayloadCRC32(buf []byte) (uint32, error) {
	if len(buf) < HeaderSize {
		return 0, fmt.Errorf("%w: got %d", ErrBufferTooShort, len(buf))
	}

	return checksum(payloadOf(buf)), nil
}

// crcWriter counts and checksums bytes written through it.
type crcWriter struct {
	w   io.Writer
	crc uint32
	n   int64
}

// Write implements io.Writer.
func (cw *crcWriter) Write(p []byte) (int, error) {
	cw.crc = crc32.Update(cw.crc, crc32.IEEETable, p)
	cw.n += int64(len(p))

	if cw.w == nil {
		return len(p), nil
	}

	return cw.w.Write(p)
}

// checksumStream reads src to EOF and returns its CRC-32 and size.
func checksumStream(src io.Reader, buf []byte) (uint32, int64, error) {
	cw := &crcWriter{}
	if _, err := io.CopyBuffer(cw, src, buf); err != nil {
		return 0, 0, err
	}

	return cw.crc, cw.n, nil
}
