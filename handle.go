// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tacozip

package tacozip

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Handle is a caller-owned entry point to all archive operations.
// It holds the logger, the EOCD search window and a cache of central
// directory record offsets keyed by archive path.
//
// Reads are safe for concurrent use. Writers against one archive path must be
// serialized by the caller: the Handle performs no file locking.
type Handle struct {
	logger *slog.Logger
	cache  map[string]cachedRecord
	lookup singleflight.Group
	opts   Options
	mu     sync.RWMutex
}

// cachedRecord is a remembered TACO central directory record location.
type cachedRecord struct {
	offset int64
	size   int64
}

// New creates a Handle with the given options.
func New(opts Options) *Handle {
	opts.applyDefaults()

	return &Handle{
		logger: opts.Logger,
		opts:   opts,
		cache:  make(map[string]cachedRecord),
	}
}

// log returns the logger, falling back to a discard logger if nil.
func (h *Handle) log() *slog.Logger {
	if h == nil || h.logger == nil {
		return slog.New(slog.DiscardHandler)
	}

	return h.logger
}

// Forget drops the cached central directory location for path.
func (h *Handle) Forget(path string) {
	key, err := cacheKey(path)
	if err != nil {
		return
	}

	h.mu.Lock()
	delete(h.cache, key)
	h.mu.Unlock()
}

// locateTacoRecord finds the TACO central directory record, trying the cache
// first when key is not empty. Cached offsets are re-read and verified before use.
func (h *Handle) locateTacoRecord(ra io.ReaderAt, size int64, key string) (centralRecord, error) {
	if key == "" || h.opts.DisableCache {
		return h.scanTacoRecord(ra, size)
	}

	h.mu.RLock()
	cached, ok := h.cache[key]
	h.mu.RUnlock()

	if ok && cached.size == size {
		rec, err := readCentralRecord(ra, cached.offset, size)
		if err == nil && rec.isTaco() {
			h.log().Debug("central record cache hit", "path", key, "offset", cached.offset)
			return rec, nil
		}

		h.log().Debug("central record cache stale", "path", key, "offset", cached.offset)
	}

	v, err, _ := h.lookup.Do(key, func() (any, error) {
		rec, err := h.scanTacoRecord(ra, size)
		if err != nil {
			return nil, err
		}

		h.mu.Lock()
		h.cache[key] = cachedRecord{offset: rec.offset, size: size}
		h.mu.Unlock()

		return rec, nil
	})
	if err != nil {
		return centralRecord{}, err
	}

	rec, _ := v.(centralRecord) //nolint:errcheck // type assertion always succeeds when err is nil
	return rec, nil
}

// scanTacoRecord locates the end record and scans the central directory.
func (h *Handle) scanTacoRecord(ra io.ReaderAt, size int64) (centralRecord, error) {
	end, err := findEndRecord(ra, size, h.opts.SearchWindow)
	if err != nil {
		return centralRecord{}, err
	}

	if err := end.checkDirectoryBounds(); err != nil {
		return centralRecord{}, err
	}

	rec, _, err := scanTacoRecord(ra, end)
	return rec, err
}

// cacheKey returns the absolute cleaned form of path.
func cacheKey(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	return filepath.Clean(abs), nil
}

// openFileWithSize opens path for reading and returns file handle with size.
func openFileWithSize(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, ioError("open", -1, fmt.Errorf("open archive: %w", err))
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, ioError("stat", -1, err)
	}

	return f, fi.Size(), nil
}
