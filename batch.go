// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tacozip

package tacozip

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ValidationReport is the outcome of validating one archive.
type ValidationReport struct {
	// Err is the validation error, nil when Valid.
	Err error `json:"-" yaml:"-"`
	// Path is the validated archive path.
	Path string `json:"path" yaml:"path"`
	// Message is the error text, empty when Valid.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
	// Level is the level the archive was validated at.
	Level ValidationLevel `json:"level" yaml:"level"`
	// Valid reports whether every check passed.
	Valid bool `json:"valid" yaml:"valid"`
}

// ValidateMany validates paths concurrently and returns one report per path
// in input order. Per-archive failures land in the reports; the returned
// error is non-nil only for an invalid level or a canceled context.
func (h *Handle) ValidateMany(
	ctx context.Context,
	paths []string,
	level ValidationLevel,
	opts BatchOptions,
) ([]ValidationReport, error) {
	if !level.Valid() {
		return nil, ErrInvalidLevel
	}

	if ctx == nil {
		ctx = context.Background()
	}

	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	reports := make([]ValidationReport, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			err := h.Validate(path, level)
			reports[i] = ValidationReport{
				Path:  path,
				Level: level,
				Valid: err == nil,
				Err:   err,
			}
			if err != nil {
				reports[i].Message = err.Error()
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return reports, err
	}

	h.log().Info("batch validated", "archives", len(paths), "level", level.String(), "workers", workers)
	return reports, nil
}
