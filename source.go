// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tacozip

package tacozip

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/woozymasta/pathrules"
)

// InputsFromFiles builds inputs from source file paths. A nil or empty names
// slice uses each source base name; otherwise names must match sources one to
// one. Every source must exist and be a regular file.
func InputsFromFiles(sources []string, names []string) ([]Input, error) {
	if len(names) != 0 && len(names) != len(sources) {
		return nil, fmt.Errorf("%w: %d sources, %d names", ErrNameCountMismatch, len(sources), len(names))
	}

	inputs := make([]Input, 0, len(sources))
	for i, src := range sources {
		fi, err := os.Stat(src)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, src)
		}
		if err != nil {
			return nil, ioError("stat source", -1, err)
		}

		if !fi.Mode().IsRegular() {
			return nil, fmt.Errorf("%w: source %s is not a regular file", ErrInvalidParameter, src)
		}

		name := filepath.Base(src)
		if len(names) != 0 {
			name = names[i]
		}

		inputs = append(inputs, fileInput(src, name, fi))
	}

	return inputs, nil
}

// InputsFromDir walks dir and builds inputs for regular files selected by
// opts.Rules, named by their slash-separated path relative to dir.
// Files are returned in lexical walk order. Symbolic links are not followed.
func InputsFromDir(dir string, opts DirOptions) ([]Input, error) {
	opts.applyDefaults()

	matcher, err := newSourceMatcher(opts.Rules, opts.MatcherOptions)
	if err != nil {
		return nil, err
	}

	inputs := make([]Input, 0, 64)
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}

		rel = filepath.ToSlash(rel)
		if !matcher.Match(rel) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}

		inputs = append(inputs, fileInput(p, rel, fi))
		return nil
	})
	if err != nil {
		return nil, ioError("walk source dir", -1, err)
	}

	return inputs, nil
}

// fileInput builds an input reading the file at path.
func fileInput(path string, name string, fi fs.FileInfo) Input {
	return Input{
		Name:    name,
		ModTime: fi.ModTime(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// sourceMatcher holds compiled source selection rules.
type sourceMatcher struct {
	matcher *pathrules.Matcher
}

// newSourceMatcher compiles selection rules; no rules means select everything.
func newSourceMatcher(rules []pathrules.Rule, opts pathrules.MatcherOptions) (*sourceMatcher, error) {
	rules = normalizeSourceRules(rules)
	if len(rules) == 0 {
		return nil, nil
	}

	matcher, err := pathrules.NewMatcher(rules, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: compile rules: %w", ErrInvalidSourceRules, err)
	}

	return &sourceMatcher{matcher: matcher}, nil
}

// normalizeSourceRules normalizes rule patterns and drops empty patterns.
func normalizeSourceRules(rules []pathrules.Rule) []pathrules.Rule {
	normalized := make([]pathrules.Rule, 0, len(rules))
	for _, rule := range rules {
		pattern := normalizePattern(rule.Pattern)
		if pattern == "" {
			continue
		}

		normalized = append(normalized, pathrules.Rule{
			Action:  rule.Action,
			Pattern: pattern,
		})
	}

	return normalized
}

// normalizePattern normalizes a rule pattern for matcher use, keeping trailing "/".
func normalizePattern(pattern string) string {
	pattern = strings.TrimSpace(pattern)
	pattern = strings.ReplaceAll(pattern, `\`, `/`)
	return strings.TrimPrefix(pattern, "./")
}

// Match reports whether path is selected.
func (m *sourceMatcher) Match(path string) bool {
	if m == nil || m.matcher == nil {
		return true
	}

	candidate := NormalizeName(path)
	if candidate == "" {
		return false
	}

	return m.matcher.Included(candidate, false)
}
