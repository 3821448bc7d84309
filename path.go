// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tacozip

package tacozip

import (
	"fmt"
	"path"
	"strings"
)

// NormalizeName converts a user-supplied entry name to ZIP form.
// It trims spaces, accepts both "/" and "\", removes leading "./" and "/", and cleans "." segments.
func NormalizeName(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.ReplaceAll(raw, `\`, `/`)
	raw = strings.TrimPrefix(raw, "./")
	raw = strings.TrimPrefix(raw, "/")
	raw = path.Clean("/" + raw)
	raw = strings.TrimPrefix(raw, "/")
	if raw == "." {
		return ""
	}

	return strings.TrimSuffix(raw, "/")
}

// IsReservedName reports whether name collides with the TACO entry name.
func IsReservedName(name string) bool {
	return strings.EqualFold(NormalizeName(name), HeaderName)
}

// normalizeEntryName converts input name to canonical archive form and rejects unusable names.
func normalizeEntryName(raw string) (string, error) {
	name := NormalizeName(raw)
	if name == "" || len(name) > uint16max {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntryName, raw)
	}

	if strings.EqualFold(name, HeaderName) {
		return "", fmt.Errorf("%w: input %q", ErrReservedName, raw)
	}

	return name, nil
}
