// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tacozip

// Package httprange exposes a remote object as an io.ReaderAt backed by HTTP
// range requests, so TACO headers can be read and validated without
// downloading the archive.
package httprange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
)

var (
	// ErrRangeUnsupported means the server answered a range request with the full body.
	ErrRangeUnsupported = errors.New("range requests not supported")
	// ErrSizeMismatch means HEAD and range probe disagree on the object size.
	ErrSizeMismatch = errors.New("content size mismatch")
	// ErrBadContentRange means a Content-Range header could not be parsed.
	ErrBadContentRange = errors.New("invalid Content-Range")
	// ErrObjectChanged means a conditional range request failed because the object changed.
	ErrObjectChanged = errors.New("remote object changed")
)

// Source reads a remote object with HTTP range requests.
// It implements io.ReaderAt and reports the object size.
type Source struct {
	ctx          context.Context
	client       *http.Client
	headers      http.Header
	logger       *slog.Logger
	url          string
	etag         string
	lastModified string
	size         int64
	pinned       bool
	requests     atomic.Int64
}

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client used for requests.
func WithClient(client *http.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithHeaders sets additional headers on each request.
func WithHeaders(headers http.Header) Option {
	return func(s *Source) {
		if headers == nil {
			return
		}

		s.headers = headers.Clone()
	}
}

// WithHeader sets a single header on each request.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = make(http.Header)
		}

		s.headers.Set(key, value)
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		s.logger = logger
	}
}

// WithPinnedVersion sends If-Match / If-Unmodified-Since with every range
// request so reads fail with ErrObjectChanged once the object is replaced.
// A header update rewrites three regions; pinning keeps a reader from mixing
// bytes of two versions.
func WithPinnedVersion() Option {
	return func(s *Source) {
		s.pinned = true
	}
}

// NewSource probes url and returns a Source for it. The probe issues a HEAD
// request and a one-byte range request; the server must answer the latter
// with 206 Partial Content. ctx bounds the probe and every later read.
func NewSource(ctx context.Context, url string, opts ...Option) (*Source, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	s := &Source{
		ctx:    ctx,
		url:    url,
		client: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		s.client = http.DefaultClient
	}

	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}

	if err := s.fetchMetadata(); err != nil {
		return nil, err
	}

	s.logger.Debug("range source ready", "url", url, "size", s.size, "etag", s.etag)
	return s, nil
}

// Size returns the remote object size in bytes.
func (s *Source) Size() int64 {
	return s.size
}

// ETag returns the entity tag reported by the server, if any.
func (s *Source) ETag() string {
	return s.etag
}

// Requests returns the number of range requests issued by ReadAt.
func (s *Source) Requests() int64 {
	return s.requests.Load()
}

// ReadAt reads len(p) bytes at off with one range request. Reads past the
// end return the available bytes and io.EOF.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if off < 0 {
		return 0, fmt.Errorf("read at %d: negative offset", off)
	}

	if off >= s.size {
		return 0, io.EOF
	}

	end := off + int64(len(p)) - 1
	expected := len(p)
	if end >= s.size {
		end = s.size - 1
		expected = int(end - off + 1)
	}

	resp, err := s.rangeRequest(off, end)
	if err != nil {
		return 0, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // best-effort drain for connection reuse
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusRequestedRangeNotSatisfiable:
		return 0, io.EOF
	case http.StatusPreconditionFailed:
		return 0, fmt.Errorf("%w: %s", ErrObjectChanged, s.url)
	case http.StatusOK:
		return 0, ErrRangeUnsupported
	default:
		return 0, fmt.Errorf("range request failed: %s", resp.Status)
	}

	n, err := io.ReadFull(resp.Body, p[:expected])
	if err != nil {
		return n, err
	}

	if expected < len(p) {
		return n, io.EOF
	}

	return n, nil
}

// fetchMetadata resolves size and validators from HEAD and a range probe.
func (s *Source) fetchMetadata() error {
	headSize := int64(-1)
	if resp, err := s.do(http.MethodHead, "", false); err == nil {
		headSize = resp.ContentLength
		s.etag = resp.Header.Get("ETag")
		s.lastModified = resp.Header.Get("Last-Modified")
		_ = resp.Body.Close()
	}

	resp, err := s.do(http.MethodGet, "bytes=0-0", false)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // best-effort drain for connection reuse
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		return ErrRangeUnsupported
	default:
		return fmt.Errorf("range probe failed: %s", resp.Status)
	}

	size, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return err
	}

	if headSize > 0 && headSize != size {
		return fmt.Errorf("%w: head=%d range=%d", ErrSizeMismatch, headSize, size)
	}

	if s.etag == "" {
		s.etag = resp.Header.Get("ETag")
	}

	if s.lastModified == "" {
		s.lastModified = resp.Header.Get("Last-Modified")
	}

	s.size = size
	return nil
}

// rangeRequest issues a GET for bytes [off, end].
func (s *Source) rangeRequest(off, end int64) (*http.Response, error) {
	s.requests.Add(1)
	s.logger.Debug("range request", "url", s.url, "from", off, "to", end)

	return s.do(http.MethodGet, fmt.Sprintf("bytes=%d-%d", off, end), s.pinned)
}

// do builds and sends one request with configured headers.
func (s *Source) do(method string, byteRange string, conditional bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(s.ctx, method, s.url, http.NoBody)
	if err != nil {
		return nil, err
	}

	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "identity")
	}

	if byteRange != "" {
		req.Header.Set("Range", byteRange)
	}

	if conditional {
		if s.etag != "" {
			req.Header.Set("If-Match", s.etag)
		} else if s.lastModified != "" {
			req.Header.Set("If-Unmodified-Since", s.lastModified)
		}
	}

	return s.client.Do(req)
}

// parseContentRange returns the total size from "bytes start-end/size".
func parseContentRange(value string) (int64, error) {
	value = strings.TrimSpace(value)
	rest, ok := strings.CutPrefix(value, "bytes ")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBadContentRange, value)
	}

	_, total, ok := strings.Cut(rest, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("%w: %q", ErrBadContentRange, value)
	}

	size, err := strconv.ParseInt(total, 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadContentRange, value)
	}

	return size, nil
}
