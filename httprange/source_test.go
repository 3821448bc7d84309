package httprange_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woozymasta/tacozip"
	"github.com/woozymasta/tacozip/httprange"
)

// newArchive builds a TACO archive in memory.
func newArchive(t *testing.T, entries []tacozip.MetaEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	_, err := tacozip.Create(context.Background(), &buf, []tacozip.Input{
		{
			Name: "payload.bin",
			Open: func() (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(bytes.Repeat([]byte("p"), 8192))), nil
			},
		},
	}, entries, tacozip.CreateOptions{})
	require.NoError(t, err)

	return buf.Bytes()
}

// serveBytes serves data with range support and counts requests.
func serveBytes(t *testing.T, data []byte, etag *atomic.Value) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if etag != nil {
			w.Header().Set("ETag", etag.Load().(string)) //nolint:forcetypeassert // test stores strings only
		}

		http.ServeContent(w, r, "archive.zip", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)

	return server, &hits
}

func TestSource_ReadHeaderAndValidate(t *testing.T) {
	t.Parallel()

	entries := []tacozip.MetaEntry{{Offset: 100, Length: 200}, {Offset: 300, Length: 400}}
	data := newArchive(t, entries)
	server, _ := serveBytes(t, data, nil)

	src, err := httprange.NewSource(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), src.Size())

	got, err := tacozip.ReadHeaderFrom(src)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
	assert.Equal(t, int64(1), src.Requests(), "header must take one range request")

	h := tacozip.New(tacozip.Options{})
	format, err := h.DetectFormatAt(src, src.Size())
	require.NoError(t, err)
	assert.Equal(t, tacozip.FormatZip32, format)

	require.NoError(t, h.ValidateAt(src, src.Size(), tacozip.LevelDeep))

	info, err := h.InspectAt(src, src.Size())
	require.NoError(t, err)
	assert.True(t, info.TacoRecordFirst)
}

func TestSource_ReadAt(t *testing.T) {
	t.Parallel()

	data := []byte("hello world")
	server, _ := serveBytes(t, data, nil)

	src, err := httprange.NewSource(context.Background(), server.URL)
	require.NoError(t, err)

	testCases := []struct {
		name    string
		bufSize int
		offset  int64
		wantN   int
		wantErr error
		want    string
	}{
		{name: "middle", bufSize: 5, offset: 6, wantN: 5, want: "world"},
		{name: "past end", bufSize: 10, offset: int64(len(data) - 3), wantN: 3, wantErr: io.EOF, want: "rld"},
		{name: "at end", bufSize: 4, offset: int64(len(data)), wantN: 0, wantErr: io.EOF, want: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			buf := make([]byte, tc.bufSize)
			n, err := src.ReadAt(buf, tc.offset)
			assert.Equal(t, tc.wantN, n)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.want, string(buf[:n]))
		})
	}

	_, err = src.ReadAt(make([]byte, 1), -1)
	require.Error(t, err)
}

func TestSource_RangeUnsupported(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("full body"))
	}))
	t.Cleanup(server.Close)

	_, err := httprange.NewSource(context.Background(), server.URL)
	require.ErrorIs(t, err, httprange.ErrRangeUnsupported)
}

func TestSource_ProbeFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)

	_, err := httprange.NewSource(context.Background(), server.URL)
	require.Error(t, err)
}

func TestSource_PinnedVersion(t *testing.T) {
	t.Parallel()

	data := newArchive(t, nil)
	var etag atomic.Value
	etag.Store(`"v1"`)
	server, _ := serveBytes(t, data, &etag)

	src, err := httprange.NewSource(context.Background(), server.URL, httprange.WithPinnedVersion())
	require.NoError(t, err)
	assert.Equal(t, `"v1"`, src.ETag())

	_, err = tacozip.ReadHeaderFrom(src)
	require.NoError(t, err)

	etag.Store(`"v2"`)
	_, err = tacozip.ReadHeaderFrom(src)
	require.ErrorIs(t, err, httprange.ErrObjectChanged)
	require.ErrorIs(t, err, tacozip.ErrIO)
}

func TestSource_Headers(t *testing.T) {
	t.Parallel()

	data := newArchive(t, nil)
	var seen atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" || r.Header.Get("X-Trace") != "1" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		seen.Add(1)
		http.ServeContent(w, r, "archive.zip", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)

	_, err := httprange.NewSource(context.Background(), server.URL)
	require.Error(t, err)

	src, err := httprange.NewSource(
		context.Background(),
		server.URL,
		httprange.WithHeaders(http.Header{"Authorization": []string{"Bearer token"}}),
		httprange.WithHeader("X-Trace", "1"),
		httprange.WithClient(server.Client()),
	)
	require.NoError(t, err)

	_, err = tacozip.ReadHeaderFrom(src)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, seen.Load(), int64(3))
}

func TestSource_ContextCanceled(t *testing.T) {
	t.Parallel()

	data := newArchive(t, nil)
	server, _ := serveBytes(t, data, nil)

	ctx, cancel := context.WithCancel(context.Background())
	src, err := httprange.NewSource(ctx, server.URL)
	require.NoError(t, err)

	cancel()
	_, err = tacozip.ReadHeaderFrom(src)
	require.ErrorIs(t, err, context.Canceled)
}
