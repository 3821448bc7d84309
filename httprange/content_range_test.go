package httprange

import (
	"errors"
	"testing"
)

func TestParseContentRange(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "bytes 0-0/157", want: 157},
		{in: " bytes 10-19/1000 ", want: 1000},
		{in: "bytes 0-0/*", wantErr: true},
		{in: "items 0-0/10", wantErr: true},
		{in: "bytes 0-0", wantErr: true},
		{in: "bytes 0-0/-4", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range testCases {
		got, err := parseContentRange(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrBadContentRange) {
				t.Fatalf("parseContentRange(%q) err=%v, want ErrBadContentRange", tc.in, err)
			}
			continue
		}

		if err != nil {
			t.Fatalf("parseContentRange(%q): %v", tc.in, err)
		}

		if got != tc.want {
			t.Fatalf("parseContentRange(%q)=%d, want %d", tc.in, got, tc.want)
		}
	}
}
