package tacozip

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		err  error
		want error
	}{
		{err: nil, want: nil},
		{err: ErrBufferTooShort, want: ErrInvalidParameter},
		{err: ErrTooManyEntries, want: ErrInvalidParameter},
		{err: ErrBadSignature, want: ErrInvalidHeader},
		{err: ErrCountOutOfRange, want: ErrInvalidHeader},
		{err: ErrEOCDNotFound, want: ErrStructural},
		{err: ErrHeaderReordered, want: ErrStructural},
		{err: fmt.Errorf("%w: %w", ErrNotTacoArchive, ErrBadFilename), want: ErrStructural},
		{err: ErrLocalCRCMismatch, want: ErrIntegrity},
		{err: ErrCentralCRCMismatch, want: ErrIntegrity},
		{err: ErrArchiveTooLarge, want: ErrCapacityExceeded},
		{err: ErrSourceNotFound, want: ErrNotFound},
		{err: ErrDuplicateName, want: ErrAlreadyExists},
		{err: ioError("read", 0, errors.New("eof")), want: ErrIO},
		{err: errors.New("foreign"), want: ErrIO},
		{err: context.Canceled, want: ErrIO},
		{err: fmt.Errorf("%w: %w", ErrNotTacoArchive, ErrEntryLayout), want: ErrStructural},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, Kind(tc.err), "%v", tc.err)
	}
}

func TestError_Format(t *testing.T) {
	t.Parallel()

	withOffset := opError("validate", 14, ErrLocalCRCMismatch)
	assert.Equal(t, "validate at offset 14: "+ErrLocalCRCMismatch.Error(), withOffset.Error())
	assert.ErrorIs(t, withOffset, ErrIntegrity)

	noOffset := opError("open", -1, ErrSourceNotFound)
	assert.Equal(t, "open: "+ErrSourceNotFound.Error(), noOffset.Error())

	var tacoErr *Error
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", withOffset), &tacoErr))
	assert.Equal(t, int64(14), tacoErr.Offset)
}
