package apperrors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_MatchesWrappedSentinels(t *testing.T) {
	err := fmt.Errorf("job %s: %w", "abc123", ErrPreconditionFailed)
	assert.Equal(t, KindPreconditionFailed, Kind(err))
	assert.Equal(t, 409, Kind(err).HTTPStatus())
}

func TestKind_UnknownForPlainErrors(t *testing.T) {
	assert.Equal(t, KindUnknown, Kind(fmt.Errorf("boom")))
	assert.Equal(t, 500, KindUnknown.HTTPStatus())
}

func TestKind_RetryableOnlyForTransient(t *testing.T) {
	assert.True(t, Kind(ErrTransient).Retryable())
	assert.False(t, Kind(ErrValidation).Retryable())
	assert.False(t, Kind(ErrDeadlineExceeded).Retryable())
}

func TestKind_StatusMapping(t *testing.T) {
	cases := map[error]int{
		ErrUploadNotFound:     404,
		ErrValidation:         400,
		ErrNotFound:           404,
		ErrForbidden:          403,
		ErrArtifactMissing:    500,
		ErrDeadlineExceeded:   500,
	}
	for err, want := range cases {
		assert.Equal(t, want, Kind(err).HTTPStatus(), err.Error())
	}
}
