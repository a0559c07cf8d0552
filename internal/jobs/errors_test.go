package jobs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapErrorMessage(t *testing.T) {
	err := Wrap(ErrInputUnreadable, "bad header", errors.New("boom"))
	require.Equal(t, "input_unreadable: bad header: boom", err.Error())
}

func TestWrapWithoutUnderlyingError(t *testing.T) {
	err := Wrap(ErrQuotaExceeded, "monthly limit reached", nil)
	require.Equal(t, "quota_exceeded: monthly limit reached", err.Error())
}

func TestKindOfUnwrapsJobError(t *testing.T) {
	base := Wrap(ErrASRTimeout, "transcription timed out", nil)
	wrapped := fmt.Errorf("pipeline stage failed: %w", base)

	require.Equal(t, ErrASRTimeout, KindOf(wrapped))
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	require.Equal(t, ErrInternal, KindOf(errors.New("some other error")))
}

func TestUnwrapReturnsUnderlyingError(t *testing.T) {
	underlying := errors.New("root cause")
	err := Wrap(ErrMediaExtractFailed, "ffmpeg failed", underlying)
	require.ErrorIs(t, err, underlying)
}
