package gameerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorsIsSentinels(t *testing.T) {
	err := New(Busy, "room %s locked", "abc123")
	require.True(t, errors.Is(err, ErrBusy))
	require.False(t, errors.Is(err, ErrNotFound))
}

func TestWrapUnwrap(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	err := Wrap(Corrupt, cause, "decode room %s", "xyz99")
	require.True(t, errors.Is(err, ErrCorrupt))
	require.ErrorIs(t, err, cause)
}

func TestRetryable(t *testing.T) {
	require.True(t, Retryable(New(Busy, "locked")))
	require.False(t, Retryable(New(IllegalAction, "not your turn")))
	require.False(t, Retryable(fmt.Errorf("plain error")))
}
