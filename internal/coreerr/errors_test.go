package coreerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifiedErrorUnwrapsAndFormats(t *testing.T) {
	cause := errors.New("disk full")
	err := NewResourceExhaustion("persistence.Store", cause)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "persistence.Store")
	require.Contains(t, err.Error(), "resource_exhaustion")
}

func TestIsRetryableOnlyForTransient(t *testing.T) {
	require.True(t, IsRetryable(NewTransient("x", errors.New("busy"))))
	require.False(t, IsRetryable(NewFatal("x", errors.New("boom"))))
	require.False(t, IsRetryable(errors.New("plain error")))
}

func TestNewOnNilErrReturnsNil(t *testing.T) {
	require.NoError(t, NewTransient("x", nil))
}
