package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocpp-central/central-system/internal/store"
)

func TestWithRetry_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), "op", func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_PermanentErrorNeverRetries(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), "op", func() error {
		calls++
		return &store.PermanentError{Cause: errors.New("bad input")}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_TransientErrorRetriesThenSucceeds(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), "op", func() error {
		calls++
		if calls < 2 {
			return &store.TransientError{Cause: errors.New("connection reset")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestWithRetry_ExhaustsAllAttemptsAndSurfaces(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), "op", func() error {
		calls++
		return &store.TransientError{Cause: errors.New("still down")}
	})
	require.Error(t, err)
	assert.Equal(t, len(retryBackoff)+1, calls)
}

func TestWithRetry_ContextCancellationStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withRetry(ctx, "op", func() error {
		calls++
		if calls == 1 {
			cancel()
		}
		return &store.TransientError{Cause: errors.New("down")}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestWithRetryT_ReturnsValueOnSuccess(t *testing.T) {
	val, err := withRetryT(context.Background(), "op", func() (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)
}

func TestWithRetryT_ZeroValueOnFailure(t *testing.T) {
	_, err := withRetryT(context.Background(), "op", func() (int, error) {
		return 0, &store.PermanentError{Cause: errors.New("bad")}
	})
	require.Error(t, err)
}
