package db

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siriwat/flight-season-api/pkg/apperr"
)

func TestWithRetryRecoversFromTransientFailures(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := withRetry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return &pq.Error{Code: "08006"} // connection_failure
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryHonorsWrappedTransientFlag(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := withRetry(context.Background(), func() error {
		attempts++
		if attempts < 2 {
			return apperr.Storage(errors.New("pool exhausted"), true, "borrow connection")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestWithRetryStopsOnPermanentFailure(t *testing.T) {
	t.Parallel()

	attempts := 0
	unique := &pq.Error{Code: "23505"} // unique_violation
	err := withRetry(context.Background(), func() error {
		attempts++
		return unique
	})
	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, unique)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := withRetry(context.Background(), func() error {
		attempts++
		return &pq.Error{Code: "40001"} // serialization_failure
	})
	assert.Equal(t, maxRetries, attempts)
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))
	assert.False(t, apperr.IsTransient(err))
}

func TestWithRetrySurfacesCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := withRetry(ctx, func() error {
		return &pq.Error{Code: "08006"}
	})
	assert.Equal(t, apperr.KindTimeout, apperr.KindOf(err))
}
