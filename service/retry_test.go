package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kevinaaaquil/unilib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	err := RetryWithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return store.ErrVersionConflict
		}
		return nil
	}, WithBaseDelay(time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := RetryWithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		return store.ErrVersionConflict
	}, WithMaxAttempts(2), WithBaseDelay(0))
	assert.ErrorIs(t, err, store.ErrVersionConflict)
	assert.Equal(t, 2, calls)
}

func TestRetryDoesNotRetryOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := RetryWithExponentialBackoff(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryWithExponentialBackoff(ctx, func(context.Context) error {
		calls++
		cancel()
		return store.ErrVersionConflict
	}, WithBaseDelay(time.Hour))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryOptionValidation(t *testing.T) {
	noop := func(context.Context) error { return nil }
	ctx := context.Background()
	assert.ErrorIs(t, RetryWithExponentialBackoff(ctx, noop, WithMaxAttempts(0)), ErrInvalidMaxAttempts)
	assert.ErrorIs(t, RetryWithExponentialBackoff(ctx, noop, WithBaseDelay(-time.Second)), ErrNegativeBaseDelay)
	assert.ErrorIs(t, RetryWithExponentialBackoff(ctx, noop, WithJitterFactor(1.5)), ErrInvalidJitterFactor)
}

func TestExhaustedVersionConflictIsAConflict(t *testing.T) {
	b := newBase(nil, nil, []Option{WithRetry(WithMaxAttempts(2), WithBaseDelay(0))})
	err := b.retry(context.Background(), func(context.Context) error { return store.ErrVersionConflict })
	requireCode(t, err, KindConflict, CodeInvalidStatus)
}
