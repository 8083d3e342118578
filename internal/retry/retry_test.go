package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/fincrawl/internal/retry"
)

var errBoom = errors.New("boom")

func TestDo_SucceedsAfterFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	err := retry.Do(context.Background(), retry.Config{Attempts: 3, Delay: time.Millisecond},
		func(context.Context) error {
			calls++
			if calls < 3 {
				return errBoom
			}
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_Exhausted(t *testing.T) {
	t.Parallel()

	calls := 0
	var retried []int
	err := retry.Do(context.Background(), retry.Config{
		Attempts: 3,
		Delay:    time.Millisecond,
		OnRetry:  func(attempt int, _ error) { retried = append(retried, attempt) },
	}, func(context.Context) error {
		calls++
		return errBoom
	})

	require.ErrorIs(t, err, retry.ErrExhausted)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_ConstantDelay(t *testing.T) {
	t.Parallel()

	var stamps []time.Time
	_ = retry.Do(context.Background(), retry.Config{Attempts: 3, Delay: 20 * time.Millisecond},
		func(context.Context) error {
			stamps = append(stamps, time.Now())
			return errBoom
		})

	require.Len(t, stamps, 3)
	first := stamps[1].Sub(stamps[0])
	second := stamps[2].Sub(stamps[1])
	assert.GreaterOrEqual(t, first, 20*time.Millisecond)
	assert.GreaterOrEqual(t, second, 20*time.Millisecond)
	assert.Less(t, second, first+30*time.Millisecond, "delay must not grow")
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	t.Parallel()

	calls := 0
	err := retry.Do(context.Background(), retry.Config{Attempts: 5, Delay: time.Millisecond},
		func(context.Context) error {
			calls++
			return retry.Permanent(errBoom)
		})

	require.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, 1, calls)
}

func TestDo_NotRetryable(t *testing.T) {
	t.Parallel()

	calls := 0
	err := retry.Do(context.Background(), retry.Config{
		Attempts:    4,
		Delay:       time.Millisecond,
		IsRetryable: func(error) bool { return false },
	}, func(context.Context) error {
		calls++
		return errBoom
	})

	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	err := retry.Do(ctx, retry.Config{Attempts: 3, Delay: time.Hour},
		func(context.Context) error {
			cancel()
			return errBoom
		})

	require.ErrorIs(t, err, retry.ErrCancelled)
}
