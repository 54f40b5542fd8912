package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixed_NextDelay(t *testing.T) {
	s := Fixed{Interval: 2 * time.Second, MaxDuration: time.Minute}

	for attempt := 0; attempt < 5; attempt++ {
		assert.Equal(t, 2*time.Second, s.NextDelay(attempt))
	}
}

func TestFixed_Exceeded(t *testing.T) {
	s := Fixed{Interval: time.Second, MaxDuration: 10 * time.Second}

	assert.False(t, s.Exceeded(9*time.Second))
	assert.True(t, s.Exceeded(10*time.Second))
	assert.True(t, s.Exceeded(time.Minute))
}

func TestExponential_NextDelay(t *testing.T) {
	s := Exponential{Base: 500 * time.Millisecond, MaxDuration: time.Minute}

	assert.Equal(t, 500*time.Millisecond, s.NextDelay(0))
	assert.Equal(t, 1*time.Second, s.NextDelay(1))
	assert.Equal(t, 2*time.Second, s.NextDelay(2))
	assert.Equal(t, 4*time.Second, s.NextDelay(3))
}

func TestExponential_DefaultBase(t *testing.T) {
	s := Exponential{}
	assert.Equal(t, DefaultExponentialBase, s.NextDelay(0))
	assert.Equal(t, 2*DefaultExponentialBase, s.NextDelay(1))
}

func TestExponential_Cap(t *testing.T) {
	s := Exponential{Base: time.Second, Max: 3 * time.Second}

	assert.Equal(t, time.Second, s.NextDelay(0))
	assert.Equal(t, 2*time.Second, s.NextDelay(1))
	assert.Equal(t, 3*time.Second, s.NextDelay(2))
	assert.Equal(t, 3*time.Second, s.NextDelay(10))
}

func TestExponential_Exceeded(t *testing.T) {
	s := Exponential{Base: time.Second, MaxDuration: 30 * time.Second}

	assert.False(t, s.Exceeded(29*time.Second))
	assert.True(t, s.Exceeded(30*time.Second))
}

func TestExceeded_ZeroMaxDurationNeverExceeds(t *testing.T) {
	assert.False(t, Fixed{Interval: time.Second}.Exceeded(time.Hour))
	assert.False(t, Exponential{Base: time.Second}.Exceeded(time.Hour))
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultConfig(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	cfg := Config{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	cfg := Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		return errors.New("always fails")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "retry failed after 3 attempts")
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	cfg := Config{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
	calls := 0
	sentinel := errors.New("bad config")
	err := Do(context.Background(), cfg, func() error {
		calls++
		return NonRetryable(sentinel)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(err, sentinel))
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 10, InitialDelay: 50 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	calls := 0
	err := Do(ctx, cfg, func() error {
		calls++
		cancel()
		return errors.New("fail")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNonRetryable_NilPassthrough(t *testing.T) {
	assert.NoError(t, NonRetryable(nil))
	assert.False(t, IsNonRetryable(nil))
}
