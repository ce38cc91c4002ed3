package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDelayBounds(t *testing.T) {
	min := time.Second
	max := 30 * time.Second

	for attempt := 0; attempt < 10; attempt++ {
		for i := 0; i < 50; i++ {
			delay := BackoffDelay(attempt, min, max)
			// 抖动幅度 ±20%
			assert.GreaterOrEqual(t, delay, time.Duration(float64(min)*0.8))
			assert.LessOrEqual(t, delay, time.Duration(float64(max)*1.2))
		}
	}
}

func TestBackoffDelayGrows(t *testing.T) {
	min := time.Second
	max := time.Hour

	// 基础间隔翻倍：抖动 ±20% 不会掩盖 2 倍增长
	for attempt := 1; attempt < 6; attempt++ {
		smaller := BackoffDelay(attempt-1, min, max)
		larger := BackoffDelay(attempt+1, min, max)
		assert.Greater(t, larger, smaller)
	}
}

func TestBackoffDelayDefaultsMin(t *testing.T) {
	delay := BackoffDelay(0, 0, time.Minute)
	assert.Greater(t, delay, time.Duration(0))
}

func TestSleepContextCompletes(t *testing.T) {
	start := time.Now()
	require.NoError(t, SleepContext(context.Background(), 10*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestSleepContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := SleepContext(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetrySucceedsEventually(t *testing.T) {
	calls := 0
	err := Retry(3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhausts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Retry(2, time.Millisecond, func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestRetryWithBackoff(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(4, time.Millisecond, 4*time.Millisecond, func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestJSONHelpers(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	s := ToJSON(payload{Name: "x"})
	assert.JSONEq(t, `{"name":"x"}`, s)

	var got payload
	require.NoError(t, FromJSON(s, &got))
	assert.Equal(t, "x", got.Name)
}
