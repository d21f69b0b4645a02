package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func throttled() error {
	return &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}
}

func recordingSleep(delays *[]time.Duration) func(ctx context.Context, d time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestPolicy_Do_RetriesThrottling(t *testing.T) {
	var delays []time.Duration
	policy := Exponential(4, 100*time.Millisecond)
	policy.sleep = recordingSleep(&delays)

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return throttled()
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, delays)
}

func TestPolicy_Do_ExhaustsBudget(t *testing.T) {
	var delays []time.Duration
	policy := Exponential(2, 10*time.Millisecond)
	policy.sleep = recordingSleep(&delays)

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return throttled()
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls) // first call plus two retries
	assert.Len(t, delays, 2)
}

func TestPolicy_Do_NonRetryableReturnsImmediately(t *testing.T) {
	policy := Exponential(5, time.Millisecond)
	policy.sleep = func(ctx context.Context, d time.Duration) error {
		t.Fatal("should not sleep for a non-retryable error")
		return nil
	}

	calls := 0
	boom := errors.New("boom")
	err := policy.Do(context.Background(), func() error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestPolicy_Do_ExtraCodes(t *testing.T) {
	var delays []time.Duration
	policy := Exponential(3, time.Millisecond).WithCodes("InvalidInstanceID.NotFound")
	policy.sleep = recordingSleep(&delays)

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls == 1 {
			return &smithy.GenericAPIError{Code: "InvalidInstanceID.NotFound"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestPolicy_Do_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := Exponential(5, time.Minute)

	calls := 0
	err := policy.Do(ctx, func() error {
		calls++
		return throttled()
	})

	// The throttling error is surfaced, not the context error.
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.As(err, new(smithy.APIError)))
}

func TestPolicy_DelayFor(t *testing.T) {
	policy := Exponential(10, 100*time.Millisecond).WithMaxDelay(300 * time.Millisecond)

	assert.Equal(t, 100*time.Millisecond, policy.delayFor(0))
	assert.Equal(t, 200*time.Millisecond, policy.delayFor(1))
	assert.Equal(t, 300*time.Millisecond, policy.delayFor(2))
	assert.Equal(t, 300*time.Millisecond, policy.delayFor(5))
}

func TestPolicy_DelayFor_Jitter(t *testing.T) {
	policy := Jittered(3, 100*time.Millisecond)

	for range 20 {
		d := policy.delayFor(1)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, 200*time.Millisecond)
	}
}
