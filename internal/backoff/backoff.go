// Package backoff retries AWS calls that fail with retryable error codes, sleeping an
// exponential or jittered delay between attempts. It sits on top of the SDK's own
// retryer for the codes the SDK gives up on, mirroring the extra throttle-retry layer
// the rate-limited clients carry.
package backoff

import (
	"context"
	"math/rand"
	"slices"
	"time"

	"github.com/stackmill/awsmod/internal/awserr"
)

type Policy struct {
	// Retries is the number of attempts after the first call.
	Retries int
	// Delay is the base delay before the first retry.
	Delay time.Duration
	// MaxDelay caps the computed delay. Zero means no cap.
	MaxDelay time.Duration
	// Jitter picks a random delay in [0, computed) instead of the full value.
	Jitter bool
	// Codes are error codes to retry in addition to throttling errors.
	Codes []string

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Exponential doubles the delay on every attempt.
func Exponential(retries int, delay time.Duration) Policy {
	return Policy{Retries: retries, Delay: delay}
}

// Jittered doubles the delay on every attempt and sleeps a random fraction of it.
func Jittered(retries int, delay time.Duration) Policy {
	return Policy{Retries: retries, Delay: delay, Jitter: true}
}

func (p Policy) WithCodes(codes ...string) Policy {
	p.Codes = append(slices.Clone(p.Codes), codes...)
	return p
}

func (p Policy) WithMaxDelay(d time.Duration) Policy {
	p.MaxDelay = d
	return p
}

// Do runs op, retrying on throttling errors and the policy's extra codes until the
// retry budget or the context runs out. The last error is returned as-is.
func (p Policy) Do(ctx context.Context, op func() error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if attempt >= p.Retries || !p.retryable(lastErr) {
			return lastErr
		}
		if err := sleep(ctx, p.delayFor(attempt)); err != nil {
			return lastErr
		}
	}
}

func (p Policy) retryable(err error) bool {
	if awserr.IsThrottle(err) {
		return true
	}
	return slices.Contains(p.Codes, awserr.Code(err))
}

func (p Policy) delayFor(attempt int) time.Duration {
	d := p.Delay << uint(attempt)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter && d > 0 {
		d = time.Duration(rand.Int63n(int64(d)))
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
