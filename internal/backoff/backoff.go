// Package backoff computes retry delays for transient failures.
package backoff

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Policy describes an exponential backoff schedule.
type Policy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Jitter is the +/- fraction applied to each delay, clamped to [0, 1].
	Jitter float64
}

// DefaultPolicy is used when a zero Policy is supplied.
var DefaultPolicy = Policy{
	BaseDelay: 50 * time.Millisecond,
	MaxDelay:  time.Second,
	Jitter:    0.2,
}

// Backoff implements exponential backoff with optional jitter. It is safe for
// concurrent use.
type Backoff struct {
	policy Policy

	mu   sync.Mutex
	rand *rand.Rand
}

// New returns a Backoff for the policy, filling unset durations from DefaultPolicy.
func New(p Policy) *Backoff {
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultPolicy.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultPolicy.MaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return &Backoff{
		policy: p,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Policy returns the effective policy.
func (b *Backoff) Policy() Policy {
	return b.policy
}

// ForAttempt returns the delay before retrying the given attempt (0-indexed).
func (b *Backoff) ForAttempt(attempt int) time.Duration {
	if attempt <= 0 {
		return b.addJitter(b.policy.BaseDelay)
	}
	if attempt > 30 {
		return b.addJitter(b.policy.MaxDelay)
	}

	delay := time.Duration(float64(b.policy.BaseDelay) * float64(uint(1)<<uint(attempt)))
	if delay <= 0 || delay > b.policy.MaxDelay {
		delay = b.policy.MaxDelay
	}
	return b.addJitter(delay)
}

func (b *Backoff) addJitter(delay time.Duration) time.Duration {
	if b.policy.Jitter == 0 || delay <= 0 {
		return delay
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	factor := 1 + (b.rand.Float64()*2-1)*math.Min(b.policy.Jitter, 1)
	if factor < 0 {
		factor = 0
	}
	return time.Duration(float64(delay) * factor)
}

// Retry calls fn up to attempts times, sleeping between failures. It returns
// nil on the first success, otherwise the last error or the context error.
func (b *Backoff) Retry(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		if serr := Sleep(ctx, b.ForAttempt(attempt)); serr != nil {
			return serr
		}
	}
	return err
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
