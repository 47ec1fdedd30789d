package agent

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultConcurrentLimit bounds how many LLM completion requests may be
// in flight across a provider at once. Ported from original_source's
// DEFAULT_CONCURRENT_LIMIT.
const DefaultConcurrentLimit = 3

// concurrencyPollInterval is how often Acquire rechecks the limiter while
// waiting for a free permit.
const concurrencyPollInterval = 10 * time.Millisecond

// ConcurrencyLimiter bounds the number of simultaneous in-flight requests
// using a single atomic counter rather than a channel-backed semaphore, so
// a permit has no buffer to size and nothing to leak if a stream is
// abandoned without a clean shutdown. Grounded on original_source's
// ConcurrencyLimiter (`original_source/crates/agent/src/llm.rs`), which
// notes a semaphore has lifetime issues across a long-lived stream.
type ConcurrencyLimiter struct {
	current atomic.Int64
	max     int64
}

// NewConcurrencyLimiter creates a limiter allowing up to max simultaneous
// permits. max <= 0 falls back to DefaultConcurrentLimit.
func NewConcurrencyLimiter(max int) *ConcurrencyLimiter {
	if max <= 0 {
		max = DefaultConcurrentLimit
	}
	return &ConcurrencyLimiter{max: int64(max)}
}

// TryAcquire attempts to take a permit without blocking. ok is false if the
// limiter is already at capacity.
func (l *ConcurrencyLimiter) TryAcquire() (permit *ConcurrencyPermit, ok bool) {
	for {
		current := l.current.Load()
		if current >= l.max {
			return nil, false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return &ConcurrencyPermit{limiter: l}, true
		}
	}
}

// Acquire blocks until a permit is available or ctx is cancelled.
func (l *ConcurrencyLimiter) Acquire(ctx context.Context) (*ConcurrencyPermit, error) {
	if permit, ok := l.TryAcquire(); ok {
		return permit, nil
	}

	ticker := time.NewTicker(concurrencyPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			if permit, ok := l.TryAcquire(); ok {
				return permit, nil
			}
		}
	}
}

// InUse reports the number of permits currently held.
func (l *ConcurrencyLimiter) InUse() int {
	return int(l.current.Load())
}

// ConcurrencyPermit represents one slot taken from a ConcurrencyLimiter.
// Release must be called exactly once, typically via defer; there is no
// finalizer, unlike the original's Drop-based release.
type ConcurrencyPermit struct {
	limiter  *ConcurrencyLimiter
	released atomic.Bool
}

// Release returns the permit to its limiter. Calling Release more than once
// is a no-op.
func (p *ConcurrencyPermit) Release() {
	if p == nil {
		return
	}
	if p.released.CompareAndSwap(false, true) {
		p.limiter.current.Add(-1)
	}
}
