package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when a call is rejected because the circuit is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// Breaker opens after Threshold consecutive failures and rejects calls until
// ResetTimeout has elapsed; the next call is then let through as a probe.
type Breaker struct {
	name         string
	threshold    int
	resetTimeout time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	now      func() time.Time
}

// NewBreaker creates a closed breaker. A threshold <= 0 disables it.
func NewBreaker(name string, threshold int, resetTimeout time.Duration) *Breaker {
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &Breaker{name: name, threshold: threshold, resetTimeout: resetTimeout, now: time.Now}
}

// Open reports whether calls are currently rejected.
func (b *Breaker) Open() bool {
	if b == nil || b.threshold <= 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures >= b.threshold && b.now().Sub(b.openedAt) < b.resetTimeout
}

// Record updates the failure count with the outcome of a call.
func (b *Breaker) Record(err error) {
	if b == nil || b.threshold <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		if b.failures == b.threshold {
			zap.L().Warn("circuit opened", zap.String("service", b.name), zap.Int("failures", b.failures))
		}
		b.openedAt = b.now()
	}
}

// Execute runs fn unless the circuit is open.
func Execute[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if b.Open() {
		return zero, eris.Wrapf(ErrCircuitOpen, "resilience: %s", b.name)
	}
	val, err := fn(ctx)
	b.Record(err)
	return val, err
}
