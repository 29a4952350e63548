package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces requests to one catalog API. On top of the token bucket it
// carries a backoff window: after a rate-limit signal every Wait blocks until
// the window has passed.
type Limiter struct {
	limiter *rate.Limiter
	name    string

	mu          sync.Mutex
	pausedUntil time.Time
}

// New creates a new rate limiter with the given requests per second.
// The burst size equals the rate, allowing short bursts up to the rate limit.
// A non-positive rate disables pacing.
func New(name string, requestsPerSecond int) *Limiter {
	return NewWithBurst(name, requestsPerSecond, requestsPerSecond)
}

// NewWithBurst creates a new rate limiter with custom burst size.
func NewWithBurst(name string, requestsPerSecond, burst int) *Limiter {
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(limit, burst),
		name:    name,
	}
}

// Wait blocks until the backoff window (if any) has passed and the token
// bucket allows a request. Returns an error if the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if d := l.pauseRemaining(); d > 0 {
		if err := Sleep(ctx, d); err != nil {
			return fmt.Errorf("backoff wait for %s: %w", l.name, err)
		}
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", l.name, err)
	}
	return nil
}

// Backoff extends the pause window to at least d from now.
func (l *Limiter) Backoff(d time.Duration) {
	if d <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	until := time.Now().Add(d)
	if until.After(l.pausedUntil) {
		l.pausedUntil = until
		slog.Warn("Backing off after rate limit", "source", l.name, "duration", d)
	}
}

// Paused reports whether a backoff window is currently active.
func (l *Limiter) Paused() bool {
	return l.pauseRemaining() > 0
}

// Name returns the name of this rate limiter.
func (l *Limiter) Name() string {
	return l.name
}

func (l *Limiter) pauseRemaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return time.Until(l.pausedUntil)
}

// Sleep waits for d or until ctx is done, whichever comes first.
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
