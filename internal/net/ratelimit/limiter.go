package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter paces outbound requests with one token bucket per host
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// NewLimiter creates a limiter allowing rps requests per second per host
// with the given burst capacity.
func NewLimiter(rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

func (l *Limiter) bucket(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.limiters[host]
	if !ok {
		b = rate.NewLimiter(rate.Limit(l.rps), l.burst)
		l.limiters[host] = b
	}
	return b
}

// allow reports whether a request to host may proceed right now
func (l *Limiter) allow(host string) bool {
	return l.bucket(host).Allow()
}

// Wait blocks until a request to host is allowed or ctx is done
func (l *Limiter) Wait(ctx context.Context, host string) error {
	return l.bucket(host).Wait(ctx)
}

// hosts returns the number of hosts seen so far
func (l *Limiter) hosts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
