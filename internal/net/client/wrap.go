package client

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/putscan/internal/config"
	"github.com/sawpanic/putscan/internal/metrics"
	"github.com/sawpanic/putscan/internal/net/ratelimit"
)

var errServerStatus = errors.New("server error status")

// Transport wraps an http.RoundTripper with per-host rate limiting and a
// per-host circuit breaker. Transport errors and 5xx responses count as
// breaker failures; 4xx responses are returned untouched because they carry
// meaning for the caller (401 in particular).
type Transport struct {
	base      http.RoundTripper
	limiter   *ratelimit.Limiter
	circuit   config.CircuitConfig
	userAgent string
	metrics   *metrics.Registry

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewTransport builds the wrapper. A nil base uses http.DefaultTransport.
func NewTransport(cfg config.ProviderConfig, base http.RoundTripper, reg *metrics.Registry) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:      base,
		limiter:   ratelimit.NewLimiter(cfg.RPS, cfg.Burst),
		circuit:   cfg.Circuit,
		userAgent: cfg.UserAgent,
		metrics:   reg,
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
	}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	host := req.URL.Host
	if req.Header.Get("User-Agent") == "" && t.userAgent != "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}

	if err := t.limiter.Wait(req.Context(), host); err != nil {
		return nil, &ProviderError{Host: host, Type: "rate_limit", Err: err}
	}

	result, err := t.breaker(host).Execute(func() (interface{}, error) {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return resp, errServerStatus
		}
		return resp, nil
	})

	resp, _ := result.(*http.Response)
	switch {
	case err == nil:
		return resp, nil
	case errors.Is(err, errServerStatus):
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, &ProviderError{Host: host, Type: "circuit", Err: err}
	default:
		return nil, &ProviderError{Host: host, Type: "transport", Err: err}
	}
}

func (t *Transport) breaker(host string) *gobreaker.CircuitBreaker {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cb, ok := t.breakers[host]; ok {
		return cb
	}

	threshold := t.circuit.FailureThreshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: t.circuit.HalfOpenRequests,
		Interval:    time.Minute,
		Timeout:     t.circuit.GetOpenTimeout(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("host", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
			t.metrics.SetBreakerState(name, stateValue(to))
		},
	})
	t.breakers[host] = cb
	t.metrics.SetBreakerState(host, stateValue(gobreaker.StateClosed))
	return cb
}

// state reports the breaker state for host, closed if never used
func (t *Transport) state(host string) gobreaker.State {
	t.mu.Lock()
	cb, ok := t.breakers[host]
	t.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// ProviderError represents a request the transport refused or could not send
type ProviderError struct {
	Host string
	Type string // "rate_limit", "circuit", "transport"
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s %s error: %v", e.Host, e.Type, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsCircuitOpen returns true if the error is due to circuit breaker being open
func (e *ProviderError) IsCircuitOpen() bool {
	return e.Type == "circuit"
}
