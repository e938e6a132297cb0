package config

import (
	"fmt"
	"net/url"
	"time"
)

// ProviderConfig describes the quote provider endpoints and the client-side
// limits applied to them.
type ProviderConfig struct {
	CookieURL          string        `yaml:"cookie_url"`           // Endpoint that issues the session cookie
	CrumbURL           string        `yaml:"crumb_url"`            // Endpoint that issues the anti-forgery crumb
	ChainURL           string        `yaml:"chain_url"`            // Option chain base URL, ticker is appended
	UserAgent          string        `yaml:"user_agent"`           // User agent for all requests
	TimeoutMS          int           `yaml:"timeout_ms"`           // Per-request timeout in milliseconds
	HandshakeTimeoutMS int           `yaml:"handshake_timeout_ms"` // Budget for the whole cookie and crumb handshake
	SessionTTLSecs     int           `yaml:"session_ttl_secs"`     // Credential freshness window
	RPS                float64       `yaml:"rps"`                  // Requests per second per host
	Burst              int           `yaml:"burst"`                // Burst capacity
	Circuit            CircuitConfig `yaml:"circuit"`              // Circuit breaker config
}

// CircuitConfig represents circuit breaker configuration
type CircuitConfig struct {
	FailureThreshold uint32 `yaml:"failure_threshold"`  // Consecutive failures to open circuit
	HalfOpenRequests uint32 `yaml:"half_open_requests"` // Probes allowed while half-open
	OpenTimeoutMS    int    `yaml:"open_timeout_ms"`    // Time spent open before probing
}

// DefaultProviderConfig targets the public Yahoo Finance endpoints.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		CookieURL:          "https://fc.yahoo.com",
		CrumbURL:           "https://query2.finance.yahoo.com/v1/test/getcrumb",
		ChainURL:           "https://query2.finance.yahoo.com/v7/finance/options",
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		TimeoutMS:          10000,
		HandshakeTimeoutMS: 3000,
		SessionTTLSecs:     600,
		RPS:                5,
		Burst:              5,
		Circuit: CircuitConfig{
			FailureThreshold: 8,
			HalfOpenRequests: 1,
			OpenTimeoutMS:    30000,
		},
	}
}

// Validate ensures a provider configuration is valid
func (p *ProviderConfig) Validate() error {
	for name, raw := range map[string]string{
		"cookie_url": p.CookieURL,
		"crumb_url":  p.CrumbURL,
		"chain_url":  p.ChainURL,
	} {
		if raw == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s is not an absolute URL: %q", name, raw)
		}
	}
	if p.UserAgent == "" {
		return fmt.Errorf("user_agent cannot be empty")
	}
	if p.TimeoutMS <= 0 {
		return fmt.Errorf("timeout_ms must be positive, got %d", p.TimeoutMS)
	}
	if p.HandshakeTimeoutMS <= 0 {
		return fmt.Errorf("handshake_timeout_ms must be positive, got %d", p.HandshakeTimeoutMS)
	}
	if p.SessionTTLSecs <= 0 {
		return fmt.Errorf("session_ttl_secs must be positive, got %d", p.SessionTTLSecs)
	}
	if p.RPS <= 0 {
		return fmt.Errorf("rps must be positive, got %v", p.RPS)
	}
	if p.Burst < 1 {
		return fmt.Errorf("burst must be at least 1, got %d", p.Burst)
	}
	if err := p.Circuit.Validate(); err != nil {
		return fmt.Errorf("circuit: %w", err)
	}
	return nil
}

// Validate ensures circuit breaker configuration is valid
func (c *CircuitConfig) Validate() error {
	if c.FailureThreshold == 0 {
		return fmt.Errorf("failure_threshold must be positive")
	}
	if c.HalfOpenRequests == 0 {
		return fmt.Errorf("half_open_requests must be positive")
	}
	if c.OpenTimeoutMS <= 0 {
		return fmt.Errorf("open_timeout_ms must be positive, got %d", c.OpenTimeoutMS)
	}
	return nil
}

// GetRequestTimeout returns the request timeout as a time.Duration
func (p *ProviderConfig) GetRequestTimeout() time.Duration {
	return time.Duration(p.TimeoutMS) * time.Millisecond
}

// GetHandshakeTimeout bounds one cookie and crumb handshake
func (p *ProviderConfig) GetHandshakeTimeout() time.Duration {
	return time.Duration(p.HandshakeTimeoutMS) * time.Millisecond
}

// GetSessionTTL returns the credential freshness window
func (p *ProviderConfig) GetSessionTTL() time.Duration {
	return time.Duration(p.SessionTTLSecs) * time.Second
}

// GetOpenTimeout returns how long the breaker stays open
func (c *CircuitConfig) GetOpenTimeout() time.Duration {
	return time.Duration(c.OpenTimeoutMS) * time.Millisecond
}
