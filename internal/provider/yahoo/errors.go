package yahoo

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCookie is returned when the cookie endpoint sets no cookie
	ErrNoCookie = errors.New("provider issued no session cookie")
	// ErrEmptyCrumb is returned when the crumb endpoint answers with an empty body
	ErrEmptyCrumb = errors.New("provider issued an empty crumb")
	// ErrUnauthorized is returned when the provider rejects the session (HTTP 401)
	ErrUnauthorized = errors.New("provider rejected session")
	// ErrNoResult is returned when a chain response carries no result block
	ErrNoResult = errors.New("chain response has no result")
	// ErrNoOptionGroup is returned when a chain result has no option group
	ErrNoOptionGroup = errors.New("chain result has no option group")
	// ErrNoSpot is returned when no quote field yields a usable spot price
	ErrNoSpot = errors.New("no usable spot price in quote")
)

// ProviderError describes a failed provider call
type ProviderError struct {
	Op         string `json:"op"` // "cookie", "crumb", "chain"
	Ticker     string `json:"ticker,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Err        error  `json:"-"`
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Ticker != "":
		return fmt.Sprintf("yahoo %s %s (HTTP %d): %v", e.Op, e.Ticker, e.StatusCode, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("yahoo %s (HTTP %d): %v", e.Op, e.StatusCode, e.Err)
	case e.Ticker != "":
		return fmt.Sprintf("yahoo %s %s: %v", e.Op, e.Ticker, e.Err)
	default:
		return fmt.Sprintf("yahoo %s: %v", e.Op, e.Err)
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
