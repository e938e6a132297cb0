// Package chain retrieves put chains for one scan run, handling session
// renewal and memoizing every (ticker, expiry) lookup.
package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/putscan/internal/domain"
	"github.com/sawpanic/putscan/internal/metrics"
	"github.com/sawpanic/putscan/internal/net/client"
	"github.com/sawpanic/putscan/internal/provider/yahoo"
)

// maxAttempts bounds the session-level retries: the first try plus one
// retry with a freshly acquired credential.
const maxAttempts = 2

// Source fetches a raw chain with an explicit credential
type Source interface {
	FetchChain(ctx context.Context, cred yahoo.Credential, ticker string, expiry time.Time) (*domain.Chain, error)
}

// Sessions hands out and revokes the shared provider credential
type Sessions interface {
	Acquire(ctx context.Context) (yahoo.Credential, error)
	Invalidate(stale yahoo.Credential)
}

// Fetcher resolves chains for a single run
type Fetcher struct {
	source   Source
	sessions Sessions
	cache    *Cache
	metrics  *metrics.Registry
}

// NewFetcher creates a fetcher backed by cache. A nil cache gets a fresh one.
func NewFetcher(source Source, sessions Sessions, cache *Cache, reg *metrics.Registry) *Fetcher {
	if cache == nil {
		cache = NewCache()
	}
	return &Fetcher{
		source:   source,
		sessions: sessions,
		cache:    cache,
		metrics:  reg,
	}
}

// Cache exposes the run cache
func (f *Fetcher) Cache() *Cache {
	return f.cache
}

// Fetch returns the put chain for ticker at expiry, or nil when it could not
// be obtained. Failures are logged and memoized; they never propagate.
func (f *Fetcher) Fetch(ctx context.Context, ticker string, expiry time.Time) *domain.Chain {
	if chain, ok := f.cache.Get(ticker, expiry); ok {
		f.metrics.ObserveChainFetch(metrics.FetchCached)
		return chain
	}

	chain, err := f.fetch(ctx, ticker, expiry)
	if err != nil {
		log.Warn().
			Err(err).
			Str("ticker", ticker).
			Str("expiry", expiry.Format(domain.DateLayout)).
			Bool("circuit_open", CircuitOpen(err)).
			Msg("chain unavailable")
		f.cache.Put(ticker, expiry, nil)
		f.metrics.ObserveChainFetch(metrics.FetchUnavailable)
		return nil
	}

	log.Debug().
		Str("ticker", ticker).
		Int("puts", len(chain.Puts)).
		Float64("spot", chain.Quote.Spot).
		Msg("chain fetched")
	f.cache.Put(ticker, expiry, chain)
	f.metrics.ObserveChainFetch(metrics.FetchOK)
	return chain
}

// CircuitOpen reports whether err was caused by the provider circuit breaker
// refusing the request.
func CircuitOpen(err error) bool {
	var perr *client.ProviderError
	return errors.As(err, &perr) && perr.IsCircuitOpen()
}

func (f *Fetcher) fetch(ctx context.Context, ticker string, expiry time.Time) (*domain.Chain, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		cred, err := f.sessions.Acquire(ctx)
		if err != nil {
			lastErr = fmt.Errorf("acquiring session: %w", err)
			if CircuitOpen(err) {
				return nil, lastErr
			}
			continue
		}

		chain, err := f.source.FetchChain(ctx, cred, ticker, expiry)
		if err == nil {
			return chain, nil
		}
		lastErr = err
		if !errors.Is(err, yahoo.ErrUnauthorized) {
			return nil, err
		}

		f.sessions.Invalidate(cred)
		if attempt < maxAttempts {
			f.metrics.ObserveAuthRetry()
		}
	}
	return nil, lastErr
}
