// Package scan drives a full put scan over a ticker universe: batched chain
// retrieval, candidate building, best-per-ticker reduction and ranking.
package scan

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/putscan/internal/candidate"
	"github.com/sawpanic/putscan/internal/chain"
	"github.com/sawpanic/putscan/internal/config"
	"github.com/sawpanic/putscan/internal/domain"
	plog "github.com/sawpanic/putscan/internal/log"
	"github.com/sawpanic/putscan/internal/metrics"
)

// Ticker failure reasons
const (
	FailUnavailable = "unavailable"
	FailPanic       = "panic"
)

// Request selects the tickers of one scan
type Request struct {
	Tickers  []string
	Limit    int  // 0 uses the configured limit
	Explicit bool // caller named the tickers; no truncation
}

// Report summarises a finished scan
type Report struct {
	RunID       string        `json:"runId"`
	RunDate     string        `json:"runDate"`
	Expiry      string        `json:"expiry"`
	Tickers     int           `json:"tickers"`
	Chains      int           `json:"chains"`
	Unavailable int           `json:"unavailable"`
	Failed      int           `json:"failed"`
	Contracts   int           `json:"contracts"`
	Candidates  int           `json:"candidates"`
	Cancelled   bool          `json:"cancelled"`
	Duration    time.Duration `json:"duration"`
}

// Orchestrator runs scans. It is safe to call Scan concurrently; each call
// gets its own chain cache while sharing the provider session.
type Orchestrator struct {
	source   chain.Source
	sessions chain.Sessions
	builder  *candidate.Builder
	cfg      config.ScanConfig
	metrics  *metrics.Registry
	progress bool
	now      func() time.Time
}

// Option customises an Orchestrator
type Option func(*Orchestrator)

// WithProgress logs a progress event after every batch.
func WithProgress() Option {
	return func(o *Orchestrator) { o.progress = true }
}

// WithClock overrides the wall clock used to pick the run date.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator
func New(source chain.Source, sessions chain.Sessions, builder *candidate.Builder, cfg config.ScanConfig, reg *metrics.Registry, opts ...Option) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	o := &Orchestrator{
		source:   source,
		sessions: sessions,
		builder:  builder,
		cfg:      cfg,
		metrics:  reg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type tickerResult struct {
	ticker      string
	candidates  []domain.Candidate
	contracts   int
	unavailable bool
	err         error
}

// Scan fetches, scores and ranks every ticker in req. Per-ticker failures
// are logged and counted but never abort the run. A cancelled context stops
// further batches from starting; whatever finished is still ranked.
func (o *Orchestrator) Scan(ctx context.Context, req Request) ([]domain.Candidate, Report) {
	start := o.now()
	runDate := domain.Date(start)
	expiry := NextWeeklyExpiry(start)

	report := Report{
		RunID:   uuid.NewString(),
		RunDate: runDate.Format(domain.DateLayout),
		Expiry:  expiry.Format(domain.DateLayout),
		Tickers: len(req.Tickers),
	}
	logger := log.With().Str("run_id", report.RunID).Logger()
	logger.Info().
		Int("tickers", len(req.Tickers)).
		Str("expiry", report.Expiry).
		Int("batch_size", o.cfg.BatchSize).
		Msg("scan started")

	fetcher := chain.NewFetcher(o.source, o.sessions, chain.NewCache(), o.metrics)
	batches := split(req.Tickers, o.cfg.BatchSize)

	var progress *plog.Progress
	if o.progress {
		progress = plog.NewProgress("scan", len(batches))
	}

	var all []domain.Candidate
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			logger.Warn().Err(err).Int("batch", i).Msg("scan cancelled")
			report.Cancelled = true
			break
		}

		for _, res := range o.runBatch(ctx, fetcher, batch, runDate, expiry) {
			report.Contracts += res.contracts
			switch {
			case res.err != nil:
				report.Failed++
				o.metrics.ObserveTickerFailure(FailPanic)
				logger.Error().Err(res.err).Str("ticker", res.ticker).Msg("ticker failed")
			case res.unavailable:
				o.metrics.ObserveTickerFailure(FailUnavailable)
			default:
				all = append(all, res.candidates...)
			}
		}

		if progress != nil {
			progress.Update(i + 1)
		}
	}
	if progress != nil {
		progress.Finish()
	}

	cache := fetcher.Cache()
	report.Unavailable = cache.Unavailable()
	report.Chains = cache.Len() - report.Unavailable

	ranked := domain.BestPerTicker(all)
	domain.SortByAnnualizedROI(ranked)

	limit := req.Limit
	if limit <= 0 {
		limit = o.cfg.Limit
	}
	if !req.Explicit && limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	report.Candidates = len(ranked)
	report.Duration = o.now().Sub(start)
	o.metrics.ObserveScan(report.Duration.Seconds())

	logger.Info().
		Int("chains", report.Chains).
		Int("unavailable", report.Unavailable).
		Int("failed", report.Failed).
		Int("candidates", report.Candidates).
		Dur("duration", report.Duration).
		Msg("scan completed")
	return ranked, report
}

// runBatch scans every ticker of batch concurrently and waits for all of
// them. Results keep the order of batch.
func (o *Orchestrator) runBatch(ctx context.Context, fetcher *chain.Fetcher, batch []string, runDate, expiry time.Time) []tickerResult {
	results := make([]tickerResult, len(batch))
	var wg sync.WaitGroup
	for i, ticker := range batch {
		wg.Add(1)
		go func(i int, ticker string) {
			defer wg.Done()
			results[i] = o.scanTicker(ctx, fetcher, ticker, runDate, expiry)
		}(i, ticker)
	}
	wg.Wait()
	return results
}

func (o *Orchestrator) scanTicker(ctx context.Context, fetcher *chain.Fetcher, ticker string, runDate, expiry time.Time) (res tickerResult) {
	res.ticker = ticker
	defer func() {
		if r := recover(); r != nil {
			log.Debug().Str("ticker", ticker).Bytes("stack", debug.Stack()).Msg("recovered panic")
			res.candidates = nil
			res.err = fmt.Errorf("panic scanning %s: %v", ticker, r)
		}
	}()

	ch := fetcher.Fetch(ctx, ticker, expiry)
	if ch == nil {
		res.unavailable = true
		return res
	}
	res.contracts = len(ch.Puts)
	res.candidates = o.builder.Build(ticker, ch, runDate, expiry)
	return res
}

func split(tickers []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(tickers); start += size {
		end := start + size
		if end > len(tickers) {
			end = len(tickers)
		}
		out = append(out, tickers[start:end])
	}
	return out
}
