// Package candidate turns one ticker's put chain into scored cash-secured-put
// candidates.
package candidate

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/putscan/internal/domain"
	"github.com/sawpanic/putscan/internal/metrics"
	"github.com/sawpanic/putscan/internal/pricing"
)

// Reasons a contract is dropped
const (
	RejectExpiry    = "expiry_mismatch"
	RejectStrike    = "strike_missing"
	RejectNotOTM    = "not_otm"
	RejectNoPremium = "no_premium"
	RejectZeroBid   = "zero_bid"
	RejectPOP       = "pop_below_min"
	RejectMoneyness = "moneyness_below_min"
)

// Filters are the acceptance thresholds
type Filters struct {
	MinPOP       float64 // percent, inclusive
	MinMoneyness float64 // strike/spot, exclusive
}

// DefaultFilters returns the standard thresholds: POP >= 90% and
// strike/spot > 0.85.
func DefaultFilters() Filters {
	return Filters{MinPOP: 90, MinMoneyness: 0.85}
}

// Builder scores put contracts and keeps those passing Filters
type Builder struct {
	filters Filters
	metrics *metrics.Registry
}

// NewBuilder creates a builder
func NewBuilder(filters Filters, reg *metrics.Registry) *Builder {
	return &Builder{filters: filters, metrics: reg}
}

// Build returns the accepted candidates of chain in contract order.
func (b *Builder) Build(ticker string, chain *domain.Chain, runDate, expiry time.Time) []domain.Candidate {
	if chain == nil || !(chain.Quote.Spot > 0) {
		return nil
	}

	var out []domain.Candidate
	for _, contract := range chain.Puts {
		c, reason := b.evaluate(ticker, chain.Quote.Spot, contract, runDate, expiry)
		if reason != "" {
			b.metrics.ObserveRejection(reason)
			log.Trace().
				Str("ticker", ticker).
				Str("contract", contract.ContractSymbol).
				Str("reason", reason).
				Msg("contract rejected")
			continue
		}
		b.metrics.ObserveCandidate()
		out = append(out, c)
	}
	return out
}

// evaluate scores one contract. A non-empty reason means it was rejected.
func (b *Builder) evaluate(ticker string, spot float64, contract domain.OptionContract, runDate, expiry time.Time) (domain.Candidate, string) {
	if !domain.SameDate(contract.Expiry, expiry) {
		return domain.Candidate{}, RejectExpiry
	}
	if contract.Strike == nil {
		return domain.Candidate{}, RejectStrike
	}
	strike := *contract.Strike
	if !(strike > 0) || strike >= spot {
		return domain.Candidate{}, RejectNotOTM
	}

	premium, ok := premiumOf(contract)
	if !ok {
		return domain.Candidate{}, RejectNoPremium
	}
	if contract.Bid == nil || !(*contract.Bid > 0) {
		return domain.Candidate{}, RejectZeroBid
	}

	dte := domain.DaysBetween(runDate, expiry)
	if dte < 0 {
		dte = 0
	}

	delta := contract.Delta
	if delta == nil && contract.ImpliedVol != nil {
		if d, ok := pricing.PutDelta(spot, strike, *contract.ImpliedVol, dte); ok {
			delta = domain.Float(d)
		}
	}

	var pop *float64
	if delta != nil {
		pop = domain.Float((1 - math.Abs(*delta)) * 100)
	}

	var ivPct *float64
	if contract.ImpliedVol != nil {
		ivPct = domain.Float(*contract.ImpliedVol * 100)
	}

	yield := premium / strike
	var annualized *float64
	if dte > 0 {
		annualized = domain.Float(yield * (365 / float64(dte)) * 100)
	}
	moneyness := strike / spot

	// An unresolved POP does not disqualify; moneyness always must pass.
	if pop != nil && *pop < b.filters.MinPOP {
		return domain.Candidate{}, RejectPOP
	}
	if !(moneyness > b.filters.MinMoneyness) {
		return domain.Candidate{}, RejectMoneyness
	}

	return domain.Candidate{
		Ticker:              ticker,
		RunDate:             runDate.Format(domain.DateLayout),
		Spot:                spot,
		Expiry:              expiry.Format(domain.DateLayout),
		DaysToExpiry:        dte,
		Strike:              strike,
		Bid:                 contract.Bid,
		Ask:                 contract.Ask,
		Premium:             premium,
		ImpliedVolatility:   ivPct,
		Delta:               delta,
		ProbabilityOfProfit: pop,
		Moneyness:           moneyness,
		ROI:                 yield * 100,
		AnnualizedROI:       annualized,
	}, ""
}

// premiumOf prefers the bid/ask midpoint, then whichever side is quoted,
// then the last trade.
func premiumOf(c domain.OptionContract) (float64, bool) {
	var p float64
	switch {
	case c.Bid != nil && c.Ask != nil:
		p = (*c.Bid + *c.Ask) / 2
	case c.Bid != nil:
		p = *c.Bid
	case c.Ask != nil:
		p = *c.Ask
	case c.LastPrice != nil:
		p = *c.LastPrice
	default:
		return 0, false
	}
	return p, p > 0
}
