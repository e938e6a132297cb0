package candidate

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/putscan/internal/domain"
	"github.com/sawpanic/putscan/internal/metrics"
	"github.com/sawpanic/putscan/internal/pricing"
)

var (
	expiry  = time.Date(2026, 10, 23, 0, 0, 0, 0, time.UTC)
	runDate = expiry.AddDate(0, 0, -7)
	f       = domain.Float
)

func put(strike, bid, ask float64) domain.OptionContract {
	return domain.OptionContract{
		ContractSymbol: "XYZ",
		Strike:         f(strike),
		Bid:            f(bid),
		Ask:            f(ask),
		Expiry:         expiry,
	}
}

func chainOf(spot float64, puts ...domain.OptionContract) *domain.Chain {
	return &domain.Chain{
		Ticker: "XYZ",
		Expiry: expiry,
		Puts:   puts,
		Quote:  domain.UnderlyingQuote{Ticker: "XYZ", Spot: spot},
	}
}

func TestBuild_AcceptedContract(t *testing.T) {
	p := put(90, 1.00, 1.20)
	p.Delta = f(-0.08)
	p.ImpliedVol = f(0.41)

	reg := metrics.New()
	got := NewBuilder(DefaultFilters(), reg).Build("XYZ", chainOf(100, p), runDate, expiry)
	require.Len(t, got, 1)
	c := got[0]

	assert.Equal(t, "XYZ", c.Ticker)
	assert.Equal(t, "2026-10-16", c.RunDate)
	assert.Equal(t, "2026-10-23", c.Expiry)
	assert.Equal(t, 7, c.DaysToExpiry)
	assert.InDelta(t, 1.10, c.Premium, 1e-12)
	assert.InDelta(t, 1.2222, c.ROI, 1e-4)
	require.NotNil(t, c.AnnualizedROI)
	assert.InDelta(t, 63.73, *c.AnnualizedROI, 0.01)
	require.NotNil(t, c.ProbabilityOfProfit)
	assert.InDelta(t, 92.0, *c.ProbabilityOfProfit, 1e-9)
	assert.InDelta(t, 0.9, c.Moneyness, 1e-12)
	assert.Equal(t, -0.08, *c.Delta)
	assert.InDelta(t, 41.0, *c.ImpliedVolatility, 1e-9)
	assert.Equal(t, 1.0, metrics.Value(reg.CandidatesKept))
}

func TestBuild_ZeroBidIsSkipped(t *testing.T) {
	p := put(90, 0, 1.20)
	p.Delta = f(-0.08)
	p.LastPrice = f(1.15)

	reg := metrics.New()
	got := NewBuilder(DefaultFilters(), reg).Build("XYZ", chainOf(100, p), runDate, expiry)
	assert.Empty(t, got)
	assert.Equal(t, 1.0, metrics.Value(reg.ContractsRejected.WithLabelValues(RejectZeroBid)))
}

func TestBuild_DeltaFallsBackToBlackScholes(t *testing.T) {
	exp := runDate.AddDate(0, 0, 10)
	p := domain.OptionContract{
		Strike:     f(49),
		Bid:        f(1.4),
		Ask:        f(1.6),
		ImpliedVol: f(0.40),
		Expiry:     exp,
	}
	b := NewBuilder(Filters{MinPOP: 0, MinMoneyness: 0.85}, nil)

	c, reason := b.evaluate("XYZ", 50, p, runDate, exp)
	require.Empty(t, reason)
	require.NotNil(t, c.Delta)

	want, ok := pricing.PutDelta(50, 49, 0.40, 10)
	require.True(t, ok)
	assert.Equal(t, want, *c.Delta)
	assert.InDelta(t, (1-math.Abs(want))*100, *c.ProbabilityOfProfit, 1e-12)

	// With the default 90% threshold this near-the-money put is rejected.
	_, reason = NewBuilder(DefaultFilters(), nil).evaluate("XYZ", 50, p, runDate, exp)
	assert.Equal(t, RejectPOP, reason)
}

func TestBuild_UnresolvedDeltaPassesPOPFilter(t *testing.T) {
	p := put(95, 0.50, 0.60)
	got := NewBuilder(DefaultFilters(), nil).Build("XYZ", chainOf(100, p), runDate, expiry)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Delta)
	assert.Nil(t, got[0].ProbabilityOfProfit)
	assert.Nil(t, got[0].ImpliedVolatility)
}

func TestEvaluate_Rejections(t *testing.T) {
	deep := put(80, 0.10, 0.20)
	deep.Delta = f(-0.02)

	risky := put(97, 2.0, 2.2)
	risky.Delta = f(-0.30)

	wrongExpiry := put(90, 1, 1.2)
	wrongExpiry.Expiry = expiry.AddDate(0, 0, 7)

	noStrike := put(90, 1, 1.2)
	noStrike.Strike = nil

	noPrices := domain.OptionContract{Strike: f(90), Expiry: expiry}

	cases := []struct {
		name     string
		contract domain.OptionContract
		want     string
	}{
		{"expiry mismatch", wrongExpiry, RejectExpiry},
		{"missing strike", noStrike, RejectStrike},
		{"at the money", put(100, 3, 3.2), RejectNotOTM},
		{"in the money", put(105, 6, 6.2), RejectNotOTM},
		{"no prices", noPrices, RejectNoPremium},
		{"pop below 90", risky, RejectPOP},
		{"too far below spot", deep, RejectMoneyness},
		{"exactly at moneyness floor", put(85, 0.3, 0.4), RejectMoneyness},
	}
	b := NewBuilder(DefaultFilters(), nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, reason := b.evaluate("XYZ", 100, tc.contract, runDate, expiry)
			assert.Equal(t, tc.want, reason)
		})
	}
}

func TestPremiumOf(t *testing.T) {
	cases := []struct {
		name string
		c    domain.OptionContract
		want float64
		ok   bool
	}{
		{"mid", domain.OptionContract{Bid: f(1), Ask: f(1.2)}, 1.1, true},
		{"bid only", domain.OptionContract{Bid: f(0.8)}, 0.8, true},
		{"ask only", domain.OptionContract{Ask: f(0.9)}, 0.9, true},
		{"last only", domain.OptionContract{LastPrice: f(0.7)}, 0.7, true},
		{"mid beats last", domain.OptionContract{Bid: f(1), Ask: f(2), LastPrice: f(9)}, 1.5, true},
		{"nothing", domain.OptionContract{}, 0, false},
		{"zero last", domain.OptionContract{LastPrice: f(0)}, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := premiumOf(tc.c)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.InDelta(t, tc.want, got, 1e-12)
			}
		})
	}
}

func TestBuild_ExpiryDayHasNoAnnualizedROI(t *testing.T) {
	p := put(95, 0.2, 0.3)
	got := NewBuilder(DefaultFilters(), nil).Build("XYZ", chainOf(100, p), expiry.Add(10*time.Hour), expiry)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].DaysToExpiry)
	assert.Nil(t, got[0].AnnualizedROI)
	assert.InDelta(t, 0.25/95*100, got[0].ROI, 1e-12)
}

func TestBuild_SurvivorsHoldInvariants(t *testing.T) {
	var puts []domain.OptionContract
	for strike := 60.0; strike <= 110; strike += 2.5 {
		p := put(strike, 0.05+(strike-60)/50, 0.10+(strike-60)/50)
		p.ImpliedVol = f(0.35)
		puts = append(puts, p)
	}
	puts = append(puts, put(90, 0, 0.5))

	got := NewBuilder(DefaultFilters(), nil).Build("XYZ", chainOf(100, puts...), runDate, expiry)
	require.NotEmpty(t, got)
	for _, c := range got {
		assert.Greater(t, c.Moneyness, 0.0)
		assert.Less(t, c.Moneyness, 1.0)
		assert.Greater(t, c.Premium, 0.0)
		if c.Delta != nil {
			assert.GreaterOrEqual(t, *c.Delta, -1.0)
			assert.LessOrEqual(t, *c.Delta, 0.0)
		}
		assert.NotNil(t, c.AnnualizedROI)
	}
}

func TestBuild_NilChain(t *testing.T) {
	assert.Nil(t, NewBuilder(DefaultFilters(), nil).Build("XYZ", nil, runDate, expiry))
}
