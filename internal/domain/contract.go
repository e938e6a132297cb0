package domain

import "time"

// DateLayout is the calendar-date format used for run dates and expiries.
const DateLayout = "2006-01-02"

// OptionContract is a single put contract as returned by the quote provider,
// already normalized into Go types. Nil pointers mean the provider did not
// supply the field.
type OptionContract struct {
	ContractSymbol string
	Strike         *float64
	Bid            *float64
	Ask            *float64
	LastPrice      *float64
	ImpliedVol     *float64 // decimal fraction, e.g. 0.32
	Delta          *float64
	Expiry         time.Time // calendar date at 00:00 UTC
}

// UnderlyingQuote is the spot price resolved for one ticker.
type UnderlyingQuote struct {
	Ticker string
	Spot   float64
	Source string // which quote field the spot came from
}

// Chain is a put chain for one (ticker, expiry) pair together with the
// resolved underlying quote.
type Chain struct {
	Ticker string
	Expiry time.Time
	Puts   []OptionContract
	Quote  UnderlyingQuote
}

// Float returns a pointer to v. It keeps literal construction of nullable
// fields short in parsers and tests.
func Float(v float64) *float64 {
	return &v
}

// SameDate reports whether a and b fall on the same UTC calendar date.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
