package yahoo

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sawpanic/putscan/internal/domain"
	"github.com/sawpanic/putscan/internal/pricing"
)

// looseFloat accepts the shapes numbers arrive in from the provider: JSON
// numbers, numeric strings, {"raw": n, "fmt": "..."} objects and null.
// Anything unparseable or non-finite is left unset.
type looseFloat struct {
	v  float64
	ok bool
}

func (f *looseFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	*f = looseFloat{}
	switch {
	case s == "" || s == "null":
		return nil
	case s[0] == '{':
		var obj struct {
			Raw looseFloat `json:"raw"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return nil
		}
		*f = obj.Raw
		return nil
	case s[0] == '"':
		unq, err := strconv.Unquote(s)
		if err != nil {
			return nil
		}
		s = strings.TrimSpace(unq)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	*f = looseFloat{v: v, ok: true}
	return nil
}

func (f looseFloat) ptr() *float64 {
	if !f.ok {
		return nil
	}
	return domain.Float(f.v)
}

type chainResponse struct {
	OptionChain struct {
		Result []chainResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"optionChain"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chainResult struct {
	UnderlyingSymbol string        `json:"underlyingSymbol"`
	Quote            rawQuote      `json:"quote"`
	Options          []optionGroup `json:"options"`
}

type rawQuote struct {
	RegularMarketPrice         looseFloat `json:"regularMarketPrice"`
	Bid                        looseFloat `json:"bid"`
	Ask                        looseFloat `json:"ask"`
	RegularMarketPreviousClose looseFloat `json:"regularMarketPreviousClose"`
}

type optionGroup struct {
	ExpirationDate looseFloat    `json:"expirationDate"`
	Puts           []rawContract `json:"puts"`
}

type rawContract struct {
	ContractSymbol    string     `json:"contractSymbol"`
	Strike            looseFloat `json:"strike"`
	Bid               looseFloat `json:"bid"`
	Ask               looseFloat `json:"ask"`
	LastPrice         looseFloat `json:"lastPrice"`
	ImpliedVolatility looseFloat `json:"impliedVolatility"`
	Delta             looseFloat `json:"delta"`
	Expiration        looseFloat `json:"expiration"`
}

// spotPreference lists the quote fields tried, in order, for the spot price.
var spotPreference = []struct {
	name string
	get  func(rawQuote) looseFloat
}{
	{"regularMarketPrice", func(q rawQuote) looseFloat { return q.RegularMarketPrice }},
	{"bid", func(q rawQuote) looseFloat { return q.Bid }},
	{"ask", func(q rawQuote) looseFloat { return q.Ask }},
	{"regularMarketPreviousClose", func(q rawQuote) looseFloat { return q.RegularMarketPreviousClose }},
}

// Unit and range rules applied to every contract before it leaves this
// package:
//   - strike must be > 0, otherwise it is treated as missing
//   - bid, ask and last must be >= 0, otherwise missing
//   - implied volatility above 3 is a percentage and is divided by 100
//   - delta with magnitude <= 1 is reported as a put delta (-|delta|);
//     anything larger is discarded so the Black-Scholes fallback runs
func normalizeContract(raw rawContract, groupExpiry time.Time) domain.OptionContract {
	c := domain.OptionContract{
		ContractSymbol: raw.ContractSymbol,
		Expiry:         groupExpiry,
	}
	if raw.Strike.ok && raw.Strike.v > 0 {
		c.Strike = domain.Float(raw.Strike.v)
	}
	c.Bid = nonNegative(raw.Bid)
	c.Ask = nonNegative(raw.Ask)
	c.LastPrice = nonNegative(raw.LastPrice)
	if raw.ImpliedVolatility.ok {
		c.ImpliedVol = domain.Float(pricing.NormalizeIV(raw.ImpliedVolatility.v))
	}
	if raw.Delta.ok && math.Abs(raw.Delta.v) <= 1 {
		c.Delta = domain.Float(-math.Abs(raw.Delta.v))
	}
	if raw.Expiration.ok {
		c.Expiry = unixDate(raw.Expiration.v)
	}
	return c
}

func nonNegative(f looseFloat) *float64 {
	if !f.ok || f.v < 0 {
		return nil
	}
	return domain.Float(f.v)
}

func unixDate(sec float64) time.Time {
	t := time.Unix(int64(sec), 0).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// resolveSpot returns the first finite positive value in spotPreference order.
func resolveSpot(q rawQuote) (float64, string, bool) {
	for _, p := range spotPreference {
		f := p.get(q)
		if f.ok && f.v > 0 {
			return f.v, p.name, true
		}
	}
	return 0, "", false
}

// ParseChain turns a raw option chain body into a domain.Chain holding the
// puts of the first option group.
func ParseChain(ticker string, expiry time.Time, body []byte) (*domain.Chain, error) {
	var resp chainResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding chain: %w", err)
	}
	if e := resp.OptionChain.Error; e != nil && (e.Code != "" || e.Description != "") {
		return nil, fmt.Errorf("%w: %s %s", ErrNoResult, e.Code, e.Description)
	}
	if len(resp.OptionChain.Result) == 0 {
		return nil, ErrNoResult
	}

	result := resp.OptionChain.Result[0]
	if len(result.Options) == 0 {
		return nil, ErrNoOptionGroup
	}

	spot, source, ok := resolveSpot(result.Quote)
	if !ok {
		return nil, ErrNoSpot
	}

	group := result.Options[0]
	groupExpiry := expiry
	if group.ExpirationDate.ok {
		groupExpiry = unixDate(group.ExpirationDate.v)
	}

	puts := make([]domain.OptionContract, 0, len(group.Puts))
	for _, raw := range group.Puts {
		puts = append(puts, normalizeContract(raw, groupExpiry))
	}

	return &domain.Chain{
		Ticker: ticker,
		Expiry: expiry,
		Puts:   puts,
		Quote: domain.UnderlyingQuote{
			Ticker: ticker,
			Spot:   spot,
			Source: source,
		},
	}, nil
}
