package yahoo

import (
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fridayExpiry = time.Date(2026, 10, 23, 0, 0, 0, 0, time.UTC)

func TestLooseFloat(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{`1.25`, 1.25, true},
		{`"2.5"`, 2.5, true},
		{`" 3 "`, 3, true},
		{`{"raw": 4.5, "fmt": "4.50"}`, 4.5, true},
		{`null`, 0, false},
		{`"n/a"`, 0, false},
		{`"NaN"`, 0, false},
		{`{}`, 0, false},
		{`true`, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			var f looseFloat
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &f))
			assert.Equal(t, tc.ok, f.ok)
			if tc.ok {
				assert.Equal(t, tc.want, f.v)
			}
		})
	}
}

func TestParseChain_Fixture(t *testing.T) {
	body, err := os.ReadFile("testdata/chain_xyz.json")
	require.NoError(t, err)

	chain, err := ParseChain("XYZ", fridayExpiry, body)
	require.NoError(t, err)

	assert.Equal(t, "XYZ", chain.Ticker)
	assert.Equal(t, 100.0, chain.Quote.Spot)
	assert.Equal(t, "regularMarketPrice", chain.Quote.Source)
	require.Len(t, chain.Puts, 3)

	p90 := chain.Puts[0]
	require.NotNil(t, p90.Strike)
	assert.Equal(t, 90.0, *p90.Strike)
	assert.Equal(t, 1.0, *p90.Bid)
	assert.Equal(t, 1.2, *p90.Ask)
	assert.Equal(t, 0.41, *p90.ImpliedVol)
	assert.Nil(t, p90.Delta)
	assert.True(t, p90.Expiry.Equal(fridayExpiry))

	p95 := chain.Puts[1]
	assert.Equal(t, 95.0, *p95.Strike)
	assert.Equal(t, 2.1, *p95.Bid)
	assert.Nil(t, p95.Ask)
	assert.InDelta(t, 0.385, *p95.ImpliedVol, 1e-12, "percent volatility is normalized")
	assert.Equal(t, -0.21, *p95.Delta, "positive put delta is flipped")

	junk := chain.Puts[2]
	assert.Nil(t, junk.Strike)
	assert.Nil(t, junk.Bid)
	assert.Nil(t, junk.LastPrice)
}

func TestResolveSpot_PreferenceOrder(t *testing.T) {
	set := func(v float64) looseFloat { return looseFloat{v: v, ok: true} }

	cases := []struct {
		name   string
		quote  rawQuote
		want   float64
		source string
		ok     bool
	}{
		{"market price", rawQuote{RegularMarketPrice: set(10), Bid: set(9)}, 10, "regularMarketPrice", true},
		{"zero price falls to bid", rawQuote{RegularMarketPrice: set(0), Bid: set(9), Ask: set(11)}, 9, "bid", true},
		{"ask", rawQuote{Ask: set(11), RegularMarketPreviousClose: set(8)}, 11, "ask", true},
		{"previous close", rawQuote{Bid: set(-1), RegularMarketPreviousClose: set(8)}, 8, "regularMarketPreviousClose", true},
		{"none", rawQuote{}, 0, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spot, source, ok := resolveSpot(tc.quote)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, spot)
			assert.Equal(t, tc.source, source)
		})
	}
}

func TestParseChain_ShapeErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want error
	}{
		{"empty result", `{"optionChain":{"result":[],"error":null}}`, ErrNoResult},
		{"api error", `{"optionChain":{"result":[],"error":{"code":"Not Found","description":"No data found"}}}`, ErrNoResult},
		{"no groups", `{"optionChain":{"result":[{"quote":{"regularMarketPrice":5},"options":[]}]}}`, ErrNoOptionGroup},
		{"no spot", `{"optionChain":{"result":[{"quote":{"bid":0},"options":[{"puts":[]}]}]}}`, ErrNoSpot},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseChain("XYZ", fridayExpiry, []byte(tc.body))
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}

	_, err := ParseChain("XYZ", fridayExpiry, []byte(`<html>`))
	assert.ErrorContains(t, err, "decoding chain")
}

func TestParseChain_GroupExpiryFallback(t *testing.T) {
	body := `{"optionChain":{"result":[{"quote":{"regularMarketPrice":50},
		"options":[{"expirationDate":1793318400,"puts":[{"strike":45,"bid":0.5}]}]}]}}`

	chain, err := ParseChain("ABC", fridayExpiry, []byte(body))
	require.NoError(t, err)
	require.Len(t, chain.Puts, 1)
	assert.Equal(t, "2026-10-30", chain.Puts[0].Expiry.Format("2006-01-02"))
}
