package domain

import "sort"

// Candidate is a ranked cash-secured-put opportunity. Every field is always
// serialized; nullable metrics are encoded as JSON null.
type Candidate struct {
	Ticker              string   `json:"ticker"`
	RunDate             string   `json:"runDate"`
	Spot                float64  `json:"spot"`
	Expiry              string   `json:"expiry"`
	DaysToExpiry        int      `json:"daysToExpiry"`
	Strike              float64  `json:"strike"`
	Bid                 *float64 `json:"bid"`
	Ask                 *float64 `json:"ask"`
	Premium             float64  `json:"premium"`
	ImpliedVolatility   *float64 `json:"impliedVolatility"` // percent
	Delta               *float64 `json:"delta"`
	ProbabilityOfProfit *float64 `json:"probabilityOfProfit"` // percent
	Moneyness           float64  `json:"moneyness"`
	ROI                 float64  `json:"roi"`           // percent
	AnnualizedROI       *float64 `json:"annualizedRoi"` // percent
}

// Better reports whether a ranks strictly above b by annualized ROI, with a
// missing annualized ROI treated as the lowest possible score.
func Better(a, b Candidate) bool {
	switch {
	case a.AnnualizedROI == nil:
		return false
	case b.AnnualizedROI == nil:
		return true
	default:
		return *a.AnnualizedROI > *b.AnnualizedROI
	}
}

// BestPerTicker keeps the highest ranked candidate for every ticker.
func BestPerTicker(candidates []Candidate) []Candidate {
	best := make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		cur, ok := best[c.Ticker]
		if !ok || Better(c, cur) {
			best[c.Ticker] = c
		}
	}

	out := make([]Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	return out
}

// SortByAnnualizedROI orders candidates descending by annualized ROI, nulls
// last. Ties fall back to ticker then strike so output does not depend on
// map iteration or goroutine scheduling.
func SortByAnnualizedROI(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if Better(a, b) {
			return true
		}
		if Better(b, a) {
			return false
		}
		if a.Ticker != b.Ticker {
			return a.Ticker < b.Ticker
		}
		return a.Strike < b.Strike
	})
}
