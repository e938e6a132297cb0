package pricing

import "math"

const (
	daysPerYear = 365.0

	// ivPercentThreshold separates fractional implied volatility (0.32) from
	// values the provider already sent in percent (32).
	ivPercentThreshold = 3.0
)

// NormalizeIV converts an implied volatility into a decimal fraction. Values
// whose magnitude exceeds 3 are taken to be percentages.
func NormalizeIV(iv float64) float64 {
	if math.Abs(iv) > ivPercentThreshold {
		return iv / 100
	}
	return iv
}

// PutDelta returns the Black-Scholes delta of a European put with no rates or
// dividends. ok is false when spot, strike or implied volatility are not
// finite positive numbers. Time to expiry is floored at one day.
func PutDelta(spot, strike, iv float64, daysToExpiry int) (delta float64, ok bool) {
	if !positive(spot) || !positive(strike) || !positive(iv) {
		return 0, false
	}

	sigma := NormalizeIV(iv)
	t := math.Max(float64(daysToExpiry), 0) / daysPerYear
	if t < 1/daysPerYear {
		t = 1 / daysPerYear
	}

	d1 := (math.Log(spot/strike) + 0.5*sigma*sigma*t) / (sigma * math.Sqrt(t))
	delta = StandardNormalCDF(d1) - 1
	return math.Max(-1, math.Min(0, delta)), true
}

func positive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
