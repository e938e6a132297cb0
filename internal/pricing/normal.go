// Package pricing holds the closed-form option math used when the quote
// provider leaves greeks out of a chain.
package pricing

import "math"

// Abramowitz & Stegun 26.2.17 constants.
const (
	asP  = 0.2316419
	asB1 = 0.319381530
	asB2 = -0.356563782
	asB3 = 1.781477937
	asB4 = -1.821255978
	asB5 = 1.330274429
)

var invSqrt2Pi = 1 / math.Sqrt(2*math.Pi)

// StandardNormalCDF approximates the standard normal cumulative distribution
// function with the Abramowitz-Stegun rational polynomial. Absolute error is
// below 7.5e-8 for all x.
func StandardNormalCDF(x float64) float64 {
	k := 1 / (1 + asP*math.Abs(x))
	poly := k * (asB1 + k*(asB2+k*(asB3+k*(asB4+k*asB5))))
	approx := 1 - standardNormalPDF(x)*poly
	if x >= 0 {
		return approx
	}
	return 1 - approx
}

func standardNormalPDF(x float64) float64 {
	return invSqrt2Pi * math.Exp(-x*x/2)
}
