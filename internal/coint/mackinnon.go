package coint

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Response-surface coefficients for the two-variable, constant-only Engle-Granger test.
// p-values follow MacKinnon (1994), critical values MacKinnon (2010).
var (
	tauMax  = 0.92
	tauMin  = -18.86
	tauStar = -2.62

	tauSmallP = [3]float64{2.92, 1.5012, 0.039796}
	tauLargeP = [4]float64{2.1945, 0.64695, -0.29198, -0.042377}

	// rows are 1%, 5%, 10%; columns are the 1/T polynomial terms
	tauCrit = [3][4]float64{
		{-3.89644, -10.9519, -33.527, 0},
		{-3.33613, -6.1101, -6.823, 0},
		{-3.04445, -4.2412, -2.720, 0},
	}
)

func polyval(coef []float64, x float64) float64 {
	var out float64
	for i := len(coef) - 1; i >= 0; i-- {
		out = out*x + coef[i]
	}
	return out
}

// PValue maps an Engle-Granger statistic to its approximate asymptotic p-value.
func PValue(stat float64) float64 {
	switch {
	case math.IsNaN(stat):
		return math.NaN()
	case stat > tauMax:
		return 1
	case stat < tauMin:
		return 0
	}
	var z float64
	if stat <= tauStar {
		z = polyval(tauSmallP[:], stat)
	} else {
		z = polyval(tauLargeP[:], stat)
	}
	return distuv.UnitNormal.CDF(z)
}

// CriticalValues returns the 1%, 5% and 10% critical values for a sample of nobs.
func CriticalValues(nobs int) [3]float64 {
	var out [3]float64
	inv := 1 / float64(nobs)
	for i, row := range tauCrit {
		out[i] = polyval(row[:], inv)
	}
	return out
}
