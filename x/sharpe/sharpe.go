// Package sharpe computes the annualized Sharpe ratio from daily returns.
package sharpe

import "math"

// AnnualizationFactor is the number of trading days per year.
const AnnualizationFactor = 252

// minStdDev guards against division by a statistically meaningless spread.
const minStdDev = 1e-8

// Ratio returns the annualized Sharpe ratio of the given daily returns.
// Fewer than two samples, or a standard deviation below 1e-8, yield exactly 0.
func Ratio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0.0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sqDiff float64
	for _, r := range returns {
		d := r - mean
		sqDiff += d * d
	}
	std := math.Sqrt(sqDiff / float64(len(returns)))
	if std < minStdDev {
		return 0.0
	}

	return mean / std * math.Sqrt(AnnualizationFactor)
}

// Round4 rounds to four decimal places, the precision reported to clients.
func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
