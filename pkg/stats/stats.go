// Package stats holds the small set of pure numeric helpers shared by the
// confidence scorer and the recurring-pattern detector.
//
// All functions are deterministic and allocation free apart from their
// inputs; none of them panic on empty input.
package stats

import "math"

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation of values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	mean := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// CoefficientOfVariation returns StdDev/Mean. A zero mean yields 0 when all
// values are equal and +Inf otherwise, so callers treating the result as a
// threshold reject degenerate input.
func CoefficientOfVariation(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	mean := Mean(values)
	sd := StdDev(values)
	if mean == 0 {
		if sd == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return sd / math.Abs(mean)
}

// Clamp bounds v to [min, max]. NaN is clamped to min.
func Clamp(v, min, max float64) float64 {
	if math.IsNaN(v) || v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Clamp01 bounds v to [0, 1].
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
