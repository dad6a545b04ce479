// Package stats provides the numeric primitives shared by the feature
// extractor and scoring layers. Every function is total: empty input
// yields 0, never NaN.
package stats

import (
	"math"
	"sort"
)

// Mean returns the arithmetic mean of values, 0 for empty input.
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

// Median returns the middle value (average of the two middle values for
// even-length input), 0 for empty input.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// StdDev returns the population standard deviation, 0 for fewer than
// two values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// Min returns the smallest value, 0 for empty input.
func Min(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

// Max returns the largest value, 0 for empty input.
func Max(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// Percentile returns the p-th percentile (0-100) using linear
// interpolation between closest ranks.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// CoefficientOfVariation returns stddev/mean, 0 when the mean is 0.
func CoefficientOfVariation(values []float64) float64 {
	mean := Mean(values)
	if mean == 0 {
		return 0
	}
	return StdDev(values) / mean
}

// BucketEntropy computes the Shannon entropy (bits) of values grouped
// into buckets of the given width. Width 0 buckets by exact value.
func BucketEntropy(values []float64, width float64) float64 {
	if len(values) == 0 {
		return 0
	}
	counts := make(map[int64]int, len(values))
	for _, v := range values {
		bucket := int64(v)
		if width > 0 {
			bucket = int64(math.Floor(v / width))
		}
		counts[bucket]++
	}
	return entropyOfCounts(counts, len(values))
}

// CountEntropy computes the Shannon entropy (bits) of an observed
// count distribution, matching BucketEntropy on pre-bucketed data.
func CountEntropy(counts map[int]int) float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	entropy := 0.0
	for _, c := range counts {
		if c > 0 {
			p := float64(c) / float64(total)
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}

func entropyOfCounts(counts map[int64]int, total int) float64 {
	entropy := 0.0
	for _, c := range counts {
		if c > 0 {
			p := float64(c) / float64(total)
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}
