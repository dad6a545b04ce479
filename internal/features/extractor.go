// Package features converts an ordered connection list into the
// behavioral feature vector consumed by the scoring layers. Extraction
// is a pure function of its input.
package features

import (
	"math"
	"sort"

	"github.com/SamFrieman/c2-beacon-detector/internal/models"
	"github.com/SamFrieman/c2-beacon-detector/internal/normalize"
	"github.com/SamFrieman/c2-beacon-detector/internal/stats"
)

// Relative deviation from the median interval below which an interval
// counts toward periodicity.
const periodicityTolerance = 0.15

// Bucket widths for entropy features.
const (
	timingBucketSeconds = 1.0
	payloadBucketBytes  = 100.0
)

// Extract computes the feature vector for a connection list. Requires
// at least two records.
func Extract(conns []models.Connection) (*models.FeatureVector, error) {
	if len(conns) < normalize.MinConnections {
		return nil, &normalize.InsufficientDataError{Got: len(conns), Need: normalize.MinConnections}
	}

	timestamps := make([]float64, len(conns))
	for i, c := range conns {
		timestamps[i] = float64(c.Timestamp) / 1000.0 // seconds
	}
	sort.Float64s(timestamps)

	intervals := make([]float64, 0, len(timestamps)-1)
	for i := 1; i < len(timestamps); i++ {
		intervals = append(intervals, timestamps[i]-timestamps[i-1])
	}

	fv := &models.FeatureVector{ConnectionCount: len(conns)}
	extractTiming(fv, intervals)
	extractPayload(fv, conns)
	extractNetwork(fv, conns, timestamps)
	extractTimeOfDay(fv, conns)
	return fv, nil
}

func extractTiming(fv *models.FeatureVector, intervals []float64) {
	if len(intervals) == 0 {
		// Degenerate input: no structure observable.
		fv.Jitter = 1
		return
	}

	fv.MeanInterval = stats.Mean(intervals)
	fv.MedianInterval = stats.Median(intervals)
	fv.StdDevInterval = stats.StdDev(intervals)
	fv.MinInterval = stats.Min(intervals)
	fv.MaxInterval = stats.Max(intervals)
	fv.Jitter = stats.CoefficientOfVariation(intervals)
	fv.Periodicity = periodicity(intervals, fv.MedianInterval)
	fv.TimingEntropy = stats.BucketEntropy(intervals, timingBucketSeconds)
}

// periodicity is the fraction of intervals within tolerance of the
// median interval. Zero median means no meaningful period exists.
func periodicity(intervals []float64, median float64) float64 {
	if len(intervals) == 0 || median == 0 {
		return 0
	}
	close := 0
	for _, iv := range intervals {
		if math.Abs(iv-median)/median < periodicityTolerance {
			close++
		}
	}
	return float64(close) / float64(len(intervals))
}

func extractPayload(fv *models.FeatureVector, conns []models.Connection) {
	// Zero/missing sizes carry no payload signal and are excluded.
	sizes := make([]float64, 0, len(conns))
	for _, c := range conns {
		if c.Bytes > 0 {
			sizes = append(sizes, float64(c.Bytes))
		}
	}
	if len(sizes) == 0 {
		return
	}

	fv.MeanBytes = stats.Mean(sizes)
	fv.MedianBytes = stats.Median(sizes)
	fv.StdDevBytes = stats.StdDev(sizes)
	fv.MinBytes = stats.Min(sizes)
	fv.MaxBytes = stats.Max(sizes)
	fv.PayloadConsistency = 1 - math.Min(stats.CoefficientOfVariation(sizes), 1)
	fv.PayloadEntropy = stats.BucketEntropy(sizes, payloadBucketBytes)
}

func extractNetwork(fv *models.FeatureVector, conns []models.Connection, sortedTS []float64) {
	destIPs := make(map[string]struct{})
	srcPorts := make(map[int]struct{})
	destPortCounts := make(map[int]int)
	observedDestPorts := 0

	for _, c := range conns {
		if c.DestIP != "" && c.DestIP != "unknown" {
			destIPs[c.DestIP] = struct{}{}
		}
		if c.SrcPort > 0 {
			srcPorts[c.SrcPort] = struct{}{}
		}
		if c.DestPort > 0 {
			destPortCounts[c.DestPort]++
			observedDestPorts++
		}
	}

	fv.UniqueDestIPs = len(destIPs)
	fv.UniqueSrcPorts = len(srcPorts)
	fv.UniqueDestPorts = len(destPortCounts)

	durationSec := sortedTS[len(sortedTS)-1] - sortedTS[0]
	fv.DurationMinutes = durationSec / 60
	fv.DurationHours = durationSec / 3600

	if observedDestPorts > 0 {
		// Sub-linear normalization so large samples with many ports
		// don't trivially saturate to 1.
		fv.PortDiversity = math.Min(float64(len(destPortCounts))/math.Sqrt(float64(observedDestPorts)), 1)
		fv.PortEntropy = stats.CountEntropy(destPortCounts)

		topPort, topCount := 0, 0
		for port, count := range destPortCounts {
			if count > topCount || (count == topCount && port < topPort) {
				topPort, topCount = port, count
			}
		}
		fv.TopPort = topPort
		fv.TopPortRatio = float64(topCount) / float64(observedDestPorts)
	}
}

func extractTimeOfDay(fv *models.FeatureVector, conns []models.Connection) {
	hours := make(map[int]struct{})
	night := 0
	for _, c := range conns {
		h := c.Time().Hour()
		hours[h] = struct{}{}
		if h >= 22 || h < 6 {
			night++
		}
	}
	fv.TimeDiversity = float64(len(hours)) / 24
	fv.NightRatio = float64(night) / float64(len(conns))
}
