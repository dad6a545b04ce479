package ml

import (
	"fmt"
	"math"

	"github.com/SamFrieman/c2-beacon-detector/internal/models"
)

// Known implant check-in intervals (seconds) and the relative
// tolerance around them.
var knownIntervals = []float64{60, 120}

const knownIntervalTolerance = 0.05

// AnomalyDetector accumulates independent anomaly factors. The final
// score is the arithmetic mean of triggered factor weights, clamped to
// [0,1]: a sum saturates with three factors and makes individual
// weights meaningless.
type AnomalyDetector struct{}

// NewAnomalyDetector returns the detector with its standard weights.
func NewAnomalyDetector() *AnomalyDetector {
	return &AnomalyDetector{}
}

// Score evaluates the anomaly factors against the feature vector.
func (d *AnomalyDetector) Score(fv *models.FeatureVector) (float64, []Signal) {
	var signals []Signal

	add := func(name string, weight float64, desc string) {
		signals = append(signals, Signal{Name: name, Weight: weight, Description: desc})
	}

	if fv.Jitter < 0.1 && fv.Periodicity > 0.7 {
		add("timing_regularity", 0.9, "mechanically regular check-in timing")
	}
	if fv.MeanInterval > 0 && matchesKnownInterval(fv.MeanInterval) {
		add("known_interval", 0.85, fmt.Sprintf("mean interval %.1fs matches a common implant default", fv.MeanInterval))
	}
	if fv.PayloadConsistency > 0.85 {
		add("payload_uniformity", 0.7, fmt.Sprintf("payload consistency %.2f", fv.PayloadConsistency))
	}
	if fv.UniqueDestIPs == 1 && fv.ConnectionCount > 20 {
		add("single_destination_volume", 0.65, fmt.Sprintf("%d connections to one destination", fv.ConnectionCount))
	}
	if fv.TimingEntropy < 1.5 && fv.ConnectionCount > 10 {
		add("low_timing_entropy", 0.6, fmt.Sprintf("timing entropy %.2f bits", fv.TimingEntropy))
	}
	if fv.DurationHours > 2 {
		add("long_duration", 0.5, fmt.Sprintf("activity spans %.1f hours", fv.DurationHours))
	}

	if len(signals) == 0 {
		return 0, nil
	}

	sum := 0.0
	for _, s := range signals {
		sum += s.Weight
	}
	score := sum / float64(len(signals))
	if score > 1 {
		score = 1
	}
	return score, signals
}

func matchesKnownInterval(mean float64) bool {
	for _, known := range knownIntervals {
		if math.Abs(mean-known)/known <= knownIntervalTolerance {
			return true
		}
	}
	return false
}
