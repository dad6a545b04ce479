package ml

import (
	"fmt"

	"github.com/SamFrieman/c2-beacon-detector/internal/models"
)

// BeaconClassifier sums fixed point contributions for beacon-shaped
// feature bands, clamped to [0,1].
type BeaconClassifier struct {
	ConfidenceThreshold float64
}

// NewBeaconClassifier returns the classifier with its standard
// threshold.
func NewBeaconClassifier() *BeaconClassifier {
	return &BeaconClassifier{ConfidenceThreshold: DefaultThreshold}
}

// Score applies the fixed band weights to the feature vector.
func (c *BeaconClassifier) Score(fv *models.FeatureVector) (float64, []Signal) {
	var score float64
	var signals []Signal

	add := func(name string, weight float64, desc string) {
		score += weight
		signals = append(signals, Signal{Name: name, Weight: weight, Description: desc})
	}

	switch {
	case fv.Periodicity > 0.8:
		add("high_periodicity", 0.35, fmt.Sprintf("%.0f%% of intervals near the median", fv.Periodicity*100))
	case fv.Periodicity > 0.7:
		add("moderate_periodicity", 0.25, fmt.Sprintf("%.0f%% of intervals near the median", fv.Periodicity*100))
	}

	switch {
	case fv.Jitter < 0.1:
		add("very_low_jitter", 0.30, fmt.Sprintf("interval variation %.3f", fv.Jitter))
	case fv.Jitter < 0.2:
		add("low_jitter", 0.20, fmt.Sprintf("interval variation %.3f", fv.Jitter))
	}

	switch {
	case fv.PayloadConsistency > 0.9:
		add("uniform_payload", 0.20, fmt.Sprintf("payload consistency %.2f", fv.PayloadConsistency))
	case fv.PayloadConsistency > 0.8:
		add("consistent_payload", 0.15, fmt.Sprintf("payload consistency %.2f", fv.PayloadConsistency))
	}

	if fv.UniqueDestIPs == 1 {
		add("single_destination", 0.15, "all connections target one IP")
	}
	if fv.PortDiversity > 0 && fv.PortDiversity < 0.1 {
		add("low_port_diversity", 0.10, fmt.Sprintf("port diversity %.3f", fv.PortDiversity))
	}
	if fv.DurationHours > 2 {
		add("sustained_session", 0.10, fmt.Sprintf("activity spans %.1f hours", fv.DurationHours))
	}

	if score > 1 {
		score = 1
	}
	return score, signals
}
