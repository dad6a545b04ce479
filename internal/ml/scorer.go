// Package ml holds the rule-based scoring models. These are fixed,
// versioned weighted rule sets, not trained models: deterministic by
// construction, with the Scorer interface left as the extension point
// for a real fitted model later.
package ml

import "github.com/SamFrieman/c2-beacon-detector/internal/models"

// Signal is one triggered model rule and its weight contribution.
type Signal struct {
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

// Scorer turns a feature vector into a probability-like score in [0,1]
// plus the signals that produced it.
type Scorer interface {
	Score(fv *models.FeatureVector) (float64, []Signal)
}

// Ensemble weights.
const (
	classifierWeight = 0.6
	anomalyWeight    = 0.4

	// DefaultThreshold is the combined score at or above which the
	// ensemble predicts malicious.
	DefaultThreshold = 0.65
)

// Ensemble combines the beacon classifier and anomaly detector by
// weighted average.
type Ensemble struct {
	classifier Scorer
	anomaly    Scorer
	Threshold  float64
}

// NewEnsemble builds the default ensemble.
func NewEnsemble() *Ensemble {
	return &Ensemble{
		classifier: NewBeaconClassifier(),
		anomaly:    NewAnomalyDetector(),
		Threshold:  DefaultThreshold,
	}
}

// Score returns the combined ensemble score and all triggered signals,
// classifier signals first.
func (e *Ensemble) Score(fv *models.FeatureVector) (float64, []Signal) {
	cScore, cSignals := e.classifier.Score(fv)
	aScore, aSignals := e.anomaly.Score(fv)

	combined := classifierWeight*cScore + anomalyWeight*aScore
	return combined, append(cSignals, aSignals...)
}

// Malicious reports whether the combined score crosses the ensemble
// threshold.
func (e *Ensemble) Malicious(score float64) bool {
	return score >= e.Threshold
}
