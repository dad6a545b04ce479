package models

import "time"

// Classification tiers, evaluated high-to-low on the final score.
const (
	ClassCritical   = "CRITICAL"
	ClassSuspicious = "SUSPICIOUS"
	ClassMonitor    = "MONITOR"
	ClassBenign     = "BENIGN"
)

// Severity tags, one per classification tier.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
)

// Factor is one scored detection signal: a point delta and the text
// justifying it. Factor order in a result is evaluation order.
type Factor struct {
	Name        string `json:"name"`
	Points      int    `json:"points"`
	Description string `json:"description"`
}

// FrameworkMatch identifies a known C2 framework signature in the
// traffic. Confidence is High, Medium or Low.
type FrameworkMatch struct {
	Name       string `json:"name"`
	Confidence string `json:"confidence"`
	Evidence   string `json:"evidence"`
}

// Technique is a MITRE ATT&CK technique annotation.
type Technique struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Tactic string `json:"tactic"`
	Reason string `json:"reason"`
}

// TechnicalDetails summarizes the analysis for reporting.
type TechnicalDetails struct {
	AnalyzedConnections int      `json:"analyzed_connections"`
	UniqueDestinations  int      `json:"unique_destinations"`
	MeanIntervalSeconds float64  `json:"mean_interval_seconds"`
	SessionMinutes      float64  `json:"session_minutes"`
	MedianPayloadBytes  float64  `json:"median_payload_bytes"`
	IntelSources        []string `json:"intel_sources,omitempty"`
	DegradedSources     []string `json:"degraded_sources,omitempty"`
}

// DetectionResult is the final output of one analysis run.
type DetectionResult struct {
	ID              string             `json:"id"`
	Timestamp       time.Time          `json:"timestamp"`
	Score           int                `json:"score"` // 0-100
	Classification  string             `json:"classification"`
	Severity        string             `json:"severity"`
	Recommendation  string             `json:"recommendation"`
	Factors         []Factor           `json:"factors"`
	Features        *FeatureVector     `json:"features"`
	Details         TechnicalDetails   `json:"technical_details"`
	Frameworks      []FrameworkMatch   `json:"identified_frameworks,omitempty"`
	MitreTechniques []Technique        `json:"mitre_techniques,omitempty"`
	IntelMatches    []ThreatIntelMatch `json:"threat_intel_matches,omitempty"`
}

// Recommendation texts per classification tier.
var recommendations = map[string]string{
	ClassCritical:   "Isolate the affected host immediately and begin incident response. Traffic shows strong indicators of automated C2 beaconing.",
	ClassSuspicious: "Investigate the destination infrastructure and review endpoint activity on the source host. Multiple beaconing indicators are present.",
	ClassMonitor:    "Continue monitoring this traffic pattern and re-run analysis with a larger sample. Some beaconing indicators are present but not conclusive.",
	ClassBenign:     "No action required. Traffic is consistent with normal application behavior.",
}

// severities maps each classification tier to its severity tag.
var severities = map[string]string{
	ClassCritical:   SeverityCritical,
	ClassSuspicious: SeverityHigh,
	ClassMonitor:    SeverityMedium,
	ClassBenign:     SeverityLow,
}

// Classify maps a final score to its classification tier.
func Classify(score int) string {
	switch {
	case score >= 80:
		return ClassCritical
	case score >= 65:
		return ClassSuspicious
	case score >= 45:
		return ClassMonitor
	default:
		return ClassBenign
	}
}

// SeverityFor returns the severity tag for a classification tier.
func SeverityFor(class string) string {
	return severities[class]
}

// RecommendationFor returns the recommendation text for a tier.
func RecommendationFor(class string) string {
	return recommendations[class]
}
