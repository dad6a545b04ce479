// Package detect combines threat intel, the ML ensemble, and direct
// behavioral rules into one bounded score with an ordered, auditable
// factor list.
package detect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SamFrieman/c2-beacon-detector/internal/features"
	"github.com/SamFrieman/c2-beacon-detector/internal/intel"
	"github.com/SamFrieman/c2-beacon-detector/internal/mapping"
	"github.com/SamFrieman/c2-beacon-detector/internal/metrics"
	"github.com/SamFrieman/c2-beacon-detector/internal/ml"
	"github.com/SamFrieman/c2-beacon-detector/internal/models"
)

// HistoryStore persists past result summaries. Optional; append
// failures never fail the analysis.
type HistoryStore interface {
	AppendResult(ctx context.Context, result *models.DetectionResult) error
}

// Engine is the detection pipeline. Resolver, scorer, history and
// metrics are all optional collaborators; a bare engine still scores
// on behavioral rules alone.
type Engine struct {
	resolver *intel.Resolver
	scorer   *ml.Ensemble
	history  HistoryStore
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithResolver attaches a threat-intel resolver.
func WithResolver(r *intel.Resolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// WithScorer attaches the ML ensemble.
func WithScorer(s *ml.Ensemble) Option {
	return func(e *Engine) { e.scorer = s }
}

// WithHistory attaches a history store.
func WithHistory(h HistoryStore) Option {
	return func(e *Engine) { e.history = h }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds an engine with the given collaborators.
func NewEngine(logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze runs the full pipeline on a normalized connection list.
// Only input validation can fail; everything downstream degrades to a
// result with fewer contributing factors.
func (e *Engine) Analyze(ctx context.Context, conns []models.Connection) (*models.DetectionResult, error) {
	started := e.now()

	fv, err := features.Extract(conns)
	if err != nil {
		return nil, err
	}

	var intelResult intel.Result
	if e.resolver != nil {
		intelResult = e.resolver.Resolve(ctx, conns)
		if e.metrics != nil {
			for _, source := range intelResult.Degraded {
				if source == intel.SourceFeed {
					e.metrics.FeedErrorsTotal.Inc()
				}
			}
		}
	}

	factors := e.scoreFactors(fv, intelResult.Matches)

	total := 0
	for _, f := range factors {
		total += f.Points
	}
	// Clamp only at the boundary: a negative partial sum must be able
	// to recover mid-stream.
	score := clamp(total, 0, 100)

	class := models.Classify(score)
	result := &models.DetectionResult{
		ID:              uuid.New().String(),
		Timestamp:       started.UTC(),
		Score:           score,
		Classification:  class,
		Severity:        models.SeverityFor(class),
		Recommendation:  models.RecommendationFor(class),
		Factors:         factors,
		Features:        fv,
		Frameworks:      mapping.Frameworks(fv, intelResult.Matches),
		MitreTechniques: mapping.Techniques(fv),
		IntelMatches:    intelResult.Matches,
		Details: models.TechnicalDetails{
			AnalyzedConnections: fv.ConnectionCount,
			UniqueDestinations:  fv.UniqueDestIPs,
			MeanIntervalSeconds: fv.MeanInterval,
			SessionMinutes:      fv.DurationMinutes,
			MedianPayloadBytes:  fv.MedianBytes,
			IntelSources:        intelSources(intelResult.Matches),
			DegradedSources:     intelResult.Degraded,
		},
	}

	e.logger.Info("analysis complete",
		"score", result.Score,
		"classification", result.Classification,
		"connections", fv.ConnectionCount,
		"factors", len(factors),
		"intel_matches", len(intelResult.Matches))

	e.metrics.ObserveResult(result.Classification, e.now().Sub(started).Seconds())

	if e.history != nil {
		if err := e.history.AppendResult(ctx, result); err != nil {
			e.logger.Warn("history append failed", "error", err)
		}
	}
	return result, nil
}

// scoreFactors evaluates every scoring rule in its fixed order,
// emitting one factor per triggered rule. Factor order is evaluation
// order and is part of the result contract.
func (e *Engine) scoreFactors(fv *models.FeatureVector, matches []models.ThreatIntelMatch) []models.Factor {
	var factors []models.Factor

	add := func(name string, points int, desc string) {
		factors = append(factors, models.Factor{Name: name, Points: points, Description: desc})
	}

	// Threat intel first: the strongest single signal.
	if len(matches) > 0 {
		add("threat_intel_match", 45,
			fmt.Sprintf("%d threat intelligence match(es) on destination IPs", len(matches)))
		if conf := intel.MaxAggregateConfidence(matches); conf >= 75 {
			add("threat_intel_confidence", 25,
				fmt.Sprintf("aggregate source confidence %d", conf))
		} else {
			add("threat_intel_confidence", 15,
				fmt.Sprintf("aggregate source confidence %d", conf))
		}
	}

	switch {
	case fv.Periodicity > 0.80:
		add("periodicity", 35, fmt.Sprintf("%.0f%% of intervals cluster at the median", fv.Periodicity*100))
	case fv.Periodicity > 0.70:
		add("periodicity", 25, fmt.Sprintf("%.0f%% of intervals cluster at the median", fv.Periodicity*100))
	case fv.Periodicity > 0.60:
		add("periodicity", 15, fmt.Sprintf("%.0f%% of intervals cluster at the median", fv.Periodicity*100))
	}

	switch {
	case fv.Jitter < 0.08:
		add("low_jitter", 30, fmt.Sprintf("interval variation %.3f is machine-regular", fv.Jitter))
	case fv.Jitter < 0.15:
		add("low_jitter", 20, fmt.Sprintf("interval variation %.3f", fv.Jitter))
	case fv.Jitter < 0.25:
		add("low_jitter", 10, fmt.Sprintf("interval variation %.3f", fv.Jitter))
	}

	switch {
	case fv.PayloadConsistency > 0.90:
		add("payload_consistency", 20, fmt.Sprintf("payload sizes %.0f%% consistent", fv.PayloadConsistency*100))
	case fv.PayloadConsistency > 0.80:
		add("payload_consistency", 15, fmt.Sprintf("payload sizes %.0f%% consistent", fv.PayloadConsistency*100))
	}

	if fv.MeanInterval >= 30 && fv.MeanInterval <= 300 {
		add("beacon_interval_range", 15,
			fmt.Sprintf("mean interval %.1fs falls in the common beacon range", fv.MeanInterval))
	}

	if fv.MeanInterval >= 58 && fv.MeanInterval <= 62 && fv.Jitter < 0.10 {
		add("cobalt_strike_signature", 20, "60s sleep with minimal jitter matches Cobalt Strike defaults")
	}
	if fv.MeanInterval >= 115 && fv.MeanInterval <= 125 && fv.Jitter < 0.12 {
		add("metasploit_signature", 18, "120s check-in with low jitter matches Metasploit defaults")
	}

	switch {
	case fv.DurationMinutes > 120 && fv.ConnectionCount > 50:
		add("persistence", 15,
			fmt.Sprintf("%d connections sustained over %.0f minutes", fv.ConnectionCount, fv.DurationMinutes))
	case fv.DurationMinutes > 60 && fv.ConnectionCount > 30:
		add("persistence", 12,
			fmt.Sprintf("%d connections sustained over %.0f minutes", fv.ConnectionCount, fv.DurationMinutes))
	}

	if fv.UniqueDestIPs == 1 && fv.ConnectionCount > 20 {
		points := 10
		if fv.ConnectionCount > 50 {
			points = 12
		}
		add("single_destination", points,
			fmt.Sprintf("%d connections all target one IP", fv.ConnectionCount))
	}

	if fv.PortEntropy < 0.5 && fv.UniqueDestPorts == 1 {
		add("fixed_port", 10, fmt.Sprintf("all traffic on port %d", fv.TopPort))
	}

	if fv.TimingEntropy < 1.5 && fv.ConnectionCount > 20 {
		add("low_timing_entropy", 12,
			fmt.Sprintf("timing entropy %.2f bits across %d connections", fv.TimingEntropy, fv.ConnectionCount))
	}

	if fv.NightRatio > 0.7 && fv.ConnectionCount > 30 {
		add("night_activity", 8,
			fmt.Sprintf("%.0f%% of connections in the 22:00-06:00 window", fv.NightRatio*100))
	}

	// ML ensemble contributes one clearly named factor, never hidden
	// inside the rules above.
	if e.scorer != nil {
		if score, _ := e.scorer.Score(fv); e.scorer.Malicious(score) {
			add("ml_consensus", int(score*20+0.5),
				fmt.Sprintf("model ensemble score %.2f crosses the %.2f threshold", score, e.scorer.Threshold))
		}
	}

	// Benign deductions last, in table order.
	if fv.MeanInterval > 0 && fv.MeanInterval < 3 {
		add("interactive_interval", -25,
			fmt.Sprintf("mean interval %.2fs is too short for beaconing", fv.MeanInterval))
	}
	if fv.Jitter > 0.70 {
		add("high_variance", -20, fmt.Sprintf("interval variation %.2f looks human-driven", fv.Jitter))
	}
	if fv.UniqueDestIPs > 10 {
		add("many_destinations", -15, fmt.Sprintf("%d distinct destinations", fv.UniqueDestIPs))
	}
	if fv.TimeDiversity > 0.7 {
		add("spread_activity", -10,
			fmt.Sprintf("activity touches %.0f%% of the day's hours", fv.TimeDiversity*100))
	}

	return factors
}

func intelSources(matches []models.ThreatIntelMatch) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, m := range matches {
		if !seen[m.Source] {
			seen[m.Source] = true
			sources = append(sources, m.Source)
		}
	}
	return sources
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
