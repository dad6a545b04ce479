// Package intel resolves destination IPs against user rules and an
// external IOC feed. Lookups are bounded, concurrent, cached, and
// degrade to partial results when a source is unavailable.
package intel

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"

	"github.com/SamFrieman/c2-beacon-detector/internal/models"
	"github.com/SamFrieman/c2-beacon-detector/internal/stats"
)

// Match sources.
const (
	SourceCustomRule = "custom_rule"
	SourceFeed       = "feed"
)

// Defaults for lookup bounds and caching.
const (
	DefaultMaxLookups    = 20
	DefaultLookupTimeout = 10 * time.Second
	DefaultCacheTTL      = time.Hour
	DefaultCacheSize     = 1024
	defaultRuleConf      = 70
)

// Source reliability weights for aggregate confidence.
var sourceWeights = map[string]float64{
	SourceCustomRule: 1.0,
	SourceFeed:       0.85,
}

// Bonus multiplier applied when two or more independent sources agree
// on the same IP.
const multiSourceBonus = 1.2

// RuleStore loads the persisted custom rules. Implementations live in
// the storage package.
type RuleStore interface {
	LoadRules(ctx context.Context) ([]models.CustomRule, error)
}

// Config bounds the resolver's external-call cost.
type Config struct {
	MaxLookups    int
	LookupTimeout time.Duration
	CacheTTL      time.Duration
	CacheSize     int
}

func (c *Config) applyDefaults() {
	if c.MaxLookups <= 0 {
		c.MaxLookups = DefaultMaxLookups
	}
	if c.LookupTimeout <= 0 {
		c.LookupTimeout = DefaultLookupTimeout
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultCacheSize
	}
}

// Resolver maps destination IPs to threat-intel matches. Feed and rule
// store are optional; a resolver with neither always returns no
// matches. The cache is owned by the resolver and shared across runs.
type Resolver struct {
	feed   FeedClient
	rules  RuleStore
	cache  *expirable.LRU[string, []models.ThreatIntelMatch]
	cfg    Config
	logger *slog.Logger
}

// Result is the aggregate outcome of one resolve pass.
type Result struct {
	Matches []models.ThreatIntelMatch
	// Sources that failed during this pass. Never fatal.
	Degraded []string
}

// NewResolver builds a resolver. feed and rules may be nil.
func NewResolver(feed FeedClient, rules RuleStore, cfg Config, logger *slog.Logger) *Resolver {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		feed:   feed,
		rules:  rules,
		cache:  expirable.NewLRU[string, []models.ThreatIntelMatch](cfg.CacheSize, nil, cfg.CacheTTL),
		cfg:    cfg,
		logger: logger,
	}
}

// Resolve looks up the distinct public destination IPs of the
// connection list, capped at MaxLookups in first-seen order. Feed
// lookups run concurrently with a per-lookup timeout; a failed lookup
// marks the source degraded and the pass continues.
func (r *Resolver) Resolve(ctx context.Context, conns []models.Connection) Result {
	ips, counts := destinationIPs(conns, r.cfg.MaxLookups)
	if len(ips) == 0 {
		return Result{}
	}

	var result Result
	degraded := make(map[string]bool)

	rules := r.loadRules(ctx, degraded)
	for _, ip := range ips {
		for _, m := range matchRules(ip, rules) {
			m.ConnectionCount = counts[ip]
			result.Matches = append(result.Matches, m)
		}
	}

	if r.feed != nil {
		feedMatches, feedDegraded := r.lookupFeed(ctx, ips)
		for _, m := range feedMatches {
			m.ConnectionCount = counts[m.IP]
			result.Matches = append(result.Matches, m)
		}
		if feedDegraded {
			degraded[SourceFeed] = true
		}
	}

	for source := range degraded {
		result.Degraded = append(result.Degraded, source)
	}
	sort.Strings(result.Degraded)
	return result
}

// destinationIPs returns the distinct public destination IPs in
// first-seen order, capped at limit, plus per-IP connection counts.
// Private and reserved addresses are never looked up.
func destinationIPs(conns []models.Connection, limit int) ([]string, map[string]int) {
	counts := make(map[string]int)
	var order []string
	for _, c := range conns {
		ip := c.DestIP
		if ip == "" || ip == "unknown" || stats.IsPrivateIP(ip) {
			continue
		}
		if counts[ip] == 0 {
			order = append(order, ip)
		}
		counts[ip]++
	}
	if len(order) > limit {
		order = order[:limit]
	}
	return order, counts
}

func (r *Resolver) loadRules(ctx context.Context, degraded map[string]bool) []models.CustomRule {
	if r.rules == nil {
		return nil
	}
	rules, err := r.rules.LoadRules(ctx)
	if err != nil {
		r.logger.Warn("custom rule store unavailable", "error", err)
		degraded[SourceCustomRule] = true
		return nil
	}
	return rules
}

// matchRules matches one IP against the custom rule set: exact match
// for ip rules, containment for cidr rules.
func matchRules(ip string, rules []models.CustomRule) []models.ThreatIntelMatch {
	var matches []models.ThreatIntelMatch
	for _, rule := range rules {
		hit := false
		switch rule.Type {
		case models.RuleTypeIP:
			hit = rule.Value == ip
		case models.RuleTypeCIDR:
			hit = stats.MatchCIDR(ip, rule.Value)
		}
		if !hit {
			continue
		}
		conf := rule.Confidence
		if conf <= 0 {
			conf = defaultRuleConf
		}
		matches = append(matches, models.ThreatIntelMatch{
			IP:         ip,
			Source:     SourceCustomRule,
			Malware:    rule.Malware,
			Confidence: conf,
			ThreatType: rule.ThreatType,
			Tags:       rule.Tags,
		})
	}
	return matches
}

// lookupFeed fans out one lookup per IP. Each lookup gets its own
// timeout; a slow or failed lookup never blocks the others.
func (r *Resolver) lookupFeed(ctx context.Context, ips []string) ([]models.ThreatIntelMatch, bool) {
	var (
		mu       sync.Mutex
		matches  []models.ThreatIntelMatch
		degraded bool
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, ip := range ips {
		ip := ip
		g.Go(func() error {
			if cached, ok := r.cache.Get(ip); ok {
				mu.Lock()
				matches = append(matches, cached...)
				mu.Unlock()
				return nil
			}

			lctx, cancel := context.WithTimeout(ctx, r.cfg.LookupTimeout)
			defer cancel()

			found, err := r.feed.Lookup(lctx, ip)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.logger.Warn("feed lookup failed", "ip", ip, "error", err)
				degraded = true
				return nil // degrade, don't cancel siblings
			}
			r.cache.Add(ip, found)
			matches = append(matches, found...)
			return nil
		})
	}
	g.Wait()

	// Stable output order regardless of lookup completion order.
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].IP < matches[j].IP })
	return matches, degraded
}

// AggregateConfidence combines all matches for one IP into a single
// 0-100 confidence: a reliability-weighted average, boosted by 20%
// when two or more independent sources agree.
func AggregateConfidence(matches []models.ThreatIntelMatch) int {
	if len(matches) == 0 {
		return 0
	}

	sources := make(map[string]bool)
	weightedSum, weightTotal := 0.0, 0.0
	for _, m := range matches {
		w, ok := sourceWeights[m.Source]
		if !ok {
			w = 0.5
		}
		weightedSum += float64(m.Confidence) * w
		weightTotal += w
		sources[m.Source] = true
	}
	if weightTotal == 0 {
		return 0
	}

	combined := weightedSum / weightTotal
	if len(sources) >= 2 {
		combined *= multiSourceBonus
	}
	if combined > 100 {
		combined = 100
	}
	return int(combined + 0.5)
}

// MaxAggregateConfidence groups matches by IP and returns the highest
// per-IP aggregate confidence. The engine scores against this rather
// than any single source's number.
func MaxAggregateConfidence(matches []models.ThreatIntelMatch) int {
	byIP := make(map[string][]models.ThreatIntelMatch)
	for _, m := range matches {
		byIP[m.IP] = append(byIP[m.IP], m)
	}
	best := 0
	for _, group := range byIP {
		if c := AggregateConfidence(group); c > best {
			best = c
		}
	}
	return best
}
