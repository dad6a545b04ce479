package intel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/SamFrieman/c2-beacon-detector/internal/models"
)

// FeedClient looks up one IP against an external IOC feed. A nil
// result with nil error means the feed had nothing for this IP.
type FeedClient interface {
	Lookup(ctx context.Context, ip string) ([]models.ThreatIntelMatch, error)
}

// HTTPFeed queries an abuse.ch-style IOC API: a POST with a query type
// and search term, answered by a status flag and a list of IOC records.
type HTTPFeed struct {
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPFeed builds a feed client for the given endpoint. The API key
// may be empty for feeds that allow anonymous queries.
func NewHTTPFeed(url, apiKey string, timeout time.Duration) *HTTPFeed {
	return &HTTPFeed{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

type feedQuery struct {
	Query      string `json:"query"`
	SearchTerm string `json:"search_term"`
}

type feedResponse struct {
	QueryStatus string `json:"query_status"`
	Data        []struct {
		IOCType         string   `json:"ioc_type"`
		ThreatType      string   `json:"threat_type"`
		Malware         string   `json:"malware"`
		MalwareAlias    string   `json:"malware_alias"`
		ConfidenceLevel int      `json:"confidence_level"`
		FirstSeen       string   `json:"first_seen"`
		LastSeen        string   `json:"last_seen"`
		Tags            []string `json:"tags"`
		Reference       string   `json:"reference"`
	} `json:"data"`
}

// Lookup queries the feed for one IP. Transport and protocol failures
// are returned as errors; the resolver treats them as degraded mode,
// never as analysis failures.
func (f *HTTPFeed) Lookup(ctx context.Context, ip string) ([]models.ThreatIntelMatch, error) {
	body, err := json.Marshal(feedQuery{Query: "search_ioc", SearchTerm: ip})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create feed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.apiKey != "" {
		req.Header.Set("Auth-Key", f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var parsed feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parse feed response: %w", err)
	}
	if parsed.QueryStatus != "ok" {
		// no_result and friends are a clean miss, not a failure
		return nil, nil
	}

	matches := make([]models.ThreatIntelMatch, 0, len(parsed.Data))
	for _, ioc := range parsed.Data {
		malware := ioc.Malware
		if ioc.MalwareAlias != "" {
			malware = ioc.MalwareAlias
		}
		matches = append(matches, models.ThreatIntelMatch{
			IP:         ip,
			Source:     SourceFeed,
			Malware:    malware,
			Confidence: ioc.ConfidenceLevel,
			ThreatType: ioc.ThreatType,
			Tags:       ioc.Tags,
			FirstSeen:  ioc.FirstSeen,
			LastSeen:   ioc.LastSeen,
		})
	}
	return matches, nil
}
