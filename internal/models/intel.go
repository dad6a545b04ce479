package models

import "time"

// Custom rule types.
const (
	RuleTypeIP   = "ip"
	RuleTypeCIDR = "cidr"
)

// CustomRule is a user-declared indicator of compromise, matched
// read-only during threat-intel lookups.
type CustomRule struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"` // ip or cidr
	Value      string    `json:"value"`
	Malware    string    `json:"malware"`
	Confidence int       `json:"confidence"`
	ThreatType string    `json:"threat_type"`
	Tags       []string  `json:"tags,omitempty"`
	Created    time.Time `json:"created"`
}

// ThreatIntelMatch is the result of one IP lookup against one source.
// Multiple matches may exist for the same IP from different sources.
type ThreatIntelMatch struct {
	IP              string   `json:"ip"`
	Source          string   `json:"source"`
	Malware         string   `json:"malware"`
	Confidence      int      `json:"confidence"` // 0-100
	ThreatType      string   `json:"threat_type"`
	Tags            []string `json:"tags,omitempty"`
	FirstSeen       string   `json:"first_seen,omitempty"`
	LastSeen        string   `json:"last_seen,omitempty"`
	ConnectionCount int      `json:"connection_count"`
}
