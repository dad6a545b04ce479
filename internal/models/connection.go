package models

import "time"

// Connection represents a single observed network connection event.
// Timestamp is milliseconds since epoch; the normalizer auto-scales
// second-resolution inputs.
type Connection struct {
	Timestamp int64  `json:"timestamp"`
	Bytes     int64  `json:"bytes"`
	SrcIP     string `json:"src_ip"`
	DestIP    string `json:"dest_ip"`
	SrcPort   int    `json:"src_port"`
	DestPort  int    `json:"dest_port"`
}

// Time returns the connection timestamp as a UTC time.
func (c Connection) Time() time.Time {
	return time.UnixMilli(c.Timestamp).UTC()
}

// FeatureVector holds the behavioral features derived from one
// connection list. All ratio features are in [0,1]; entropies are in
// bits; intervals are seconds. Hour-of-day features use UTC so the same
// dataset scores identically everywhere.
type FeatureVector struct {
	// Timing
	MeanInterval   float64 `json:"mean_interval"`
	MedianInterval float64 `json:"median_interval"`
	StdDevInterval float64 `json:"stddev_interval"`
	MinInterval    float64 `json:"min_interval"`
	MaxInterval    float64 `json:"max_interval"`
	Jitter         float64 `json:"jitter"`
	Periodicity    float64 `json:"periodicity"`
	TimingEntropy  float64 `json:"timing_entropy"`

	// Payload
	MeanBytes          float64 `json:"mean_bytes"`
	MedianBytes        float64 `json:"median_bytes"`
	StdDevBytes        float64 `json:"stddev_bytes"`
	MinBytes           float64 `json:"min_bytes"`
	MaxBytes           float64 `json:"max_bytes"`
	PayloadConsistency float64 `json:"payload_consistency"`
	PayloadEntropy     float64 `json:"payload_entropy"`

	// Network
	ConnectionCount int     `json:"connection_count"`
	DurationMinutes float64 `json:"duration_minutes"`
	DurationHours   float64 `json:"duration_hours"`
	UniqueDestIPs   int     `json:"unique_dest_ips"`
	UniqueSrcPorts  int     `json:"unique_src_ports"`
	UniqueDestPorts int     `json:"unique_dest_ports"`
	PortDiversity   float64 `json:"port_diversity"`
	PortEntropy     float64 `json:"port_entropy"`
	TopPort         int     `json:"top_port"`
	TopPortRatio    float64 `json:"top_port_ratio"`

	// Time of day
	TimeDiversity float64 `json:"time_diversity"`
	NightRatio    float64 `json:"night_ratio"`
}
