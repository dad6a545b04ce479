// Package normalize maps loosely-typed connection documents onto the
// canonical Connection record. Input errors here are the only fatal
// errors in the pipeline; everything downstream degrades gracefully.
package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/SamFrieman/c2-beacon-detector/internal/models"
)

// MinConnections is the smallest dataset a valid analysis accepts.
const MinConnections = 2

// Timestamps below this are interpreted as seconds and scaled to
// milliseconds. Valid for ms epochs until roughly the year 2286.
const secondsEpochCeiling = 10_000_000_000

// How many leading records the timestamp pre-validation samples. A
// fast fail on obviously broken input, not an exhaustive check.
const validationSample = 5

// Field aliases, resolved first-non-empty in order. The canonical name
// leads each list, so normalizing already-canonical input is a no-op.
var (
	timestampAliases = []string{"timestamp", "time", "ts", "epoch", "time_unix"}
	bytesAliases     = []string{"bytes", "size", "length", "data_len", "frame_len"}
	destIPAliases    = []string{"dest_ip", "dst", "destination", "dst_ip", "ip_dst"}
	srcIPAliases     = []string{"src_ip", "src", "source"}
	destPortAliases  = []string{"dest_port", "dst_port", "dport", "port"}
	srcPortAliases   = []string{"src_port", "sport"}
	containerKeys    = []string{"connections", "packets", "flows", "events", "records", "logs"}
)

// InsufficientDataError reports a dataset too small to analyze.
type InsufficientDataError struct {
	Got  int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("need at least %d connections, found %d", e.Need, e.Got)
}

// MissingFieldError reports a required field absent from the sampled
// input records.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("no %q field found under any accepted alias", e.Field)
}

// ParseDocument extracts the raw connection list from a JSON document.
// The list may sit at the top level or under one of the accepted
// container keys.
func ParseDocument(data []byte) ([]map[string]any, error) {
	var direct []map[string]any
	if err := json.Unmarshal(data, &direct); err == nil {
		return direct, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("malformed document: %w", err)
	}
	for _, key := range containerKeys {
		raw, ok := wrapped[key]
		if !ok {
			continue
		}
		var list []map[string]any
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("container %q is not a connection list: %w", key, err)
		}
		return list, nil
	}
	return nil, fmt.Errorf("no connection list found (expected a top-level array or one of %v)", containerKeys)
}

// Connections resolves raw records to canonical Connection values.
// Timestamp presence is pre-validated on a sampled prefix; second
// resolution timestamps are scaled to milliseconds.
func Connections(raw []map[string]any) ([]models.Connection, error) {
	if len(raw) < MinConnections {
		return nil, &InsufficientDataError{Got: len(raw), Need: MinConnections}
	}

	sample := len(raw)
	if sample > validationSample {
		sample = validationSample
	}
	for i := 0; i < sample; i++ {
		if _, ok := resolveInt(raw[i], timestampAliases); !ok {
			return nil, &MissingFieldError{Field: "timestamp"}
		}
	}

	conns := make([]models.Connection, 0, len(raw))
	for _, rec := range raw {
		ts, ok := resolveInt(rec, timestampAliases)
		if !ok {
			continue
		}
		if ts < secondsEpochCeiling {
			ts *= 1000
		}

		bytes, _ := resolveInt(rec, bytesAliases)
		if bytes < 0 {
			bytes = 0
		}
		srcPort, _ := resolveInt(rec, srcPortAliases)
		destPort, _ := resolveInt(rec, destPortAliases)

		conns = append(conns, models.Connection{
			Timestamp: ts,
			Bytes:     bytes,
			SrcIP:     resolveString(rec, srcIPAliases, "unknown"),
			DestIP:    resolveString(rec, destIPAliases, "unknown"),
			SrcPort:   int(srcPort),
			DestPort:  int(destPort),
		})
	}

	if len(conns) < MinConnections {
		return nil, &InsufficientDataError{Got: len(conns), Need: MinConnections}
	}
	return conns, nil
}

func resolveInt(rec map[string]any, aliases []string) (int64, bool) {
	for _, key := range aliases {
		v, ok := rec[key]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int64(n), true
		case int:
			return int64(n), true
		case int64:
			return n, true
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return int64(f), true
			}
		case string:
			var f float64
			if _, err := fmt.Sscanf(n, "%f", &f); err == nil {
				return int64(f), true
			}
		}
	}
	return 0, false
}

func resolveString(rec map[string]any, aliases []string, def string) string {
	for _, key := range aliases {
		if v, ok := rec[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return def
}
