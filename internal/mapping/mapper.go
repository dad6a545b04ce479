// Package mapping annotates detection results with C2 framework
// signatures and MITRE ATT&CK techniques. Annotations are derived from
// the feature vector and intel matches and never feed back into the
// score.
package mapping

import (
	"fmt"
	"sort"
	"strings"

	"github.com/SamFrieman/c2-beacon-detector/internal/models"
)

// Confidence labels.
const (
	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
	ConfidenceLow    = "Low"
)

// familyFrameworks maps malware family substrings (lowercase) reported
// by intel sources to framework names. A family hit elevates the match
// to High regardless of timing.
var familyFrameworks = map[string]string{
	"cobalt":      "Cobalt Strike",
	"beacon":      "Cobalt Strike",
	"metasploit":  "Metasploit",
	"meterpreter": "Metasploit",
	"empire":      "PowerShell Empire",
	"sliver":      "Sliver",
	"covenant":    "Covenant",
	"quasar":      "QuasarRAT",
}

// Frameworks matches the feature vector and intel matches against
// known C2 framework signatures.
func Frameworks(fv *models.FeatureVector, matches []models.ThreatIntelMatch) []models.FrameworkMatch {
	found := make(map[string]models.FrameworkMatch)

	record := func(name, confidence, evidence string) {
		existing, ok := found[name]
		if ok && !higherConfidence(confidence, existing.Confidence) {
			return
		}
		found[name] = models.FrameworkMatch{Name: name, Confidence: confidence, Evidence: evidence}
	}

	if fv.MeanInterval >= 55 && fv.MeanInterval <= 65 && fv.Jitter < 0.10 {
		record("Cobalt Strike", ConfidenceHigh,
			fmt.Sprintf("default 60s sleep with %.3f jitter", fv.Jitter))
	}
	if fv.MeanInterval >= 110 && fv.MeanInterval <= 130 && fv.Jitter < 0.20 {
		record("Metasploit", ConfidenceMedium,
			fmt.Sprintf("~120s check-in interval with %.3f jitter", fv.Jitter))
	}
	if fv.MeanInterval >= 4 && fv.MeanInterval <= 12 && fv.Periodicity > 0.6 {
		record("PowerShell Empire", ConfidenceMedium,
			fmt.Sprintf("short %.1fs interval with %.0f%% periodicity", fv.MeanInterval, fv.Periodicity*100))
	}
	if fv.PayloadConsistency > 0.85 && fv.UniqueDestIPs == 1 {
		record("Sliver", ConfidenceLow, "uniform payloads to a single destination")
	}
	if fv.UniqueDestIPs == 1 && fv.DurationMinutes > 60 && fv.Periodicity > 0.5 {
		record("Generic C2", ConfidenceLow, "sustained periodic traffic to a single destination")
	}

	for _, m := range matches {
		family := strings.ToLower(m.Malware)
		if family == "" {
			continue
		}
		for substr, name := range familyFrameworks {
			if strings.Contains(family, substr) {
				record(name, ConfidenceHigh,
					fmt.Sprintf("threat intel reports %s on %s", m.Malware, m.IP))
			}
		}
	}

	// Deterministic order: High before Medium before Low, then name.
	var result []models.FrameworkMatch
	for _, conf := range []string{ConfidenceHigh, ConfidenceMedium, ConfidenceLow} {
		var tier []models.FrameworkMatch
		for _, fm := range found {
			if fm.Confidence == conf {
				tier = append(tier, fm)
			}
		}
		sort.Slice(tier, func(i, j int) bool { return tier[i].Name < tier[j].Name })
		result = append(result, tier...)
	}
	return result
}

// Techniques derives MITRE ATT&CK annotations from the feature vector.
func Techniques(fv *models.FeatureVector) []models.Technique {
	var techniques []models.Technique

	if fv.Periodicity > 0.7 || fv.TopPort == 80 || fv.TopPort == 443 || fv.TopPort == 8080 {
		techniques = append(techniques, models.Technique{
			ID:     "T1071",
			Name:   "Application Layer Protocol",
			Tactic: "Command and Control",
			Reason: "periodic traffic over a common application port",
		})
	}
	if fv.TopPort == 443 || (fv.UniqueDestIPs == 1 && fv.DurationMinutes > 60) {
		techniques = append(techniques, models.Technique{
			ID:     "T1573",
			Name:   "Encrypted Channel",
			Tactic: "Command and Control",
			Reason: "sustained channel on TLS port or to a single destination",
		})
	}
	if fv.PayloadConsistency > 0.80 {
		techniques = append(techniques, models.Technique{
			ID:     "T1001",
			Name:   "Data Obfuscation",
			Tactic: "Command and Control",
			Reason: "fixed-size payloads typical of padded C2 messages",
		})
	}
	return techniques
}

func higherConfidence(a, b string) bool {
	rank := map[string]int{ConfidenceHigh: 3, ConfidenceMedium: 2, ConfidenceLow: 1}
	return rank[a] > rank[b]
}
