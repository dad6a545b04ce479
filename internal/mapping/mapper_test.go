package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamFrieman/c2-beacon-detector/internal/models"
)

func TestCobaltStrikeSignature(t *testing.T) {
	fv := &models.FeatureVector{MeanInterval: 60, Jitter: 0.04}
	frameworks := Frameworks(fv, nil)
	require.NotEmpty(t, frameworks)
	assert.Equal(t, "Cobalt Strike", frameworks[0].Name)
	assert.Equal(t, ConfidenceHigh, frameworks[0].Confidence)
}

func TestMetasploitSignature(t *testing.T) {
	fv := &models.FeatureVector{MeanInterval: 120, Jitter: 0.15}
	frameworks := Frameworks(fv, nil)
	require.Len(t, frameworks, 1)
	assert.Equal(t, "Metasploit", frameworks[0].Name)
	assert.Equal(t, ConfidenceMedium, frameworks[0].Confidence)
}

func TestEmpireSignature(t *testing.T) {
	fv := &models.FeatureVector{MeanInterval: 5, Jitter: 0.3, Periodicity: 0.8}
	frameworks := Frameworks(fv, nil)
	require.Len(t, frameworks, 1)
	assert.Equal(t, "PowerShell Empire", frameworks[0].Name)
}

func TestNoSignatureOnBenignTiming(t *testing.T) {
	fv := &models.FeatureVector{MeanInterval: 20, Jitter: 0.8, Periodicity: 0.1, UniqueDestIPs: 5}
	assert.Empty(t, Frameworks(fv, nil))
}

func TestIntelFamilyElevatesConfidence(t *testing.T) {
	// timing alone would never name Sliver with high confidence
	fv := &models.FeatureVector{MeanInterval: 20, Jitter: 0.8}
	matches := []models.ThreatIntelMatch{
		{IP: "203.0.113.9", Malware: "win.sliver_beta", Confidence: 80},
	}
	frameworks := Frameworks(fv, matches)
	require.NotEmpty(t, frameworks)
	assert.Equal(t, "Sliver", frameworks[0].Name)
	assert.Equal(t, ConfidenceHigh, frameworks[0].Confidence)
}

func TestFamilyElevationBeatsTimingConfidence(t *testing.T) {
	fv := &models.FeatureVector{MeanInterval: 120, Jitter: 0.15}
	matches := []models.ThreatIntelMatch{
		{IP: "203.0.113.9", Malware: "Meterpreter", Confidence: 90},
	}
	frameworks := Frameworks(fv, matches)
	require.Len(t, frameworks, 1)
	assert.Equal(t, "Metasploit", frameworks[0].Name)
	assert.Equal(t, ConfidenceHigh, frameworks[0].Confidence)
}

func TestFrameworksOrderedByConfidence(t *testing.T) {
	fv := &models.FeatureVector{
		MeanInterval:       60,
		Jitter:             0.04,
		PayloadConsistency: 0.9,
		UniqueDestIPs:      1,
		DurationMinutes:    90,
		Periodicity:        0.9,
	}
	frameworks := Frameworks(fv, nil)
	require.NotEmpty(t, frameworks)
	assert.Equal(t, "Cobalt Strike", frameworks[0].Name)
	for i := 1; i < len(frameworks); i++ {
		assert.True(t, rank(frameworks[i-1].Confidence) >= rank(frameworks[i].Confidence))
	}
}

func TestTechniques(t *testing.T) {
	fv := &models.FeatureVector{
		Periodicity:        0.9,
		TopPort:            443,
		PayloadConsistency: 0.95,
		UniqueDestIPs:      1,
		DurationMinutes:    120,
	}
	techniques := Techniques(fv)
	ids := make([]string, 0, len(techniques))
	for _, tech := range techniques {
		ids = append(ids, tech.ID)
	}
	assert.Equal(t, []string{"T1071", "T1573", "T1001"}, ids)
}

func TestTechniquesEmptyForQuietVector(t *testing.T) {
	fv := &models.FeatureVector{Periodicity: 0.2, TopPort: 9999, PayloadConsistency: 0.4, UniqueDestIPs: 4}
	assert.Empty(t, Techniques(fv))
}

func rank(confidence string) int {
	switch confidence {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	default:
		return 1
	}
}
