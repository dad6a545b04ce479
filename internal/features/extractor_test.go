package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamFrieman/c2-beacon-detector/internal/models"
	"github.com/SamFrieman/c2-beacon-detector/internal/normalize"
)

var noon = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// beacon builds count connections at a fixed interval to one IP with a
// constant payload.
func beacon(count int, interval time.Duration, bytes int64) []models.Connection {
	conns := make([]models.Connection, 0, count)
	for i := 0; i < count; i++ {
		conns = append(conns, models.Connection{
			Timestamp: noon.Add(time.Duration(i) * interval).UnixMilli(),
			Bytes:     bytes,
			SrcIP:     "192.168.1.50",
			DestIP:    "203.0.113.77",
			SrcPort:   40000 + i,
			DestPort:  443,
		})
	}
	return conns
}

func TestExtractRequiresTwoRecords(t *testing.T) {
	_, err := Extract([]models.Connection{{Timestamp: noon.UnixMilli()}})
	var insufficient *normalize.InsufficientDataError
	assert.ErrorAs(t, err, &insufficient)
}

func TestExtractPerfectBeacon(t *testing.T) {
	fv, err := Extract(beacon(60, 60*time.Second, 1024))
	require.NoError(t, err)

	assert.Equal(t, 60, fv.ConnectionCount)
	assert.InDelta(t, 60.0, fv.MeanInterval, 1e-9)
	assert.InDelta(t, 60.0, fv.MedianInterval, 1e-9)
	assert.Equal(t, 0.0, fv.Jitter)
	assert.Equal(t, 1.0, fv.Periodicity)
	assert.Equal(t, 0.0, fv.TimingEntropy)

	assert.InDelta(t, 1024.0, fv.MeanBytes, 1e-9)
	assert.Equal(t, 1.0, fv.PayloadConsistency)

	assert.Equal(t, 1, fv.UniqueDestIPs)
	assert.Equal(t, 1, fv.UniqueDestPorts)
	assert.Equal(t, 443, fv.TopPort)
	assert.Equal(t, 1.0, fv.TopPortRatio)
	assert.InDelta(t, 59.0, fv.DurationMinutes, 1e-9)
}

func TestExtractIrregularTraffic(t *testing.T) {
	intervals := []time.Duration{5, 31, 12, 27, 8, 22, 16, 3, 29, 11}
	ts := noon
	conns := []models.Connection{{Timestamp: ts.UnixMilli(), Bytes: 500, DestIP: "198.51.100.1", DestPort: 80}}
	for i, iv := range intervals {
		ts = ts.Add(iv * time.Second)
		conns = append(conns, models.Connection{
			Timestamp: ts.UnixMilli(),
			Bytes:     int64(200 + i*700),
			DestIP:    "198.51.100.1",
			DestPort:  80,
		})
	}

	fv, err := Extract(conns)
	require.NoError(t, err)
	assert.Greater(t, fv.Jitter, 0.5)
	assert.Less(t, fv.Periodicity, 0.3)
	assert.Less(t, fv.PayloadConsistency, 0.5)
	assert.Greater(t, fv.TimingEntropy, 2.0)
}

func TestRatioFeaturesBounded(t *testing.T) {
	datasets := [][]models.Connection{
		beacon(2, time.Second, 0),
		beacon(50, 45*time.Second, 900),
		{
			{Timestamp: noon.UnixMilli(), DestIP: "1.1.1.1", DestPort: 80},
			{Timestamp: noon.Add(time.Hour).UnixMilli(), DestIP: "2.2.2.2", DestPort: 443},
			{Timestamp: noon.Add(2 * time.Hour).UnixMilli(), DestIP: "3.3.3.3", DestPort: 8080},
		},
	}
	for _, conns := range datasets {
		fv, err := Extract(conns)
		require.NoError(t, err)
		for name, v := range map[string]float64{
			"periodicity":         fv.Periodicity,
			"payload_consistency": fv.PayloadConsistency,
			"port_diversity":      fv.PortDiversity,
			"top_port_ratio":      fv.TopPortRatio,
			"time_diversity":      fv.TimeDiversity,
			"night_ratio":         fv.NightRatio,
		} {
			assert.GreaterOrEqual(t, v, 0.0, name)
			assert.LessOrEqual(t, v, 1.0, name)
		}
		assert.GreaterOrEqual(t, fv.TimingEntropy, 0.0)
		assert.GreaterOrEqual(t, fv.PayloadEntropy, 0.0)
		assert.GreaterOrEqual(t, fv.PortEntropy, 0.0)
	}
}

func TestZeroPayloadsExcluded(t *testing.T) {
	conns := beacon(10, 30*time.Second, 0)
	conns[3].Bytes = 800
	conns[7].Bytes = 800

	fv, err := Extract(conns)
	require.NoError(t, err)
	assert.InDelta(t, 800.0, fv.MeanBytes, 1e-9)
	assert.Equal(t, 1.0, fv.PayloadConsistency)
}

func TestNightRatio(t *testing.T) {
	midnight := time.Date(2024, 3, 15, 23, 0, 0, 0, time.UTC)
	conns := make([]models.Connection, 0, 12)
	for i := 0; i < 12; i++ {
		conns = append(conns, models.Connection{
			Timestamp: midnight.Add(time.Duration(i) * 30 * time.Minute).UnixMilli(),
			DestIP:    "203.0.113.77",
		})
	}
	// 23:00 through 04:30, all inside the 22:00-06:00 window
	fv, err := Extract(conns)
	require.NoError(t, err)
	assert.Equal(t, 1.0, fv.NightRatio)

	fvNoon, err := Extract(beacon(12, 30*time.Minute, 100))
	require.NoError(t, err)
	assert.Less(t, fvNoon.NightRatio, 0.5)
}

func TestTimeDiversity(t *testing.T) {
	// one connection in each of 12 distinct hours
	conns := make([]models.Connection, 0, 12)
	for i := 0; i < 12; i++ {
		conns = append(conns, models.Connection{
			Timestamp: noon.Add(time.Duration(-i) * time.Hour).UnixMilli(),
			DestIP:    "203.0.113.77",
		})
	}
	fv, err := Extract(conns)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, fv.TimeDiversity, 1e-9)
}

func TestExtractorIsPure(t *testing.T) {
	conns := beacon(30, 60*time.Second, 512)
	a, err := Extract(conns)
	require.NoError(t, err)
	b, err := Extract(conns)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
