package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 5.0, Mean([]float64{5}))
	assert.Equal(t, 3.0, Mean([]float64{1, 2, 3, 4, 5}))
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 3.0, Median([]float64{5, 1, 3}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 2, 3}))
}

func TestStdDev(t *testing.T) {
	assert.Equal(t, 0.0, StdDev([]float64{42}))
	assert.Equal(t, 0.0, StdDev([]float64{7, 7, 7, 7}))
	assert.InDelta(t, 2.0, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
}

func TestMinMax(t *testing.T) {
	values := []float64{3, 1, 4, 1, 5}
	assert.Equal(t, 1.0, Min(values))
	assert.Equal(t, 5.0, Max(values))
	assert.Equal(t, 0.0, Min(nil))
	assert.Equal(t, 0.0, Max(nil))
}

func TestPercentile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, 1.0, Percentile(values, 0))
	assert.Equal(t, 10.0, Percentile(values, 100))
	assert.InDelta(t, 5.5, Percentile(values, 50), 1e-9)
}

func TestCoefficientOfVariation(t *testing.T) {
	assert.Equal(t, 0.0, CoefficientOfVariation(nil))
	// mean 0 must never divide
	assert.Equal(t, 0.0, CoefficientOfVariation([]float64{-1, 1}))
	assert.Equal(t, 0.0, CoefficientOfVariation([]float64{60, 60, 60}))
}

func TestBucketEntropy(t *testing.T) {
	// single bucket: no uncertainty
	assert.Equal(t, 0.0, BucketEntropy([]float64{60, 60.2, 60.9}, 1))
	// two equally likely buckets: exactly 1 bit
	assert.InDelta(t, 1.0, BucketEntropy([]float64{10, 10, 20, 20}, 1), 1e-9)
	assert.Equal(t, 0.0, BucketEntropy(nil, 1))
	// entropy is never negative
	assert.GreaterOrEqual(t, BucketEntropy([]float64{1, 5, 9, 33, 127}, 1), 0.0)
}

func TestCountEntropy(t *testing.T) {
	assert.Equal(t, 0.0, CountEntropy(map[int]int{443: 50}))
	assert.InDelta(t, 1.0, CountEntropy(map[int]int{80: 10, 443: 10}), 1e-9)
	assert.Equal(t, 0.0, CountEntropy(nil))
}

func TestEntropyAgreement(t *testing.T) {
	// bucketed values and pre-counted distributions must agree
	values := []float64{80, 80, 443, 443, 8080, 8080}
	counts := map[int]int{80: 2, 443: 2, 8080: 2}
	assert.InDelta(t, CountEntropy(counts), BucketEntropy(values, 0), 1e-9)
	assert.InDelta(t, math.Log2(3), CountEntropy(counts), 1e-9)
}

func TestMatchCIDR(t *testing.T) {
	tests := []struct {
		ip   string
		cidr string
		want bool
	}{
		{"10.0.0.5", "10.0.0.0/8", true},
		{"11.0.0.5", "10.0.0.0/8", false},
		{"192.168.1.1", "192.168.1.0/24", true},
		{"192.168.2.1", "192.168.1.0/24", false},
		{"203.0.113.77", "203.0.113.77/32", true},
		{"203.0.113.78", "203.0.113.77/32", false},
		{"1.2.3.4", "0.0.0.0/0", true},
		{"1.2.3.4", "not-a-cidr", false},
		{"garbage", "10.0.0.0/8", false},
		{"10.0.0.5", "10.0.0.0/33", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchCIDR(tt.ip, tt.cidr), "MatchCIDR(%s, %s)", tt.ip, tt.cidr)
	}
}

func TestIsPrivateIP(t *testing.T) {
	private := []string{"10.1.2.3", "172.16.0.1", "172.31.255.255", "192.168.0.10", "127.0.0.1", "169.254.1.1"}
	for _, ip := range private {
		assert.True(t, IsPrivateIP(ip), ip)
	}
	public := []string{"8.8.8.8", "172.32.0.1", "203.0.113.77", "11.0.0.1"}
	for _, ip := range public {
		assert.False(t, IsPrivateIP(ip), ip)
	}
	assert.False(t, IsPrivateIP("not-an-ip"))
}
