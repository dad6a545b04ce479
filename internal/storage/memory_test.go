package storage

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamFrieman/c2-beacon-detector/internal/models"
)

func TestMemoryStoreRules(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10)

	rules, err := store.LoadRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)

	rule := models.CustomRule{ID: "r1", Type: models.RuleTypeIP, Value: "203.0.113.77", Confidence: 80}
	require.NoError(t, store.SaveRule(ctx, rule))

	rules, err = store.LoadRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, rule, rules[0])

	// update in place
	rule.Confidence = 95
	require.NoError(t, store.SaveRule(ctx, rule))
	rules, _ = store.LoadRules(ctx)
	require.Len(t, rules, 1)
	assert.Equal(t, 95, rules[0].Confidence)

	require.NoError(t, store.DeleteRule(ctx, "r1"))
	rules, _ = store.LoadRules(ctx)
	assert.Empty(t, rules)
}

func TestMemoryStoreHistoryCap(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(3)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendResult(ctx, &models.DetectionResult{ID: strconv.Itoa(i)}))
	}

	results, err := store.RecentResults(ctx, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	// newest first, oldest evicted
	assert.Equal(t, "4", results[0].ID)
	assert.Equal(t, "3", results[1].ID)
	assert.Equal(t, "2", results[2].ID)
}

func TestMemoryStoreRecentLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10)
	for i := 0; i < 6; i++ {
		require.NoError(t, store.AppendResult(ctx, &models.DetectionResult{ID: strconv.Itoa(i)}))
	}

	results, err := store.RecentResults(ctx, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "5", results[0].ID)
}
