package storage

import (
	"context"
	"sync"

	"github.com/SamFrieman/c2-beacon-detector/internal/models"
)

// MemoryStore is an in-memory implementation of the rule and history
// stores. Safe for concurrent use.
type MemoryStore struct {
	mu         sync.RWMutex
	rules      map[string]models.CustomRule
	history    []*models.DetectionResult
	historyCap int
}

// NewMemoryStore builds an empty store with the given history cap.
func NewMemoryStore(historyCap int) *MemoryStore {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	return &MemoryStore{
		rules:      make(map[string]models.CustomRule),
		historyCap: historyCap,
	}
}

// LoadRules returns all rules.
func (s *MemoryStore) LoadRules(ctx context.Context) ([]models.CustomRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rules := make([]models.CustomRule, 0, len(s.rules))
	for _, rule := range s.rules {
		rules = append(rules, rule)
	}
	return rules, nil
}

// SaveRule creates or updates one rule.
func (s *MemoryStore) SaveRule(ctx context.Context, rule models.CustomRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rule.ID] = rule
	return nil
}

// DeleteRule removes one rule by ID.
func (s *MemoryStore) DeleteRule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, id)
	return nil
}

// AppendResult prepends a result, evicting the oldest past the cap.
func (s *MemoryStore) AppendResult(ctx context.Context, result *models.DetectionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append([]*models.DetectionResult{result}, s.history...)
	if len(s.history) > s.historyCap {
		s.history = s.history[:s.historyCap]
	}
	return nil
}

// RecentResults returns up to n most recent results, newest first.
func (s *MemoryStore) RecentResults(ctx context.Context, n int) ([]*models.DetectionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.history) {
		n = len(s.history)
	}
	out := make([]*models.DetectionResult, n)
	copy(out, s.history[:n])
	return out, nil
}
