// Package storage persists custom rules and detection history. The
// Redis store is the durable implementation; MemoryStore mirrors its
// interfaces for tests and Redis-less runs.
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/SamFrieman/c2-beacon-detector/internal/models"
)

const (
	rulesKey   = "intel:rules"
	historyKey = "detections:history"

	// DefaultHistoryCap bounds the history list; oldest evicted first.
	DefaultHistoryCap = 100
)

// RedisStore keeps custom rules in a hash and detection history in a
// capped list.
type RedisStore struct {
	client     *redis.Client
	historyCap int64
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int, historyCap int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	return &RedisStore{client: client, historyCap: int64(historyCap)}, nil
}

// LoadRules returns all persisted custom rules.
func (s *RedisStore) LoadRules(ctx context.Context) ([]models.CustomRule, error) {
	entries, err := s.client.HGetAll(ctx, rulesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	rules := make([]models.CustomRule, 0, len(entries))
	for _, data := range entries {
		var rule models.CustomRule
		if err := json.Unmarshal([]byte(data), &rule); err != nil {
			continue
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// SaveRule creates or updates one custom rule.
func (s *RedisStore) SaveRule(ctx context.Context, rule models.CustomRule) error {
	data, err := json.Marshal(rule)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, rulesKey, rule.ID, string(data)).Err()
}

// DeleteRule removes one custom rule by ID.
func (s *RedisStore) DeleteRule(ctx context.Context, id string) error {
	return s.client.HDel(ctx, rulesKey, id).Err()
}

// AppendResult pushes a result onto the history list and trims it to
// the configured cap.
func (s *RedisStore) AppendResult(ctx context.Context, result *models.DetectionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.LPush(ctx, historyKey, string(data))
	pipe.LTrim(ctx, historyKey, 0, s.historyCap-1)
	_, err = pipe.Exec(ctx)
	return err
}

// RecentResults returns up to n most recent results, newest first.
func (s *RedisStore) RecentResults(ctx context.Context, n int) ([]*models.DetectionResult, error) {
	if n <= 0 || int64(n) > s.historyCap {
		n = int(s.historyCap)
	}
	entries, err := s.client.LRange(ctx, historyKey, 0, int64(n)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	results := make([]*models.DetectionResult, 0, len(entries))
	for _, data := range entries {
		var result models.DetectionResult
		if err := json.Unmarshal([]byte(data), &result); err != nil {
			continue
		}
		results = append(results, &result)
	}
	return results, nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
