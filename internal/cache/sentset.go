// Package cache provides a Redis-backed fast path for duplicate checks.
//
// Every successful RecordSends adds the batch's normalized keys to a
// per-business Redis set with a TTL. CheckDuplicates consults the set
// before touching Postgres, so the hot path of a campaign re-send skips
// the database entirely for addresses mailed recently.
//
// The cache is strictly best-effort: a miss or a Redis failure just falls
// through to the repository, and Postgres remains the source of truth.
// The service never fails a request because Redis is down.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 24 * time.Hour

// SentSet caches recently recorded send keys per business.
type SentSet struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSentSet creates a sent-key cache. A zero ttl gets the 24h default.
func NewSentSet(client *redis.Client, ttl time.Duration) *SentSet {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &SentSet{client: client, ttl: ttl}
}

func setKey(businessID string) string {
	return "tracking:sent:" + businessID
}

// Contains reports which of the given keys are cached as sent.
func (s *SentSet) Contains(ctx context.Context, businessID string, keys []string) (map[string]bool, error) {
	if len(keys) == 0 {
		return map[string]bool{}, nil
	}
	members := make([]interface{}, len(keys))
	for i, k := range keys {
		members[i] = k
	}
	hits, err := s.client.SMIsMember(ctx, setKey(businessID), members...).Result()
	if err != nil {
		return nil, fmt.Errorf("cache membership check: %w", err)
	}
	out := make(map[string]bool, len(keys))
	for i, hit := range hits {
		if hit {
			out[keys[i]] = true
		}
	}
	return out, nil
}

// Add marks keys as sent for the business and refreshes the set's TTL.
// The TTL bounds staleness after an out-of-band reset or data fix; expiry
// only costs a database read, never correctness.
func (s *SentSet) Add(ctx context.Context, businessID string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	members := make([]interface{}, len(keys))
	for i, k := range keys {
		members[i] = k
	}
	key := setKey(businessID)
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache add: %w", err)
	}
	return nil
}

// Invalidate drops the business's cached set. Called on reset so stale
// hits cannot resurrect deleted tracking state.
func (s *SentSet) Invalidate(ctx context.Context, businessID string) error {
	if err := s.client.Del(ctx, setKey(businessID)).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
