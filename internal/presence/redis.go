package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps viewer sets in Redis so that counts survive restarts and are
// shared across server processes. Active members live in a sorted set scored by
// their expiry deadline (a plain set with a key-level EXPIRE cannot bound the
// staleness of individual memberships); the all-time unique set is an ordinary set.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		now:    time.Now,
	}
}

func activeKey(broadcastId string) string {
	return fmt.Sprintf("broadcast:%s:viewers", broadcastId)
}

func totalKey(broadcastId string) string {
	return fmt.Sprintf("broadcast:%s:viewers_total", broadcastId)
}

// expiredCutoff formats the max score for evicting expired members. The range max is
// inclusive: a member whose deadline is exactly now is already expired, matching how
// MemoryStore prunes.
func expiredCutoff(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10)
}

func (s *RedisStore) Touch(ctx context.Context, broadcastId, viewerUuid string, ttl time.Duration) error {
	deadline := s.now().Add(ttl)
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, activeKey(broadcastId), redis.Z{
			Score:  float64(deadline.UnixMilli()),
			Member: viewerUuid,
		})
		pipe.SAdd(ctx, totalKey(broadcastId), viewerUuid)
		// Key-level expiry as a safety net so an ended broadcast's sets don't
		// outlive it indefinitely
		pipe.Expire(ctx, activeKey(broadcastId), 24*time.Hour)
		pipe.Expire(ctx, totalKey(broadcastId), 7*24*time.Hour)
		return nil
	})
	return err
}

func (s *RedisStore) Remove(ctx context.Context, broadcastId, viewerUuid string) error {
	return s.client.ZRem(ctx, activeKey(broadcastId), viewerUuid).Err()
}

func (s *RedisStore) Count(ctx context.Context, broadcastId string) (int, error) {
	key := activeKey(broadcastId)

	// Evict members whose deadline has passed, then count what's left. The two
	// steps need not be atomic: an eviction racing a concurrent count only delays
	// the drop by one read, which is within the staleness bound.
	if err := s.client.ZRemRangeByScore(ctx, key, "-inf", expiredCutoff(s.now())).Err(); err != nil {
		return 0, err
	}
	n, err := s.client.ZCard(ctx, key).Result()
	return int(n), err
}

func (s *RedisStore) TotalCount(ctx context.Context, broadcastId string) (int, error) {
	n, err := s.client.SCard(ctx, totalKey(broadcastId)).Result()
	return int(n), err
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var _ Store = (*RedisStore)(nil)
