package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix 每个用户的信息流缓存键前缀
const KeyPrefix = "newsfeed:"

// FeedKey returns the cache key holding userID's materialized feed.
func FeedKey(userID string) string { return KeyPrefix + userID }

// FeedStore 按 score 排序的信息流缓存（成员 = postID，score = 时间戳）
type FeedStore interface {
	// Upsert 同一 member 重复写入只更新 score，不产生重复项
	Upsert(ctx context.Context, key, member string, score float64) error
	// RangeDescByRank 按 score 从高到低返回 [start, stop] 闭区间
	RangeDescByRank(ctx context.Context, key string, start, stop int64) ([]string, error)
	Cardinality(ctx context.Context, key string) (int64, error)
	Remove(ctx context.Context, key, member string) error
	Delete(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	KeysMatchingPrefix(ctx context.Context, prefix string) ([]string, error)
}

type redisFeedStore struct{ client *redis.Client }

// NewRedisFeedStore 基于 Redis ZSET 的实现
func NewRedisFeedStore(client *redis.Client) FeedStore { return &redisFeedStore{client: client} }

func (s *redisFeedStore) Upsert(ctx context.Context, key, member string, score float64) error {
	return s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (s *redisFeedStore) RangeDescByRank(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return s.client.ZRevRange(ctx, key, start, stop).Result()
}

func (s *redisFeedStore) Cardinality(ctx context.Context, key string) (int64, error) {
	return s.client.ZCard(ctx, key).Result()
}

func (s *redisFeedStore) Remove(ctx context.Context, key, member string) error {
	return s.client.ZRem(ctx, key, member).Err()
}

func (s *redisFeedStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *redisFeedStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

func (s *redisFeedStore) KeysMatchingPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
