package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"gigalert/discovery-service/internal/model"
)

const (
	listingKeyPrefix = "gigalert:listing:"
	// discoveredIndex is a sorted set of listing keys scored by discovery time (unix ms).
	discoveredIndex = "gigalert:listings:discovered"
)

// RedisStore keeps one JSON value per (owner, link) plus a time index used by purges.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore constructs a RedisStore on an existing client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func redisListingKey(link, ownerID string) string {
	return listingKeyPrefix + url.PathEscape(ownerID) + ":" + link
}

func (s *RedisStore) Exists(ctx context.Context, link, ownerID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, redisListingKey(link, ownerID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Record(ctx context.Context, l model.Listing) (bool, error) {
	l = stampDiscovered(l, time.Now())
	key := redisListingKey(l.Link, l.OwnerID)

	data, err := json.Marshal(l)
	if err != nil {
		return false, fmt.Errorf("marshal listing: %w", err)
	}

	var set *redis.BoolCmd
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		set = p.SetNX(ctx, key, data, 0)
		p.ZAddNX(ctx, discoveredIndex, redis.Z{
			Score:  float64(l.DiscoveredAt.UnixMilli()),
			Member: key,
		})
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis record: %w", err)
	}
	return set.Val(), nil
}

func (s *RedisStore) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age).UnixMilli()

	keys, err := s.rdb.ZRangeByScore(ctx, discoveredIndex, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis purge scan: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	members := make([]any, len(keys))
	for i, k := range keys {
		members[i] = k
	}

	var del *redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, keys...)
		p.ZRem(ctx, discoveredIndex, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis purge: %w", err)
	}
	return del.Val(), nil
}
