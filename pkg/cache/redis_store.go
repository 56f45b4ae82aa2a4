package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces the keys written by RedisStore.
const DefaultRedisPrefix = "catalog:req:"

// RedisStore is an EntryStore backed by Redis. Each URL maps to a sorted set
// of JSON-encoded entries scored by fetch time in milliseconds.
type RedisStore struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a store on redisClient. A zero ttl keeps entries
// until they are replaced.
func NewRedisStore(redisClient *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) redisKey(key string) string {
	return s.prefix + key
}

// Get returns the newest entry for key.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	members, err := s.redis.ZRevRange(ctx, s.redisKey(key), 0, 0).Result()
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis zrevrange: %w", err)
	}
	if len(members) == 0 {
		return nil, ErrCacheMiss
	}

	var entry Entry
	if err := json.Unmarshal([]byte(members[0]), &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if !entry.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEntry, key)
	}
	return &entry, nil
}

// Put stores entry, replacing older entries for the URL when replace is set.
func (s *RedisStore) Put(ctx context.Context, entry *Entry, replace bool) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	redisKey := s.redisKey(entry.URL)
	pipe := s.redis.TxPipeline()
	if replace {
		pipe.Del(ctx, redisKey)
	}
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(entry.FetchedAt.UnixMilli()),
		Member: data,
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, redisKey, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis zadd: %w", err)
	}
	return nil
}

// LastFetched returns the newest fetch time for key.
func (s *RedisStore) LastFetched(ctx context.Context, key string) (time.Time, error) {
	entry, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return time.Time{}, nil
		}
		if errors.Is(err, ErrInvalidEntry) {
			// fall back to the score, which survives a broken member
			return s.lastScore(ctx, key)
		}
		CacheErrors.WithLabelValues("last_fetched").Inc()
		return time.Time{}, err
	}
	return entry.FetchedAt, nil
}

func (s *RedisStore) lastScore(ctx context.Context, key string) (time.Time, error) {
	scored, err := s.redis.ZRevRangeWithScores(ctx, s.redisKey(key), 0, 0).Result()
	if err != nil {
		CacheErrors.WithLabelValues("last_fetched").Inc()
		return time.Time{}, fmt.Errorf("redis zrevrange: %w", err)
	}
	if len(scored) == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(int64(scored[0].Score)).UTC(), nil
}

// Exists reports whether an entry is stored for key.
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.redisKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Count returns the number of URLs with stored entries.
func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	var (
		cursor uint64
		n      int64
	)
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, s.prefix+"*", 500).Result()
		if err != nil {
			return 0, fmt.Errorf("redis scan: %w", err)
		}
		n += int64(len(keys))
		if next == 0 {
			return n, nil
		}
		cursor = next
	}
}

// Delete removes every entry for key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.redisKey(key)).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
