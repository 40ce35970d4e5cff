package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces the per-target lists.
const KeyPrefix = "warden:history:"

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	// URL is the connection string, e.g. "redis://localhost:6379/0".
	URL string

	// Limit is the number of entries kept per target.
	Limit int

	// ConnectTimeout bounds the initial ping.
	ConnectTimeout time.Duration
}

// RedisStore keeps one list per target, newest entry at the head.
type RedisStore struct {
	client *redis.Client
	limit  int
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("history: parsing redis url: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("history: connecting to redis: %w", err)
	}

	return &RedisStore{client: client, limit: opts.Limit}, nil
}

// Append pushes an entry onto the target's list and trims it to the limit.
func (s *RedisStore) Append(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("history: encoding entry: %w", err)
	}

	key := KeyPrefix + e.Target
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, int64(s.limit-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("history: appending to %s: %w", key, err)
	}
	return nil
}

// Latest returns the most recent entry for target.
func (s *RedisStore) Latest(ctx context.Context, target string) (Entry, error) {
	data, err := s.client.LIndex(ctx, KeyPrefix+target, 0).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, ErrNoHistory
		}
		return Entry{}, fmt.Errorf("history: reading latest for %s: %w", target, err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("history: decoding entry: %w", err)
	}
	return e, nil
}

// List returns up to limit entries for target, newest first. A limit of
// zero or less returns every entry.
func (s *RedisStore) List(ctx context.Context, target string, limit int) ([]Entry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	raw, err := s.client.LRange(ctx, KeyPrefix+target, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("history: listing %s: %w", target, err)
	}

	out := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("history: decoding entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Close closes the redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
