package services

import (
	"context"
	"fmt"
	"time"

	"ThreadBot/core/dispatch"

	redis "github.com/redis/go-redis/v9"
)

const (
	cooldownKeyPrefix = "threadbot:cooldown:"
	rateKeyPrefix     = "threadbot:rate:"
)

// RedisState keeps cooldowns and rate counters in Redis so several bot
// processes can share them. Expiry is left to Redis, so the now arguments are
// ignored.
type RedisState struct {
	client *redis.Client
}

var (
	_ dispatch.CooldownStore = (*RedisState)(nil)
	_ dispatch.CounterStore  = (*RedisState)(nil)
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisState(cfg RedisConfig) (*RedisState, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisState{client: client}, nil
}

func (s *RedisState) State() dispatch.State {
	return dispatch.State{Cooldowns: s, Counters: s}
}

func (s *RedisState) Close() error {
	return s.client.Close()
}

func (s *RedisState) Acquire(ctx context.Context, key string, ttl time.Duration, now time.Time) (time.Duration, bool, error) {
	if ttl <= 0 {
		remaining, err := s.Remaining(ctx, key, now)
		return remaining, remaining == 0, err
	}
	acquired, err := s.client.SetNX(ctx, cooldownKeyPrefix+key, "1", ttl).Result()
	if err != nil {
		return 0, false, err
	}
	if acquired {
		return 0, true, nil
	}
	remaining, err := s.Remaining(ctx, key, now)
	if err != nil {
		return 0, false, err
	}
	if remaining == 0 {
		// Expired between the two calls; the next attempt will acquire it.
		return time.Millisecond, false, nil
	}
	return remaining, false, nil
}

func (s *RedisState) Remaining(ctx context.Context, key string, _ time.Time) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, cooldownKeyPrefix+key).Result()
	if err != nil {
		return 0, err
	}
	// PTTL reports negative values for missing keys and keys without expiry.
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (s *RedisState) Set(ctx context.Context, key string, ttl time.Duration, _ time.Time) error {
	if ttl <= 0 {
		return s.client.Del(ctx, cooldownKeyPrefix+key).Err()
	}
	return s.client.Set(ctx, cooldownKeyPrefix+key, "1", ttl).Err()
}

// Increment counts in a fixed window that starts with the first event. The
// window's expiry is only set once so later events do not extend it.
func (s *RedisState) Increment(ctx context.Context, key string, window time.Duration, _ time.Time) (int64, error) {
	pipe := s.client.TxPipeline()
	counter := pipe.Incr(ctx, rateKeyPrefix+key)
	pipe.ExpireNX(ctx, rateKeyPrefix+key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return counter.Val(), nil
}
