package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements TTL on a go-redis client. The client is constructed by
// the host process and injected once at startup; Redis never dials or
// re-creates connections itself.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an already-configured client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Get implements TTL.
func (s *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return val, nil
}

// Set implements TTL.
func (s *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("store: non-positive ttl")
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Update implements TTL. ttl <= 0 maps to SET ... KEEPTTL.
func (s *Redis) Update(ctx context.Context, key, value string, ttl time.Duration) error {
	var err error
	if ttl > 0 {
		err = s.client.Set(ctx, key, value, ttl).Err()
	} else {
		err = s.client.Set(ctx, key, value, redis.KeepTTL).Err()
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete implements TTL.
func (s *Redis) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// GetDel implements TTL.
func (s *Redis) GetDel(ctx context.Context, key string) (string, error) {
	val, err := s.client.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return val, nil
}

// Incr implements TTL using the INCR-then-EXPIRE fixed window: only the
// increment that created the key arms the expiry, so the window is never
// extended by later attempts.
func (s *Redis) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return count, nil
}
