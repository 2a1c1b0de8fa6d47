package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "idempotency:maremotors:"

// Redis is a Gateway shared by every instance of the API. A key is claimed
// with SET NX so only one request can own it.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) key(k string) string { return keyPrefix + k }

func (r *Redis) Reserve(ctx context.Context, key string) (*Result, error) {
	k := r.key(key)
	raw, err := json.Marshal(state{Status: statusProcessing})
	if err != nil {
		return nil, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		_, err := r.client.SetArgs(ctx, k, raw, redis.SetArgs{Mode: "NX", TTL: r.ttl}).Result()
		if err == nil {
			return nil, nil
		}
		if !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redis set: %w", err)
		}

		data, err := r.client.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			// Expired or released between the two calls.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get: %w", err)
		}
		var st state
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, fmt.Errorf("redis unmarshal: %w", err)
		}
		switch st.Status {
		case statusSuccess:
			return st.Result, nil
		case statusProcessing:
			return nil, ErrInProgress
		}
		if err := r.client.Del(ctx, k).Err(); err != nil {
			return nil, fmt.Errorf("redis del: %w", err)
		}
	}
}

func (r *Redis) MarkSuccess(ctx context.Context, key string, res Result) error {
	raw, err := json.Marshal(state{Status: statusSuccess, Result: &res})
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(key), raw, r.ttl).Err()
}

func (r *Redis) MarkFailure(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// Ping reports whether the server is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
