package receipt

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "dispatch:receipt:"

// Redis keeps the ledger in redis so it survives restarts.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis wraps client; entries expire after ttl (0 keeps them forever).
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Dial connects to addr and pings it.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// Seen implements Ledger with SETNX.
func (r *Redis) Seen(ctx context.Context, uniqueID, ref string) (bool, error) {
	if uniqueID == "" {
		return false, nil
	}
	created, err := r.client.SetNX(ctx, keyPrefix+uniqueID, ref, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("receipt ledger: %w", err)
	}
	return !created, nil
}
