package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"travel_agent/src/model"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

// RedisSnapshots stores one JSON snapshot per user under session:<user_id>
type RedisSnapshots struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSnapshots(ctx context.Context, config model.RedisConfig) (*RedisSnapshots, error) {
	if config.URL == "" {
		return nil, &model.ValidationError{Field: "REDIS_URL", Reason: "must not be empty"}
	}

	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSnapshots{client: client, ttl: config.SnapshotTTL}, nil
}

// Load reads the snapshot and refreshes its TTL
func (r *RedisSnapshots) Load(ctx context.Context, userID string) (*model.SessionSnapshot, error) {
	data, err := r.client.GetEx(ctx, keyPrefix+userID, r.ttl).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSnapshotNotFound
		}
		return nil, &model.StorageError{Op: "load snapshot", UserID: userID, Err: err}
	}

	var snap model.SessionSnapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return nil, &model.StorageError{Op: "decode snapshot", UserID: userID, Err: err}
	}
	return &snap, nil
}

func (r *RedisSnapshots) Save(ctx context.Context, snap model.SessionSnapshot) error {
	data, err := sonic.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+snap.UserID, data, r.ttl).Err(); err != nil {
		return &model.StorageError{Op: "save snapshot", UserID: snap.UserID, Err: err}
	}
	return nil
}

func (r *RedisSnapshots) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, keyPrefix+userID).Err(); err != nil {
		return &model.StorageError{Op: "delete snapshot", UserID: userID, Err: err}
	}
	return nil
}

func (r *RedisSnapshots) Close() error {
	return r.client.Close()
}
