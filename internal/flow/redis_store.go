package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/treelogistics/driverdesk/internal/models"
)

const redisKeyPrefix = "flow:"

// RedisStore is a Redis-backed Store for deployments that need flow
// state to survive restarts or be shared across replicas. Expiry is
// delegated to Redis key TTLs, so reads never see stale state.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis at addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	return NewRedisStoreWithTTL(ctx, addr, DefaultTTL)
}

// NewRedisStoreWithTTL connects to Redis at addr with a custom TTL.
func NewRedisStoreWithTTL(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	slog.Info("RedisStore connected", "addr", addr, "ttl", ttl)
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) key(id string) string {
	return redisKeyPrefix + id
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.ConversationState, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read flow state for %s: %w", id, err)
	}
	var state models.ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode flow state for %s: %w", id, err)
	}
	return &state, nil
}

func (s *RedisStore) Put(ctx context.Context, id string, state *models.ConversationState) error {
	now := time.Now()
	stored := state.Clone()
	stored.LastActivityAt = now
	if stored.StartedAt.IsZero() {
		stored.StartedAt = now
	}
	if existing, err := s.Get(ctx, id); err == nil && existing != nil && !existing.StartedAt.IsZero() {
		stored.StartedAt = existing.StartedAt
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode flow state for %s: %w", id, err)
	}
	if err := s.client.Set(ctx, s.key(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store flow state for %s: %w", id, err)
	}
	slog.Debug("RedisStore flow stored", "id", id, "step", stored.Step)
	return nil
}

func (s *RedisStore) Merge(ctx context.Context, id string, patch models.StatePatch) error {
	state, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if state == nil {
		slog.Debug("RedisStore merge into absent flow ignored", "id", id)
		return nil
	}
	patch.Apply(state)
	return s.Put(ctx, id, state)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete flow state for %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) ClearAll(ctx context.Context) error {
	var cursor uint64
	var cleared int
	for {
		keys, next, err := s.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan flow keys: %w", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete flow keys: %w", err)
			}
			cleared += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	slog.Info("RedisStore cleared all flows", "count", cleared)
	return nil
}

func (s *RedisStore) ActiveCount(ctx context.Context) (int, error) {
	var cursor uint64
	var count int
	for {
		keys, next, err := s.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan flow keys: %w", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return count, nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
