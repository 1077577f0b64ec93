// Package kv persists small per-profile values as JSON blobs.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store is a byte-oriented key-value store scoped by profile.
type Store interface {
	Get(ctx context.Context, profile, key string) ([]byte, bool, error)
	Set(ctx context.Context, profile, key string, value []byte) error
	Delete(ctx context.Context, profile, key string) error
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, profile, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[profile+"/"+key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryStore) Set(_ context.Context, profile, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[profile+"/"+key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, profile, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, profile+"/"+key)
	return nil
}

// RedisStore keeps each value under "<prefix>:<profile>:<key>".
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) redisKey(profile, key string) string {
	return r.prefix + ":" + profile + ":" + key
}

func (r *RedisStore) Get(ctx context.Context, profile, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, r.redisKey(profile, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return b, true, nil
}

func (r *RedisStore) Set(ctx context.Context, profile, key string, value []byte) error {
	if err := r.client.Set(ctx, r.redisKey(profile, key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, profile, key string) error {
	if err := r.client.Del(ctx, r.redisKey(profile, key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Value is a typed JSON value with a default. Reads never fail: a missing,
// unreadable or corrupted value yields the default.
type Value[T any] struct {
	Key     string
	Default func() T
}

func (v Value[T]) Load(ctx context.Context, s Store, profile string, logger *slog.Logger) T {
	b, ok, err := s.Get(ctx, profile, v.Key)
	if err != nil {
		if logger != nil {
			logger.Warn("kv read failed", slog.String("key", v.Key), slog.String("profile", profile), slog.Any("err", err))
		}
		return v.Default()
	}
	if !ok {
		return v.Default()
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		if logger != nil {
			logger.Warn("kv value corrupted", slog.String("key", v.Key), slog.String("profile", profile), slog.Any("err", err))
		}
		return v.Default()
	}
	return out
}

// Save rewrites the whole value.
func (v Value[T]) Save(ctx context.Context, s Store, profile string, val T) error {
	b, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", v.Key, err)
	}
	return s.Set(ctx, profile, v.Key, b)
}
