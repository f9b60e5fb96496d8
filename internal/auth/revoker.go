package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/docshare/docshare/internal/config"
)

// Revoker remembers logged-out tokens until they expire.
type Revoker interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// NewRevoker builds the store selected by cfg.Type.
func NewRevoker(ctx context.Context, cfg config.CacheConfig) (Revoker, error) {
	if cfg.Type != "redis" {
		return NewMemoryRevoker(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisRevoker(client), nil
}

// RedisRevoker keeps one key per revoked token with a TTL matching its expiry.
type RedisRevoker struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisRevoker(client redis.Cmdable) *RedisRevoker {
	return &RedisRevoker{client: client, now: time.Now}
}

func (r *RedisRevoker) key(token string) string {
	return "blacklist:" + token
}

func (r *RedisRevoker) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, r.key(token), "1", ttl).Err()
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, token string) (bool, error) {
	_, err := r.client.Get(ctx, r.key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MemoryRevoker is the single-process fallback. Entries vanish on restart.
type MemoryRevoker struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *MemoryRevoker) Revoke(_ context.Context, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !expiresAt.After(now) {
		return nil
	}
	m.prune(now)
	m.entries[token] = expiresAt
	return nil
}

func (m *MemoryRevoker) IsRevoked(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.entries[token]
	if !ok {
		return false, nil
	}
	if !exp.After(m.now()) {
		delete(m.entries, token)
		return false, nil
	}
	return true, nil
}

// prune drops expired entries. Caller holds mu.
func (m *MemoryRevoker) prune(now time.Time) {
	for token, exp := range m.entries {
		if !exp.After(now) {
			delete(m.entries, token)
		}
	}
}
