package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/marstr/collection/v2"
	"github.com/redis/go-redis/v9"
)

// Store holds encoded documents with an expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, body []byte, ttl time.Duration) error
}

type entry struct {
	body      []byte
	expiresAt time.Time
}

// MemoryStore is an in-process LRU bounded by item count.
type MemoryStore struct {
	mu  sync.Mutex
	lru *collection.LRUCache[string, entry]
	now func() time.Time
}

func NewMemoryStore(capacity uint) *MemoryStore {
	if capacity == 0 {
		capacity = 1
	}
	return &MemoryStore{
		lru: collection.NewLRUCache[string, entry](capacity),
		now: time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lru.Get(key)
	if !ok || !m.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return e.body, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, body []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Put(key, entry{body: body, expiresAt: m.now().Add(ttl)})
	return nil
}

// RedisClient is the part of *redis.Client the store uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisStore shares documents between replicas. Expiry is left to Redis.
type RedisStore struct {
	Client RedisClient
	Prefix string
}

func NewRedisStore(client RedisClient) *RedisStore {
	return &RedisStore{Client: client, Prefix: "optionsproxy:"}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.Client.Get(ctx, r.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, body []byte, ttl time.Duration) error {
	return r.Client.Set(ctx, r.Prefix+key, body, ttl).Err()
}
