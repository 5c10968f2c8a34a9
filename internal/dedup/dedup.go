// Package dedup remembers recently handled keys, such as Telegram update ids,
// so that redelivered work runs once.
package dedup

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Redis keeps keys in Redis so that every replica shares them.
type Redis struct {
	rdb    *goredis.Client
	prefix string
}

// RedisOptions configures NewRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedis connects to Redis and checks the connection.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, fmt.Errorf("dedup: missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("dedup: redis ping: %w", err)
	}
	return &Redis{rdb: rdb, prefix: opts.Prefix}, nil
}

// FirstSeen sets key with a ttl unless it exists.
func (r *Redis) FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, r.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup: setnx: %w", err)
	}
	return ok, nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

// Memory is a single process store.
type Memory struct {
	mu    sync.Mutex
	now   func() time.Time
	seen  map[string]time.Time
	calls int
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{now: time.Now, seen: map[string]time.Time{}}
}

// FirstSeen implements the Telegram dedupe store.
func (m *Memory) FirstSeen(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.calls++
	if m.calls%256 == 0 {
		for k, exp := range m.seen {
			if !now.Before(exp) {
				delete(m.seen, k)
			}
		}
	}
	if exp, ok := m.seen[key]; ok && now.Before(exp) {
		return false, nil
	}
	m.seen[key] = now.Add(ttl)
	return true, nil
}

// Close implements io.Closer.
func (m *Memory) Close() error { return nil }
