package dedup

import (
	"context"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFirstSeen(t *testing.T) {
	m := NewMemory()
	now := time.Unix(1700000000, 0)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	first, err := m.FirstSeen(ctx, "tg:update:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	first, err = m.FirstSeen(ctx, "tg:update:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, first)

	now = now.Add(2 * time.Minute)
	first, err = m.FirstSeen(ctx, "tg:update:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)
}

func TestMemoryConcurrentCallersAgree(t *testing.T) {
	m := NewMemory()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := m.FirstSeen(context.Background(), "k", time.Minute); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryEvictsExpired(t *testing.T) {
	m := NewMemory()
	now := time.Unix(1700000000, 0)
	m.now = func() time.Time { return now }
	for i := 0; i < 255; i++ {
		_, _ = m.FirstSeen(context.Background(), strconv.Itoa(i), time.Second)
	}
	now = now.Add(time.Minute)
	_, _ = m.FirstSeen(context.Background(), "last", time.Second)
	assert.Len(t, m.seen, 1)
}

func TestNewRedisRequiresAddress(t *testing.T) {
	_, err := NewRedis(context.Background(), RedisOptions{})
	require.Error(t, err)
}

func TestRedisFirstSeen(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	r, err := NewRedis(ctx, RedisOptions{Addr: addr, Prefix: "neuroquiz:test:" + strconv.FormatInt(time.Now().UnixNano(), 36) + ":"})
	require.NoError(t, err)
	defer r.Close()

	first, err := r.FirstSeen(ctx, "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)
	first, err = r.FirstSeen(ctx, "1", time.Minute)
	require.NoError(t, err)
	assert.False(t, first)
}
