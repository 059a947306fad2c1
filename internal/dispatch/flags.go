package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// FlagStore remembers which (subject, day) reports were delivered. The flag
// must survive process restarts within the same day or a restart could mail
// a professor twice.
type FlagStore interface {
	Sent(ctx context.Context, subject, day string) (bool, error)
	MarkSent(ctx context.Context, subject, day string) error
}

// MemoryFlags is a volatile flag store for dev and tests.
type MemoryFlags struct {
	mu   sync.Mutex
	sent map[string]bool
}

// NewMemoryFlags creates an empty flag store.
func NewMemoryFlags() *MemoryFlags {
	return &MemoryFlags{sent: make(map[string]bool)}
}

func (m *MemoryFlags) Sent(_ context.Context, subject, day string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[subject+"|"+day], nil
}

func (m *MemoryFlags) MarkSent(_ context.Context, subject, day string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[subject+"|"+day] = true
	return nil
}

// RedisFlags keeps flags in redis under day-scoped keys so restarts keep the
// at-most-once guarantee. Keys expire after two days; day rollover makes a
// fresh key anyway.
type RedisFlags struct {
	client *redis.Client
}

// NewRedisFlags creates a redis-backed flag store.
func NewRedisFlags(client *redis.Client) *RedisFlags {
	return &RedisFlags{client: client}
}

func flagKey(subject, day string) string {
	return "rollcall:reported:" + subject + ":" + day
}

func (r *RedisFlags) Sent(ctx context.Context, subject, day string) (bool, error) {
	n, err := r.client.Exists(ctx, flagKey(subject, day)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisFlags) MarkSent(ctx context.Context, subject, day string) error {
	return r.client.Set(ctx, flagKey(subject, day), "1", 48*time.Hour).Err()
}
