package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Views persists each author's rendered view between requests.
// Get returns (nil, nil) when the author has no workspace.
type Views interface {
	Get(ctx context.Context, owner string) ([]byte, error)
	Put(ctx context.Context, owner string, view []byte) error
	Delete(ctx context.Context, owner string) error
}

// Open loads the author's workspace, or an empty one.
func Open(ctx context.Context, views Views, owner string) (*Store, error) {
	view, err := views.Get(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	if len(view) == 0 {
		return New(), nil
	}
	return FromView(view)
}

// Save writes the store's view back; an empty store deletes the entry.
func Save(ctx context.Context, views Views, owner string, s *Store) error {
	view := s.View()
	if len(view) == 0 {
		return views.Delete(ctx, owner)
	}
	return views.Put(ctx, owner, view)
}

// ---- in-memory ----

type memoryViews struct {
	mu    sync.RWMutex
	views map[string][]byte
}

func NewMemoryViews() Views {
	return &memoryViews{views: map[string][]byte{}}
}

func (m *memoryViews) Get(_ context.Context, owner string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.views[owner]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *memoryViews) Put(_ context.Context, owner string, view []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views[owner] = append([]byte(nil), view...)
	return nil
}

func (m *memoryViews) Delete(_ context.Context, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.views, owner)
	return nil
}

// ---- redis ----

type redisViews struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisViews stores views under "workspace:<owner>" with a sliding TTL.
func NewRedisViews(client *redis.Client, ttl time.Duration) Views {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisViews{client: client, ttl: ttl}
}

func (r *redisViews) key(owner string) string {
	return fmt.Sprintf("workspace:%s", owner)
}

func (r *redisViews) Get(ctx context.Context, owner string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.client.Expire(ctx, r.key(owner), r.ttl)
	return data, nil
}

func (r *redisViews) Put(ctx context.Context, owner string, view []byte) error {
	return r.client.Set(ctx, r.key(owner), view, r.ttl).Err()
}

func (r *redisViews) Delete(ctx context.Context, owner string) error {
	return r.client.Del(ctx, r.key(owner)).Err()
}
