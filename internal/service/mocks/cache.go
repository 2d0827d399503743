package mocks

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MockCacher is a mock implementation of the cache interface. Without
// overrides it behaves like an in-memory JSON cache.
type MockCacher struct {
	GetFunc          func(ctx context.Context, key string, dest any) error
	SetFunc          func(ctx context.Context, key string, value any, expiration time.Duration) error
	DeletePrefixFunc func(ctx context.Context, prefix string) (int, error)

	mu   sync.Mutex
	data map[string][]byte
}

// Get implements the cache interface
func (m *MockCacher) Get(ctx context.Context, key string, dest any) error {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key, dest)
	}
	m.mu.Lock()
	raw, ok := m.data[key]
	m.mu.Unlock()
	if !ok {
		return redis.Nil
	}
	return json.Unmarshal(raw, dest)
}

// Set implements the cache interface
func (m *MockCacher) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, expiration)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[key] = raw
	return nil
}

// DeletePrefix implements the cache interface
func (m *MockCacher) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if m.DeletePrefixFunc != nil {
		return m.DeletePrefixFunc(ctx, prefix)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

// Keys returns the keys currently stored.
func (m *MockCacher) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}

var ErrCacheDown = errors.New("cache unavailable")
