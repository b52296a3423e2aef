// internal/kv/memory.go
//
// In-memory Store for tests and single-process development runs.  TTLs
// are honored lazily on read; there is no background sweeper.  A Clock
// hook lets cache tests advance time without sleeping.
package kv

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memEntry struct {
	data    []byte
	expires time.Time // zero means no expiry
}

// Memory is a map-backed Store.  Safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	items map[string]memEntry

	// Clock defaults to time.Now; tests may override before first use.
	Clock func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]memEntry), Clock: time.Now}
}

func (m *Memory) get(key string) ([]byte, bool) {
	m.mu.RLock()
	ent, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !ent.expires.IsZero() && m.Clock().After(ent.expires) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return nil, false
	}
	return ent.data, true
}

func (m *Memory) put(key string, b []byte, ttl time.Duration) {
	ent := memEntry{data: append([]byte(nil), b...)}
	if ttl > 0 {
		ent.expires = m.Clock().Add(ttl)
	}
	m.mu.Lock()
	m.items[key] = ent
	m.mu.Unlock()
}

func (m *Memory) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	b, ok := m.get(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Memory) PutJSON(_ context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.put(key, b, ttl)
	return nil
}

func (m *Memory) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	b, ok := m.get(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

func (m *Memory) PutBytes(_ context.Context, key string, b []byte, ttl time.Duration) error {
	m.put(key, b, ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) DeletePattern(_ context.Context, pattern string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int
	for k := range m.items {
		if globMatch(pattern, k) {
			delete(m.items, k)
			removed++
		}
	}
	return removed, nil
}

// globMatch implements Redis KEYS-style matching: `*` spans any run of
// characters, slashes included, and `?` matches exactly one.
func globMatch(pattern, s string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			for len(pattern) > 0 && pattern[0] == '*' {
				pattern = pattern[1:]
			}
			if pattern == "" {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if globMatch(pattern, s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if s == "" {
				return false
			}
		default:
			if s == "" || s[0] != pattern[0] {
				return false
			}
		}
		pattern, s = pattern[1:], s[1:]
	}
	return s == ""
}

func (m *Memory) Ping(context.Context) error { return nil }

// Len reports the live entry count.  Test helper.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
