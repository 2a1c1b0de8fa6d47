package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	state
	expiresAt time.Time
}

// Memory is a single-process Gateway, used when no Redis is configured.
type Memory struct {
	mu   sync.Mutex
	ttl  time.Duration
	keys map[string]*memoryEntry
	now  func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, keys: make(map[string]*memoryEntry), now: time.Now}
}

func (m *Memory) Reserve(_ context.Context, key string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.keys[key]; ok && now.Before(e.expiresAt) {
		switch e.Status {
		case statusSuccess:
			return e.Result, nil
		case statusProcessing:
			return nil, ErrInProgress
		}
	}
	m.keys[key] = &memoryEntry{state: state{Status: statusProcessing}, expiresAt: now.Add(m.ttl)}
	return nil, nil
}

func (m *Memory) MarkSuccess(_ context.Context, key string, res Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = &memoryEntry{state: state{Status: statusSuccess, Result: &res}, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *Memory) MarkFailure(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}
