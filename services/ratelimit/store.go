package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store counts hits per key within a fixed window. Incr returns the hit
// count including the current one and when the window resets.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
}

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

// MemoryStore is a process-local fallback for setups without redis. Counts
// are not shared across instances, so limits apply per process.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*memoryWindow),
	}
}

func (s *MemoryStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &memoryWindow{resetAt: now.Add(window)}
		s.windows[key] = w
	}
	w.count++

	// opportunistic sweep to keep the map from growing unbounded
	if len(s.windows) > 4096 {
		for k, v := range s.windows {
			if now.After(v.resetAt) {
				delete(s.windows, k)
			}
		}
	}

	return w.count, w.resetAt, nil
}
