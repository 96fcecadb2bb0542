package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

type memoryEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// MemoryStore is the single-instance Store backed by a process-local map
type MemoryStore[V any] struct {
	mu      sync.Mutex
	entries map[string]memoryEntry[V]
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore. A nil clock means time.Now.
func NewMemoryStore[V any](now func() time.Time) *MemoryStore[V] {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore[V]{
		entries: make(map[string]memoryEntry[V]),
		now:     now,
	}
}

func (s *MemoryStore[V]) Get(_ context.Context, key string) (V, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V
	entry, ok := s.entries[key]
	if !ok {
		return zero, ErrNotFound
	}
	if s.expired(entry) {
		delete(s.entries, key)
		return zero, ErrNotFound
	}
	return entry.value, nil
}

// Set stores value; ttl <= 0 keeps it until deleted
func (s *MemoryStore[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry[V]{value: value}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = entry
	return nil
}

func (s *MemoryStore[V]) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

func (s *MemoryStore[V]) SweepExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if s.expired(entry) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore[V]) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.entries))
	for key, entry := range s.entries {
		if !s.expired(entry) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore[V]) expired(entry memoryEntry[V]) bool {
	return !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt)
}

// Sweeper is anything that can drop its expired entries
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// RunSweeper calls SweepExpired on every store each interval until ctx is done
func RunSweeper(ctx context.Context, interval time.Duration, logger *zap.Logger, stores ...Sweeper) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, store := range stores {
				removed, err := store.SweepExpired(ctx)
				if err != nil {
					logger.Warn("Failed to sweep session store", zap.Error(err))
					continue
				}
				if removed > 0 {
					logger.Debug("Swept expired session entries", zap.Int("removed", removed))
				}
			}
		}
	}
}
