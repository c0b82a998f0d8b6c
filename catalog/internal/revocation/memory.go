package revocation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nevc-media/vidstream/catalog/internal/metrics"
)

// MemoryStore keeps revocations in-process. It suits single-instance
// deployments; Run must be started to bound memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryStore) Revoke(_ context.Context, key string, expiresAt time.Time) error {
	until := expiresAt.Add(RetentionSlack)
	s.mu.Lock()
	if cur, ok := s.entries[key]; !ok || until.After(cur) {
		s.entries[key] = until
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) IsRevoked(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	_, ok := s.entries[key]
	s.mu.RUnlock()
	return ok, nil
}

// PurgeExpired drops entries whose retention ended before now and returns
// how many were removed.
func (s *MemoryStore) PurgeExpired(now time.Time) int {
	removed := 0
	s.mu.Lock()
	for key, until := range s.entries {
		if now.After(until) {
			delete(s.entries, key)
			removed++
		}
	}
	s.mu.Unlock()
	return removed
}

// Len returns the number of retained entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Run sweeps expired entries every interval until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := s.PurgeExpired(s.now())
			remaining := s.Len()
			metrics.RevokedTokensTracked.Set(float64(remaining))
			if n > 0 {
				slog.Debug("purged expired revocations", slog.Int("count", n), slog.Int("remaining", remaining))
			}
		}
	}
}
