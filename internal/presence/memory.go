package presence

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store, used when no Redis is configured and as the
// store backing handler tests. Expired members are pruned lazily whenever their
// broadcast's set is touched or counted.
type MemoryStore struct {
	mu     sync.Mutex
	active map[string]map[string]time.Time
	total  map[string]map[string]struct{}
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		active: make(map[string]map[string]time.Time),
		total:  make(map[string]map[string]struct{}),
		now:    time.Now,
	}
}

func (s *MemoryStore) Touch(ctx context.Context, broadcastId, viewerUuid string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune(broadcastId)
	if s.active[broadcastId] == nil {
		s.active[broadcastId] = make(map[string]time.Time)
	}
	s.active[broadcastId][viewerUuid] = s.now().Add(ttl)

	if s.total[broadcastId] == nil {
		s.total[broadcastId] = make(map[string]struct{})
	}
	s.total[broadcastId][viewerUuid] = struct{}{}
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, broadcastId, viewerUuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.active[broadcastId], viewerUuid)
	return nil
}

func (s *MemoryStore) Count(ctx context.Context, broadcastId string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune(broadcastId)
	return len(s.active[broadcastId]), nil
}

func (s *MemoryStore) TotalCount(ctx context.Context, broadcastId string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.total[broadcastId]), nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// prune evicts expired members; the caller must hold the mutex
func (s *MemoryStore) prune(broadcastId string) {
	now := s.now()
	for viewerUuid, deadline := range s.active[broadcastId] {
		if !deadline.After(now) {
			delete(s.active[broadcastId], viewerUuid)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
