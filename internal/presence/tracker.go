package presence

import (
	"context"
	"fmt"
	"time"
)

// DefaultTTL bounds how stale a viewer membership can be: clients heartbeat by
// re-joining every 30 seconds, so three missed beats evict the membership.
const DefaultTTL = 90 * time.Second

// Store holds the per-broadcast viewer sets. Implementations must make each
// operation atomic per (broadcastId, viewerUuid) key so that join/leave from the
// same caller are never observed out of order, and Count must reflect only members
// whose TTL has not elapsed.
type Store interface {
	// Touch adds the member to the broadcast's active set (or refreshes its TTL if
	// already present) and records it in the all-time unique set
	Touch(ctx context.Context, broadcastId, viewerUuid string, ttl time.Duration) error
	// Remove drops the member from the active set; removing an absent member is a
	// no-op. The all-time set is never decremented.
	Remove(ctx context.Context, broadcastId, viewerUuid string) error
	// Count returns the number of non-expired members in the active set
	Count(ctx context.Context, broadcastId string) (int, error)
	// TotalCount returns the all-time number of unique viewers
	TotalCount(ctx context.Context, broadcastId string) (int, error)
	// Ping reports whether the store is reachable
	Ping(ctx context.Context) error
}

// Tracker maintains a deduplicated concurrent-viewer count per broadcast. Joins are
// idempotent and double as heartbeats; a client that disconnects without leaving is
// evicted once its TTL elapses.
type Tracker struct {
	store Store
	ttl   time.Duration
}

func NewTracker(store Store, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{store: store, ttl: ttl}
}

// Join adds the viewer to the broadcast's set and returns the resulting count.
// Re-joining refreshes the member's TTL without changing the count.
func (t *Tracker) Join(ctx context.Context, broadcastId, viewerUuid string) (int, error) {
	if viewerUuid == "" {
		return 0, fmt.Errorf("viewerUuid is required")
	}
	if err := t.store.Touch(ctx, broadcastId, viewerUuid, t.ttl); err != nil {
		return 0, err
	}
	return t.store.Count(ctx, broadcastId)
}

// Leave removes the viewer if present and returns the resulting count. Leaving a
// broadcast one never joined is a no-op.
func (t *Tracker) Leave(ctx context.Context, broadcastId, viewerUuid string) (int, error) {
	if err := t.store.Remove(ctx, broadcastId, viewerUuid); err != nil {
		return 0, err
	}
	return t.store.Count(ctx, broadcastId)
}

// Count reports the current number of unique concurrent viewers without mutating
// anything.
func (t *Tracker) Count(ctx context.Context, broadcastId string) (int, error) {
	return t.store.Count(ctx, broadcastId)
}

// Total reports the all-time number of unique viewers; it never decreases.
func (t *Tracker) Total(ctx context.Context, broadcastId string) (int, error) {
	return t.store.TotalCount(ctx, broadcastId)
}
