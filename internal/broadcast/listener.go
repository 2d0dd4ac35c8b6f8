package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/deskit-live/livehost/internal/lifecycle"
	"github.com/deskit-live/livehost/internal/sse"
)

// ChangeListener consumes broadcast change notifications from the database and
// republishes them as effective-status events. The database only reports stored
// fields; the listener re-derives the effective status at the moment the event is
// handled, so stream consumers see the same state as the read endpoints.
type ChangeListener struct {
	pql     *pq.Listener
	windows lifecycle.Windows
	events  chan<- sse.StatusEvent

	lastPublished map[uuid.UUID]lifecycle.Status
}

func NewChangeListener(pql *pq.Listener, windows lifecycle.Windows, events chan<- sse.StatusEvent) (*ChangeListener, error) {
	if err := pql.Listen(changeEventNotifyChannel); err != nil {
		return nil, err
	}
	return &ChangeListener{
		pql:           pql,
		windows:       windows,
		events:        events,
		lastPublished: make(map[uuid.UUID]lifecycle.Status),
	}, nil
}

func (l *ChangeListener) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return l.pql.Close()
		case notification := <-l.pql.Notify:
			// pq delivers a nil notification after a connection loss; the
			// listener re-establishes the connection on its own
			if notification == nil {
				continue
			}
			if notification.Channel != changeEventNotifyChannel {
				continue
			}
			var event ChangeEvent
			if err := json.Unmarshal([]byte(notification.Extra), &event); err != nil {
				return fmt.Errorf("failed to decode JSON payload from pg event in channel '%s': %w", notification.Channel, err)
			}
			l.handleChange(&event, time.Now())
		}
	}
}

func (l *ChangeListener) handleChange(event *ChangeEvent, now time.Time) {
	status := l.windows.Resolve(lifecycle.Inputs{
		Stored:      lifecycle.ParseStatus(event.Status),
		ScheduledAt: event.ScheduledAt,
		StartAt:     event.StartAt,
		EndAt:       event.EndAt,
	}, now)

	// Updates that don't change the effective status (thumbnail edits, visibility
	// toggles) are not lifecycle transitions; don't wake up every client for them
	if last, ok := l.lastPublished[event.Id]; ok && last == status {
		return
	}
	// A concluded broadcast's status never changes again, so its entry can be
	// dropped; only live rows need dedup tracking, which keeps the map bounded
	if lifecycle.IsTerminal(status) || status == lifecycle.StatusCanceled || status == lifecycle.StatusDeleted {
		delete(l.lastPublished, event.Id)
	} else {
		l.lastPublished[event.Id] = status
	}

	fmt.Printf("STATUS CHANGE: %s -> %s\n", event.Id, status)
	l.events <- sse.StatusEvent{
		BroadcastId: event.Id,
		Status:      status,
		At:          now,
	}
}
