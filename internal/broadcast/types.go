package broadcast

import (
	"time"

	"github.com/google/uuid"

	"github.com/deskit-live/livehost/internal/lifecycle"
)

// Broadcast is the JSON representation of a live-shopping session as returned to
// clients. Status and VodVisibility are always the *effective* values derived at
// read time, never the raw stored ones, so that every client observes consistent
// state without duplicating any window logic.
type Broadcast struct {
	Id                uuid.UUID            `json:"id"`
	SellerId          string               `json:"sellerId"`
	Title             string               `json:"title"`
	Status            lifecycle.Status     `json:"status"`
	VodVisibility     lifecycle.Visibility `json:"vodVisibility,omitempty"`
	AdminLock         bool                 `json:"adminLock"`
	ScheduledAt       *time.Time           `json:"scheduledAt"`
	StartAt           *time.Time           `json:"startAt"`
	EndAt             *time.Time           `json:"endAt"`
	ThumbnailUrl      string               `json:"thumbnailUrl,omitempty"`
	Products          []string             `json:"products"`
	QCards            []string             `json:"qCards,omitempty"`
	TerminationReason string               `json:"terminationReason,omitempty"`
	CancelReason      string               `json:"cancelReason,omitempty"`

	// Live viewer stats, injected only while the broadcast is effectively live; nil
	// when the broadcast is concluded or the presence store could not be reached
	ViewersCurrent *int `json:"viewersCurrent,omitempty"`
	ViewersTotal   *int `json:"viewersTotal,omitempty"`
}
