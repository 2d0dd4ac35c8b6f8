package sse

import (
	"time"

	"github.com/google/uuid"

	"github.com/deskit-live/livehost/internal/lifecycle"
)

// StatusEvent notifies connected clients that a broadcast's effective status has
// changed, so that pages can react without polling the read endpoints.
type StatusEvent struct {
	BroadcastId uuid.UUID        `json:"broadcastId"`
	Status      lifecycle.Status `json:"status"`
	At          time.Time        `json:"at"`
}
