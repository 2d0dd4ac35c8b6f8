package broadcast

import (
	"time"

	"github.com/google/uuid"
)

// changeEventNotifyChannel is the name of the NOTIFY channel which the database uses
// to emit events whenever a row in livehost.broadcast is inserted or updated
const changeEventNotifyChannel = "livehost"

// ChangeEvent is the JSON-encoded payload emitted on changeEventNotifyChannel,
// carrying the stored fields needed to re-derive the broadcast's effective status
type ChangeEvent struct {
	Id          uuid.UUID  `json:"id"`
	Status      string     `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	StartAt     *time.Time `json:"start_at"`
	EndAt       *time.Time `json:"end_at"`
}
