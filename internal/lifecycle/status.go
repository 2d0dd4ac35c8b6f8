package lifecycle

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a broadcast. The stored status may lag reality:
// a broadcast that was persisted as READY an hour ago is not still ready. Callers
// must derive the effective status via Windows.Resolve on every read rather than
// trusting what was last written to the database.
type Status string

const (
	StatusReserved Status = "RESERVED"
	StatusReady    Status = "READY"
	StatusOnAir    Status = "ON_AIR"
	StatusEnded    Status = "ENDED"
	StatusEncoding Status = "ENCODING"
	StatusVod      Status = "VOD"
	StatusCanceled Status = "CANCELED"
	StatusStopped  Status = "STOPPED"
	StatusDeleted  Status = "DELETED"
)

// ParseStatus maps a stored status string onto a known Status value, tolerating the
// aliases that older rows carry. Anything unrecognized is treated as RESERVED.
func ParseStatus(s string) Status {
	switch strings.ToUpper(s) {
	case "READY":
		return StatusReady
	case "ON_AIR", "LIVE":
		return StatusOnAir
	case "ENDED", "END":
		return StatusEnded
	case "ENCODING":
		return StatusEncoding
	case "VOD":
		return StatusVod
	case "CANCELED":
		return StatusCanceled
	case "STOPPED", "STOPED":
		return StatusStopped
	case "DELETED":
		return StatusDeleted
	default:
		return StatusReserved
	}
}

// BroadcastDuration is the scheduled length of a broadcast, used to infer a scheduled
// end time when a live record carries no explicit end time.
const BroadcastDuration = 30 * time.Minute

// Windows configures the ready window around a broadcast's scheduled start: the
// broadcast may be claimed from PreStart before the start time until Grace after it.
// Deployments run different widths (10m/10m and 30m/10m both exist in the wild), so
// both halves are policy inputs rather than constants.
type Windows struct {
	PreStart time.Duration
	Grace    time.Duration
}

// DefaultWindows is the symmetric ten-minute ready window.
var DefaultWindows = Windows{PreStart: 10 * time.Minute, Grace: 10 * time.Minute}

// Inputs are the stored fields that determine a broadcast's effective status.
type Inputs struct {
	Stored      Status
	ScheduledAt *time.Time
	StartAt     *time.Time
	EndAt       *time.Time
}

// ScheduledEnd returns the time at which a live broadcast is due to end: its explicit
// end time if one is set, otherwise BroadcastDuration past its start.
func ScheduledEnd(startAt, endAt *time.Time) *time.Time {
	if endAt != nil {
		return endAt
	}
	if startAt != nil {
		t := startAt.Add(BroadcastDuration)
		return &t
	}
	return nil
}

// Resolve derives the effective status of a broadcast from its stored fields and the
// given current time. It is a pure function: it never mutates anything and calling it
// repeatedly with the same inputs yields the same result, so callers re-evaluate it on
// every read instead of persisting its output.
//
// Terminal statuses pass through unchanged. An ON_AIR record whose scheduled end has
// elapsed resolves to ENDED, as a safety net against a broadcast that was never
// explicitly ended. A READY record is only valid inside the ready window; outside it,
// the unclaimed slot lapses to CANCELED. A RESERVED record is promoted to READY once
// the window opens and lapses to CANCELED once the grace period has passed.
func (w Windows) Resolve(in Inputs, now time.Time) Status {
	switch in.Stored {
	case StatusVod, StatusCanceled, StatusStopped, StatusEnded, StatusEncoding, StatusDeleted:
		return in.Stored
	case StatusOnAir:
		liveStart := in.StartAt
		if liveStart == nil {
			liveStart = in.ScheduledAt
		}
		if end := ScheduledEnd(liveStart, in.EndAt); end != nil && now.After(*end) {
			return StatusEnded
		}
		return StatusOnAir
	case StatusReady:
		start := windowAnchor(in)
		if start == nil {
			return StatusReady
		}
		if now.Before(start.Add(-w.PreStart)) || now.After(start.Add(w.Grace)) {
			return StatusCanceled
		}
		return StatusReady
	}

	// RESERVED, or anything unrecognized that ParseStatus collapsed to it.
	start := windowAnchor(in)
	if start == nil {
		return in.Stored
	}
	if !now.Before(start.Add(w.Grace)) {
		return StatusCanceled
	}
	if !now.Before(start.Add(-w.PreStart)) {
		return StatusReady
	}
	return StatusReserved
}

// windowAnchor picks the time the ready window is computed around: the scheduled
// start if present, else the actual start.
func windowAnchor(in Inputs) *time.Time {
	if in.ScheduledAt != nil {
		return in.ScheduledAt
	}
	return in.StartAt
}

// IsLive reports whether a broadcast in the given effective status has live viewers
// attached to it: real-time stats are only meaningful for READY and ON_AIR records.
func IsLive(status Status) bool {
	return status == StatusReady || status == StatusOnAir
}

// IsTerminal reports whether the given effective status is a concluded state, i.e.
// one in which the broadcast's recording (if any) is the thing being managed.
func IsTerminal(status Status) bool {
	switch status {
	case StatusEnded, StatusEncoding, StatusVod, StatusStopped:
		return true
	}
	return false
}
