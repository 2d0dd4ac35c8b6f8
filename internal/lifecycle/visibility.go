package lifecycle

// Visibility controls whether a concluded broadcast's recording is publicly listed.
// The zero value means the seller has not chosen yet.
type Visibility string

const (
	VisibilityUnset   Visibility = ""
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

// NormalizeVisibility maps a (status, visibility, adminLock) triple onto the
// policy-compliant combination, returning the corrected values.
//
// A STOPPED broadcast was halted by an administrator: its recording defaults to
// PRIVATE and the admin lock is force-set, so that only an administrator may
// subsequently change visibility. If an administrator has explicitly published the
// recording, STOPPED+PUBLIC is not a legal combination: the record is promoted to an
// ordinary VOD instead, and the lock stays in place. For every other status the
// inputs are already consistent and pass through unchanged; in particular an admin
// lock is never silently dropped once set.
func NormalizeVisibility(status Status, vis Visibility, adminLock bool) (Status, Visibility, bool) {
	if status != StatusStopped {
		return status, vis, adminLock
	}
	if vis == VisibilityPublic {
		return StatusVod, VisibilityPublic, true
	}
	return StatusStopped, VisibilityPrivate, true
}

// CanSellerSetVisibility reports whether the owning seller may change the recording's
// visibility themselves. Sellers may only manage recordings of concluded broadcasts,
// and never while the admin lock is set; administrators bypass this check entirely.
func CanSellerSetVisibility(status Status, adminLock bool) bool {
	if adminLock {
		return false
	}
	switch status {
	case StatusEnded, StatusEncoding, StatusVod:
		return true
	}
	return false
}
