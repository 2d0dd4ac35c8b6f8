package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_NormalizeVisibility(t *testing.T) {
	tests := []struct {
		name          string
		status        Status
		vis           Visibility
		adminLock     bool
		wantStatus    Status
		wantVis       Visibility
		wantAdminLock bool
	}{
		{
			"stopped broadcast with unset visibility defaults to private and is locked",
			StatusStopped, VisibilityUnset, false,
			StatusStopped, VisibilityPrivate, true,
		},
		{
			"stopped broadcast with private visibility is locked",
			StatusStopped, VisibilityPrivate, false,
			StatusStopped, VisibilityPrivate, true,
		},
		{
			"stopped broadcast published by an admin is promoted to VOD, lock retained",
			StatusStopped, VisibilityPublic, true,
			StatusVod, VisibilityPublic, true,
		},
		{
			"ended broadcast passes through unchanged",
			StatusEnded, VisibilityPublic, false,
			StatusEnded, VisibilityPublic, false,
		},
		{
			"existing admin lock is never dropped",
			StatusVod, VisibilityPrivate, true,
			StatusVod, VisibilityPrivate, true,
		},
		{
			"live broadcast is untouched",
			StatusOnAir, VisibilityUnset, false,
			StatusOnAir, VisibilityUnset, false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, vis, adminLock := NormalizeVisibility(tt.status, tt.vis, tt.adminLock)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantVis, vis)
			assert.Equal(t, tt.wantAdminLock, adminLock)
		})
	}
}

func Test_CanSellerSetVisibility(t *testing.T) {
	assert.True(t, CanSellerSetVisibility(StatusEnded, false))
	assert.True(t, CanSellerSetVisibility(StatusEncoding, false))
	assert.True(t, CanSellerSetVisibility(StatusVod, false))

	// The admin lock blocks the seller regardless of status
	assert.False(t, CanSellerSetVisibility(StatusVod, true))
	assert.False(t, CanSellerSetVisibility(StatusEnded, true))

	// Non-terminal statuses have no recording to manage
	assert.False(t, CanSellerSetVisibility(StatusOnAir, false))
	assert.False(t, CanSellerSetVisibility(StatusReserved, false))
	assert.False(t, CanSellerSetVisibility(StatusStopped, false))
}
