package broadcast

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/deskit-live/livehost/internal/lifecycle"
)

var testNow = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return time.Date(2025, 1, 10, h, m, 0, 0, time.UTC)
}

func newTestServer(q Queries, viewers ViewerCounter) *Server {
	s := NewServer(q, viewers, lifecycle.DefaultWindows)
	s.now = func() time.Time { return testNow }
	return s
}

func Test_Server_handleGet(t *testing.T) {
	upcomingId := uuid.MustParse("f8f43e8d-e3f1-4779-8bf0-7a0a0dec3dc5")
	staleId := uuid.MustParse("5b153a74-e135-4be4-bf7e-4973f3f83bc5")
	stoppedId := uuid.MustParse("27cd3fc9-d09d-4042-aed7-bf8a5e79bcaa")
	q := &mockQueries{rows: map[uuid.UUID]Row{
		upcomingId: {
			Id:          upcomingId,
			SellerId:    "seller-1",
			Title:       "Upcoming broadcast",
			Status:      "RESERVED",
			ScheduledAt: sql.NullTime{Valid: true, Time: at(13, 0)},
		},
		staleId: {
			Id:          staleId,
			SellerId:    "seller-1",
			Title:       "Never started",
			Status:      "READY",
			ScheduledAt: sql.NullTime{Valid: true, Time: at(11, 0)},
		},
		stoppedId: {
			Id:            stoppedId,
			SellerId:      "seller-2",
			Title:         "Halted by an admin",
			Status:        "STOPPED",
			StartAt:       sql.NullTime{Valid: true, Time: at(10, 0)},
			EndAt:         sql.NullTime{Valid: true, Time: at(10, 20)},
			VodVisibility: sql.NullString{Valid: true, String: "PUBLIC"},
			AdminLock:     true,
		},
	}}
	s := newTestServer(q, nil)
	r := mux.NewRouter()
	s.RegisterRoutes(r)

	tests := []struct {
		name       string
		id         string
		wantStatus int
		wantBody   func(t *testing.T, b Broadcast)
	}{
		{
			name:       "a future reservation reads back as stored",
			id:         upcomingId.String(),
			wantStatus: 200,
			wantBody: func(t *testing.T, b Broadcast) {
				assert.Equal(t, lifecycle.StatusReserved, b.Status)
				assert.Nil(t, b.ViewersCurrent)
			},
		},
		{
			name:       "a READY broadcast that missed its window reads as CANCELED",
			id:         staleId.String(),
			wantStatus: 200,
			wantBody: func(t *testing.T, b Broadcast) {
				assert.Equal(t, lifecycle.StatusCanceled, b.Status)
			},
		},
		{
			name:       "a publicly-released stopped broadcast reads as a VOD",
			id:         stoppedId.String(),
			wantStatus: 200,
			wantBody: func(t *testing.T, b Broadcast) {
				assert.Equal(t, lifecycle.StatusVod, b.Status)
				assert.Equal(t, lifecycle.VisibilityPublic, b.VodVisibility)
				assert.True(t, b.AdminLock)
			},
		},
		{
			name:       "an unknown broadcast is a 404",
			id:         "d26a1407-5f42-4e3f-a5b2-1db37072960c",
			wantStatus: 404,
		},
		{
			name:       "a non-UUID id is a 400",
			id:         "not-a-uuid",
			wantStatus: 400,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/"+tt.id, nil)
			res := httptest.NewRecorder()
			r.ServeHTTP(res, req)
			assert.Equal(t, tt.wantStatus, res.Code)
			if tt.wantBody != nil {
				var b Broadcast
				assert.NoError(t, json.NewDecoder(res.Body).Decode(&b))
				tt.wantBody(t, b)
			}
		})
	}
}

func Test_Server_handleList(t *testing.T) {
	liveId := uuid.MustParse("f8f43e8d-e3f1-4779-8bf0-7a0a0dec3dc5")
	q := &mockQueries{rows: map[uuid.UUID]Row{
		liveId: {
			Id:          liveId,
			SellerId:    "seller-1",
			Title:       "Live now",
			Status:      "ON_AIR",
			ScheduledAt: sql.NullTime{Valid: true, Time: at(11, 45)},
			StartAt:     sql.NullTime{Valid: true, Time: at(11, 46)},
		},
	}}
	s := newTestServer(q, &mockViewers{current: 41, total: 107})
	r := mux.NewRouter()
	s.RegisterRoutes(r)

	req := httptest.NewRequest("GET", "/", nil)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	assert.Equal(t, 200, res.Code)
	var broadcasts []Broadcast
	assert.NoError(t, json.NewDecoder(res.Body).Decode(&broadcasts))
	if assert.Len(t, broadcasts, 1) {
		b := broadcasts[0]
		assert.Equal(t, lifecycle.StatusOnAir, b.Status)
		if assert.NotNil(t, b.ViewersCurrent) {
			assert.Equal(t, 41, *b.ViewersCurrent)
		}
		if assert.NotNil(t, b.ViewersTotal) {
			assert.Equal(t, 107, *b.ViewersTotal)
		}
	}
}

func Test_Server_handleStart(t *testing.T) {
	tests := []struct {
		name       string
		row        Row
		sellerId   string
		wantStatus int
		wantStored string
	}{
		{
			name: "the owner starts a READY broadcast",
			row: Row{
				SellerId:    "seller-1",
				Status:      "READY",
				ScheduledAt: sql.NullTime{Valid: true, Time: at(12, 5)},
			},
			sellerId:   "seller-1",
			wantStatus: 200,
			wantStored: "ON_AIR",
		},
		{
			name: "an early start from RESERVED is allowed within the window",
			row: Row{
				SellerId:    "seller-1",
				Status:      "RESERVED",
				ScheduledAt: sql.NullTime{Valid: true, Time: at(12, 5)},
			},
			sellerId:   "seller-1",
			wantStatus: 200,
			wantStored: "ON_AIR",
		},
		{
			name: "a broadcast that already aged out cannot be started",
			row: Row{
				SellerId:    "seller-1",
				Status:      "READY",
				ScheduledAt: sql.NullTime{Valid: true, Time: at(11, 0)},
			},
			sellerId:   "seller-1",
			wantStatus: 409,
			wantStored: "READY",
		},
		{
			name: "a broadcast that is already on air cannot be started again",
			row: Row{
				SellerId: "seller-1",
				Status:   "ON_AIR",
				StartAt:  sql.NullTime{Valid: true, Time: at(11, 50)},
			},
			sellerId:   "seller-1",
			wantStatus: 409,
			wantStored: "ON_AIR",
		},
		{
			name: "a seller identity is required",
			row: Row{
				SellerId:    "seller-1",
				Status:      "READY",
				ScheduledAt: sql.NullTime{Valid: true, Time: at(12, 5)},
			},
			sellerId:   "",
			wantStatus: 400,
			wantStored: "READY",
		},
		{
			name: "another seller may not start it",
			row: Row{
				SellerId:    "seller-1",
				Status:      "READY",
				ScheduledAt: sql.NullTime{Valid: true, Time: at(12, 5)},
			},
			sellerId:   "seller-2",
			wantStatus: 403,
			wantStored: "READY",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := uuid.New()
			tt.row.Id = id
			q := &mockQueries{rows: map[uuid.UUID]Row{id: tt.row}}
			s := newTestServer(q, nil)
			r := mux.NewRouter()
			s.RegisterRoutes(r)

			req := httptest.NewRequest("POST", fmt.Sprintf("/%s/start", id), nil)
			if tt.sellerId != "" {
				req.Header.Set("x-seller-id", tt.sellerId)
			}
			res := httptest.NewRecorder()
			r.ServeHTTP(res, req)

			assert.Equal(t, tt.wantStatus, res.Code)
			assert.Equal(t, tt.wantStored, q.rows[id].Status)
			if tt.wantStatus == 200 {
				assert.True(t, q.rows[id].StartAt.Valid)
				var b Broadcast
				assert.NoError(t, json.NewDecoder(res.Body).Decode(&b))
				assert.Equal(t, lifecycle.StatusOnAir, b.Status)
			}
		})
	}
}

func Test_Server_handleEnd(t *testing.T) {
	id := uuid.New()
	q := &mockQueries{rows: map[uuid.UUID]Row{id: {
		Id:       id,
		SellerId: "seller-1",
		Status:   "ON_AIR",
		StartAt:  sql.NullTime{Valid: true, Time: at(11, 45)},
	}}}
	s := newTestServer(q, nil)
	r := mux.NewRouter()
	s.RegisterRoutes(r)

	req := httptest.NewRequest("POST", fmt.Sprintf("/%s/end", id), nil)
	req.Header.Set("x-seller-id", "seller-1")
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	assert.Equal(t, 200, res.Code)
	assert.Equal(t, "ENDED", q.rows[id].Status)
	assert.True(t, q.rows[id].EndAt.Valid)
	var b Broadcast
	assert.NoError(t, json.NewDecoder(res.Body).Decode(&b))
	assert.Equal(t, lifecycle.StatusEnded, b.Status)

	// A second end request finds the broadcast no longer on air
	req = httptest.NewRequest("POST", fmt.Sprintf("/%s/end", id), nil)
	req.Header.Set("x-seller-id", "seller-1")
	res = httptest.NewRecorder()
	r.ServeHTTP(res, req)
	assert.Equal(t, 409, res.Code)
}

func Test_Server_handleSetVisibility(t *testing.T) {
	tests := []struct {
		name           string
		row            Row
		payload        string
		wantStatus     int
		wantStored     string
		wantVisibility string
	}{
		{
			name: "the owner releases an ended recording",
			row: Row{
				SellerId: "seller-1",
				Status:   "ENDED",
				StartAt:  sql.NullTime{Valid: true, Time: at(10, 0)},
				EndAt:    sql.NullTime{Valid: true, Time: at(10, 30)},
			},
			payload:        `{"visibility":"PUBLIC"}`,
			wantStatus:     200,
			wantStored:     "ENDED",
			wantVisibility: "PUBLIC",
		},
		{
			name: "the owner hides a released recording again",
			row: Row{
				SellerId:      "seller-1",
				Status:        "VOD",
				EndAt:         sql.NullTime{Valid: true, Time: at(10, 30)},
				VodVisibility: sql.NullString{Valid: true, String: "PUBLIC"},
			},
			payload:        `{"visibility":"PRIVATE"}`,
			wantStatus:     200,
			wantStored:     "VOD",
			wantVisibility: "PRIVATE",
		},
		{
			name: "a stopped broadcast is admin-locked even before the lock is stored",
			row: Row{
				SellerId: "seller-1",
				Status:   "STOPPED",
				EndAt:    sql.NullTime{Valid: true, Time: at(10, 30)},
			},
			payload:    `{"visibility":"PUBLIC"}`,
			wantStatus: 403,
			wantStored: "STOPPED",
		},
		{
			name: "the admin lock keeps the seller out",
			row: Row{
				SellerId:      "seller-1",
				Status:        "ENDED",
				EndAt:         sql.NullTime{Valid: true, Time: at(10, 30)},
				VodVisibility: sql.NullString{Valid: true, String: "PRIVATE"},
				AdminLock:     true,
			},
			payload:    `{"visibility":"PUBLIC"}`,
			wantStatus: 403,
			wantStored: "ENDED",
		},
		{
			name: "visibility can't be set while the broadcast is live",
			row: Row{
				SellerId: "seller-1",
				Status:   "ON_AIR",
				StartAt:  sql.NullTime{Valid: true, Time: at(11, 45)},
			},
			payload:    `{"visibility":"PUBLIC"}`,
			wantStatus: 403,
			wantStored: "ON_AIR",
		},
		{
			name: "only PUBLIC and PRIVATE are accepted",
			row: Row{
				SellerId: "seller-1",
				Status:   "ENDED",
				EndAt:    sql.NullTime{Valid: true, Time: at(10, 30)},
			},
			payload:    `{"visibility":"UNLISTED"}`,
			wantStatus: 400,
			wantStored: "ENDED",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := uuid.New()
			tt.row.Id = id
			q := &mockQueries{rows: map[uuid.UUID]Row{id: tt.row}}
			s := newTestServer(q, nil)
			r := mux.NewRouter()
			s.RegisterRoutes(r)

			req := httptest.NewRequest("PATCH", fmt.Sprintf("/%s/visibility", id), strings.NewReader(tt.payload))
			req.Header.Set("x-seller-id", "seller-1")
			res := httptest.NewRecorder()
			r.ServeHTTP(res, req)

			assert.Equal(t, tt.wantStatus, res.Code)
			assert.Equal(t, tt.wantStored, q.rows[id].Status)
			if tt.wantVisibility != "" {
				assert.Equal(t, tt.wantVisibility, q.rows[id].VodVisibility.String)
			}
		})
	}
}

type mockQueries struct {
	rows map[uuid.UUID]Row
}

func (m *mockQueries) GetBroadcastById(ctx context.Context, id uuid.UUID) (Row, error) {
	row, ok := m.rows[id]
	if !ok {
		return Row{}, sql.ErrNoRows
	}
	return row, nil
}

func (m *mockQueries) ListBroadcasts(ctx context.Context) ([]Row, error) {
	rows := make([]Row, 0, len(m.rows))
	for _, row := range m.rows {
		rows = append(rows, row)
	}
	return rows, nil
}

func (m *mockQueries) SetStatusOnAir(ctx context.Context, id uuid.UUID, startAt time.Time) error {
	row := m.rows[id]
	row.Status = "ON_AIR"
	row.StartAt = sql.NullTime{Valid: true, Time: startAt}
	m.rows[id] = row
	return nil
}

func (m *mockQueries) SetStatusEnded(ctx context.Context, id uuid.UUID, endAt time.Time) error {
	row := m.rows[id]
	row.Status = "ENDED"
	row.EndAt = sql.NullTime{Valid: true, Time: endAt}
	m.rows[id] = row
	return nil
}

func (m *mockQueries) UpdateVodVisibility(ctx context.Context, id uuid.UUID, status string, visibility string, adminLock bool) error {
	row := m.rows[id]
	row.Status = status
	row.VodVisibility = sql.NullString{Valid: true, String: visibility}
	row.AdminLock = adminLock
	m.rows[id] = row
	return nil
}

var _ Queries = (*mockQueries)(nil)

type mockViewers struct {
	current int
	total   int
}

func (m *mockViewers) Count(ctx context.Context, broadcastId string) (int, error) {
	return m.current, nil
}

func (m *mockViewers) Total(ctx context.Context, broadcastId string) (int, error) {
	return m.total, nil
}

var _ ViewerCounter = (*mockViewers)(nil)
