package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/golden-vcr/auth"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/deskit-live/livehost/internal/broadcast"
	"github.com/deskit-live/livehost/internal/lifecycle"
)

// Queries is the set of database operations the admin surface needs
type Queries interface {
	GetBroadcastById(ctx context.Context, id uuid.UUID) (broadcast.Row, error)
	RecordBroadcastStop(ctx context.Context, id uuid.UUID, reason string, endAt time.Time) error
	UpdateVodVisibility(ctx context.Context, id uuid.UUID, status string, visibility string, adminLock bool) error
}

// Server hosts the administrator-only operations: halting a live broadcast and
// overriding recording visibility. Both bypass the admin lock that restricts
// seller-initiated changes; the role check on the router is what gates access.
type Server struct {
	q       Queries
	windows lifecycle.Windows
	now     func() time.Time
}

func NewServer(q Queries, windows lifecycle.Windows) *Server {
	return &Server{
		q:       q,
		windows: windows,
		now:     time.Now,
	}
}

func (s *Server) RegisterRoutes(c auth.Client, r *mux.Router) {
	r.Use(func(next http.Handler) http.Handler {
		return auth.RequireAccess(c, auth.RoleBroadcaster, next)
	})
	r.Path("/broadcasts/{id}/stop").Methods("POST").HandlerFunc(s.handleStop)
	r.Path("/broadcasts/{id}/visibility").Methods("PATCH").HandlerFunc(s.handleSetVisibility)
}

// handleStop administratively halts a broadcast, recording the reason. The
// recording is forced private and admin-locked so the seller can't republish it
// without an administrator's involvement.
func (s *Server) handleStop(res http.ResponseWriter, req *http.Request) {
	row, ok := s.resolveBroadcast(res, req)
	if !ok {
		return
	}

	var payload struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil || payload.Reason == "" {
		http.Error(res, "'reason' is required", http.StatusBadRequest)
		return
	}

	status := s.resolveStatus(row)
	if lifecycle.IsTerminal(status) || status == lifecycle.StatusCanceled {
		http.Error(res, "broadcast has already concluded", http.StatusConflict)
		return
	}

	if err := s.q.RecordBroadcastStop(req.Context(), row.Id, payload.Reason, s.now()); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}
	s.respondWithState(res, lifecycle.StatusStopped, lifecycle.VisibilityPrivate, true)
}

// handleSetVisibility applies an administrator's visibility decision, bypassing the
// admin lock. The normalized result is what gets persisted: publishing a STOPPED
// broadcast's recording promotes the record to an ordinary VOD.
func (s *Server) handleSetVisibility(res http.ResponseWriter, req *http.Request) {
	row, ok := s.resolveBroadcast(res, req)
	if !ok {
		return
	}

	var payload struct {
		Visibility lifecycle.Visibility `json:"visibility"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		http.Error(res, "invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.Visibility != lifecycle.VisibilityPublic && payload.Visibility != lifecycle.VisibilityPrivate {
		http.Error(res, "visibility must be PUBLIC or PRIVATE", http.StatusBadRequest)
		return
	}

	status := s.resolveStatus(row)
	if !lifecycle.IsTerminal(status) {
		http.Error(res, "broadcast has no recording to manage", http.StatusConflict)
		return
	}

	status, vis, adminLock := lifecycle.NormalizeVisibility(status, payload.Visibility, row.AdminLock)
	if err := s.q.UpdateVodVisibility(req.Context(), row.Id, string(status), string(vis), adminLock); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}
	s.respondWithState(res, status, vis, adminLock)
}

func (s *Server) resolveBroadcast(res http.ResponseWriter, req *http.Request) (broadcast.Row, bool) {
	idStr, ok := mux.Vars(req)["id"]
	if !ok || idStr == "" {
		http.Error(res, "failed to parse 'id' from URL", http.StatusInternalServerError)
		return broadcast.Row{}, false
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(res, "broadcast ID must be a UUID", http.StatusBadRequest)
		return broadcast.Row{}, false
	}
	row, err := s.q.GetBroadcastById(req.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(res, "no such broadcast", http.StatusNotFound)
		return broadcast.Row{}, false
	}
	if err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return broadcast.Row{}, false
	}
	return row, true
}

func (s *Server) resolveStatus(row broadcast.Row) lifecycle.Status {
	return s.windows.Resolve(lifecycle.Inputs{
		Stored:      lifecycle.ParseStatus(row.Status),
		ScheduledAt: nullableTime(row.ScheduledAt),
		StartAt:     nullableTime(row.StartAt),
		EndAt:       nullableTime(row.EndAt),
	}, s.now())
}

func (s *Server) respondWithState(res http.ResponseWriter, status lifecycle.Status, vis lifecycle.Visibility, adminLock bool) {
	state := struct {
		Status        lifecycle.Status     `json:"status"`
		VodVisibility lifecycle.Visibility `json:"vodVisibility"`
		AdminLock     bool                 `json:"adminLock"`
	}{status, vis, adminLock}
	if err := json.NewEncoder(res).Encode(state); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
	}
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
