package broadcast

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/deskit-live/livehost/internal/lifecycle"
)

// Queries is the set of database operations the broadcast server needs
type Queries interface {
	GetBroadcastById(ctx context.Context, id uuid.UUID) (Row, error)
	ListBroadcasts(ctx context.Context) ([]Row, error)
	SetStatusOnAir(ctx context.Context, id uuid.UUID, startAt time.Time) error
	SetStatusEnded(ctx context.Context, id uuid.UUID, endAt time.Time) error
	UpdateVodVisibility(ctx context.Context, id uuid.UUID, status string, visibility string, adminLock bool) error
}

// ViewerCounter reports live viewer stats for a broadcast; failures degrade to
// "count unknown" and must never fail a read
type ViewerCounter interface {
	Count(ctx context.Context, broadcastId string) (int, error)
	Total(ctx context.Context, broadcastId string) (int, error)
}

type Server struct {
	q       Queries
	viewers ViewerCounter
	windows lifecycle.Windows
	now     func() time.Time
}

func NewServer(q Queries, viewers ViewerCounter, windows lifecycle.Windows) *Server {
	return &Server{
		q:       q,
		viewers: viewers,
		windows: windows,
		now:     time.Now,
	}
}

func (s *Server) RegisterRoutes(r *mux.Router) {
	for _, root := range []string{"", "/"} {
		r.Path(root).Methods("GET").HandlerFunc(s.handleList)
	}
	r.Path("/{id}").Methods("GET").HandlerFunc(s.handleGet)
	r.Path("/{id}/start").Methods("POST").HandlerFunc(s.handleStart)
	r.Path("/{id}/end").Methods("POST").HandlerFunc(s.handleEnd)
	r.Path("/{id}/visibility").Methods("PATCH").HandlerFunc(s.handleSetVisibility)
}

// Project derives the client-facing record from a stored row: effective status from
// the time windows, normalized visibility, and live viewer stats while live.
func (s *Server) Project(ctx context.Context, row Row) Broadcast {
	status := s.windows.Resolve(lifecycle.Inputs{
		Stored:      lifecycle.ParseStatus(row.Status),
		ScheduledAt: nullableTime(row.ScheduledAt),
		StartAt:     nullableTime(row.StartAt),
		EndAt:       nullableTime(row.EndAt),
	}, s.now())
	status, vis, adminLock := lifecycle.NormalizeVisibility(
		status, lifecycle.Visibility(row.VodVisibility.String), row.AdminLock)

	scheduledAt := nullableTime(row.ScheduledAt)
	if scheduledAt == nil {
		scheduledAt = nullableTime(row.StartAt)
	}
	b := Broadcast{
		Id:                row.Id,
		SellerId:          row.SellerId,
		Title:             row.Title,
		Status:            status,
		VodVisibility:     vis,
		AdminLock:         adminLock,
		ScheduledAt:       scheduledAt,
		StartAt:           nullableTime(row.StartAt),
		EndAt:             nullableTime(row.EndAt),
		ThumbnailUrl:      row.ThumbnailUrl.String,
		Products:          emptyIfNil(row.Products),
		QCards:            row.QCards,
		TerminationReason: row.TerminationReason.String,
		CancelReason:      row.CancelReason.String,
	}
	if lifecycle.IsLive(status) && s.viewers != nil {
		if n, err := s.viewers.Count(ctx, row.Id.String()); err == nil {
			b.ViewersCurrent = &n
		}
		if n, err := s.viewers.Total(ctx, row.Id.String()); err == nil {
			b.ViewersTotal = &n
		}
	}
	return b
}

func (s *Server) handleList(res http.ResponseWriter, req *http.Request) {
	rows, err := s.q.ListBroadcasts(req.Context())
	if err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}
	broadcasts := make([]Broadcast, 0, len(rows))
	for _, row := range rows {
		broadcasts = append(broadcasts, s.Project(req.Context(), row))
	}
	if err := json.NewEncoder(res).Encode(broadcasts); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleGet(res http.ResponseWriter, req *http.Request) {
	row, ok := s.resolveBroadcast(res, req)
	if !ok {
		return
	}
	if err := json.NewEncoder(res).Encode(s.Project(req.Context(), row)); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
	}
}

// handleStart transitions a reservation to ON_AIR, stamping the actual start time.
// Only the owning seller may start their broadcast, and only while its effective
// status is RESERVED or READY.
func (s *Server) handleStart(res http.ResponseWriter, req *http.Request) {
	row, ok := s.resolveBroadcast(res, req)
	if !ok {
		return
	}
	if !s.checkOwner(res, req, row) {
		return
	}
	status := s.Project(req.Context(), row).Status
	if status != lifecycle.StatusReserved && status != lifecycle.StatusReady {
		http.Error(res, "broadcast cannot be started from its current status", http.StatusConflict)
		return
	}
	if err := s.q.SetStatusOnAir(req.Context(), row.Id, s.now()); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}
	s.respondWithCurrent(res, req, row.Id)
}

// handleEnd concludes an ON_AIR broadcast, stamping its end time.
func (s *Server) handleEnd(res http.ResponseWriter, req *http.Request) {
	row, ok := s.resolveBroadcast(res, req)
	if !ok {
		return
	}
	if !s.checkOwner(res, req, row) {
		return
	}
	if s.Project(req.Context(), row).Status != lifecycle.StatusOnAir {
		http.Error(res, "broadcast is not on air", http.StatusConflict)
		return
	}
	if err := s.q.SetStatusEnded(req.Context(), row.Id, s.now()); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}
	s.respondWithCurrent(res, req, row.Id)
}

// handleSetVisibility lets the owning seller change their concluded broadcast's
// recording visibility, unless the admin lock is set. Administrators use the
// separate admin surface, which bypasses the lock.
func (s *Server) handleSetVisibility(res http.ResponseWriter, req *http.Request) {
	row, ok := s.resolveBroadcast(res, req)
	if !ok {
		return
	}
	if !s.checkOwner(res, req, row) {
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

	current := s.Project(req.Context(), row)
	if !lifecycle.CanSellerSetVisibility(current.Status, current.AdminLock) {
		http.Error(res, "visibility changes are not permitted on this broadcast", http.StatusForbidden)
		return
	}

	status, vis, adminLock := lifecycle.NormalizeVisibility(current.Status, payload.Visibility, current.AdminLock)
	if err := s.q.UpdateVodVisibility(req.Context(), row.Id, string(status), string(vis), adminLock); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}
	s.respondWithCurrent(res, req, row.Id)
}

func (s *Server) resolveBroadcast(res http.ResponseWriter, req *http.Request) (Row, bool) {
	idStr, ok := mux.Vars(req)["id"]
	if !ok || idStr == "" {
		http.Error(res, "failed to parse 'id' from URL", http.StatusInternalServerError)
		return Row{}, false
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(res, "broadcast ID must be a UUID", http.StatusBadRequest)
		return Row{}, false
	}
	row, err := s.q.GetBroadcastById(req.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(res, "no such broadcast", http.StatusNotFound)
		return Row{}, false
	}
	if err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return Row{}, false
	}
	return row, true
}

func (s *Server) checkOwner(res http.ResponseWriter, req *http.Request, row Row) bool {
	sellerId := req.Header.Get("x-seller-id")
	if sellerId == "" {
		http.Error(res, "seller identity is required", http.StatusBadRequest)
		return false
	}
	if sellerId != row.SellerId {
		http.Error(res, "broadcast belongs to another seller", http.StatusForbidden)
		return false
	}
	return true
}

func (s *Server) respondWithCurrent(res http.ResponseWriter, req *http.Request, id uuid.UUID) {
	row, err := s.q.GetBroadcastById(req.Context(), id)
	if err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := json.NewEncoder(res).Encode(s.Project(req.Context(), row)); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
	}
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func emptyIfNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
