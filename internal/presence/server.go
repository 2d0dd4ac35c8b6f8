package presence

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// CountResponse carries viewer stats back to the client. Either count is null when
// the presence store could not produce it: viewing never breaks because counting
// did, so handlers degrade to "count unknown" instead of erroring.
type CountResponse struct {
	ViewersCurrent *int `json:"viewersCurrent"`
	ViewersTotal   *int `json:"viewersTotal"`
}

type Server struct {
	t *Tracker
}

func NewServer(t *Tracker) *Server {
	return &Server{t: t}
}

func (s *Server) RegisterRoutes(r *mux.Router) {
	r.Path("/{id}/viewers").Methods("POST").HandlerFunc(s.handleJoin)
	r.Path("/{id}/viewers").Methods("GET").HandlerFunc(s.handleCount)
	r.Path("/{id}/viewers/{viewerUuid}").Methods("DELETE").HandlerFunc(s.handleLeave)
}

// handleJoin registers the caller's viewer UUID as watching the broadcast. Clients
// call it once on entry and then periodically as a heartbeat to keep their
// membership's TTL fresh.
func (s *Server) handleJoin(res http.ResponseWriter, req *http.Request) {
	broadcastId := mux.Vars(req)["id"]

	var payload struct {
		ViewerUuid string `json:"viewerUuid"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil || payload.ViewerUuid == "" {
		http.Error(res, "'viewerUuid' is required", http.StatusBadRequest)
		return
	}

	count, err := s.t.Join(req.Context(), broadcastId, payload.ViewerUuid)
	s.respondWithCounts(res, req, broadcastId, count, err)
}

func (s *Server) handleLeave(res http.ResponseWriter, req *http.Request) {
	broadcastId := mux.Vars(req)["id"]
	viewerUuid := mux.Vars(req)["viewerUuid"]

	count, err := s.t.Leave(req.Context(), broadcastId, viewerUuid)
	s.respondWithCounts(res, req, broadcastId, count, err)
}

func (s *Server) handleCount(res http.ResponseWriter, req *http.Request) {
	broadcastId := mux.Vars(req)["id"]

	count, err := s.t.Count(req.Context(), broadcastId)
	s.respondWithCounts(res, req, broadcastId, count, err)
}

func (s *Server) respondWithCounts(res http.ResponseWriter, req *http.Request, broadcastId string, count int, countErr error) {
	response := CountResponse{}
	if countErr == nil {
		response.ViewersCurrent = &count
	}
	if total, err := s.t.Total(req.Context(), broadcastId); err == nil {
		response.ViewersTotal = &total
	}
	if err := json.NewEncoder(res).Encode(response); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
	}
}
