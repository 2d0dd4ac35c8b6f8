package admission

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type Server struct {
	c *Controller
}

func NewServer(c *Controller) *Server {
	return &Server{c: c}
}

func (s *Server) RegisterRoutes(r *mux.Router) {
	for _, root := range []string{"", "/"} {
		r.Path(root).Methods("POST").HandlerFunc(s.handleReserve)
	}
	r.Path("/{id}").Methods("DELETE").HandlerFunc(s.handleCancel)
}

func (s *Server) handleReserve(res http.ResponseWriter, req *http.Request) {
	sellerId := req.Header.Get("x-seller-id")
	if sellerId == "" {
		http.Error(res, "seller identity is required", http.StatusBadRequest)
		return
	}

	var payload Request
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		http.Error(res, "invalid request payload", http.StatusBadRequest)
		return
	}

	created, err := s.c.Reserve(req.Context(), sellerId, payload)
	if err != nil {
		if errors.Is(err, ErrMissingTitle) {
			http.Error(res, err.Error(), http.StatusBadRequest)
			return
		}
		var admissionErr *Error
		if errors.As(err, &admissionErr) {
			res.Header().Set("content-type", "application/json")
			res.WriteHeader(admissionErr.Code.HTTPStatus())
			json.NewEncoder(res).Encode(admissionErr)
			return
		}
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}

	res.Header().Set("content-type", "application/json")
	res.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(res).Encode(created); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleCancel(res http.ResponseWriter, req *http.Request) {
	sellerId := req.Header.Get("x-seller-id")
	if sellerId == "" {
		http.Error(res, "seller identity is required", http.StatusBadRequest)
		return
	}
	idStr, ok := mux.Vars(req)["id"]
	if !ok || idStr == "" {
		http.Error(res, "failed to parse 'id' from URL", http.StatusInternalServerError)
		return
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(res, "broadcast ID must be a UUID", http.StatusBadRequest)
		return
	}

	var payload struct {
		Reason string `json:"reason"`
	}
	if req.Body != nil {
		// A missing or empty body is fine; the reason is optional
		json.NewDecoder(req.Body).Decode(&payload)
	}

	err = s.c.Cancel(req.Context(), sellerId, id, payload.Reason)
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(res, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrNotOwner):
		http.Error(res, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrNotCancelable):
		http.Error(res, err.Error(), http.StatusConflict)
	case err != nil:
		http.Error(res, err.Error(), http.StatusInternalServerError)
	default:
		res.WriteHeader(http.StatusNoContent)
	}
}
