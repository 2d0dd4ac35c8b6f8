package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type PingFunc func(ctx context.Context) error

// Status is the readiness summary reported at the root of the API
type Status struct {
	IsReady bool   `json:"isReady"`
	Message string `json:"message"`
}

type Server struct {
	pingDatabase PingFunc
	pingPresence PingFunc
}

func NewServer(pingDatabase, pingPresence PingFunc) *Server {
	return &Server{
		pingDatabase: pingDatabase,
		pingPresence: pingPresence,
	}
}

func (s *Server) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	status := s.resolveStatus(req.Context())
	if err := json.NewEncoder(res).Encode(status); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) resolveStatus(ctx context.Context) Status {
	if err := s.pingDatabase(ctx); err != nil {
		return Status{
			IsReady: false,
			Message: fmt.Sprintf("The database is unreachable; reservations and broadcast reads are unavailable. (Error: %s)", err),
		}
	}
	if err := s.pingPresence(ctx); err != nil {
		return Status{
			IsReady: false,
			Message: fmt.Sprintf("The presence store is unreachable; broadcasts remain available but viewer counts are degraded. (Error: %s)", err),
		}
	}
	return Status{
		IsReady: true,
		Message: "The broadcast service is fully operational.",
	}
}
