package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Handler is an HTTP handler that serves broadcast status events over a long-lived
// Server-Sent Events connection
type Handler struct {
	ctx context.Context
	b   bus
}

// NewHandler initializes an SSE handler that reads status events from the given
// channel and fans them out to all extant HTTP connections
func NewHandler(ctx context.Context, ch <-chan StatusEvent) *Handler {
	h := &Handler{
		ctx: ctx,
		b: bus{
			chs: make(map[chan StatusEvent]struct{}),
		},
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				h.b.clear()
				return
			case event := <-ch:
				h.b.publish(event)
			}
		}
	}()
	return h
}

// ServeHTTP responds by opening a long-lived HTTP connection to which status events
// are written as they occur, formatted as text/event-stream messages with 'data'
// consisting of a JSON-encoded StatusEvent
func (h *Handler) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	// If a content-type is explicitly requested, require that it's text/event-stream
	accept := req.Header.Get("accept")
	if accept != "" && accept != "*/*" && !strings.HasPrefix(accept, "text/event-stream") {
		message := fmt.Sprintf("content-type %s is not supported", accept)
		http.Error(res, message, http.StatusBadRequest)
		return
	}

	// Keep the connection alive and open a text/event-stream response body
	res.Header().Set("content-type", "text/event-stream")
	res.Header().Set("cache-control", "no-cache")
	res.Header().Set("connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.(http.Flusher).Flush()

	// Send an initial keepalive message so that intermediaries flush the connection
	// through immediately without requiring special configuration
	res.Write([]byte(":\n\n"))
	res.(http.Flusher).Flush()

	// Open a channel to receive status events as they're emitted
	ch := make(chan StatusEvent, 32)
	h.b.register(ch)

	// Send all incoming events to the client for as long as the connection is open
	fmt.Printf("Opened SSE connection to %s...\n", req.RemoteAddr)
	for {
		select {
		case <-time.After(30 * time.Second):
			res.Write([]byte(":\n\n"))
			res.(http.Flusher).Flush()
		case event := <-ch:
			data, err := json.Marshal(event)
			if err != nil {
				fmt.Printf("Failed to serialize status event as JSON: %v\n", err)
				continue
			}
			fmt.Fprintf(res, "data: %s\n\n", data)
			res.(http.Flusher).Flush()
		case <-h.ctx.Done():
			fmt.Printf("Server is shutting down; abandoning SSE connection to %s.\n", req.RemoteAddr)
			h.b.unregister(ch)
			return
		case <-req.Context().Done():
			fmt.Printf("SSE connection to %s has been closed.\n", req.RemoteAddr)
			h.b.unregister(ch)
			return
		}
	}
}
