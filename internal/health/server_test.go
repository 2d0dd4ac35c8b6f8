package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Server(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }
	failing := func(ctx context.Context) error { return fmt.Errorf("mock error") }

	tests := []struct {
		name         string
		pingDatabase PingFunc
		pingPresence PingFunc
		wantBody     string
	}{
		{
			"reports ready when all dependencies respond",
			ok,
			ok,
			`{"isReady":true,"message":"The broadcast service is fully operational."}`,
		},
		{
			"reports not ready when the database is down",
			failing,
			ok,
			`{"isReady":false,"message":"The database is unreachable; reservations and broadcast reads are unavailable. (Error: mock error)"}`,
		},
		{
			"reports degraded when only the presence store is down",
			ok,
			failing,
			`{"isReady":false,"message":"The presence store is unreachable; broadcasts remain available but viewer counts are degraded. (Error: mock error)"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(tt.pingDatabase, tt.pingPresence)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			res := httptest.NewRecorder()
			s.ServeHTTP(res, req)

			assert.Equal(t, http.StatusOK, res.Code)
			b, err := io.ReadAll(res.Body)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantBody, strings.TrimSuffix(string(b), "\n"))
		})
	}
}
