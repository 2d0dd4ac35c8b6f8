package presence

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func Test_Server(t *testing.T) {
	store := NewMemoryStore()
	r := mux.NewRouter()
	NewServer(NewTracker(store, time.Minute)).RegisterRoutes(r)

	get := func(method, path, body string) (int, string) {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, path, reader)
		res := httptest.NewRecorder()
		r.ServeHTTP(res, req)
		b, err := io.ReadAll(res.Body)
		assert.NoError(t, err)
		return res.Code, strings.TrimSuffix(string(b), "\n")
	}

	// An untracked broadcast has zero viewers
	code, body := get("GET", "/broadcast-1/viewers", "")
	assert.Equal(t, 200, code)
	assert.Equal(t, `{"viewersCurrent":0,"viewersTotal":0}`, body)

	// Joining requires a viewerUuid
	code, _ = get("POST", "/broadcast-1/viewers", `{}`)
	assert.Equal(t, 400, code)
	code, _ = get("POST", "/broadcast-1/viewers", `not json`)
	assert.Equal(t, 400, code)

	// Two distinct viewers join; one of them twice
	code, body = get("POST", "/broadcast-1/viewers", `{"viewerUuid":"viewer-a"}`)
	assert.Equal(t, 200, code)
	assert.Equal(t, `{"viewersCurrent":1,"viewersTotal":1}`, body)
	code, body = get("POST", "/broadcast-1/viewers", `{"viewerUuid":"viewer-b"}`)
	assert.Equal(t, 200, code)
	assert.Equal(t, `{"viewersCurrent":2,"viewersTotal":2}`, body)
	code, body = get("POST", "/broadcast-1/viewers", `{"viewerUuid":"viewer-a"}`)
	assert.Equal(t, 200, code)
	assert.Equal(t, `{"viewersCurrent":2,"viewersTotal":2}`, body)

	// Leaving drops the current count but not the total
	code, body = get("DELETE", "/broadcast-1/viewers/viewer-a", "")
	assert.Equal(t, 200, code)
	assert.Equal(t, `{"viewersCurrent":1,"viewersTotal":2}`, body)

	// Leaving again is a no-op
	code, body = get("DELETE", "/broadcast-1/viewers/viewer-a", "")
	assert.Equal(t, 200, code)
	assert.Equal(t, `{"viewersCurrent":1,"viewersTotal":2}`, body)
}

func Test_Server_degradesWhenStoreFails(t *testing.T) {
	r := mux.NewRouter()
	NewServer(NewTracker(&failingStore{}, time.Minute)).RegisterRoutes(r)

	// Counting failures degrade to null counts rather than failing the request
	req := httptest.NewRequest("GET", "/broadcast-1/viewers", nil)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	assert.Equal(t, 200, res.Code)
	b, err := io.ReadAll(res.Body)
	assert.NoError(t, err)
	assert.Equal(t, `{"viewersCurrent":null,"viewersTotal":null}`, strings.TrimSuffix(string(b), "\n"))

	req = httptest.NewRequest("POST", "/broadcast-1/viewers", strings.NewReader(`{"viewerUuid":"viewer-a"}`))
	res = httptest.NewRecorder()
	r.ServeHTTP(res, req)
	assert.Equal(t, 200, res.Code)
	b, err = io.ReadAll(res.Body)
	assert.NoError(t, err)
	assert.Equal(t, `{"viewersCurrent":null,"viewersTotal":null}`, strings.TrimSuffix(string(b), "\n"))
}

type failingStore struct{}

func (s *failingStore) Touch(ctx context.Context, broadcastId, viewerUuid string, ttl time.Duration) error {
	return fmt.Errorf("store is unreachable")
}

func (s *failingStore) Remove(ctx context.Context, broadcastId, viewerUuid string) error {
	return fmt.Errorf("store is unreachable")
}

func (s *failingStore) Count(ctx context.Context, broadcastId string) (int, error) {
	return 0, fmt.Errorf("store is unreachable")
}

func (s *failingStore) TotalCount(ctx context.Context, broadcastId string) (int, error) {
	return 0, fmt.Errorf("store is unreachable")
}

func (s *failingStore) Ping(ctx context.Context) error {
	return fmt.Errorf("store is unreachable")
}

var _ Store = (*failingStore)(nil)
