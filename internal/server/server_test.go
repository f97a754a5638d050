package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusklight/duskd/internal/geo"
	"github.com/dusklight/duskd/internal/kv"
	"github.com/dusklight/duskd/internal/planner"
	"github.com/dusklight/duskd/internal/server"
	"github.com/dusklight/duskd/internal/storage"
)

const testToken = "test-token"

func newTestServer(t *testing.T) (*httptest.Server, *storage.ConfigStore) {
	t.Helper()

	// Upstreams that always fail: API behavior must not depend on them.
	geoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"fail"}`))
	}))
	t.Cleanup(geoSrv.Close)

	store := storage.NewConfigStore(kv.NewMemoryBucket("lights"), "config")
	client := geo.NewClient(time.Second, geo.WithGeoIPURL(geoSrv.URL), geo.WithDaylightURL(geoSrv.URL))
	p := planner.New(store, client, false)

	srv := httptest.NewServer(server.New("127.0.0.1", 0, testToken, p).Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func TestGetSchedule(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/schedule")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body struct {
		Mode               string           `json:"mode"`
		ServerTime         int64            `json:"serverTime"`
		BrightnessSchedule []map[string]any `json:"brightnessSchedule"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	// Empty store and dead upstreams still yield a usable schedule.
	assert.Equal(t, "dayNight", body.Mode)
	assert.NotZero(t, body.ServerTime)
	assert.Len(t, body.BrightnessSchedule, 2)
}

func TestPostSchedule_RequiresToken(t *testing.T) {
	srv, store := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/schedule", "application/json",
		strings.NewReader(`{"mode":"dayNight","brightnessSchedule":[]}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPostSchedule_ValidPayload(t *testing.T) {
	srv, store := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/schedule",
		strings.NewReader(`{"mode":"dayNight","brightnessSchedule":[
			{"time":"07:00","unixTime":0,"warmBrightness":75,"coolBrightness":100,"label":"sunrise"}
		]}`))
	require.NoError(t, err)
	req.Header.Set("X-Custom-Auth", testToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	blob, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(blob), `"sunrise"`)
}

func TestPostSchedule_ValidationFailureNamesField(t *testing.T) {
	srv, store := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/schedule",
		strings.NewReader(`{"mode":"dayNight","brightnessSchedule":[
			{"time":"07:00","warmBrightness":150,"coolBrightness":100,"label":"sunrise"}
		]}`))
	require.NoError(t, err)
	req.Header.Set("X-Custom-Auth", testToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "brightnessSchedule[0].warmBrightness")

	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSchedule_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/schedule", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServerRun_ReturnsAfterGracefulShutdown(t *testing.T) {
	store := storage.NewConfigStore(kv.NewMemoryBucket("lights"), "config")
	client := geo.NewClient(time.Second)
	p := planner.New(store, client, false)
	srv := server.New("127.0.0.1", 0, "", p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, time.Second) }()

	// Let the listener come up before cancelling.
	time.Sleep(100 * time.Millisecond)
	cancel()

	// Run must come back once shutdown has drained, and not before it has
	// been asked to stop.
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
