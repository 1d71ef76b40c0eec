package health

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) (*http.Response, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	resp := rec.Result()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestHealth_AllHealthy(t *testing.T) {
	s := NewServer(0, "v1.2.3", nil)
	s.RegisterCheck("events", func(context.Context) (bool, string) { return true, "connected" })

	resp, body := get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var status Status
	require.NoError(t, json.Unmarshal([]byte(body), &status))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "v1.2.3", status.Version)
	assert.Equal(t, Check{Healthy: true, Message: "connected"}, status.Checks["events"])
}

func TestHealth_Degraded(t *testing.T) {
	s := NewServer(0, "dev", nil)
	s.RegisterCheck("events", func(context.Context) (bool, string) { return false, "disconnected" })
	s.RegisterCheck("node", func(context.Context) (bool, string) { return true, "" })

	resp, body := get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var status Status
	require.NoError(t, json.Unmarshal([]byte(body), &status))
	assert.Equal(t, "degraded", status.Status)
	assert.False(t, status.Checks["events"].Healthy)
	assert.True(t, status.Checks["node"].Healthy)
}

func TestReady(t *testing.T) {
	s := NewServer(0, "dev", nil)
	resp, body := get(t, s.Handler(), "/ready")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body)

	s.RegisterCheck("events", func(context.Context) (bool, string) { return false, "" })
	resp, body = get(t, s.Handler(), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "not ready: events", body)
}

func TestLive(t *testing.T) {
	resp, body := get(t, NewServer(0, "dev", nil).Handler(), "/live")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alive", body)
}

func TestStartStop(t *testing.T) {
	s := NewServer(0, "dev", nil)
	require.NoError(t, s.Start())
	require.NotEmpty(t, s.Addr())

	_, port, err := net.SplitHostPort(s.Addr())
	require.NoError(t, err)
	resp, err := http.Get("http://127.0.0.1:" + port + "/live")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
