package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dawnkeeper/dawnkeeper/internal/config"
	"github.com/dawnkeeper/dawnkeeper/internal/logging"
	"github.com/dawnkeeper/dawnkeeper/internal/metrics"
	"github.com/dawnkeeper/dawnkeeper/internal/models"
	"github.com/dawnkeeper/dawnkeeper/internal/registry"
)

func newTestServer(t *testing.T) (*Server, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	logger := logging.NewLogger(logging.WithOutput(io.Discard))
	srv := NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 0}, reg, metrics.NewMetrics("test"), logger)
	return srv, reg
}

func doRequest(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv, reg := newTestServer(t)
	_, err := reg.Register("alice@example.com", "pw")
	require.NoError(t, err)

	w := doRequest(t, srv, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["accounts"])
}

func TestAccountsListRedactsSecrets(t *testing.T) {
	srv, reg := newTestServer(t)
	_, err := reg.Register("alice@example.com", "hunter2")
	require.NoError(t, err)
	reg.RecordLoginSuccess("alice@example.com", "secret-token-value", "uid-1")

	w := doRequest(t, srv, http.MethodGet, "/api/v1/accounts")
	require.Equal(t, http.StatusOK, w.Code)

	assert.NotContains(t, w.Body.String(), "secret-token-value")
	assert.NotContains(t, w.Body.String(), "hunter2")

	var body struct {
		Accounts []map[string]any `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Accounts, 1)
	assert.Equal(t, string(models.StatusLoggedIn), body.Accounts[0]["status"])
	assert.Equal(t, "uid-1", body.Accounts[0]["user_id"])
}

func TestAccountDetail(t *testing.T) {
	srv, reg := newTestServer(t)
	_, err := reg.Register("alice@example.com", "pw")
	require.NoError(t, err)
	reg.ApplyPoints("alice@example.com", &models.PointsData{Total: 77})

	w := doRequest(t, srv, http.MethodGet, "/api/v1/accounts/alice@example.com")
	require.Equal(t, http.StatusOK, w.Code)

	var dto map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dto))
	points := dto["points"].(map[string]any)
	assert.Equal(t, float64(77), points["total"])
}

func TestAccountDetailNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/v1/accounts/nobody@example.com")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}
