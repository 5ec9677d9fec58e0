package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatus struct {
	imported, errored int64
}

func (f fakeStatus) Progress() (int64, int64) { return f.imported, f.errored }

func newTestRoutes(status StatusSource) http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(nil, status, log).Routes()
}

func TestHealthz(t *testing.T) {
	routes := newTestRoutes(fakeStatus{})

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestStatusReportsCounters(t *testing.T) {
	routes := newTestRoutes(fakeStatus{imported: 1200, errored: 3})

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1200), body["imported"])
	assert.Equal(t, int64(3), body["errored"])
}

func TestMetricsEndpointServes(t *testing.T) {
	routes := newTestRoutes(fakeStatus{})

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
}
