package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrelhq/carrel/internal/config"
)

func testManager(t *testing.T) *config.Manager {
	t.Helper()
	cm, err := config.NewManager("")
	require.NoError(t, err)
	return cm
}

func TestNewRequiresConfigManager(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	s, err := New(Config{
		ConfigManager: testManager(t),
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	assert.Equal(t, ":8080", s.Addr())
	assert.False(t, s.IsRunning())
	assert.NotEmpty(t, s.Registry().Endpoints())
}

func TestRequireInitBlocksBeforeStart(t *testing.T) {
	s, err := New(Config{
		ConfigManager: testManager(t),
		ListenAddr:    ":0",
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	handler := s.requireInit(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/docs", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not fully initialized")
}

func TestHealthRouteServedWithoutInit(t *testing.T) {
	s, err := New(Config{
		ConfigManager: testManager(t),
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
