package endpoints

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrelhq/carrel/internal/config"
	"github.com/carrelhq/carrel/internal/search"
	"github.com/carrelhq/carrel/internal/store"
	"github.com/carrelhq/carrel/internal/svcctx"
)

// scopeRecordingStore satisfies search.Store and captures the scope each
// lexical retrieval was issued with.
type scopeRecordingStore struct {
	scopes []store.SearchScope
}

func (s *scopeRecordingStore) LexicalCandidates(_ context.Context, _, _ string, scope store.SearchScope, _ int) ([]store.Candidate, error) {
	s.scopes = append(s.scopes, scope)
	return nil, nil
}

func (s *scopeRecordingStore) SemanticCandidates(_ context.Context, _ []float32, _ store.SearchScope, _ int) ([]store.Candidate, error) {
	return nil, nil
}

func (s *scopeRecordingStore) ChunksByIDs(_ context.Context, _ []uuid.UUID) (map[uuid.UUID]*store.Chunk, error) {
	return nil, nil
}

func (s *scopeRecordingStore) DocumentsByIDs(_ context.Context, _ []uuid.UUID) (map[uuid.UUID]*store.Document, error) {
	return nil, nil
}

func (s *scopeRecordingStore) NeighborChunk(_ context.Context, _ uuid.UUID, _, _ int) (*store.Chunk, error) {
	return nil, nil
}

type downEmbedder struct{}

func (downEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedder down")
}

func TestAllEndpointsHaveRoutes(t *testing.T) {
	eps := All()
	require.NotEmpty(t, eps)

	seen := make(map[string]bool)
	for _, ep := range eps {
		method, path, handler := ep.Route()
		assert.Contains(t, []string{"GET", "POST", "DELETE"}, method)
		assert.True(t, strings.HasPrefix(path, "/"), "path %q must start with /", path)
		assert.NotNil(t, handler)

		key := method + " " + path
		assert.False(t, seen[key], "duplicate route %s", key)
		seen[key] = true

		cmd := ep.Command(func() string { return "http://localhost:8080" })
		require.NotNil(t, cmd)
		assert.NotEmpty(t, cmd.Use)
	}
}

func TestOnlyHealthEndpointsSkipInit(t *testing.T) {
	for _, ep := range All() {
		_, path, _ := ep.Route()
		if path == "/health" || path == "/ready" {
			assert.False(t, ep.RequiresInit(), "%s should not require init", path)
		} else {
			assert.True(t, ep.RequiresInit(), "%s should require init", path)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	ep := &HealthEndpoint{}
	_, _, handler := ep.Route()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestReadyEndpointNotInitialized(t *testing.T) {
	ep := &ReadyEndpoint{}
	_, _, handler := ep.Route()

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
	assert.Contains(t, rec.Body.String(), "not_initialized")
}

func TestUploadMissingFile(t *testing.T) {
	cm, err := config.NewManager("")
	require.NoError(t, err)

	ep := &UploadEndpoint{}
	_, _, handler := ep.Route()

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", strings.NewReader("not a form"))
	req = req.WithContext(svcctx.WithServices(req.Context(), &svcctx.Services{Config: cm}))
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing file field")
}

func TestConfirmUploadBadRequest(t *testing.T) {
	ep := &ConfirmUploadEndpoint{}
	_, _, handler := ep.Route()

	req := httptest.NewRequest(http.MethodPost, "/api/uploads/confirm", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/uploads/confirm", strings.NewReader(`{"action":"new_document"}`))
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "upload_id is required")
}

func TestSearchRequiresQuery(t *testing.T) {
	ep := &SearchEndpoint{}
	_, _, handler := ep.Route()

	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "q is required")

	req = httptest.NewRequest(http.MethodGet, "/api/search?q=hello&k=many", nil)
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "k must be an integer")

	req = httptest.NewRequest(http.MethodGet, "/api/search?q=hello&doc_id=nope", nil)
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid doc_id")

	req = httptest.NewRequest(http.MethodGet, "/api/search?q=hello&version_id=nope", nil)
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid version_id")
}

func TestSearchScopedByDocAndVersion(t *testing.T) {
	st := &scopeRecordingStore{}
	eng := search.New(st, downEmbedder{}, search.Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ep := &SearchEndpoint{}
	_, _, handler := ep.Route()

	docID := uuid.New()
	versionID := uuid.New()
	target := "/api/search?q=hello&doc_id=" + docID.String() + "&version_id=" + versionID.String()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req = req.WithContext(svcctx.WithServices(req.Context(), &svcctx.Services{Search: eng}))
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"hits":[]`)
	require.NotEmpty(t, st.scopes)
	assert.Equal(t, []uuid.UUID{docID}, st.scopes[0].DocIDs)
	assert.Equal(t, []uuid.UUID{versionID}, st.scopes[0].VersionIDs)
}

func TestPassagesRequiresIDs(t *testing.T) {
	ep := &PassagesEndpoint{}
	_, _, handler := ep.Route()

	req := httptest.NewRequest(http.MethodPost, "/api/passages", strings.NewReader(`{"chunk_ids":[]}`))
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "chunk_ids is required")
}

func TestDocumentEndpointsRejectBadIDs(t *testing.T) {
	for _, ep := range []interface {
		Route() (string, string, http.HandlerFunc)
	}{
		&GetDocumentEndpoint{},
		&DeleteDocumentEndpoint{},
		&ReprocessEndpoint{},
	} {
		method, path, handler := ep.Route()
		target := strings.Replace(path, "{id}", "not-a-uuid", 1)
		req := httptest.NewRequest(method, target, nil)
		req.SetPathValue("id", "not-a-uuid")
		rec := httptest.NewRecorder()
		handler(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%s %s", method, path)
	}
}

func TestTitleFromFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report"},
		{"notes.2024.txt", "notes.2024"},
		{"no-extension", "no-extension"},
		{".hidden", ".hidden"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, titleFromFilename(tt.in), "input %q", tt.in)
	}
}
