package mcptool

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrelhq/carrel/internal/search"
	"github.com/carrelhq/carrel/internal/store"
)

type fakeSearcher struct {
	lastQuery string
	lastK     int
	lastScope store.SearchScope
	result    *search.Result
	passages  []search.Passage
}

func (f *fakeSearcher) Search(ctx context.Context, query string, k int, scope store.SearchScope) (*search.Result, error) {
	f.lastQuery, f.lastK, f.lastScope = query, k, scope
	if f.result == nil {
		return &search.Result{Hits: []search.Hit{}}, nil
	}
	return f.result, nil
}

func (f *fakeSearcher) ReadPassages(ctx context.Context, ids []uuid.UUID, includeContext bool) ([]search.Passage, error) {
	return f.passages, nil
}

type fakeDocStore struct {
	docs     []*store.Document
	versions map[uuid.UUID][]*store.DocumentVersion
	jobs     map[uuid.UUID][]*store.IngestionJob
}

func (f *fakeDocStore) ListDocuments(ctx context.Context, limit int) ([]*store.Document, error) {
	return f.docs, nil
}

func (f *fakeDocStore) GetDocument(ctx context.Context, id uuid.UUID) (*store.Document, error) {
	for _, d := range f.docs {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeDocStore) ListVersionsByDoc(ctx context.Context, docID uuid.UUID) ([]*store.DocumentVersion, error) {
	return f.versions[docID], nil
}

func (f *fakeDocStore) ListJobsByVersion(ctx context.Context, versionID uuid.UUID) ([]*store.IngestionJob, error) {
	return f.jobs[versionID], nil
}

func testServer(t *testing.T, s Searcher, d DocStore) *Server {
	t.Helper()
	srv, err := New(s, d, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return srv
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(nil, &fakeDocStore{}, "test", nil)
	require.Error(t, err)

	_, err = New(&fakeSearcher{}, nil, "test", nil)
	require.Error(t, err)
}

func TestSearchToolValidatesInput(t *testing.T) {
	srv := testServer(t, &fakeSearcher{}, &fakeDocStore{})

	_, _, err := srv.handleSearch(context.Background(), nil, SearchInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query is required")

	_, _, err = srv.handleSearch(context.Background(), nil, SearchInput{Query: "x", DocIDs: []string{"bad"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid doc id")
}

func TestSearchToolPassesScope(t *testing.T) {
	fs := &fakeSearcher{result: &search.Result{
		Hits:             []search.Hit{{ChunkNum: 3, Score: 1.5, Text: "hello"}},
		PossibleConflict: true,
	}}
	srv := testServer(t, fs, &fakeDocStore{})

	docID := uuid.New()
	_, out, err := srv.handleSearch(context.Background(), nil, SearchInput{
		Query:  "solvent disposal",
		K:      5,
		DocIDs: []string{docID.String()},
	})
	require.NoError(t, err)

	assert.Equal(t, "solvent disposal", fs.lastQuery)
	assert.Equal(t, 5, fs.lastK)
	require.Len(t, fs.lastScope.DocIDs, 1)
	assert.Equal(t, docID, fs.lastScope.DocIDs[0])

	require.Len(t, out.Hits, 1)
	assert.Equal(t, "hello", out.Hits[0].Text)
	assert.True(t, out.PossibleConflict)
}

func TestReadPassagesToolValidatesInput(t *testing.T) {
	srv := testServer(t, &fakeSearcher{}, &fakeDocStore{})

	_, _, err := srv.handleReadPassages(context.Background(), nil, ReadPassagesInput{})
	require.Error(t, err)

	_, _, err = srv.handleReadPassages(context.Background(), nil, ReadPassagesInput{ChunkIDs: []string{"nope"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid chunk id")
}

func TestListDocumentsTool(t *testing.T) {
	vid := uuid.New()
	doc := &store.Document{
		ID:                uuid.New(),
		Title:             "Safety Manual",
		CanonicalFilename: "safety.pdf",
		LatestVersionID:   &vid,
		Status:            store.DocActive,
		CreatedAt:         time.Now(),
	}
	srv := testServer(t, &fakeSearcher{}, &fakeDocStore{docs: []*store.Document{doc}})

	_, out, err := srv.handleListDocuments(context.Background(), nil, ListDocumentsInput{})
	require.NoError(t, err)
	require.Len(t, out.Documents, 1)
	assert.Equal(t, "Safety Manual", out.Documents[0].Title)
	assert.True(t, out.Documents[0].Ready)
}

func TestJobStatusTool(t *testing.T) {
	doc := &store.Document{ID: uuid.New(), Title: "Manual"}
	version := &store.DocumentVersion{ID: uuid.New(), DocID: doc.ID, Status: store.VersionEmbedding}
	ds := &fakeDocStore{
		docs:     []*store.Document{doc},
		versions: map[uuid.UUID][]*store.DocumentVersion{doc.ID: {version}},
		jobs: map[uuid.UUID][]*store.IngestionJob{
			version.ID: {
				{Stage: store.StageExtract, Status: store.JobDone},
				{Stage: store.StageEmbed, Status: store.JobRunning, ProgressCurrent: 40, ProgressTotal: 100},
			},
		},
	}
	srv := testServer(t, &fakeSearcher{}, ds)

	_, out, err := srv.handleJobStatus(context.Background(), nil, JobStatusInput{DocID: doc.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, "Manual", out.Title)
	require.Len(t, out.Versions, 1)
	assert.Equal(t, "embedding", out.Versions[0].Status)
	require.Len(t, out.Versions[0].Jobs, 2)
	assert.Equal(t, 40, out.Versions[0].Jobs[1].ProgressCurrent)

	_, _, err = srv.handleJobStatus(context.Background(), nil, JobStatusInput{DocID: "garbage"})
	require.Error(t, err)
}
