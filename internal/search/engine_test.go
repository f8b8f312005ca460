package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrelhq/carrel/internal/store"
)

type fakeSearchStore struct {
	lexical  map[string][]store.Candidate // keyed by language
	semantic []store.Candidate
	chunks   map[uuid.UUID]*store.Chunk
	docs     map[uuid.UUID]*store.Document
}

func (f *fakeSearchStore) LexicalCandidates(_ context.Context, _, language string, _ store.SearchScope, _ int) ([]store.Candidate, error) {
	return f.lexical[language], nil
}

func (f *fakeSearchStore) SemanticCandidates(_ context.Context, _ []float32, _ store.SearchScope, _ int) ([]store.Candidate, error) {
	return f.semantic, nil
}

func (f *fakeSearchStore) ChunksByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*store.Chunk, error) {
	out := map[uuid.UUID]*store.Chunk{}
	for _, id := range ids {
		if c, ok := f.chunks[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (f *fakeSearchStore) DocumentsByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*store.Document, error) {
	out := map[uuid.UUID]*store.Document{}
	for _, id := range ids {
		if d, ok := f.docs[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

func (f *fakeSearchStore) NeighborChunk(_ context.Context, versionID uuid.UUID, chunkNum, delta int) (*store.Chunk, error) {
	for _, c := range f.chunks {
		if c.VersionID == versionID && c.ChunkNum == chunkNum+delta {
			return c, nil
		}
	}
	return nil, store.ErrNotFound
}

type fakeQueryEmbedder struct {
	err error
}

func (f *fakeQueryEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, 4)
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func addChunk(fs *fakeSearchStore, docID, versionID uuid.UUID, num int) *store.Chunk {
	c := &store.Chunk{
		ID: uuid.New(), DocID: docID, VersionID: versionID,
		ChunkNum: num, ChunkText: "chunk text", Language: "english",
		PageStart: 1, PageEnd: 1,
	}
	if fs.chunks == nil {
		fs.chunks = map[uuid.UUID]*store.Chunk{}
	}
	fs.chunks[c.ID] = c
	return c
}

func addDoc(fs *fakeSearchStore, latest *uuid.UUID) *store.Document {
	d := &store.Document{ID: uuid.New(), Title: "A Title", LatestVersionID: latest}
	if fs.docs == nil {
		fs.docs = map[uuid.UUID]*store.Document{}
	}
	fs.docs[d.ID] = d
	return d
}

func TestNormalize(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	out := normalize(map[uuid.UUID]float64{a: 1, b: 3, c: 5})
	assert.Equal(t, 0.0, out[a])
	assert.Equal(t, 0.5, out[b])
	assert.Equal(t, 1.0, out[c])
}

func TestNormalizeZeroSpread(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	out := normalize(map[uuid.UUID]float64{a: 2, b: 2})
	assert.Equal(t, 1.0, out[a])
	assert.Equal(t, 1.0, out[b])
}

func TestNormalizeSingleCandidate(t *testing.T) {
	a := uuid.New()
	out := normalize(map[uuid.UUID]float64{a: 0.37})
	assert.Equal(t, 1.0, out[a])
}

func TestSearchFusesBothSets(t *testing.T) {
	fs := &fakeSearchStore{}
	version := uuid.New()
	doc := addDoc(fs, nil)
	c1 := addChunk(fs, doc.ID, version, 0)
	c2 := addChunk(fs, doc.ID, version, 1)

	fs.lexical = map[string][]store.Candidate{
		"english": {{ChunkID: c1.ID, Score: 0.8}, {ChunkID: c2.ID, Score: 0.4}},
	}
	fs.semantic = []store.Candidate{{ChunkID: c1.ID, Score: 0.9}, {ChunkID: c2.ID, Score: 0.7}}

	e := New(fs, &fakeQueryEmbedder{}, Options{}, testLogger())
	res, err := e.Search(context.Background(), "query", 10, store.SearchScope{})
	require.NoError(t, err)

	require.Len(t, res.Hits, 2)
	// c1 tops both sets: 1.0 + 1.0
	assert.Equal(t, c1.ID, res.Hits[0].ChunkID)
	assert.Equal(t, 2.0, res.Hits[0].Score)
	assert.Equal(t, 0.0, res.Hits[1].Score)
	assert.Equal(t, "A Title", res.Hits[0].Title)
}

func TestSearchLexicalKeepsMaxRankAcrossLanguages(t *testing.T) {
	fs := &fakeSearchStore{}
	doc := addDoc(fs, nil)
	c1 := addChunk(fs, doc.ID, uuid.New(), 0)
	fs.lexical = map[string][]store.Candidate{
		"english": {{ChunkID: c1.ID, Score: 0.2}},
		"french":  {{ChunkID: c1.ID, Score: 0.6}},
	}

	e := New(fs, &fakeQueryEmbedder{err: errors.New("down")}, Options{}, testLogger())
	lex, err := e.lexical(context.Background(), "q", store.SearchScope{})
	require.NoError(t, err)
	assert.Equal(t, 0.6, lex[c1.ID])
}

func TestSearchDegradesWhenEmbedderDown(t *testing.T) {
	fs := &fakeSearchStore{}
	doc := addDoc(fs, nil)
	c1 := addChunk(fs, doc.ID, uuid.New(), 0)
	fs.lexical = map[string][]store.Candidate{
		"english": {{ChunkID: c1.ID, Score: 0.5}},
	}

	e := New(fs, &fakeQueryEmbedder{err: errors.New("connection refused")}, Options{}, testLogger())
	res, err := e.Search(context.Background(), "query", 10, store.SearchScope{})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, 1.0, res.Hits[0].Score)
}

func TestSearchLatestVersionBoost(t *testing.T) {
	fs := &fakeSearchStore{}
	latest := uuid.New()
	older := uuid.New()
	doc := addDoc(fs, &latest)
	cLatest := addChunk(fs, doc.ID, latest, 0)
	cOlder := addChunk(fs, doc.ID, older, 0)

	// equal pre-boost scores
	fs.lexical = map[string][]store.Candidate{
		"english": {{ChunkID: cLatest.ID, Score: 0.5}, {ChunkID: cOlder.ID, Score: 0.5}},
	}

	e := New(fs, &fakeQueryEmbedder{err: errors.New("down")}, Options{}, testLogger())
	res, err := e.Search(context.Background(), "query", 10, store.SearchScope{})
	require.NoError(t, err)

	require.Len(t, res.Hits, 2)
	assert.Equal(t, cLatest.ID, res.Hits[0].ChunkID)
	assert.Greater(t, res.Hits[0].Score, res.Hits[1].Score)
	assert.InDelta(t, 0.10, res.Hits[0].Score-res.Hits[1].Score, 1e-9)
}

func TestSearchOCRConfidenceBoost(t *testing.T) {
	fs := &fakeSearchStore{}
	doc := addDoc(fs, nil)
	c1 := addChunk(fs, doc.ID, uuid.New(), 0)
	conf := 80.0
	c1.OCRConfidence = &conf
	c1.OCRUsed = true

	fs.lexical = map[string][]store.Candidate{
		"english": {{ChunkID: c1.ID, Score: 0.5}},
	}

	e := New(fs, &fakeQueryEmbedder{err: errors.New("down")}, Options{}, testLogger())
	res, err := e.Search(context.Background(), "query", 10, store.SearchScope{})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	// 1.0 normalized + 0.05 × 0.8
	assert.Equal(t, 1.04, res.Hits[0].Score)
}

func TestSearchConflictAcrossDocuments(t *testing.T) {
	fs := &fakeSearchStore{}
	docA := addDoc(fs, nil)
	docB := addDoc(fs, nil)
	cA := addChunk(fs, docA.ID, uuid.New(), 0)
	cB := addChunk(fs, docB.ID, uuid.New(), 0)

	fs.lexical = map[string][]store.Candidate{
		"english": {{ChunkID: cA.ID, Score: 0.5}, {ChunkID: cB.ID, Score: 0.5}},
	}

	e := New(fs, &fakeQueryEmbedder{err: errors.New("down")}, Options{}, testLogger())
	res, err := e.Search(context.Background(), "query", 10, store.SearchScope{})
	require.NoError(t, err)

	assert.True(t, res.PossibleConflict)
	require.Len(t, res.ConflictSources, 2)
}

func TestSearchNoConflictSingleSource(t *testing.T) {
	fs := &fakeSearchStore{}
	doc := addDoc(fs, nil)
	version := uuid.New()
	c1 := addChunk(fs, doc.ID, version, 0)
	c2 := addChunk(fs, doc.ID, version, 1)

	fs.lexical = map[string][]store.Candidate{
		"english": {{ChunkID: c1.ID, Score: 0.5}, {ChunkID: c2.ID, Score: 0.5}},
	}

	e := New(fs, &fakeQueryEmbedder{err: errors.New("down")}, Options{}, testLogger())
	res, err := e.Search(context.Background(), "query", 10, store.SearchScope{})
	require.NoError(t, err)

	assert.False(t, res.PossibleConflict)
	assert.Empty(t, res.ConflictSources)
}

func TestSearchEmptyResult(t *testing.T) {
	fs := &fakeSearchStore{}
	e := New(fs, &fakeQueryEmbedder{}, Options{}, testLogger())
	res, err := e.Search(context.Background(), "nothing matches", 10, store.SearchScope{})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.False(t, res.PossibleConflict)
}

func TestSearchClampsK(t *testing.T) {
	fs := &fakeSearchStore{}
	doc := addDoc(fs, nil)
	var cands []store.Candidate
	for i := 0; i < 5; i++ {
		c := addChunk(fs, doc.ID, uuid.New(), i)
		cands = append(cands, store.Candidate{ChunkID: c.ID, Score: float64(i)})
	}
	fs.lexical = map[string][]store.Candidate{"english": cands}

	e := New(fs, &fakeQueryEmbedder{err: errors.New("down")}, Options{}, testLogger())
	res, err := e.Search(context.Background(), "query", 2, store.SearchScope{})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 2)
}

func TestReadPassagesOrderAndMissing(t *testing.T) {
	fs := &fakeSearchStore{}
	doc := addDoc(fs, nil)
	version := uuid.New()
	c0 := addChunk(fs, doc.ID, version, 0)
	c1 := addChunk(fs, doc.ID, version, 1)
	unknown := uuid.New()

	e := New(fs, &fakeQueryEmbedder{}, Options{}, testLogger())
	passages, err := e.ReadPassages(context.Background(), []uuid.UUID{c1.ID, unknown, c0.ID}, false)
	require.NoError(t, err)

	require.Len(t, passages, 2)
	assert.Equal(t, c1.ID, passages[0].ChunkID)
	assert.Equal(t, c0.ID, passages[1].ChunkID)
}

func TestReadPassagesWithContext(t *testing.T) {
	fs := &fakeSearchStore{}
	doc := addDoc(fs, nil)
	version := uuid.New()
	c0 := addChunk(fs, doc.ID, version, 0)
	c1 := addChunk(fs, doc.ID, version, 1)
	c2 := addChunk(fs, doc.ID, version, 2)
	c0.ChunkText = "before"
	c2.ChunkText = "after"

	e := New(fs, &fakeQueryEmbedder{}, Options{}, testLogger())
	passages, err := e.ReadPassages(context.Background(), []uuid.UUID{c1.ID}, true)
	require.NoError(t, err)

	require.Len(t, passages, 1)
	assert.Equal(t, "before", passages[0].BeforeText)
	assert.Equal(t, "after", passages[0].AfterText)

	// edge chunk has no predecessor
	passages, err = e.ReadPassages(context.Background(), []uuid.UUID{c0.ID}, true)
	require.NoError(t, err)
	assert.Empty(t, passages[0].BeforeText)
	assert.Equal(t, c1.ChunkText, passages[0].AfterText)
}

func TestReadPassagesTooMany(t *testing.T) {
	e := New(&fakeSearchStore{}, &fakeQueryEmbedder{}, Options{}, testLogger())
	ids := make([]uuid.UUID, MaxPassageIDs+1)
	_, err := e.ReadPassages(context.Background(), ids, false)
	require.Error(t, err)
}
