package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/carrelhq/carrel/internal/chunker"
	"github.com/carrelhq/carrel/internal/store"
)

// Defaults for the retrieval and fusion tunables.
const (
	DefaultK                 = 10
	MaxK                     = 100
	DefaultCandidates        = 30
	DefaultLatestBoost       = 0.10
	DefaultOCRBoostFactor    = 0.05
	DefaultConflictThreshold = 0.9
)

// Store is the slice of the store the engine retrieves through.
type Store interface {
	LexicalCandidates(ctx context.Context, query, language string, scope store.SearchScope, limit int) ([]store.Candidate, error)
	SemanticCandidates(ctx context.Context, queryVec []float32, scope store.SearchScope, limit int) ([]store.Candidate, error)
	ChunksByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*store.Chunk, error)
	DocumentsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*store.Document, error)
	NeighborChunk(ctx context.Context, versionID uuid.UUID, chunkNum, delta int) (*store.Chunk, error)
}

// QueryEmbedder vectorizes the query text.
type QueryEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Options are the fusion tunables; zero values take the defaults.
type Options struct {
	Candidates        int
	LatestBoost       float64
	OCRBoostFactor    float64
	ConflictThreshold float64
}

func (o Options) withDefaults() Options {
	if o.Candidates <= 0 {
		o.Candidates = DefaultCandidates
	}
	if o.LatestBoost == 0 {
		o.LatestBoost = DefaultLatestBoost
	}
	if o.OCRBoostFactor == 0 {
		o.OCRBoostFactor = DefaultOCRBoostFactor
	}
	if o.ConflictThreshold == 0 {
		o.ConflictThreshold = DefaultConflictThreshold
	}
	return o
}

// Engine fuses lexical and semantic retrieval into one ranked answer.
type Engine struct {
	store    Store
	embedder QueryEmbedder
	opts     Options
	log      *slog.Logger
}

// New builds an Engine.
func New(s Store, e QueryEmbedder, opts Options, log *slog.Logger) *Engine {
	return &Engine{store: s, embedder: e, opts: opts.withDefaults(), log: log}
}

// Search runs the hybrid query. k is clamped to 1..100 (0 means the default).
// Embedder failures degrade to lexical-only retrieval.
func (e *Engine) Search(ctx context.Context, query string, k int, scope store.SearchScope) (*Result, error) {
	if k <= 0 {
		k = DefaultK
	}
	if k > MaxK {
		k = MaxK
	}

	lexical, err := e.lexical(ctx, query, scope)
	if err != nil {
		return nil, err
	}
	semantic := e.semantic(ctx, query, scope)

	normLex := normalize(lexical)
	normSem := normalize(semantic)

	combined := make(map[uuid.UUID]float64, len(normLex)+len(normSem))
	for id, s := range normLex {
		combined[id] = s
	}
	for id, s := range normSem {
		combined[id] += s
	}
	if len(combined) == 0 {
		return &Result{Hits: []Hit{}}, nil
	}

	ids := make([]uuid.UUID, 0, len(combined))
	for id := range combined {
		ids = append(ids, id)
	}
	chunks, err := e.store.ChunksByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	docIDs := make([]uuid.UUID, 0, len(chunks))
	seen := map[uuid.UUID]bool{}
	for _, c := range chunks {
		if !seen[c.DocID] {
			seen[c.DocID] = true
			docIDs = append(docIDs, c.DocID)
		}
	}
	docs, err := e.store.DocumentsByIDs(ctx, docIDs)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(combined))
	for id, score := range combined {
		c, ok := chunks[id]
		if !ok {
			continue
		}
		doc := docs[c.DocID]
		if doc != nil && doc.LatestVersionID != nil && *doc.LatestVersionID == c.VersionID {
			score += e.opts.LatestBoost
		}
		if c.OCRConfidence != nil {
			score += e.opts.OCRBoostFactor * (*c.OCRConfidence / 100)
		}
		title := ""
		if doc != nil {
			title = doc.Title
		}
		hits = append(hits, Hit{
			ChunkID:       c.ID,
			DocID:         c.DocID,
			VersionID:     c.VersionID,
			ChunkNum:      c.ChunkNum,
			Score:         round4(score),
			Text:          c.ChunkText,
			PageStart:     c.PageStart,
			PageEnd:       c.PageEnd,
			Language:      c.Language,
			OCRUsed:       c.OCRUsed,
			OCRConfidence: c.OCRConfidence,
			Title:         title,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID.String() < hits[j].ChunkID.String()
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	res := &Result{Hits: hits}
	e.detectConflict(res, docs)
	return res, nil
}

// lexical queries both analyzer languages and keeps the best rank per chunk.
func (e *Engine) lexical(ctx context.Context, query string, scope store.SearchScope) (map[uuid.UUID]float64, error) {
	out := map[uuid.UUID]float64{}
	for _, lang := range []string{chunker.LangEnglish, chunker.LangFrench} {
		cands, err := e.store.LexicalCandidates(ctx, query, lang, scope, e.opts.Candidates)
		if err != nil {
			return nil, fmt.Errorf("lexical retrieval: %w", err)
		}
		for _, c := range cands {
			if cur, ok := out[c.ChunkID]; !ok || c.Score > cur {
				out[c.ChunkID] = c.Score
			}
		}
	}
	return out, nil
}

// semantic embeds the query and retrieves by cosine similarity. Any failure
// logs and returns an empty set so search degrades instead of erroring.
func (e *Engine) semantic(ctx context.Context, query string, scope store.SearchScope) map[uuid.UUID]float64 {
	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		e.log.Warn("query embedding failed, lexical-only search", "error", err)
		return nil
	}
	if len(vectors) != 1 {
		e.log.Warn("query embedding returned unexpected count", "count", len(vectors))
		return nil
	}
	cands, err := e.store.SemanticCandidates(ctx, vectors[0], scope, e.opts.Candidates)
	if err != nil {
		e.log.Warn("semantic retrieval failed, lexical-only search", "error", err)
		return nil
	}
	out := make(map[uuid.UUID]float64, len(cands))
	for _, c := range cands {
		out[c.ChunkID] = c.Score
	}
	return out
}

// detectConflict flags comparably-scored top answers that come from
// different documents or versions.
func (e *Engine) detectConflict(res *Result, docs map[uuid.UUID]*store.Document) {
	if len(res.Hits) == 0 {
		return
	}
	top := res.Hits
	if len(top) > 3 {
		top = top[:3]
	}
	threshold := e.opts.ConflictThreshold * top[0].Score

	type src struct{ doc, version uuid.UUID }
	seen := map[src]bool{}
	var sources []ConflictSource
	for _, h := range top {
		if h.Score < threshold {
			continue
		}
		key := src{h.DocID, h.VersionID}
		if seen[key] {
			continue
		}
		seen[key] = true
		title := ""
		if d := docs[h.DocID]; d != nil {
			title = d.Title
		}
		sources = append(sources, ConflictSource{DocID: h.DocID, VersionID: h.VersionID, Title: title})
	}
	if len(sources) >= 2 {
		res.PossibleConflict = true
		res.ConflictSources = sources
	}
}
