package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Candidate is one scored chunk from a single retrieval channel, before fusion.
type Candidate struct {
	ChunkID uuid.UUID
	Score   float64
}

// SearchScope narrows retrieval to a subset of documents or versions. Empty
// means the whole active corpus.
type SearchScope struct {
	DocIDs     []uuid.UUID
	VersionIDs []uuid.UUID
}

func (sc SearchScope) clause(argn int) (string, []any) {
	var out string
	var args []any
	if len(sc.DocIDs) > 0 {
		out += fmt.Sprintf(" AND c.doc_id = ANY($%d)", argn)
		args = append(args, sc.DocIDs)
		argn++
	}
	if len(sc.VersionIDs) > 0 {
		out += fmt.Sprintf(" AND c.version_id = ANY($%d)", argn)
		args = append(args, sc.VersionIDs)
	}
	return out, args
}

// LexicalCandidates ranks chunks against a websearch-style query in one
// language's text-search configuration. Only chunks of active documents
// participate.
func (s *Store) LexicalCandidates(ctx context.Context, query, language string, scope SearchScope, limit int) ([]Candidate, error) {
	ftsCol := "fts_en"
	if language == "french" {
		ftsCol = "fts_fr"
	}
	sql := `
		SELECT c.chunk_id, ts_rank_cd(c.` + ftsCol + `, q) AS rank
		FROM chunks c
		JOIN documents d ON d.doc_id = c.doc_id,
			websearch_to_tsquery($1, $2) q
		WHERE d.status = 'active' AND c.` + ftsCol + ` @@ q`
	args := []any{language, query}
	if clause, extra := scope.clause(3); clause != "" {
		sql += clause
		args = append(args, extra...)
	}
	sql += fmt.Sprintf(" ORDER BY rank DESC LIMIT %d", limit)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("lexical candidates (%s): %w", language, err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ChunkID, &c.Score); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SemanticCandidates ranks chunks by cosine similarity to the query vector.
// Score is 1 minus cosine distance, so higher is closer.
func (s *Store) SemanticCandidates(ctx context.Context, queryVec []float32, scope SearchScope, limit int) ([]Candidate, error) {
	sql := `
		SELECT c.chunk_id, 1 - (c.embedding <=> $1) AS similarity
		FROM chunks c
		JOIN documents d ON d.doc_id = c.doc_id
		WHERE d.status = 'active' AND c.embedding IS NOT NULL`
	args := []any{pgvector.NewVector(queryVec)}
	if clause, extra := scope.clause(2); clause != "" {
		sql += clause
		args = append(args, extra...)
	}
	sql += fmt.Sprintf(" ORDER BY c.embedding <=> $1 LIMIT %d", limit)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("semantic candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ChunkID, &c.Score); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
