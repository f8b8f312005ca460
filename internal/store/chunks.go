package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

const chunkCols = `chunk_id, version_id, doc_id, chunk_num, page_start, page_end,
	char_start, char_end, chunk_text, language, ocr_used, ocr_confidence,
	embedding IS NOT NULL, created_at`

func scanChunk(row pgx.Row) (*Chunk, error) {
	var c Chunk
	err := row.Scan(&c.ID, &c.VersionID, &c.DocID, &c.ChunkNum, &c.PageStart, &c.PageEnd,
		&c.CharStart, &c.CharEnd, &c.ChunkText, &c.Language, &c.OCRUsed, &c.OCRConfidence,
		&c.HasEmbedding, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan chunk: %w", err)
	}
	return &c, nil
}

// NewChunk is the input to ReplaceChunks.
type NewChunk struct {
	ChunkNum      int
	PageStart     int
	PageEnd       int
	CharStart     int
	CharEnd       int
	ChunkText     string
	Language      string
	OCRUsed       bool
	OCRConfidence *float64
}

// ReplaceChunks deletes existing chunks for the version and inserts the new
// set in one transaction. Embeddings are reset; the embed stage refills them.
func (s *Store) ReplaceChunks(ctx context.Context, versionID, docID uuid.UUID, chunks []NewChunk) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE version_id = $1`, versionID); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		for _, c := range chunks {
			if _, err := tx.Exec(ctx, `
				INSERT INTO chunks (version_id, doc_id, chunk_num, page_start, page_end,
					char_start, char_end, chunk_text, language, ocr_used, ocr_confidence)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				versionID, docID, c.ChunkNum, c.PageStart, c.PageEnd,
				c.CharStart, c.CharEnd, c.ChunkText, c.Language, c.OCRUsed, c.OCRConfidence); err != nil {
				return fmt.Errorf("insert chunk %d: %w", c.ChunkNum, err)
			}
		}
		return nil
	})
}

// ListUnembeddedChunks returns the version's chunks with no embedding yet,
// in chunk_num order.
func (s *Store) ListUnembeddedChunks(ctx context.Context, versionID uuid.UUID) ([]*Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+chunkCols+` FROM chunks
		WHERE version_id = $1 AND embedding IS NULL
		ORDER BY chunk_num`, versionID)
	if err != nil {
		return nil, fmt.Errorf("list unembedded chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// SetEmbeddings stores one vector per chunk id in a single transaction.
func (s *Store) SetEmbeddings(ctx context.Context, ids []uuid.UUID, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d != %d", len(ids), len(vectors))
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		for i, id := range ids {
			if _, err := tx.Exec(ctx, `UPDATE chunks SET embedding = $2 WHERE chunk_id = $1`,
				id, pgvector.NewVector(vectors[i])); err != nil {
				return fmt.Errorf("set embedding: %w", err)
			}
		}
		return nil
	})
}

// ChunksByIDs loads chunks keyed by id. Unknown ids are silently absent.
func (s *Store) ChunksByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Chunk, error) {
	out := make(map[uuid.UUID]*Chunk, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+chunkCols+` FROM chunks WHERE chunk_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("chunks by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

// NeighborChunk returns the chunk at chunk_num+delta on the same version, or
// ErrNotFound when it does not exist.
func (s *Store) NeighborChunk(ctx context.Context, versionID uuid.UUID, chunkNum, delta int) (*Chunk, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+chunkCols+` FROM chunks
		WHERE version_id = $1 AND chunk_num = $2`, versionID, chunkNum+delta)
	return scanChunk(row)
}

// CountChunks returns the total number of chunks in the corpus.
func (s *Store) CountChunks(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}
