package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

const documentCols = `doc_id, title, canonical_filename, latest_version_id, status, created_at, updated_at`

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.Title, &d.CanonicalFilename, &d.LatestVersionID,
		&d.Status, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &d, nil
}

// CreateDocument inserts a new active document and returns it.
func (s *Store) CreateDocument(ctx context.Context, title, canonicalFilename string) (*Document, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO documents (title, canonical_filename)
		VALUES ($1, $2)
		RETURNING `+documentCols,
		title, canonicalFilename)
	return scanDocument(row)
}

// GetDocument loads a document by id.
func (s *Store) GetDocument(ctx context.Context, id uuid.UUID) (*Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+documentCols+` FROM documents WHERE doc_id = $1`, id)
	return scanDocument(row)
}

// ListDocuments returns active documents, newest first.
func (s *Store) ListDocuments(ctx context.Context, limit int) ([]*Document, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+documentCols+` FROM documents
		WHERE status = 'active'
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DocumentsByIDs loads documents keyed by id.
func (s *Store) DocumentsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Document, error) {
	out := make(map[uuid.UUID]*Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+documentCols+` FROM documents WHERE doc_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("documents by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out[d.ID] = d
	}
	return out, rows.Err()
}

// SoftDeleteDocument marks a document deleted; purge removes it later.
func (s *Store) SoftDeleteDocument(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents SET status = 'deleted', updated_at = now()
		WHERE doc_id = $1 AND status = 'active'`, id)
	if err != nil {
		return fmt.Errorf("soft delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetLatestVersion points the document at the given version and bumps
// updated_at. Called by the finalize stage; last writer wins.
func (s *Store) SetLatestVersion(ctx context.Context, docID, versionID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE documents SET latest_version_id = $2, updated_at = now()
		WHERE doc_id = $1`, docID, versionID)
	if err != nil {
		return fmt.Errorf("set latest version: %w", err)
	}
	return nil
}

// PurgeCandidates returns documents soft-deleted before the cutoff.
func (s *Store) PurgeCandidates(ctx context.Context, cutoff time.Time) ([]*Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+documentCols+` FROM documents
		WHERE status = 'deleted' AND updated_at < $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("purge candidates: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// HardDeleteDocument removes a document and, via cascade, its versions,
// pages, chunks, and jobs.
func (s *Store) HardDeleteDocument(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE doc_id = $1`, id)
	if err != nil {
		return fmt.Errorf("hard delete document: %w", err)
	}
	return nil
}
