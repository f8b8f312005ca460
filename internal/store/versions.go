package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const versionCols = `version_id, doc_id, original_sha256, original_bucket, original_object_key,
	mime_type, size_bytes, status, error, has_text_layer, needs_ocr, extracted_chars,
	created_at, updated_at`

func scanVersion(row pgx.Row) (*DocumentVersion, error) {
	var v DocumentVersion
	err := row.Scan(&v.ID, &v.DocID, &v.SHA256, &v.Bucket, &v.ObjectKey,
		&v.MimeType, &v.SizeBytes, &v.Status, &v.Error, &v.HasTextLayer,
		&v.NeedsOCR, &v.ExtractedChars, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan version: %w", err)
	}
	return &v, nil
}

// CreateVersion inserts a queued version for the given document.
func (s *Store) CreateVersion(ctx context.Context, docID uuid.UUID, sha256 []byte, bucket, mimeType string, sizeBytes int64) (*DocumentVersion, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO document_versions (doc_id, original_sha256, original_bucket, original_object_key, mime_type, size_bytes)
		VALUES ($1, $2, $3, '', $4, $5)
		RETURNING `+versionCols,
		docID, sha256, bucket, mimeType, sizeBytes)
	return scanVersion(row)
}

// GetVersion loads a version by id.
func (s *Store) GetVersion(ctx context.Context, id uuid.UUID) (*DocumentVersion, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+versionCols+` FROM document_versions WHERE version_id = $1`, id)
	return scanVersion(row)
}

// GetVersionBySHA256 looks a version up by content hash. Returns ErrNotFound
// when the hash is unseen; used for content-addressed dedup at upload time.
func (s *Store) GetVersionBySHA256(ctx context.Context, sha256 []byte) (*DocumentVersion, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+versionCols+` FROM document_versions WHERE original_sha256 = $1`, sha256)
	return scanVersion(row)
}

// ListVersionsByDoc returns all versions of a document, newest first.
func (s *Store) ListVersionsByDoc(ctx context.Context, docID uuid.UUID) ([]*DocumentVersion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+versionCols+` FROM document_versions
		WHERE doc_id = $1 ORDER BY created_at DESC`, docID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var versions []*DocumentVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// SetVersionObjectKey records the canonical object key after the staging
// object has been moved.
func (s *Store) SetVersionObjectKey(ctx context.Context, id uuid.UUID, objectKey string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE document_versions SET original_object_key = $2, updated_at = now()
		WHERE version_id = $1`, id, objectKey)
	if err != nil {
		return fmt.Errorf("set version object key: %w", err)
	}
	return nil
}

// SetVersionStatus moves a version to the given status, clearing any error.
func (s *Store) SetVersionStatus(ctx context.Context, id uuid.UUID, status VersionStatus) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE document_versions SET status = $2, error = '', updated_at = now()
		WHERE version_id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set version status: %w", err)
	}
	return nil
}

// SetVersionError moves a version to the error state with the failure string.
func (s *Store) SetVersionError(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE document_versions SET status = 'error', error = $2, updated_at = now()
		WHERE version_id = $1`, id, errMsg)
	if err != nil {
		return fmt.Errorf("set version error: %w", err)
	}
	return nil
}

// SetExtractionFlags records what the extract (or OCR) stage learned about
// the version's text layer.
func (s *Store) SetExtractionFlags(ctx context.Context, id uuid.UUID, hasTextLayer, needsOCR bool, extractedChars int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE document_versions
		SET has_text_layer = $2, needs_ocr = $3, extracted_chars = $4, updated_at = now()
		WHERE version_id = $1`, id, hasTextLayer, needsOCR, extractedChars)
	if err != nil {
		return fmt.Errorf("set extraction flags: %w", err)
	}
	return nil
}

// SetExtractedChars updates only the extracted character count (OCR rewrites it).
func (s *Store) SetExtractedChars(ctx context.Context, id uuid.UUID, chars int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE document_versions SET extracted_chars = $2, updated_at = now()
		WHERE version_id = $1`, id, chars)
	if err != nil {
		return fmt.Errorf("set extracted chars: %w", err)
	}
	return nil
}
