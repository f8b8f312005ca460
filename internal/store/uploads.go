package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const uploadCols = `upload_id, original_filename, mime_type, size_bytes, sha256,
	bucket, object_key, doc_id, version_id, status, error, created_at`

func scanUpload(row pgx.Row) (*Upload, error) {
	var u Upload
	err := row.Scan(&u.ID, &u.OriginalFilename, &u.MimeType, &u.SizeBytes, &u.SHA256,
		&u.Bucket, &u.ObjectKey, &u.DocID, &u.VersionID, &u.Status, &u.Error, &u.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan upload: %w", err)
	}
	return &u, nil
}

// CreateUpload records a staged blob awaiting confirmation.
func (s *Store) CreateUpload(ctx context.Context, filename, mimeType string, sizeBytes int64, sha256 []byte, bucket, objectKey string) (*Upload, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO uploads (original_filename, mime_type, size_bytes, sha256, bucket, object_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+uploadCols,
		filename, mimeType, sizeBytes, sha256, bucket, objectKey)
	return scanUpload(row)
}

// GetUpload loads an upload by id.
func (s *Store) GetUpload(ctx context.Context, id uuid.UUID) (*Upload, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+uploadCols+` FROM uploads WHERE upload_id = $1`, id)
	return scanUpload(row)
}

// MarkUploadDuplicate records that the blob's hash matched an existing version.
func (s *Store) MarkUploadDuplicate(ctx context.Context, id uuid.UUID, docID, versionID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE uploads SET status = 'duplicate', doc_id = $2, version_id = $3
		WHERE upload_id = $1`, id, docID, versionID)
	if err != nil {
		return fmt.Errorf("mark upload duplicate: %w", err)
	}
	return nil
}

// MarkUploadProcessing ties the upload to its new document version and moves
// it to processing.
func (s *Store) MarkUploadProcessing(ctx context.Context, id uuid.UUID, docID, versionID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE uploads SET status = 'processing', doc_id = $2, version_id = $3
		WHERE upload_id = $1`, id, docID, versionID)
	if err != nil {
		return fmt.Errorf("mark upload processing: %w", err)
	}
	return nil
}

// MarkUploadsDoneForVersion flips every processing upload of the version to
// done. Called by the finalize stage.
func (s *Store) MarkUploadsDoneForVersion(ctx context.Context, versionID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE uploads SET status = 'done'
		WHERE version_id = $1 AND status = 'processing'`, versionID)
	if err != nil {
		return fmt.Errorf("mark uploads done: %w", err)
	}
	return nil
}

// SetUploadError records a failure on the upload record.
func (s *Store) SetUploadError(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE uploads SET error = $2 WHERE upload_id = $1`, id, errMsg)
	if err != nil {
		return fmt.Errorf("set upload error: %w", err)
	}
	return nil
}

// ListRecentUploads returns uploads newest first.
func (s *Store) ListRecentUploads(ctx context.Context, limit int) ([]*Upload, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+uploadCols+` FROM uploads
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var uploads []*Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}
