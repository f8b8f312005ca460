package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PageText is the input to ReplacePages: one logical page of extracted text.
type PageText struct {
	PageNum  int
	PageText string
}

// ReplacePages deletes any existing pages for the version and inserts the
// given set in one transaction. Rerunning extract therefore converges.
func (s *Store) ReplacePages(ctx context.Context, versionID uuid.UUID, pages []PageText) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM document_pages WHERE version_id = $1`, versionID); err != nil {
			return fmt.Errorf("delete pages: %w", err)
		}
		for _, p := range pages {
			if _, err := tx.Exec(ctx, `
				INSERT INTO document_pages (version_id, page_num, page_text)
				VALUES ($1, $2, $3)`,
				versionID, p.PageNum, p.PageText); err != nil {
				return fmt.Errorf("insert page %d: %w", p.PageNum, err)
			}
		}
		return nil
	})
}

// ListPages returns the version's pages in page order.
func (s *Store) ListPages(ctx context.Context, versionID uuid.UUID) ([]*DocumentPage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT page_id, version_id, page_num, page_text, ocr_used, ocr_confidence, char_count
		FROM document_pages
		WHERE version_id = $1
		ORDER BY page_num`, versionID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []*DocumentPage
	for rows.Next() {
		var p DocumentPage
		if err := rows.Scan(&p.ID, &p.VersionID, &p.PageNum, &p.PageText,
			&p.OCRUsed, &p.OCRConfidence, &p.CharCount); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, &p)
	}
	return pages, rows.Err()
}

// UpsertPageOCR writes OCR output into a page, creating the row if extract
// produced fewer pages than the rasterizer found.
func (s *Store) UpsertPageOCR(ctx context.Context, versionID uuid.UUID, pageNum int, pageText string, confidence float64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO document_pages (version_id, page_num, page_text, ocr_used, ocr_confidence)
		VALUES ($1, $2, $3, true, $4)
		ON CONFLICT ON CONSTRAINT uq_pages_version_page
		DO UPDATE SET page_text = $3, ocr_used = true, ocr_confidence = $4`,
		versionID, pageNum, pageText, confidence)
	if err != nil {
		return fmt.Errorf("upsert page ocr: %w", err)
	}
	return nil
}
