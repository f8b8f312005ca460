package pipeline

import (
	"context"
	"fmt"

	"github.com/carrelhq/carrel/internal/store"
)

// runExtract pulls the original from the object store, extracts page text,
// and records the text-layer verdict that steers the OCR stage.
func (s *Stages) runExtract(ctx context.Context, v *store.DocumentVersion) error {
	data, err := s.Blob.GetBytes(ctx, v.ObjectKey)
	if err != nil {
		return fmt.Errorf("fetch original: %w", err)
	}

	res, err := s.Extractor.Extract(ctx, data, v.MimeType, originalFilename(v))
	if err != nil {
		return err
	}

	pages := make([]store.PageText, len(res.Pages))
	for i, text := range res.Pages {
		pages[i] = store.PageText{PageNum: i + 1, PageText: text}
	}
	if err := s.Store.ReplacePages(ctx, v.ID, pages); err != nil {
		return err
	}
	if err := s.Store.SetExtractionFlags(ctx, v.ID, res.HasTextLayer, res.NeedsOCR, res.TotalChars); err != nil {
		return err
	}
	if err := s.Store.SetJobMetrics(ctx, v.ID, store.StageExtract, store.JobMetrics{
		Pages: len(pages),
		Chars: res.TotalChars,
	}); err != nil {
		return err
	}

	s.Log.Info("extracted", "version", v.ID, "kind", res.Kind,
		"pages", len(pages), "chars", res.TotalChars, "needs_ocr", res.NeedsOCR)
	return nil
}
