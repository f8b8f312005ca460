package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/carrelhq/carrel/internal/broker"
	"github.com/carrelhq/carrel/internal/extract"
	"github.com/carrelhq/carrel/internal/ocr"
	"github.com/carrelhq/carrel/internal/store"
)

// ocrSeparator joins a page's native text layer with the OCR rendition.
const ocrSeparator = "\n\n--- OCR ---\n\n"

// runOCR recognizes text in scans. Images are recognized whole into page 1;
// PDFs are rasterized page by page, with OCR text appended after any native
// text layer. Versions that don't need OCR never reach this stage (the
// orchestrator synthesizes a skipped job), but a stray task is a no-op.
func (s *Stages) runOCR(ctx context.Context, v *store.DocumentVersion) error {
	if !v.NeedsOCR {
		return nil
	}

	data, err := s.Blob.GetBytes(ctx, v.ObjectKey)
	if err != nil {
		return fmt.Errorf("fetch original: %w", err)
	}

	kind := extract.DetectKind(v.MimeType, originalFilename(v), data)
	if kind == extract.KindImage {
		text, conf, err := s.OCR.RecognizeImage(ctx, data)
		if err != nil {
			return err
		}
		if err := s.Store.UpsertPageOCR(ctx, v.ID, 1, text, conf); err != nil {
			return err
		}
		if err := s.Store.SetJobProgress(ctx, v.ID, store.StageOCR, 1, 1); err != nil {
			return err
		}
		return s.refreshExtractedChars(ctx, v)
	}

	native, err := s.nativePageText(ctx, v)
	if err != nil {
		return err
	}
	err = s.OCR.RecognizePDF(ctx, data, func(page ocr.PageResult, total int) error {
		text := page.Text
		if existing := native[page.PageNum]; strings.TrimSpace(existing) != "" {
			text = existing + ocrSeparator + page.Text
		}
		if err := s.Store.UpsertPageOCR(ctx, v.ID, page.PageNum, text, page.Confidence); err != nil {
			return err
		}
		if err := s.Store.SetJobProgress(ctx, v.ID, store.StageOCR, page.PageNum, total); err != nil {
			return err
		}
		s.Events.Publish(ctx, broker.Event{
			VersionID: v.ID,
			Stage:     string(store.StageOCR),
			Status:    "running",
			Progress:  page.PageNum,
			Total:     total,
		})
		return nil
	})
	if err != nil {
		return err
	}
	return s.refreshExtractedChars(ctx, v)
}

// nativePageText maps page numbers to the text extract produced.
func (s *Stages) nativePageText(ctx context.Context, v *store.DocumentVersion) (map[int]string, error) {
	pages, err := s.Store.ListPages(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	out := make(map[int]string, len(pages))
	for _, p := range pages {
		out[p.PageNum] = p.PageText
	}
	return out, nil
}

// refreshExtractedChars recomputes the version's character count after OCR
// rewrote pages.
func (s *Stages) refreshExtractedChars(ctx context.Context, v *store.DocumentVersion) error {
	pages, err := s.Store.ListPages(ctx, v.ID)
	if err != nil {
		return err
	}
	var total int64
	for _, p := range pages {
		total += int64(p.CharCount)
	}
	if err := s.Store.SetExtractedChars(ctx, v.ID, total); err != nil {
		return err
	}
	return s.Store.SetJobMetrics(ctx, v.ID, store.StageOCR, store.JobMetrics{
		Pages: len(pages),
		Chars: total,
	})
}
