package pipeline

import (
	"context"

	"github.com/carrelhq/carrel/internal/chunker"
	"github.com/carrelhq/carrel/internal/store"
)

// runChunk rebuilds the version's search windows from its page text. The
// whole chunk set is replaced, so a rerun after OCR or a tuning change
// converges to the new windows.
func (s *Stages) runChunk(ctx context.Context, v *store.DocumentVersion) error {
	stored, err := s.Store.ListPages(ctx, v.ID)
	if err != nil {
		return err
	}
	pages := make([]chunker.Page, len(stored))
	for i, p := range stored {
		pages[i] = chunker.Page{
			Num:           p.PageNum,
			Text:          p.PageText,
			OCRUsed:       p.OCRUsed,
			OCRConfidence: p.OCRConfidence,
		}
	}

	joined, offsets := chunker.Concat(pages)
	target, overlap := s.chunkParams()
	windows := chunker.SplitText(joined, target, overlap)

	chunks := make([]store.NewChunk, len(windows))
	for i, w := range windows {
		pageStart, pageEnd := chunker.PageRange(offsets, w.CharStart, w.CharEnd)
		ocrUsed, ocrConf := chunker.AggregateOCR(pages, pageStart, pageEnd)
		chunks[i] = store.NewChunk{
			ChunkNum:      w.Num,
			PageStart:     pageStart,
			PageEnd:       pageEnd,
			CharStart:     w.CharStart,
			CharEnd:       w.CharEnd,
			ChunkText:     w.Text,
			Language:      chunker.DetectLanguage(w.Text),
			OCRUsed:       ocrUsed,
			OCRConfidence: ocrConf,
		}
	}

	if err := s.Store.ReplaceChunks(ctx, v.ID, v.DocID, chunks); err != nil {
		return err
	}
	if err := s.Store.SetJobMetrics(ctx, v.ID, store.StageChunk, store.JobMetrics{
		Chunks: len(chunks),
	}); err != nil {
		return err
	}

	s.Log.Info("chunked", "version", v.ID, "chunks", len(chunks))
	return nil
}
