package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/carrelhq/carrel/internal/broker"
	"github.com/carrelhq/carrel/internal/store"
)

// runEmbed vectorizes the version's unembedded chunks in batches, reporting
// progress per batch. Already-embedded chunks are untouched, so a rerun only
// fills the gap.
func (s *Stages) runEmbed(ctx context.Context, v *store.DocumentVersion) error {
	chunks, err := s.Store.ListUnembeddedChunks(ctx, v.ID)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	batch := s.embedBatch()
	total := len(chunks)
	for start := 0; start < total; start += batch {
		end := start + batch
		if end > total {
			end = total
		}
		texts := make([]string, end-start)
		ids := make([]uuid.UUID, end-start)
		for i, c := range chunks[start:end] {
			texts[i] = c.ChunkText
			ids[i] = c.ID
		}

		vectors, err := s.Embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch at %d: %w", start, err)
		}
		if err := s.Store.SetEmbeddings(ctx, ids, vectors); err != nil {
			return err
		}
		if err := s.Store.SetJobProgress(ctx, v.ID, store.StageEmbed, end, total); err != nil {
			return err
		}
		s.Events.Publish(ctx, broker.Event{
			VersionID: v.ID,
			Stage:     string(store.StageEmbed),
			Status:    "running",
			Progress:  end,
			Total:     total,
		})
	}

	s.Log.Info("embedded", "version", v.ID, "chunks", total)
	return nil
}
