package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/carrelhq/carrel/internal/store"
)

// MaxPassageIDs caps one passage read.
const MaxPassageIDs = 50

// ReadPassages returns chunks in request order, silently dropping unknown
// ids. With includeContext, each passage also carries the text of the
// neighboring chunks on the same version.
func (e *Engine) ReadPassages(ctx context.Context, ids []uuid.UUID, includeContext bool) ([]Passage, error) {
	if len(ids) > MaxPassageIDs {
		return nil, fmt.Errorf("at most %d chunk ids per read, got %d", MaxPassageIDs, len(ids))
	}
	chunks, err := e.store.ChunksByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	passages := make([]Passage, 0, len(ids))
	for _, id := range ids {
		c, ok := chunks[id]
		if !ok {
			continue
		}
		p := Passage{
			ChunkID:   c.ID,
			DocID:     c.DocID,
			VersionID: c.VersionID,
			ChunkNum:  c.ChunkNum,
			Text:      c.ChunkText,
			PageStart: c.PageStart,
			PageEnd:   c.PageEnd,
			Language:  c.Language,
		}
		if includeContext {
			before, err := e.neighborText(ctx, c, -1)
			if err != nil {
				return nil, err
			}
			after, err := e.neighborText(ctx, c, +1)
			if err != nil {
				return nil, err
			}
			p.BeforeText = before
			p.AfterText = after
		}
		passages = append(passages, p)
	}
	return passages, nil
}

func (e *Engine) neighborText(ctx context.Context, c *store.Chunk, delta int) (string, error) {
	n, err := e.store.NeighborChunk(ctx, c.VersionID, c.ChunkNum, delta)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return n.ChunkText, nil
}
