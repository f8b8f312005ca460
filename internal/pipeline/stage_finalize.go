package pipeline

import (
	"context"

	"github.com/carrelhq/carrel/internal/store"
)

// runFinalize promotes the version to the document's serving version and
// closes out its upload records. The orchestrator's done sentinel then moves
// the version to ready.
func (s *Stages) runFinalize(ctx context.Context, v *store.DocumentVersion) error {
	if err := s.Store.SetLatestVersion(ctx, v.DocID, v.ID); err != nil {
		return err
	}
	return s.Store.MarkUploadsDoneForVersion(ctx, v.ID)
}
