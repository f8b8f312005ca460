package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/carrelhq/carrel/internal/blob"
	"github.com/carrelhq/carrel/internal/store"
)

// PurgeRetention is how long a soft-deleted document survives before a purge
// run removes it for good.
const PurgeRetention = 60 * 24 * time.Hour

// PurgeStore is the slice of the store the purge run uses.
type PurgeStore interface {
	PurgeCandidates(ctx context.Context, cutoff time.Time) ([]*store.Document, error)
	ListVersionsByDoc(ctx context.Context, docID uuid.UUID) ([]*store.DocumentVersion, error)
	HardDeleteDocument(ctx context.Context, id uuid.UUID) error
}

// BlobPurger deletes a version's originals.
type BlobPurger interface {
	RemovePrefix(ctx context.Context, prefix string) error
}

// Purge hard-deletes documents soft-deleted longer than the retention
// window, blobs first so a partial failure leaves the rows (and another
// chance to purge) behind. Returns the number of documents removed.
func Purge(ctx context.Context, s PurgeStore, b BlobPurger, log *slog.Logger) (int, error) {
	docs, err := s.PurgeCandidates(ctx, time.Now().Add(-PurgeRetention))
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	var purged int
	for _, d := range docs {
		versions, err := s.ListVersionsByDoc(ctx, d.ID)
		if err != nil {
			return purged, fmt.Errorf("purge %s: %w", d.ID, err)
		}
		for _, v := range versions {
			if err := b.RemovePrefix(ctx, blob.VersionPrefix(v.ID)); err != nil {
				return purged, fmt.Errorf("purge %s blobs: %w", d.ID, err)
			}
		}
		if err := s.HardDeleteDocument(ctx, d.ID); err != nil {
			return purged, fmt.Errorf("purge %s: %w", d.ID, err)
		}
		log.Info("document purged", "doc", d.ID, "title", d.Title, "versions", len(versions))
		purged++
	}
	return purged, nil
}
