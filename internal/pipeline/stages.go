package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/google/uuid"

	"github.com/carrelhq/carrel/internal/broker"
	"github.com/carrelhq/carrel/internal/chunker"
	"github.com/carrelhq/carrel/internal/extract"
	"github.com/carrelhq/carrel/internal/ocr"
	"github.com/carrelhq/carrel/internal/store"
)

// StageStore is the slice of the store the stage functions read and write.
type StageStore interface {
	GetVersion(ctx context.Context, id uuid.UUID) (*store.DocumentVersion, error)
	ReplacePages(ctx context.Context, versionID uuid.UUID, pages []store.PageText) error
	ListPages(ctx context.Context, versionID uuid.UUID) ([]*store.DocumentPage, error)
	UpsertPageOCR(ctx context.Context, versionID uuid.UUID, pageNum int, pageText string, confidence float64) error
	SetExtractionFlags(ctx context.Context, id uuid.UUID, hasTextLayer, needsOCR bool, extractedChars int64) error
	SetExtractedChars(ctx context.Context, id uuid.UUID, chars int64) error
	ReplaceChunks(ctx context.Context, versionID, docID uuid.UUID, chunks []store.NewChunk) error
	ListUnembeddedChunks(ctx context.Context, versionID uuid.UUID) ([]*store.Chunk, error)
	SetEmbeddings(ctx context.Context, ids []uuid.UUID, vectors [][]float32) error
	SetJobProgress(ctx context.Context, versionID uuid.UUID, stage store.JobStage, current, total int) error
	SetJobMetrics(ctx context.Context, versionID uuid.UUID, stage store.JobStage, m store.JobMetrics) error
	SetLatestVersion(ctx context.Context, docID, versionID uuid.UUID) error
	MarkUploadsDoneForVersion(ctx context.Context, versionID uuid.UUID) error
}

// BlobReader fetches originals from the object store.
type BlobReader interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
}

// Recognizer is the OCR engine surface the ocr stage uses.
type Recognizer interface {
	RecognizeImage(ctx context.Context, data []byte) (string, float64, error)
	RecognizePDF(ctx context.Context, data []byte, fn func(page ocr.PageResult, total int) error) error
}

// Embedder turns chunk texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Tracker is the narrow orchestrator surface stages report through.
type Tracker interface {
	MarkStageRunning(ctx context.Context, versionID uuid.UUID, stage store.JobStage) error
	MarkStageDone(ctx context.Context, versionID uuid.UUID, stage store.JobStage) error
}

// Events publishes stage progress.
type Events interface {
	Publish(ctx context.Context, ev broker.Event)
}

// Stages bundles the stage functions with their dependencies. Every stage is
// idempotent: derived rows are replaced wholesale, so a rerun converges.
type Stages struct {
	Store     StageStore
	Blob      BlobReader
	Extractor *extract.Extractor
	OCR       Recognizer
	Embedder  Embedder
	Tracker   Tracker
	Events    Events
	Log       *slog.Logger

	TargetChars  int
	OverlapChars int
	EmbedBatch   int
}

// Run executes one stage for one version, bracketing it with the tracker
// calls that move the job and version state machines.
func (s *Stages) Run(ctx context.Context, stage store.JobStage, versionID uuid.UUID) error {
	v, err := s.Store.GetVersion(ctx, versionID)
	if err != nil {
		return fmt.Errorf("%s: load version: %w", stage, err)
	}
	if err := s.Tracker.MarkStageRunning(ctx, versionID, stage); err != nil {
		return fmt.Errorf("%s: %w", stage, err)
	}

	switch stage {
	case store.StageExtract:
		err = s.runExtract(ctx, v)
	case store.StageOCR:
		err = s.runOCR(ctx, v)
	case store.StageChunk:
		err = s.runChunk(ctx, v)
	case store.StageEmbed:
		err = s.runEmbed(ctx, v)
	case store.StageFinalize:
		err = s.runFinalize(ctx, v)
	default:
		err = fmt.Errorf("unknown stage %q", stage)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", stage, err)
	}
	return s.Tracker.MarkStageDone(ctx, versionID, stage)
}

// originalFilename recovers the upload's filename from the canonical key.
func originalFilename(v *store.DocumentVersion) string {
	return path.Base(v.ObjectKey)
}

func (s *Stages) chunkParams() (int, int) {
	target := s.TargetChars
	if target <= 0 {
		target = chunker.DefaultTargetChars
	}
	overlap := s.OverlapChars
	if overlap <= 0 {
		overlap = chunker.DefaultOverlapChars
	}
	return target, overlap
}

func (s *Stages) embedBatch() int {
	if s.EmbedBatch <= 0 {
		return 256
	}
	return s.EmbedBatch
}
