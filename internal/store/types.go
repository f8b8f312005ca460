package store

import (
	"time"

	"github.com/google/uuid"
)

// VersionStatus tracks a document version through the ingestion pipeline.
type VersionStatus string

const (
	VersionQueued     VersionStatus = "queued"
	VersionExtracting VersionStatus = "extracting"
	VersionExtracted  VersionStatus = "extracted"
	VersionOCRRunning VersionStatus = "ocr_running"
	VersionOCRDone    VersionStatus = "ocr_done"
	VersionChunking   VersionStatus = "chunking"
	VersionChunked    VersionStatus = "chunked"
	VersionEmbedding  VersionStatus = "embedding"
	VersionEmbedded   VersionStatus = "embedded"
	VersionReady      VersionStatus = "ready"
	VersionError      VersionStatus = "error"
)

// JobStage identifies one of the five pipeline transformations.
type JobStage string

const (
	StageExtract  JobStage = "extract"
	StageOCR      JobStage = "ocr"
	StageChunk    JobStage = "chunk"
	StageEmbed    JobStage = "embed"
	StageFinalize JobStage = "finalize"
)

// StageOrder is the fixed execution order of pipeline stages.
var StageOrder = []JobStage{StageExtract, StageOCR, StageChunk, StageEmbed, StageFinalize}

// JobStatus is the lifecycle state of a single (version, stage) job row.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobError   JobStatus = "error"
)

// Document status values.
const (
	DocActive  = "active"
	DocDeleted = "deleted"
)

// Upload status values.
const (
	UploadPendingConfirmation = "pending_confirmation"
	UploadDuplicate           = "duplicate"
	UploadProcessing          = "processing"
	UploadDone                = "done"
)

// Document is the logical identity for a piece of content.
// A document may have many versions; latest_version_id points at the one
// served by default.
type Document struct {
	ID                uuid.UUID
	Title             string
	CanonicalFilename string
	LatestVersionID   *uuid.UUID
	Status            string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DocumentVersion is an immutable binary original plus its derived state.
// The SHA-256 is unique across all versions (content-addressed dedup).
type DocumentVersion struct {
	ID             uuid.UUID
	DocID          uuid.UUID
	SHA256         []byte
	Bucket         string
	ObjectKey      string
	MimeType       string
	SizeBytes      int64
	Status         VersionStatus
	Error          string
	HasTextLayer   bool
	NeedsOCR       bool
	ExtractedChars int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DocumentPage is the extracted text of one logical page within a version.
type DocumentPage struct {
	ID            uuid.UUID
	VersionID     uuid.UUID
	PageNum       int // 1-based, unique within version
	PageText      string
	OCRUsed       bool
	OCRConfidence *float64
	CharCount     int // generated column, derived from page_text
}

// Chunk is a search-addressable text window over a version's page text.
type Chunk struct {
	ID            uuid.UUID
	VersionID     uuid.UUID
	DocID         uuid.UUID
	ChunkNum      int // 0-based, unique within version
	PageStart     int
	PageEnd       int
	CharStart     int
	CharEnd       int
	ChunkText     string
	Language      string
	OCRUsed       bool
	OCRConfidence *float64
	HasEmbedding  bool
	CreatedAt     time.Time
}

// IngestionJob is one row per (version, stage), upserted by the orchestrator.
type IngestionJob struct {
	ID              uuid.UUID
	VersionID       uuid.UUID
	Stage           JobStage
	Status          JobStatus
	ProgressCurrent int
	ProgressTotal   int
	Metrics         JobMetrics
	Error           string
	CreatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

// JobMetrics is the typed shape of the job metrics JSONB column.
// The original payload was schemaless; every field written by a stage has a
// home here so metrics stay schema-on-write.
type JobMetrics struct {
	Skipped bool  `json:"skipped,omitempty"`
	Pages   int   `json:"pages,omitempty"`
	Chunks  int   `json:"chunks,omitempty"`
	Chars   int64 `json:"chars,omitempty"`
}

// Upload is a staging record tying a received blob to its final version.
type Upload struct {
	ID               uuid.UUID
	OriginalFilename string
	MimeType         string
	SizeBytes        int64
	SHA256           []byte
	Bucket           string
	ObjectKey        string
	DocID            *uuid.UUID
	VersionID        *uuid.UUID
	Status           string
	Error            string
	CreatedAt        time.Time
}
