// Package search answers queries over the chunk corpus by fusing lexical and
// semantic retrieval.
package search

import "github.com/google/uuid"

// Hit is one ranked search result.
type Hit struct {
	ChunkID       uuid.UUID `json:"chunk_id"`
	DocID         uuid.UUID `json:"doc_id"`
	VersionID     uuid.UUID `json:"version_id"`
	ChunkNum      int       `json:"chunk_num"`
	Score         float64   `json:"score"`
	Text          string    `json:"text"`
	PageStart     int       `json:"page_start"`
	PageEnd       int       `json:"page_end"`
	Language      string    `json:"language"`
	OCRUsed       bool      `json:"ocr_used"`
	OCRConfidence *float64  `json:"ocr_confidence,omitempty"`
	Title         string    `json:"title"`
}

// ConflictSource identifies one side of a possible conflict.
type ConflictSource struct {
	DocID     uuid.UUID `json:"doc_id"`
	VersionID uuid.UUID `json:"version_id"`
	Title     string    `json:"title"`
}

// Result is a full search response.
type Result struct {
	Hits             []Hit            `json:"hits"`
	PossibleConflict bool             `json:"possible_conflict"`
	ConflictSources  []ConflictSource `json:"conflict_sources,omitempty"`
}

// Passage is one chunk returned by a passage read, optionally with its
// neighbors' text.
type Passage struct {
	ChunkID    uuid.UUID `json:"chunk_id"`
	DocID      uuid.UUID `json:"doc_id"`
	VersionID  uuid.UUID `json:"version_id"`
	ChunkNum   int       `json:"chunk_num"`
	Text       string    `json:"text"`
	PageStart  int       `json:"page_start"`
	PageEnd    int       `json:"page_end"`
	Language   string    `json:"language"`
	BeforeText string    `json:"before_text,omitempty"`
	AfterText  string    `json:"after_text,omitempty"`
}
