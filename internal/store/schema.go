package store

import (
	"context"
	"fmt"
	"strings"
)

// schemaDDL is applied on startup and by `carrel migrate`. Every statement is
// idempotent so repeated runs converge to the same schema.
const schemaDDL = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
	doc_id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	title TEXT NOT NULL,
	canonical_filename TEXT NOT NULL DEFAULT '',
	latest_version_id UUID,
	status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'deleted')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS document_versions (
	version_id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	doc_id UUID NOT NULL REFERENCES documents(doc_id) ON DELETE CASCADE,
	original_sha256 BYTEA NOT NULL UNIQUE,
	original_bucket TEXT NOT NULL,
	original_object_key TEXT NOT NULL,
	mime_type TEXT NOT NULL DEFAULT '',
	size_bytes BIGINT NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'queued' CHECK (status IN (
		'queued', 'extracting', 'extracted', 'ocr_running', 'ocr_done',
		'chunking', 'chunked', 'embedding', 'embedded', 'ready', 'error')),
	error TEXT NOT NULL DEFAULT '',
	has_text_layer BOOLEAN NOT NULL DEFAULT false,
	needs_ocr BOOLEAN NOT NULL DEFAULT false,
	extracted_chars BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_versions_doc ON document_versions (doc_id);

CREATE TABLE IF NOT EXISTS document_pages (
	page_id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	version_id UUID NOT NULL REFERENCES document_versions(version_id) ON DELETE CASCADE,
	page_num INTEGER NOT NULL,
	page_text TEXT NOT NULL DEFAULT '',
	ocr_used BOOLEAN NOT NULL DEFAULT false,
	ocr_confidence DOUBLE PRECISION,
	char_count INTEGER GENERATED ALWAYS AS (char_length(page_text)) STORED,
	CONSTRAINT uq_pages_version_page UNIQUE (version_id, page_num)
);

CREATE TABLE IF NOT EXISTS chunks (
	chunk_id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	version_id UUID NOT NULL REFERENCES document_versions(version_id) ON DELETE CASCADE,
	doc_id UUID NOT NULL REFERENCES documents(doc_id) ON DELETE CASCADE,
	chunk_num INTEGER NOT NULL,
	page_start INTEGER,
	page_end INTEGER,
	char_start INTEGER,
	char_end INTEGER,
	chunk_text TEXT NOT NULL,
	language TEXT NOT NULL DEFAULT 'english',
	ocr_used BOOLEAN NOT NULL DEFAULT false,
	ocr_confidence DOUBLE PRECISION,
	fts_en TSVECTOR GENERATED ALWAYS AS (to_tsvector('english', coalesce(chunk_text, ''))) STORED,
	fts_fr TSVECTOR GENERATED ALWAYS AS (to_tsvector('french', coalesce(chunk_text, ''))) STORED,
	embedding vector(384),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT uq_chunks_version_num UNIQUE (version_id, chunk_num)
);

CREATE INDEX IF NOT EXISTS idx_chunks_fts_en ON chunks USING GIN (fts_en);
CREATE INDEX IF NOT EXISTS idx_chunks_fts_fr ON chunks USING GIN (fts_fr);
CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks (doc_id);
CREATE INDEX IF NOT EXISTS idx_chunks_version ON chunks (version_id);

DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_indexes
		WHERE schemaname = current_schema() AND indexname = 'idx_chunks_embedding'
	) THEN
		EXECUTE 'CREATE INDEX idx_chunks_embedding ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);';
	END IF;
END
$$;

CREATE TABLE IF NOT EXISTS ingestion_jobs (
	job_id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	version_id UUID NOT NULL REFERENCES document_versions(version_id) ON DELETE CASCADE,
	stage TEXT NOT NULL CHECK (stage IN ('extract', 'ocr', 'chunk', 'embed', 'finalize')),
	status TEXT NOT NULL DEFAULT 'queued' CHECK (status IN ('queued', 'running', 'done', 'error')),
	progress_current INTEGER NOT NULL DEFAULT 0,
	progress_total INTEGER NOT NULL DEFAULT 0,
	metrics JSONB NOT NULL DEFAULT '{}'::jsonb,
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at TIMESTAMPTZ,
	finished_at TIMESTAMPTZ,
	CONSTRAINT uq_jobs_version_stage UNIQUE (version_id, stage)
);

CREATE TABLE IF NOT EXISTS uploads (
	upload_id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	original_filename TEXT NOT NULL,
	mime_type TEXT NOT NULL DEFAULT '',
	size_bytes BIGINT NOT NULL DEFAULT 0,
	sha256 BYTEA,
	bucket TEXT NOT NULL,
	object_key TEXT NOT NULL,
	doc_id UUID REFERENCES documents(doc_id) ON DELETE SET NULL,
	version_id UUID,
	status TEXT NOT NULL DEFAULT 'pending_confirmation' CHECK (status IN (
		'pending_confirmation', 'duplicate', 'processing', 'done')),
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_uploads_created ON uploads (created_at DESC);
`

// Migrate applies the embedded schema. The ivfflat index can fail on
// installations without enough sample rows; that failure is non-fatal.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		if strings.Contains(err.Error(), "ivfflat") {
			return nil
		}
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
