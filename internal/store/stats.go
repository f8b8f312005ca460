package store

import (
	"context"
	"fmt"
)

// CorpusStats is a point-in-time snapshot of corpus size and database health.
type CorpusStats struct {
	Documents      int64   `json:"documents"`
	Versions       int64   `json:"versions"`
	Chunks         int64   `json:"chunks"`
	EmbeddedChunks int64   `json:"embedded_chunks"`
	JobsQueued     int64   `json:"jobs_queued"`
	JobsRunning    int64   `json:"jobs_running"`
	JobsError      int64   `json:"jobs_error"`
	DBSizeBytes    int64   `json:"db_size_bytes"`
	CacheHitRatio  float64 `json:"cache_hit_ratio"`
	DeadTuples     int64   `json:"dead_tuples"`
	ActiveConns    int64   `json:"active_connections"`
}

// Stats collects the corpus snapshot in a single round trip.
func (s *Store) Stats(ctx context.Context) (*CorpusStats, error) {
	var st CorpusStats
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM documents WHERE status = 'active'),
			(SELECT count(*) FROM document_versions),
			(SELECT count(*) FROM chunks),
			(SELECT count(*) FROM chunks WHERE embedding IS NOT NULL),
			(SELECT count(*) FROM ingestion_jobs WHERE status = 'queued'),
			(SELECT count(*) FROM ingestion_jobs WHERE status = 'running'),
			(SELECT count(*) FROM ingestion_jobs WHERE status = 'error'),
			pg_database_size(current_database()),
			(SELECT coalesce(sum(blks_hit)::float8 / nullif(sum(blks_hit) + sum(blks_read), 0), 0)
				FROM pg_stat_database WHERE datname = current_database()),
			(SELECT coalesce(sum(n_dead_tup), 0) FROM pg_stat_user_tables),
			(SELECT count(*) FROM pg_stat_activity WHERE datname = current_database())`).
		Scan(&st.Documents, &st.Versions, &st.Chunks, &st.EmbeddedChunks,
			&st.JobsQueued, &st.JobsRunning, &st.JobsError,
			&st.DBSizeBytes, &st.CacheHitRatio, &st.DeadTuples, &st.ActiveConns)
	if err != nil {
		return nil, fmt.Errorf("corpus stats: %w", err)
	}
	return &st, nil
}
