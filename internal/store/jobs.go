package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const jobCols = `job_id, version_id, stage, status, progress_current, progress_total,
	metrics, error, created_at, started_at, finished_at`

func scanJob(row pgx.Row) (*IngestionJob, error) {
	var j IngestionJob
	var metrics []byte
	err := row.Scan(&j.ID, &j.VersionID, &j.Stage, &j.Status, &j.ProgressCurrent,
		&j.ProgressTotal, &metrics, &j.Error, &j.CreatedAt, &j.StartedAt, &j.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	if len(metrics) > 0 {
		if err := json.Unmarshal(metrics, &j.Metrics); err != nil {
			return nil, fmt.Errorf("decode job metrics: %w", err)
		}
	}
	return &j, nil
}

// UpsertQueuedJob resets (or creates) the (version, stage) job row to queued
// and moves the version to the stage's running-sentinel status, in one
// transaction. This is the reset path both for fresh enqueues and for the
// reaper re-enqueueing an orphaned job.
func (s *Store) UpsertQueuedJob(ctx context.Context, versionID uuid.UUID, stage JobStage, runningStatus VersionStatus) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO ingestion_jobs (version_id, stage, status)
			VALUES ($1, $2, 'queued')
			ON CONFLICT ON CONSTRAINT uq_jobs_version_stage
			DO UPDATE SET status = 'queued', error = '', metrics = '{}'::jsonb,
				progress_current = 0, progress_total = 0,
				started_at = NULL, finished_at = NULL`,
			versionID, stage); err != nil {
			return fmt.Errorf("upsert job: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE document_versions SET status = $2, error = '', updated_at = now()
			WHERE version_id = $1`, versionID, runningStatus); err != nil {
			return fmt.Errorf("set version status: %w", err)
		}
		return nil
	})
}

// MarkJobRunning flips the job to running and records started_at.
func (s *Store) MarkJobRunning(ctx context.Context, versionID uuid.UUID, stage JobStage) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE ingestion_jobs SET status = 'running', started_at = now()
		WHERE version_id = $1 AND stage = $2`, versionID, stage)
	if err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkJobDone flips the job to done, records finished_at, and moves the
// version to the stage's done-sentinel status, in one transaction.
func (s *Store) MarkJobDone(ctx context.Context, versionID uuid.UUID, stage JobStage, doneStatus VersionStatus) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE ingestion_jobs SET status = 'done', finished_at = now()
			WHERE version_id = $1 AND stage = $2`, versionID, stage); err != nil {
			return fmt.Errorf("mark job done: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE document_versions SET status = $2, updated_at = now()
			WHERE version_id = $1`, versionID, doneStatus); err != nil {
			return fmt.Errorf("set version status: %w", err)
		}
		return nil
	})
}

// MarkJobError records a stage failure on both the job row and the version
// row, in one transaction.
func (s *Store) MarkJobError(ctx context.Context, versionID uuid.UUID, stage JobStage, errMsg string) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE ingestion_jobs SET status = 'error', error = $3, finished_at = now()
			WHERE version_id = $1 AND stage = $2`, versionID, stage, errMsg); err != nil {
			return fmt.Errorf("mark job error: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE document_versions SET status = 'error', error = $2, updated_at = now()
			WHERE version_id = $1`, versionID, errMsg); err != nil {
			return fmt.Errorf("set version error: %w", err)
		}
		return nil
	})
}

// SynthesizeSkippedOCR writes a done OCR job row with metrics.skipped=true
// and moves the version to ocr_done without running any OCR work.
func (s *Store) SynthesizeSkippedOCR(ctx context.Context, versionID uuid.UUID) error {
	metrics, err := json.Marshal(JobMetrics{Skipped: true})
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO ingestion_jobs (version_id, stage, status, metrics, started_at, finished_at)
			VALUES ($1, 'ocr', 'done', $2, now(), now())
			ON CONFLICT ON CONSTRAINT uq_jobs_version_stage
			DO UPDATE SET status = 'done', metrics = $2, finished_at = now()`,
			versionID, metrics); err != nil {
			return fmt.Errorf("synthesize skipped ocr: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE document_versions SET status = 'ocr_done', updated_at = now()
			WHERE version_id = $1`, versionID); err != nil {
			return fmt.Errorf("set version status: %w", err)
		}
		return nil
	})
}

// SetJobProgress updates the progress counters on a running job.
func (s *Store) SetJobProgress(ctx context.Context, versionID uuid.UUID, stage JobStage, current, total int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE ingestion_jobs SET progress_current = $3, progress_total = $4
		WHERE version_id = $1 AND stage = $2`, versionID, stage, current, total)
	if err != nil {
		return fmt.Errorf("set job progress: %w", err)
	}
	return nil
}

// SetJobMetrics records stage metrics on the job row.
func (s *Store) SetJobMetrics(ctx context.Context, versionID uuid.UUID, stage JobStage, m JobMetrics) error {
	metrics, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE ingestion_jobs SET metrics = $3
		WHERE version_id = $1 AND stage = $2`, versionID, stage, metrics)
	if err != nil {
		return fmt.Errorf("set job metrics: %w", err)
	}
	return nil
}

// DoneStages returns the set of stages already completed for a version.
func (s *Store) DoneStages(ctx context.Context, versionID uuid.UUID) (map[JobStage]bool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT stage FROM ingestion_jobs
		WHERE version_id = $1 AND status = 'done'`, versionID)
	if err != nil {
		return nil, fmt.Errorf("done stages: %w", err)
	}
	defer rows.Close()

	done := make(map[JobStage]bool)
	for rows.Next() {
		var stage JobStage
		if err := rows.Scan(&stage); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		done[stage] = true
	}
	return done, rows.Err()
}

// ListJobsByVersion returns every job row for the version in stage order.
func (s *Store) ListJobsByVersion(ctx context.Context, versionID uuid.UUID) ([]*IngestionJob, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobCols+` FROM ingestion_jobs
		WHERE version_id = $1
		ORDER BY array_position(ARRAY['extract','ocr','chunk','embed','finalize'], stage)`, versionID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*IngestionJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ListRunningJobs returns every job currently marked running; the reaper
// decides which of them are orphaned.
func (s *Store) ListRunningJobs(ctx context.Context) ([]*IngestionJob, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobCols+` FROM ingestion_jobs WHERE status = 'running'`)
	if err != nil {
		return nil, fmt.Errorf("list running jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*IngestionJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
