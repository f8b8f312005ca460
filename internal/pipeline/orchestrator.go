// Package pipeline drives document versions through the five ingestion
// stages. The orchestrator owns the per-version state machine; stage
// functions own the work.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/carrelhq/carrel/internal/broker"
	"github.com/carrelhq/carrel/internal/store"
)

// StageSpec binds a stage to its queue, timeout, and version sentinels.
type StageSpec struct {
	Queue   string
	Timeout time.Duration
	Running store.VersionStatus
	Done    store.VersionStatus
}

// stageTable is the fixed routing table. OCR and embedding are compute bound
// and ride the cpu queue so they can scale independently.
var stageTable = map[store.JobStage]StageSpec{
	store.StageExtract:  {Queue: broker.QueueIO, Timeout: 600 * time.Second, Running: store.VersionExtracting, Done: store.VersionExtracted},
	store.StageOCR:      {Queue: broker.QueueCPU, Timeout: 7200 * time.Second, Running: store.VersionOCRRunning, Done: store.VersionOCRDone},
	store.StageChunk:    {Queue: broker.QueueIO, Timeout: 1200 * time.Second, Running: store.VersionChunking, Done: store.VersionChunked},
	store.StageEmbed:    {Queue: broker.QueueCPU, Timeout: 1800 * time.Second, Running: store.VersionEmbedding, Done: store.VersionEmbedded},
	store.StageFinalize: {Queue: broker.QueueIO, Timeout: 600 * time.Second, Running: store.VersionReady, Done: store.VersionReady},
}

// SpecFor returns the routing entry for a stage.
func SpecFor(stage store.JobStage) (StageSpec, bool) {
	spec, ok := stageTable[stage]
	return spec, ok
}

// JobStore is the slice of the store the orchestrator drives.
type JobStore interface {
	GetVersion(ctx context.Context, id uuid.UUID) (*store.DocumentVersion, error)
	UpsertQueuedJob(ctx context.Context, versionID uuid.UUID, stage store.JobStage, runningStatus store.VersionStatus) error
	MarkJobRunning(ctx context.Context, versionID uuid.UUID, stage store.JobStage) error
	MarkJobDone(ctx context.Context, versionID uuid.UUID, stage store.JobStage, doneStatus store.VersionStatus) error
	MarkJobError(ctx context.Context, versionID uuid.UUID, stage store.JobStage, errMsg string) error
	SynthesizeSkippedOCR(ctx context.Context, versionID uuid.UUID) error
	DoneStages(ctx context.Context, versionID uuid.UUID) (map[store.JobStage]bool, error)
	ListRunningJobs(ctx context.Context) ([]*store.IngestionJob, error)
}

// Bus is the slice of the broker the orchestrator publishes and enqueues on.
type Bus interface {
	Enqueue(ctx context.Context, queue string, task broker.Task) error
	Publish(ctx context.Context, ev broker.Event)
}

// Orchestrator advances versions through the stage order.
type Orchestrator struct {
	store JobStore
	bus   Bus
	log   *slog.Logger
}

// New builds an Orchestrator.
func New(s JobStore, bus Bus, log *slog.Logger) *Orchestrator {
	return &Orchestrator{store: s, bus: bus, log: log}
}

// EnqueueStage resets the (version, stage) job, moves the version to the
// stage's running sentinel, and pushes the task onto the stage's queue.
func (o *Orchestrator) EnqueueStage(ctx context.Context, versionID uuid.UUID, stage store.JobStage) error {
	spec, ok := stageTable[stage]
	if !ok {
		return fmt.Errorf("unknown stage %q", stage)
	}
	if err := o.store.UpsertQueuedJob(ctx, versionID, stage, spec.Running); err != nil {
		return fmt.Errorf("enqueue %s: %w", stage, err)
	}
	if err := o.bus.Enqueue(ctx, spec.Queue, broker.Task{Stage: string(stage), VersionID: versionID}); err != nil {
		return fmt.Errorf("enqueue %s: %w", stage, err)
	}
	o.bus.Publish(ctx, broker.Event{VersionID: versionID, Stage: string(stage), Status: "queued"})
	o.log.Info("stage enqueued", "version", versionID, "stage", stage, "queue", spec.Queue)
	return nil
}

// MarkStageRunning flips the job to running and announces it.
func (o *Orchestrator) MarkStageRunning(ctx context.Context, versionID uuid.UUID, stage store.JobStage) error {
	if err := o.store.MarkJobRunning(ctx, versionID, stage); err != nil {
		return err
	}
	o.bus.Publish(ctx, broker.Event{VersionID: versionID, Stage: string(stage), Status: "running"})
	return nil
}

// MarkStageDone completes the job, moves the version to the done sentinel,
// and advances the pipeline. Finalize is terminal and does not re-advance.
func (o *Orchestrator) MarkStageDone(ctx context.Context, versionID uuid.UUID, stage store.JobStage) error {
	spec, ok := stageTable[stage]
	if !ok {
		return fmt.Errorf("unknown stage %q", stage)
	}
	if err := o.store.MarkJobDone(ctx, versionID, stage, spec.Done); err != nil {
		return err
	}
	o.bus.Publish(ctx, broker.Event{VersionID: versionID, Stage: string(stage), Status: "done"})
	if stage == store.StageFinalize {
		o.log.Info("version ready", "version", versionID)
		return nil
	}
	return o.AdvancePipeline(ctx, versionID)
}

// FailStage records a stage failure on the job and version. There is no
// automatic retry; recovery is an explicit reprocess.
func (o *Orchestrator) FailStage(ctx context.Context, versionID uuid.UUID, stage store.JobStage, stageErr error) {
	msg := stageErr.Error()
	if err := o.store.MarkJobError(ctx, versionID, stage, msg); err != nil {
		o.log.Error("record stage failure failed", "version", versionID, "stage", stage, "error", err)
	}
	o.bus.Publish(ctx, broker.Event{VersionID: versionID, Stage: string(stage), Status: "error", Error: msg})
	o.log.Error("stage failed", "version", versionID, "stage", stage, "error", msg)
}

// AdvancePipeline enqueues the first not-yet-done stage. OCR is synthesized
// as a skipped done job when the version does not need it. When every stage
// is done the pipeline is complete and nothing happens.
func (o *Orchestrator) AdvancePipeline(ctx context.Context, versionID uuid.UUID) error {
	v, err := o.store.GetVersion(ctx, versionID)
	if err != nil {
		return fmt.Errorf("advance: %w", err)
	}
	done, err := o.store.DoneStages(ctx, versionID)
	if err != nil {
		return fmt.Errorf("advance: %w", err)
	}
	for _, stage := range store.StageOrder {
		if done[stage] {
			continue
		}
		if stage == store.StageOCR && !v.NeedsOCR {
			if err := o.store.SynthesizeSkippedOCR(ctx, versionID); err != nil {
				return fmt.Errorf("advance: %w", err)
			}
			o.bus.Publish(ctx, broker.Event{VersionID: versionID, Stage: string(stage), Status: "done"})
			continue
		}
		return o.EnqueueStage(ctx, versionID, stage)
	}
	return nil
}

// Reap re-enqueues jobs that have been running longer than twice their
// stage's timeout, recovering versions orphaned by crashed workers. Returns
// the number of jobs re-enqueued.
func (o *Orchestrator) Reap(ctx context.Context) (int, error) {
	jobs, err := o.store.ListRunningJobs(ctx)
	if err != nil {
		return 0, fmt.Errorf("reap: %w", err)
	}
	now := time.Now()
	var reaped int
	for _, j := range jobs {
		spec, ok := stageTable[j.Stage]
		if !ok || j.StartedAt == nil {
			continue
		}
		if now.Sub(*j.StartedAt) <= 2*spec.Timeout {
			continue
		}
		if err := o.EnqueueStage(ctx, j.VersionID, j.Stage); err != nil {
			return reaped, err
		}
		o.log.Warn("reaped orphaned job", "version", j.VersionID, "stage", j.Stage,
			"started_at", j.StartedAt)
		reaped++
	}
	return reaped, nil
}

// CountStuck counts jobs past twice their stage timeout without touching
// them. Surfaced by the stats endpoint.
func (o *Orchestrator) CountStuck(ctx context.Context) (int, error) {
	jobs, err := o.store.ListRunningJobs(ctx)
	if err != nil {
		return 0, fmt.Errorf("count stuck: %w", err)
	}
	now := time.Now()
	var stuck int
	for _, j := range jobs {
		spec, ok := stageTable[j.Stage]
		if !ok || j.StartedAt == nil {
			continue
		}
		if now.Sub(*j.StartedAt) > 2*spec.Timeout {
			stuck++
		}
	}
	return stuck, nil
}
