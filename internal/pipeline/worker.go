package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/carrelhq/carrel/internal/broker"
	"github.com/carrelhq/carrel/internal/store"
)

// Dequeuer is the queue surface the worker blocks on.
type Dequeuer interface {
	Dequeue(ctx context.Context, queues []string, timeout time.Duration) (broker.Task, string, bool, error)
}

// Worker consumes stage tasks from the named queues and runs them under the
// stage's timeout.
type Worker struct {
	Broker       Dequeuer
	Stages       *Stages
	Orchestrator *Orchestrator
	Queues       []string
	Log          *slog.Logger

	// PollTimeout bounds each blocking pop so shutdown is responsive.
	PollTimeout time.Duration
}

// Run loops until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	poll := w.PollTimeout
	if poll <= 0 {
		poll = 5 * time.Second
	}
	w.Log.Info("worker started", "queues", w.Queues)
	for {
		if err := ctx.Err(); err != nil {
			w.Log.Info("worker stopped")
			return nil
		}
		task, queue, ok, err := w.Broker.Dequeue(ctx, w.Queues, poll)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			w.Log.Error("dequeue failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if !ok {
			continue
		}
		w.handle(ctx, task, queue)
	}
}

func (w *Worker) handle(ctx context.Context, task broker.Task, queue string) {
	stage := store.JobStage(task.Stage)
	spec, ok := stageTable[stage]
	if !ok {
		w.Log.Error("task with unknown stage dropped", "stage", task.Stage, "queue", queue)
		return
	}

	stageCtx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	w.Log.Info("stage started", "version", task.VersionID, "stage", stage)
	if err := w.Stages.Run(stageCtx, stage, task.VersionID); err != nil {
		// record the failure with the parent context so a timeout doesn't
		// block the bookkeeping writes
		w.Orchestrator.FailStage(ctx, task.VersionID, stage, err)
	}
}
