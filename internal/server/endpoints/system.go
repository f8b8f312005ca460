package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/carrelhq/carrel/internal/api"
	"github.com/carrelhq/carrel/internal/broker"
	"github.com/carrelhq/carrel/internal/pipeline"
	"github.com/carrelhq/carrel/internal/store"
	"github.com/carrelhq/carrel/internal/svcctx"
)

// QueueDepths reports pending task counts per queue.
type QueueDepths struct {
	IO  int64 `json:"io"`
	CPU int64 `json:"cpu"`
}

// ObjectUsage reports the object store footprint.
type ObjectUsage struct {
	Count int64 `json:"count"`
	Bytes int64 `json:"bytes"`
}

// StatsResponse is the system stats snapshot.
type StatsResponse struct {
	Corpus    *store.CorpusStats `json:"corpus"`
	Queues    QueueDepths        `json:"queues"`
	Objects   ObjectUsage        `json:"objects"`
	StuckJobs int                `json:"stuck_jobs"`
}

// StatsEndpoint handles GET /api/system/stats.
type StatsEndpoint struct{}

var _ api.Endpoint = (*StatsEndpoint)(nil)

func (e *StatsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/system/stats", e.handler
}

func (e *StatsEndpoint) RequiresInit() bool { return true }

func (e *StatsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := svcctx.StoreFrom(ctx).Stats(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	br := svcctx.BrokerFrom(ctx)
	resp := StatsResponse{Corpus: stats}
	if n, err := br.QueueDepth(ctx, broker.QueueIO); err == nil {
		resp.Queues.IO = n
	}
	if n, err := br.QueueDepth(ctx, broker.QueueCPU); err == nil {
		resp.Queues.CPU = n
	}
	if count, bytes, err := svcctx.BlobFrom(ctx).Usage(ctx); err == nil {
		resp.Objects = ObjectUsage{Count: count, Bytes: bytes}
	}
	if stuck, err := svcctx.OrchestratorFrom(ctx).CountStuck(ctx); err == nil {
		resp.StuckJobs = stuck
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show corpus and queue statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatsResponse
			if err := client.Get(cmd.Context(), "/api/system/stats", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// PurgeRunResponse reports how many soft-deleted documents were removed.
type PurgeRunResponse struct {
	Purged int `json:"purged"`
}

// PurgeRunEndpoint handles POST /api/system/purge-run. It hard-deletes
// documents soft-deleted longer ago than the retention window, blobs
// included.
type PurgeRunEndpoint struct{}

var _ api.Endpoint = (*PurgeRunEndpoint)(nil)

func (e *PurgeRunEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/system/purge-run", e.handler
}

func (e *PurgeRunEndpoint) RequiresInit() bool { return true }

func (e *PurgeRunEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n, err := pipeline.Purge(ctx, svcctx.StoreFrom(ctx), svcctx.BlobFrom(ctx), svcctx.LoggerFrom(ctx))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, PurgeRunResponse{Purged: n})
}

func (e *PurgeRunEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-run",
		Short: "Hard-delete documents past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp PurgeRunResponse
			if err := client.Post(cmd.Context(), "/api/system/purge-run", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ReaperRunResponse reports how many stale jobs were re-enqueued.
type ReaperRunResponse struct {
	Requeued int `json:"requeued"`
}

// ReaperRunEndpoint handles POST /api/system/reaper-run. It re-enqueues
// running jobs whose workers have gone silent past twice the stage timeout.
type ReaperRunEndpoint struct{}

var _ api.Endpoint = (*ReaperRunEndpoint)(nil)

func (e *ReaperRunEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/system/reaper-run", e.handler
}

func (e *ReaperRunEndpoint) RequiresInit() bool { return true }

func (e *ReaperRunEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n, err := svcctx.OrchestratorFrom(ctx).Reap(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ReaperRunResponse{Requeued: n})
}

func (e *ReaperRunEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "reaper-run",
		Short: "Re-enqueue jobs abandoned by dead workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ReaperRunResponse
			if err := client.Post(cmd.Context(), "/api/system/reaper-run", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
