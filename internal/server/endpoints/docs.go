package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/carrelhq/carrel/internal/api"
	"github.com/carrelhq/carrel/internal/store"
	"github.com/carrelhq/carrel/internal/svcctx"
)

// DocumentSummary is one document in a listing.
type DocumentSummary struct {
	DocID             uuid.UUID  `json:"doc_id"`
	Title             string     `json:"title"`
	CanonicalFilename string     `json:"canonical_filename"`
	LatestVersionID   *uuid.UUID `json:"latest_version_id,omitempty"`
	Status            string     `json:"status"`
	CreatedAt         string     `json:"created_at"`
	UpdatedAt         string     `json:"updated_at"`
}

// ListDocumentsResponse is the response for listing documents.
type ListDocumentsResponse struct {
	Documents []DocumentSummary `json:"documents"`
}

// VersionDetail is one version within a document detail, with its jobs.
type VersionDetail struct {
	VersionID      uuid.UUID   `json:"version_id"`
	SHA256         string      `json:"sha256"`
	MimeType       string      `json:"mime_type"`
	SizeBytes      int64       `json:"size_bytes"`
	Status         string      `json:"status"`
	Error          string      `json:"error,omitempty"`
	HasTextLayer   bool        `json:"has_text_layer"`
	NeedsOCR       bool        `json:"needs_ocr"`
	ExtractedChars int64       `json:"extracted_chars"`
	CreatedAt      string      `json:"created_at"`
	Jobs           []JobDetail `json:"jobs"`
}

// JobDetail is one pipeline job row.
type JobDetail struct {
	Stage           string `json:"stage"`
	Status          string `json:"status"`
	ProgressCurrent int    `json:"progress_current"`
	ProgressTotal   int    `json:"progress_total"`
	Error           string `json:"error,omitempty"`
	StartedAt       string `json:"started_at,omitempty"`
	FinishedAt      string `json:"finished_at,omitempty"`
}

// DocumentDetailResponse is the full view of a document.
type DocumentDetailResponse struct {
	DocumentSummary
	Versions []VersionDetail `json:"versions"`
}

func summarizeDocument(d *store.Document) DocumentSummary {
	return DocumentSummary{
		DocID:             d.ID,
		Title:             d.Title,
		CanonicalFilename: d.CanonicalFilename,
		LatestVersionID:   d.LatestVersionID,
		Status:            d.Status,
		CreatedAt:         d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         d.UpdatedAt.Format(time.RFC3339),
	}
}

// ListDocumentsEndpoint handles GET /api/docs.
type ListDocumentsEndpoint struct{}

var _ api.Endpoint = (*ListDocumentsEndpoint)(nil)

func (e *ListDocumentsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/docs", e.handler
}

func (e *ListDocumentsEndpoint) RequiresInit() bool { return true }

func (e *ListDocumentsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())

	docs, err := st.ListDocuments(r.Context(), 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := ListDocumentsResponse{Documents: make([]DocumentSummary, 0, len(docs))}
	for _, d := range docs {
		resp.Documents = append(resp.Documents, summarizeDocument(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListDocumentsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListDocumentsResponse
			if err := client.Get(cmd.Context(), "/api/docs", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetDocumentEndpoint handles GET /api/docs/{id}. The detail view includes
// every version and its pipeline jobs.
type GetDocumentEndpoint struct{}

var _ api.Endpoint = (*GetDocumentEndpoint)(nil)

func (e *GetDocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/docs/{id}", e.handler
}

func (e *GetDocumentEndpoint) RequiresInit() bool { return true }

func (e *GetDocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	st := svcctx.StoreFrom(ctx)
	doc, err := st.GetDocument(ctx, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	versions, err := st.ListVersionsByDoc(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := DocumentDetailResponse{
		DocumentSummary: summarizeDocument(doc),
		Versions:        make([]VersionDetail, 0, len(versions)),
	}
	for _, v := range versions {
		jobs, err := st.ListJobsByVersion(ctx, v.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		vd := VersionDetail{
			VersionID:      v.ID,
			SHA256:         fmt.Sprintf("%x", v.SHA256),
			MimeType:       v.MimeType,
			SizeBytes:      v.SizeBytes,
			Status:         string(v.Status),
			Error:          v.Error,
			HasTextLayer:   v.HasTextLayer,
			NeedsOCR:       v.NeedsOCR,
			ExtractedChars: v.ExtractedChars,
			CreatedAt:      v.CreatedAt.Format(time.RFC3339),
			Jobs:           make([]JobDetail, 0, len(jobs)),
		}
		for _, j := range jobs {
			jd := JobDetail{
				Stage:           string(j.Stage),
				Status:          string(j.Status),
				ProgressCurrent: j.ProgressCurrent,
				ProgressTotal:   j.ProgressTotal,
				Error:           j.Error,
			}
			if j.StartedAt != nil {
				jd.StartedAt = j.StartedAt.Format(time.RFC3339)
			}
			if j.FinishedAt != nil {
				jd.FinishedAt = j.FinishedAt.Format(time.RFC3339)
			}
			vd.Jobs = append(vd.Jobs, jd)
		}
		resp.Versions = append(resp.Versions, vd)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *GetDocumentEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <doc-id>",
		Short: "Show a document with its versions and pipeline jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp DocumentDetailResponse
			if err := client.Get(cmd.Context(), "/api/docs/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// DeleteDocumentEndpoint handles DELETE /api/docs/{id}. Deletion is soft;
// the purge job removes rows and blobs after the retention window.
type DeleteDocumentEndpoint struct{}

var _ api.Endpoint = (*DeleteDocumentEndpoint)(nil)

func (e *DeleteDocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/docs/{id}", e.handler
}

func (e *DeleteDocumentEndpoint) RequiresInit() bool { return true }

func (e *DeleteDocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	st := svcctx.StoreFrom(r.Context())
	if err := st.SoftDeleteDocument(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (e *DeleteDocumentEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <doc-id>",
		Short: "Soft-delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/docs/"+args[0]); err != nil {
				return err
			}
			fmt.Println("deleted")
			return nil
		},
	}
}

// ReprocessResponse reports the version re-entering the pipeline.
type ReprocessResponse struct {
	VersionID uuid.UUID `json:"version_id"`
	Status    string    `json:"status"`
}

// ReprocessEndpoint handles POST /api/docs/{id}/reprocess. It re-runs the
// whole pipeline on the latest version from extract onward.
type ReprocessEndpoint struct{}

var _ api.Endpoint = (*ReprocessEndpoint)(nil)

func (e *ReprocessEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/docs/{id}/reprocess", e.handler
}

func (e *ReprocessEndpoint) RequiresInit() bool { return true }

func (e *ReprocessEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	st := svcctx.StoreFrom(ctx)
	doc, err := st.GetDocument(ctx, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	versionID := doc.LatestVersionID
	if versionID == nil {
		// Not finalized yet; fall back to the most recent version.
		versions, err := st.ListVersionsByDoc(ctx, id)
		if err != nil || len(versions) == 0 {
			writeError(w, http.StatusConflict, "document has no versions")
			return
		}
		versionID = &versions[0].ID
	}

	orch := svcctx.OrchestratorFrom(ctx)
	if err := orch.EnqueueStage(ctx, *versionID, store.StageExtract); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to enqueue: %v", err))
		return
	}

	writeJSON(w, http.StatusAccepted, ReprocessResponse{VersionID: *versionID, Status: "queued"})
}

func (e *ReprocessEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess <doc-id>",
		Short: "Re-run the ingestion pipeline on a document's latest version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ReprocessResponse
			if err := client.Post(cmd.Context(), "/api/docs/"+args[0]+"/reprocess", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
