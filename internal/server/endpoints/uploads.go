package endpoints

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/carrelhq/carrel/internal/api"
	"github.com/carrelhq/carrel/internal/blob"
	"github.com/carrelhq/carrel/internal/store"
	"github.com/carrelhq/carrel/internal/svcctx"
)

// UploadResponse is the response for a staged upload.
type UploadResponse struct {
	UploadID  uuid.UUID  `json:"upload_id"`
	Filename  string     `json:"filename"`
	SizeBytes int64      `json:"size_bytes"`
	SHA256    string     `json:"sha256"`
	Duplicate bool       `json:"duplicate"`
	DocID     *uuid.UUID `json:"doc_id,omitempty"`
	VersionID *uuid.UUID `json:"version_id,omitempty"`
}

// UploadEndpoint handles POST /api/uploads with a multipart file upload.
// The blob is hashed while it streams to staging; a duplicate SHA-256
// short-circuits to the existing document version.
type UploadEndpoint struct{}

var _ api.Endpoint = (*UploadEndpoint)(nil)

func (e *UploadEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/uploads", e.handler
}

func (e *UploadEndpoint) RequiresInit() bool { return true }

func (e *UploadEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := svcctx.StoreFrom(ctx)
	bl := svcctx.BlobFrom(ctx)
	cfg := svcctx.ConfigFrom(ctx).Get()

	r.Body = http.MaxBytesReader(w, r.Body, cfg.Server.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", maxErr.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	// Spool to disk while hashing so large originals never sit in memory.
	tmp, err := os.CreateTemp("", "carrel-upload-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	hasher := sha256.New()
	size, err := io.Copy(tmp, io.TeeReader(file, hasher))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", maxErr.Limit))
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to spool upload: %v", err))
		return
	}
	sum := hasher.Sum(nil)

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(header.Filename))
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	// Content-addressed dedup: an already-ingested binary never re-enters
	// the pipeline.
	if existing, err := st.GetVersionBySHA256(ctx, sum); err == nil {
		up, err := st.CreateUpload(ctx, header.Filename, mimeType, size, sum, bl.Bucket(), "")
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := st.MarkUploadDuplicate(ctx, up.ID, existing.DocID, existing.ID); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, UploadResponse{
			UploadID:  up.ID,
			Filename:  header.Filename,
			SizeBytes: size,
			SHA256:    hex.EncodeToString(sum),
			Duplicate: true,
			DocID:     &existing.DocID,
			VersionID: &existing.ID,
		})
		return
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	stagingKey := blob.StagingKey(uuid.New(), header.Filename)
	if err := bl.Put(ctx, stagingKey, tmp, size, mimeType); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to stage upload: %v", err))
		return
	}

	up, err := st.CreateUpload(ctx, header.Filename, mimeType, size, sum, bl.Bucket(), stagingKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		UploadID:  up.ID,
		Filename:  header.Filename,
		SizeBytes: size,
		SHA256:    hex.EncodeToString(sum),
	})
}

func (e *UploadEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file for ingestion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp UploadResponse
			if err := client.UploadFile(cmd.Context(), "/api/uploads", args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ConfirmUploadRequest tells the server what a staged upload is.
type ConfirmUploadRequest struct {
	UploadID      uuid.UUID  `json:"upload_id"`
	Action        string     `json:"action"` // new_document or new_version
	ExistingDocID *uuid.UUID `json:"existing_doc_id,omitempty"`
	Title         string     `json:"title,omitempty"`
}

// ConfirmUploadResponse reports the version the pipeline is now working on.
type ConfirmUploadResponse struct {
	DocID     uuid.UUID `json:"doc_id"`
	VersionID uuid.UUID `json:"version_id"`
	Status    string    `json:"status"`
}

// ConfirmUploadEndpoint handles POST /api/uploads/confirm. It promotes the
// staged blob to its canonical key, creates the document and version rows,
// and enqueues the extract stage.
type ConfirmUploadEndpoint struct{}

var _ api.Endpoint = (*ConfirmUploadEndpoint)(nil)

func (e *ConfirmUploadEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/uploads/confirm", e.handler
}

func (e *ConfirmUploadEndpoint) RequiresInit() bool { return true }

func (e *ConfirmUploadEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ConfirmUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.UploadID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "upload_id is required")
		return
	}

	st := svcctx.StoreFrom(ctx)
	bl := svcctx.BlobFrom(ctx)
	orch := svcctx.OrchestratorFrom(ctx)

	up, err := st.GetUpload(ctx, req.UploadID)
	if err != nil {
		writeError(w, http.StatusNotFound, "upload not found")
		return
	}
	if up.Status != store.UploadPendingConfirmation {
		writeError(w, http.StatusConflict, fmt.Sprintf("upload already %s", up.Status))
		return
	}

	var docID uuid.UUID
	switch req.Action {
	case "new_document":
		title := req.Title
		if title == "" {
			title = titleFromFilename(up.OriginalFilename)
		}
		doc, err := st.CreateDocument(ctx, title, up.OriginalFilename)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		docID = doc.ID
	case "new_version":
		if req.ExistingDocID == nil {
			writeError(w, http.StatusBadRequest, "existing_doc_id is required for new_version")
			return
		}
		doc, err := st.GetDocument(ctx, *req.ExistingDocID)
		if err != nil {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		docID = doc.ID
	default:
		writeError(w, http.StatusBadRequest, "action must be new_document or new_version")
		return
	}

	version, err := st.CreateVersion(ctx, docID, up.SHA256, up.Bucket, up.MimeType, up.SizeBytes)
	if err != nil {
		writeError(w, http.StatusConflict, fmt.Sprintf("failed to create version: %v", err))
		return
	}

	canonicalKey := blob.CanonicalKey(version.ID, up.OriginalFilename)
	if err := bl.Promote(ctx, up.ObjectKey, canonicalKey); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to promote upload: %v", err))
		return
	}
	if err := st.SetVersionObjectKey(ctx, version.ID, canonicalKey); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := st.MarkUploadProcessing(ctx, up.ID, docID, version.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := orch.EnqueueStage(ctx, version.ID, store.StageExtract); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to enqueue: %v", err))
		return
	}

	writeJSON(w, http.StatusAccepted, ConfirmUploadResponse{
		DocID:     docID,
		VersionID: version.ID,
		Status:    "queued",
	})
}

func (e *ConfirmUploadEndpoint) Command(getServerURL func() string) *cobra.Command {
	var action, docID, title string
	cmd := &cobra.Command{
		Use:   "confirm <upload-id>",
		Short: "Confirm a staged upload and start ingestion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploadID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid upload id: %w", err)
			}
			req := ConfirmUploadRequest{UploadID: uploadID, Action: action, Title: title}
			if docID != "" {
				id, err := uuid.Parse(docID)
				if err != nil {
					return fmt.Errorf("invalid doc id: %w", err)
				}
				req.ExistingDocID = &id
			}
			client := api.NewClient(getServerURL())
			var resp ConfirmUploadResponse
			if err := client.Post(cmd.Context(), "/api/uploads/confirm", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&action, "action", "new_document", "new_document or new_version")
	cmd.Flags().StringVar(&docID, "doc", "", "Existing document id (for new_version)")
	cmd.Flags().StringVar(&title, "title", "", "Document title (defaults to the filename)")
	return cmd
}

// UploadRecord is one staged or settled upload.
type UploadRecord struct {
	UploadID  uuid.UUID  `json:"upload_id"`
	Filename  string     `json:"filename"`
	SizeBytes int64      `json:"size_bytes"`
	Status    string     `json:"status"`
	Error     string     `json:"error,omitempty"`
	DocID     *uuid.UUID `json:"doc_id,omitempty"`
	VersionID *uuid.UUID `json:"version_id,omitempty"`
	CreatedAt string     `json:"created_at"`
}

// ListUploadsResponse is the response for listing recent uploads.
type ListUploadsResponse struct {
	Uploads []UploadRecord `json:"uploads"`
}

// ListUploadsEndpoint handles GET /api/uploads.
type ListUploadsEndpoint struct{}

var _ api.Endpoint = (*ListUploadsEndpoint)(nil)

func (e *ListUploadsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/uploads", e.handler
}

func (e *ListUploadsEndpoint) RequiresInit() bool { return true }

func (e *ListUploadsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	uploads, err := st.ListRecentUploads(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := ListUploadsResponse{Uploads: make([]UploadRecord, 0, len(uploads))}
	for _, u := range uploads {
		resp.Uploads = append(resp.Uploads, UploadRecord{
			UploadID:  u.ID,
			Filename:  u.OriginalFilename,
			SizeBytes: u.SizeBytes,
			Status:    u.Status,
			Error:     u.Error,
			DocID:     u.DocID,
			VersionID: u.VersionID,
			CreatedAt: u.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListUploadsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recent uploads",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListUploadsResponse
			if err := client.Get(cmd.Context(), "/api/uploads", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// titleFromFilename strips the extension to make a default document title.
func titleFromFilename(name string) string {
	base := filepath.Base(name)
	if ext := filepath.Ext(base); ext != "" {
		base = base[:len(base)-len(ext)]
	}
	if base == "" {
		return name
	}
	return base
}
