// Package mcptool exposes the knowledge base to MCP clients over stdio.
// Four tools cover the read path: search, passage reads, document listing,
// and pipeline status.
package mcptool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/carrelhq/carrel/internal/search"
	"github.com/carrelhq/carrel/internal/store"
)

// Searcher is the retrieval surface the tools call.
type Searcher interface {
	Search(ctx context.Context, query string, k int, scope store.SearchScope) (*search.Result, error)
	ReadPassages(ctx context.Context, ids []uuid.UUID, includeContext bool) ([]search.Passage, error)
}

// DocStore is the slice of the store the tools read documents through.
type DocStore interface {
	ListDocuments(ctx context.Context, limit int) ([]*store.Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*store.Document, error)
	ListVersionsByDoc(ctx context.Context, docID uuid.UUID) ([]*store.DocumentVersion, error)
	ListJobsByVersion(ctx context.Context, versionID uuid.UUID) ([]*store.IngestionJob, error)
}

// Server wraps an MCP server over the search engine and store.
type Server struct {
	mcp      *mcp.Server
	searcher Searcher
	docs     DocStore
	log      *slog.Logger
}

// New builds the MCP server and registers all tools.
func New(searcher Searcher, docs DocStore, version string, log *slog.Logger) (*Server, error) {
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if docs == nil {
		return nil, errors.New("doc store is required")
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		searcher: searcher,
		docs:     docs,
		log:      log,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "carrel",
			Version: version,
		},
		nil,
	)
	s.registerTools()

	return s, nil
}

// Run serves MCP over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("mcp server listening on stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "kb_search",
		Description: "Search the local knowledge base. Fuses full-text and semantic retrieval over all ingested documents and returns ranked passages with their source document and page range.",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "kb_read_passages",
		Description: "Read full chunk texts by id, optionally with the neighboring chunks for context. Use after kb_search to pull more of a promising passage.",
	}, s.handleReadPassages)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "kb_list_documents",
		Description: "List the documents in the knowledge base with their ingestion status.",
	}, s.handleListDocuments)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "kb_job_status",
		Description: "Show the ingestion pipeline status for one document: every version with its per-stage jobs and progress.",
	}, s.handleJobStatus)
}

// SearchInput are the kb_search arguments.
type SearchInput struct {
	Query  string   `json:"query" jsonschema:"the search query"`
	K      int      `json:"k,omitempty" jsonschema:"number of results, default 10, max 100"`
	DocIDs []string `json:"doc_ids,omitempty" jsonschema:"restrict the search to these document ids"`
}

// SearchOutput is the kb_search result.
type SearchOutput struct {
	Hits             []search.Hit            `json:"hits" jsonschema:"ranked passages"`
	PossibleConflict bool                    `json:"possible_conflict" jsonschema:"true when top results disagree across documents or versions"`
	ConflictSources  []search.ConflictSource `json:"conflict_sources,omitempty" jsonschema:"the sources involved in a possible conflict"`
}

func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if input.Query == "" {
		return nil, SearchOutput{}, errors.New("query is required")
	}

	var scope store.SearchScope
	for _, raw := range input.DocIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, SearchOutput{}, fmt.Errorf("invalid doc id %q", raw)
		}
		scope.DocIDs = append(scope.DocIDs, id)
	}

	result, err := s.searcher.Search(ctx, input.Query, input.K, scope)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	return nil, SearchOutput{
		Hits:             result.Hits,
		PossibleConflict: result.PossibleConflict,
		ConflictSources:  result.ConflictSources,
	}, nil
}

// ReadPassagesInput are the kb_read_passages arguments.
type ReadPassagesInput struct {
	ChunkIDs       []string `json:"chunk_ids" jsonschema:"chunk ids to read, at most 50"`
	IncludeContext bool     `json:"include_context,omitempty" jsonschema:"also return the neighboring chunks' text"`
}

// ReadPassagesOutput is the kb_read_passages result.
type ReadPassagesOutput struct {
	Passages []search.Passage `json:"passages" jsonschema:"requested passages in request order"`
}

func (s *Server) handleReadPassages(ctx context.Context, req *mcp.CallToolRequest, input ReadPassagesInput) (*mcp.CallToolResult, ReadPassagesOutput, error) {
	if len(input.ChunkIDs) == 0 {
		return nil, ReadPassagesOutput{}, errors.New("chunk_ids is required")
	}

	ids := make([]uuid.UUID, 0, len(input.ChunkIDs))
	for _, raw := range input.ChunkIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, ReadPassagesOutput{}, fmt.Errorf("invalid chunk id %q", raw)
		}
		ids = append(ids, id)
	}

	passages, err := s.searcher.ReadPassages(ctx, ids, input.IncludeContext)
	if err != nil {
		return nil, ReadPassagesOutput{}, err
	}

	return nil, ReadPassagesOutput{Passages: passages}, nil
}

// ListDocumentsInput are the kb_list_documents arguments.
type ListDocumentsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum documents to return, default all"`
}

// DocumentInfo is one document in a listing.
type DocumentInfo struct {
	DocID     string `json:"doc_id" jsonschema:"document id"`
	Title     string `json:"title" jsonschema:"document title"`
	Filename  string `json:"filename" jsonschema:"canonical filename"`
	Status    string `json:"status" jsonschema:"document status"`
	Ready     bool   `json:"ready" jsonschema:"true when a finalized version is searchable"`
	CreatedAt string `json:"created_at" jsonschema:"creation time, RFC 3339"`
}

// ListDocumentsOutput is the kb_list_documents result.
type ListDocumentsOutput struct {
	Documents []DocumentInfo `json:"documents" jsonschema:"documents in the knowledge base"`
}

func (s *Server) handleListDocuments(ctx context.Context, req *mcp.CallToolRequest, input ListDocumentsInput) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	docs, err := s.docs.ListDocuments(ctx, input.Limit)
	if err != nil {
		return nil, ListDocumentsOutput{}, err
	}

	out := ListDocumentsOutput{Documents: make([]DocumentInfo, 0, len(docs))}
	for _, d := range docs {
		out.Documents = append(out.Documents, DocumentInfo{
			DocID:     d.ID.String(),
			Title:     d.Title,
			Filename:  d.CanonicalFilename,
			Status:    d.Status,
			Ready:     d.LatestVersionID != nil,
			CreatedAt: d.CreatedAt.Format(time.RFC3339),
		})
	}
	return nil, out, nil
}

// JobStatusInput are the kb_job_status arguments.
type JobStatusInput struct {
	DocID string `json:"doc_id" jsonschema:"document id to inspect"`
}

// JobInfo is one pipeline job.
type JobInfo struct {
	Stage           string `json:"stage" jsonschema:"pipeline stage"`
	Status          string `json:"status" jsonschema:"queued, running, done, or error"`
	ProgressCurrent int    `json:"progress_current" jsonschema:"units completed"`
	ProgressTotal   int    `json:"progress_total" jsonschema:"total units"`
	Error           string `json:"error,omitempty" jsonschema:"failure message when status is error"`
}

// VersionStatus is one version's pipeline state.
type VersionStatus struct {
	VersionID string    `json:"version_id" jsonschema:"version id"`
	Status    string    `json:"status" jsonschema:"version pipeline state"`
	Error     string    `json:"error,omitempty" jsonschema:"failure message when status is error"`
	Jobs      []JobInfo `json:"jobs" jsonschema:"per-stage jobs in pipeline order"`
}

// JobStatusOutput is the kb_job_status result.
type JobStatusOutput struct {
	DocID    string          `json:"doc_id" jsonschema:"document id"`
	Title    string          `json:"title" jsonschema:"document title"`
	Versions []VersionStatus `json:"versions" jsonschema:"versions newest first"`
}

func (s *Server) handleJobStatus(ctx context.Context, req *mcp.CallToolRequest, input JobStatusInput) (*mcp.CallToolResult, JobStatusOutput, error) {
	id, err := uuid.Parse(input.DocID)
	if err != nil {
		return nil, JobStatusOutput{}, fmt.Errorf("invalid doc id %q", input.DocID)
	}

	doc, err := s.docs.GetDocument(ctx, id)
	if err != nil {
		return nil, JobStatusOutput{}, fmt.Errorf("document not found: %w", err)
	}

	versions, err := s.docs.ListVersionsByDoc(ctx, id)
	if err != nil {
		return nil, JobStatusOutput{}, err
	}

	out := JobStatusOutput{
		DocID:    doc.ID.String(),
		Title:    doc.Title,
		Versions: make([]VersionStatus, 0, len(versions)),
	}
	for _, v := range versions {
		jobs, err := s.docs.ListJobsByVersion(ctx, v.ID)
		if err != nil {
			return nil, JobStatusOutput{}, err
		}
		vs := VersionStatus{
			VersionID: v.ID.String(),
			Status:    string(v.Status),
			Error:     v.Error,
			Jobs:      make([]JobInfo, 0, len(jobs)),
		}
		for _, j := range jobs {
			vs.Jobs = append(vs.Jobs, JobInfo{
				Stage:           string(j.Stage),
				Status:          string(j.Status),
				ProgressCurrent: j.ProgressCurrent,
				ProgressTotal:   j.ProgressTotal,
				Error:           j.Error,
			})
		}
		out.Versions = append(out.Versions, vs)
	}

	return nil, out, nil
}
