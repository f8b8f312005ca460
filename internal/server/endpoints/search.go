package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/carrelhq/carrel/internal/api"
	"github.com/carrelhq/carrel/internal/search"
	"github.com/carrelhq/carrel/internal/store"
	"github.com/carrelhq/carrel/internal/svcctx"
)

// SearchEndpoint handles GET /api/search. Lexical and semantic retrieval
// are fused server-side; the response is a ranked hit list plus a conflict
// signal when the top results disagree across sources.
type SearchEndpoint struct{}

var _ api.Endpoint = (*SearchEndpoint)(nil)

func (e *SearchEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/search", e.handler
}

func (e *SearchEndpoint) RequiresInit() bool { return true }

func (e *SearchEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := q.Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	k := 0
	if raw := q.Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "k must be an integer")
			return
		}
		k = n
	}

	scope, err := scopeFromQuery(q["doc_id"], q["version_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	eng := svcctx.SearchFrom(r.Context())
	result, err := eng.Search(r.Context(), query, k, scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func scopeFromQuery(docIDs, versionIDs []string) (store.SearchScope, error) {
	var scope store.SearchScope
	for _, raw := range docIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return scope, fmt.Errorf("invalid doc_id %q", raw)
		}
		scope.DocIDs = append(scope.DocIDs, id)
	}
	for _, raw := range versionIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return scope, fmt.Errorf("invalid version_id %q", raw)
		}
		scope.VersionIDs = append(scope.VersionIDs, id)
	}
	return scope, nil
}

func (e *SearchEndpoint) Command(getServerURL func() string) *cobra.Command {
	var k int
	var docIDs []string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/search?q=" + url.QueryEscape(args[0])
			if k > 0 {
				path += "&k=" + strconv.Itoa(k)
			}
			for _, id := range docIDs {
				path += "&doc_id=" + id
			}
			client := api.NewClient(getServerURL())
			var resp search.Result
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVar(&k, "k", 0, "Number of results (default 10)")
	cmd.Flags().StringSliceVar(&docIDs, "doc", nil, "Restrict to these document ids")
	return cmd
}

// PassagesRequest asks for chunk texts by id.
type PassagesRequest struct {
	ChunkIDs       []uuid.UUID `json:"chunk_ids"`
	IncludeContext bool        `json:"include_context"`
}

// PassagesResponse carries the requested passages in request order.
type PassagesResponse struct {
	Passages []search.Passage `json:"passages"`
}

// PassagesEndpoint handles POST /api/passages.
type PassagesEndpoint struct{}

var _ api.Endpoint = (*PassagesEndpoint)(nil)

func (e *PassagesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/passages", e.handler
}

func (e *PassagesEndpoint) RequiresInit() bool { return true }

func (e *PassagesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req PassagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.ChunkIDs) == 0 {
		writeError(w, http.StatusBadRequest, "chunk_ids is required")
		return
	}

	eng := svcctx.SearchFrom(r.Context())
	passages, err := eng.ReadPassages(r.Context(), req.ChunkIDs, req.IncludeContext)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, PassagesResponse{Passages: passages})
}

func (e *PassagesEndpoint) Command(getServerURL func() string) *cobra.Command {
	var includeContext bool
	cmd := &cobra.Command{
		Use:   "passages <chunk-id>...",
		Short: "Read chunk texts by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := PassagesRequest{IncludeContext: includeContext}
			for _, raw := range args {
				id, err := uuid.Parse(raw)
				if err != nil {
					return fmt.Errorf("invalid chunk id: %w", err)
				}
				req.ChunkIDs = append(req.ChunkIDs, id)
			}
			client := api.NewClient(getServerURL())
			var resp PassagesResponse
			if err := client.Post(cmd.Context(), "/api/passages", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().BoolVar(&includeContext, "context", false, "Include neighboring chunk text")
	return cmd
}
