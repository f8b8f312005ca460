package endpoints

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/carrelhq/carrel/internal/api"
	"github.com/carrelhq/carrel/internal/svcctx"
)

// keepaliveInterval is how often an idle SSE stream emits a comment frame
// so proxies don't drop the connection.
const keepaliveInterval = 15 * time.Second

// JobStreamEndpoint handles GET /api/jobs/stream. It relays broker progress
// events to the client as server-sent events until the client disconnects.
type JobStreamEndpoint struct{}

var _ api.Endpoint = (*JobStreamEndpoint)(nil)

func (e *JobStreamEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/jobs/stream", e.handler
}

func (e *JobStreamEndpoint) RequiresInit() bool { return true }

func (e *JobStreamEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	br := svcctx.BrokerFrom(r.Context())
	events, unsubscribe := br.Subscribe(r.Context())
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func (e *JobStreamEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "stream",
		Short: "Stream job progress events (ctrl-c to stop)",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet,
				getServerURL()+"/api/jobs/stream", nil)
			if err != nil {
				return err
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned %s", resp.Status)
			}

			scanner := bufio.NewScanner(resp.Body)
			for scanner.Scan() {
				line := scanner.Text()
				if line == "" || line[0] == ':' {
					continue
				}
				fmt.Fprintln(os.Stdout, line)
			}
			return scanner.Err()
		},
	}
}
