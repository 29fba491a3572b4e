package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/checklist-cli/internal/model"
)

// handleProgress streams progress events as server-sent events. With a
// job_id it only sends that job's events and ends after its completed
// event.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	jobID := r.URL.Query().Get("job_id")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sub := s.progress.SubscribeJob(jobID, 0)
	defer s.progress.Unsubscribe(sub)

	fmt.Fprint(w, ": connected\n\n") //nolint:errcheck
	flusher.Flush()

	keepalive := time.NewTicker(s.opts.Keepalive)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-sub.C:
			if !ok {
				// Dropped for falling behind.
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				zap.L().Warn("server: marshal progress event", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
			if jobID != "" && ev.Status == model.StatusCompleted {
				return
			}
		}
	}
}
