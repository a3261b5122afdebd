package gateway

import (
	"errors"
	"net/http"
	"time"

	"llmfit/internal/events"
	"llmfit/internal/registry"
)

const sseHeartbeatEvery = 15 * time.Second

// handleEvents streams run progress as server-sent events. The stream ends
// with a "done" frame when the run reaches a terminal status; heartbeats
// keep intermediaries from reaping idle connections.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, runID string) {
	ch, unsubscribe, err := s.registry.Subscribe(runID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer unsubscribe()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream; charset=utf-8")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(sseHeartbeatEvery)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := events.WriteHeartbeat(w); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-ch:
			if !ok {
				_ = events.WriteDone(w)
				flusher.Flush()
				return
			}
			if err := events.WriteFrame(w, ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
