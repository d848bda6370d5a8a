package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// wantsEventStream reports whether the client asked for SSE.
func wantsEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// streamRun serves a run as server-sent events: one event per coordinator
// update, closed after the terminal run_finished event. Disconnecting
// clients cancel the run through the request context.
func (s *Server) streamRun(w http.ResponseWriter, r *http.Request, req runRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, errStreamingUnsupported)
		return
	}

	updates, err := s.coord.RunStream(r.Context(), req.Target, req.Objective)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for update := range updates {
		data, err := json.Marshal(update)
		if err != nil {
			s.logger.Error("failed to encode stream event", "error", err)
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", update.Event, data)
		flusher.Flush()
	}
}
