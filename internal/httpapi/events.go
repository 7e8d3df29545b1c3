package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/envoyrun/envoy/pkg/envoy"
)

// handleEvents implements GET /events (§6): a server-sent-events stream of
// one session's bus events. Opens with a synthetic "connected" event, then
// relays every event published for sessionId until the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	events, unsubscribe := s.bus.Subscribe(sessionID)
	defer unsubscribe()

	if !writeSSE(w, envoy.Event{Kind: envoy.EventConnected, SessionID: sessionID}) {
		return
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if !writeSSE(w, evt) {
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSE frames one event per §6's "one event per emit, event name is
// message" rule.
func writeSSE(w http.ResponseWriter, evt envoy.Event) bool {
	data, err := json.Marshal(evt)
	if err != nil {
		return false
	}
	if _, err := w.Write([]byte("event: message\ndata: ")); err != nil {
		return false
	}
	if _, err := w.Write(data); err != nil {
		return false
	}
	_, err = w.Write([]byte("\n\n"))
	return err == nil
}
