package httpapi

import (
	"encoding/json"
	"net/http"
)

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// handleChat implements POST /chat (§6): runs one agent turn to completion and
// returns the final assistant text. Callers that want incremental output
// subscribe to GET /events for the same sessionId before or while this call
// is in flight.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx := r.Context()
	sessionID := req.SessionID
	if sessionID == "" {
		sess, err := s.store.CreateSession(ctx, "")
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		sessionID = sess.ID
	} else if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		if _, createErr := s.store.CreateSession(ctx, sessionID); createErr != nil {
			writeError(w, http.StatusInternalServerError, createErr.Error())
			return
		}
	}

	text, _, err := s.loop.ProcessTurn(ctx, sessionID, req.Message)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{SessionID: sessionID, Message: text})
}
