package httpapi

import (
	"encoding/json"
	"net/http"
)

type toolSummary struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
}

// handleListTools implements GET /tools (§6): the static built-in set
// alongside every custom tool in the store, including integration-scoped
// ones.
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	builtIn := make([]toolSummary, 0, len(s.builtins))
	for _, t := range s.builtins {
		builtIn = append(builtIn, toolSummary{Name: t.Name(), Description: t.Description(), Schema: t.Schema()})
	}

	custom, err := s.store.ListTools(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"builtIn": builtIn,
		"custom":  custom,
	})
}

// handleDeleteTool implements DELETE /tools/:name. Built-in names are 400:
// they aren't backed by a store row and can't be removed at runtime.
func (s *Server) handleDeleteTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	for _, t := range s.builtins {
		if t.Name() == name {
			writeError(w, http.StatusBadRequest, "cannot delete a built-in tool")
			return
		}
	}

	if err := s.store.DeleteTool(r.Context(), name); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
