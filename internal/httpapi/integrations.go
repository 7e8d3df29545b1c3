package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/envoyrun/envoy/internal/integrations"
	"github.com/envoyrun/envoy/pkg/envoy"
)

type integrationView struct {
	*envoy.Integration
	Tools        []string       `json:"tools"`
	Configured   bool           `json:"configured"`
	MaskedValues map[string]any `json:"masked_values"`
}

// handleListIntegrations implements GET /integrations (§6): each integration
// plus its owned tool names, whether every required config key is set, and
// the masked view of its declared credential values.
func (s *Server) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	all, err := s.integrations.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]integrationView, 0, len(all))
	for _, in := range all {
		toolRows, err := s.store.ListIntegrationTools(r.Context(), in.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		names := make([]string, 0, len(toolRows))
		for _, t := range toolRows {
			names = append(names, t.Name)
		}
		out = append(out, integrationView{
			Integration:  in,
			Tools:        names,
			Configured:   integrations.Configured(in),
			MaskedValues: integrations.MaskedValues(in),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type setConfigResponse struct {
	Configured   bool           `json:"configured"`
	MaskedValues map[string]any `json:"masked_values"`
}

// handleSetIntegrationConfig implements POST /integrations/:name/config
// (§6/§4.E): the body is a flat {key: value} map, filtered to the
// integration's declared config_schema keys and persisted to the on-disk
// environment file.
func (s *Server) handleSetIntegrationConfig(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	in, err := s.integrations.Get(r.Context(), name)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var values map[string]string
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.integrations.SetConfig(r.Context(), in, values); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, setConfigResponse{
		Configured:   integrations.Configured(in),
		MaskedValues: integrations.MaskedValues(in),
	})
}

func (s *Server) handleDeleteIntegration(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.integrations.Delete(r.Context(), name); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
