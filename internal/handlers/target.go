package handlers

import (
	"encoding/json"
	"net/http"

	"visitagent/internal/models"
	"visitagent/internal/services"

	"go.uber.org/zap"
)

type TargetHandler struct {
	resolver *services.TargetResolver
	workflow *services.VisitWorkflow
	logr     *zap.Logger
}

func NewTargetHandler(resolver *services.TargetResolver, workflow *services.VisitWorkflow, logr *zap.Logger) *TargetHandler {
	return &TargetHandler{resolver: resolver, workflow: workflow, logr: logr}
}

func (h *TargetHandler) SetMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode models.TargetMode `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Kind: "bad_request", Message: "invalid body"})
		return
	}
	if err := h.resolver.SetMode(body.Mode); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Kind: "bad_request", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mode": body.Mode})
}

func (h *TargetHandler) SetSearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Search string `json:"search"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Kind: "bad_request", Message: "invalid body"})
		return
	}
	if err := h.resolver.SetSearchText(body.Search); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Kind: "bad_request", Message: err.Error()})
		return
	}
	// The fetch fires after the debounce window; the shell polls List.
	writeJSON(w, http.StatusAccepted, nil)
}

func (h *TargetHandler) List(w http.ResponseWriter, r *http.Request) {
	targets, stale := h.resolver.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  targets,
		"stale": stale,
		"mode":  h.resolver.Mode(),
	})
}

func (h *TargetHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.resolver.Refresh()
	writeJSON(w, http.StatusAccepted, nil)
}

func (h *TargetHandler) Select(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Kind: "bad_request", Message: "invalid body"})
		return
	}
	if err := h.resolver.Select(body.ID); err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Kind: "not_found", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"selected": body.ID})
}

// Geofence reports the derived fence state for the shell's range indicator.
func (h *TargetHandler) Geofence(w http.ResponseWriter, r *http.Request) {
	result, err := h.workflow.Geofence()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
