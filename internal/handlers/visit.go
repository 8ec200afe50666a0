package handlers

import (
	"encoding/json"
	"net/http"

	"visitagent/internal/models"
	"visitagent/internal/services"

	"go.uber.org/zap"
)

type VisitHandler struct {
	workflow *services.VisitWorkflow
	capture  *services.CapturePipeline
	location *services.LocationService
	resolver *services.TargetResolver
	logr     *zap.Logger
}

func NewVisitHandler(workflow *services.VisitWorkflow, capture *services.CapturePipeline, location *services.LocationService, resolver *services.TargetResolver, logr *zap.Logger) *VisitHandler {
	return &VisitHandler{workflow: workflow, capture: capture, location: location, resolver: resolver, logr: logr}
}

// Begin arms a check-in or check-out flow.
func (h *VisitHandler) Begin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Kind    services.FlowKind `json:"kind"`
		VisitID string            `json:"visit_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Kind: "bad_request", Message: "invalid body"})
		return
	}
	if err := h.workflow.Begin(body.Kind, body.VisitID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"phase": h.workflow.Phase(), "kind": body.Kind})
}

// Status is the shell's polling endpoint: phase, capture state, geofence.
func (h *VisitHandler) Status(w http.ResponseWriter, r *http.Request) {
	captureState, captureErr := h.capture.State()
	out := map[string]any{
		"phase":         h.workflow.Phase(),
		"kind":          h.workflow.Kind(),
		"capture_state": captureState,
	}
	if captureErr != nil {
		out["capture_error"] = captureErr.Error()
	}
	if result, err := h.workflow.Geofence(); err == nil {
		out["geofence"] = result
	} else {
		out["geofence_blocked"] = err.Error()
	}
	writeJSON(w, http.StatusOK, out)
}

// Locate takes a fresh GPS fix and returns it.
func (h *VisitHandler) Locate(w http.ResponseWriter, r *http.Request) {
	point, err := h.location.Acquire(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, point)
}

// Advance runs the SelectTarget → Capture guard (including the check-in
// pre-flight) and flips the phase on success.
func (h *VisitHandler) Advance(w http.ResponseWriter, r *http.Request) {
	if err := h.workflow.Advance(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"phase": h.workflow.Phase()})
}

// Back returns to target selection, abandoning any capture in flight.
func (h *VisitHandler) Back(w http.ResponseWriter, r *http.Request) {
	h.workflow.Back()
	writeJSON(w, http.StatusOK, map[string]any{"phase": h.workflow.Phase()})
}

// Reset clears the whole workflow.
func (h *VisitHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.workflow.Reset()
	writeJSON(w, http.StatusOK, map[string]any{"phase": h.workflow.Phase()})
}

// PrepareCapture acquires camera permission and readiness.
func (h *VisitHandler) PrepareCapture(w http.ResponseWriter, r *http.Request) {
	if err := h.capture.Prepare(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	state, _ := h.capture.State()
	writeJSON(w, http.StatusOK, map[string]any{"capture_state": state})
}

// Capture runs one shutter → compress → compose cycle and returns the
// finished artifact. A second call while one is running is rejected without
// side effects.
func (h *VisitHandler) Capture(w http.ResponseWriter, r *http.Request) {
	if h.workflow.Phase() != models.PhaseCapture {
		writeJSON(w, http.StatusConflict, errorBody{Kind: "bad_phase", Message: "not in capture phase"})
		return
	}
	target := h.resolver.Selected()
	if target == nil {
		writeJSON(w, http.StatusConflict, errorBody{Kind: "bad_phase", Message: "no target selected"})
		return
	}
	point := h.location.Current()
	if point == nil {
		writeJSON(w, http.StatusConflict, errorBody{Kind: "bad_phase", Message: "no position fix yet"})
		return
	}

	artifact, err := h.capture.Start(r.Context(), *target, *point)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

// CheckIn submits the visit. On success the workflow resets and the shell
// navigates away.
func (h *VisitHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	visit, err := h.workflow.SubmitCheckIn(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": visit})
}

// CheckOut submits the closing report for the open visit.
func (h *VisitHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Report      string             `json:"report"`
		Transaction models.Transaction `json:"transaction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Kind: "bad_request", Message: "invalid body"})
		return
	}

	visit, err := h.workflow.SubmitCheckOut(r.Context(), body.Report, body.Transaction)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": visit})
}
