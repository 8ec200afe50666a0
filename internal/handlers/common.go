package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"visitagent/internal/models"
	"visitagent/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(data)
}

// errorBody is what the shell renders. Kind drives which dialog appears;
// remedy names the follow-up action offered to the user.
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Remedy  string `json:"remedy,omitempty"`
}

// writeError maps the workflow error taxonomy onto HTTP statuses and shell
// dialog kinds. Server messages pass through verbatim.
func writeError(w http.ResponseWriter, err error) {
	var (
		permErr *models.PermissionError
		hwErr   *models.HardwareError
		valErr  *models.ValidationError
		geoErr  *models.GeofenceError
		netErr  *models.NetworkError
		srvErr  *models.ServerError
	)

	switch {
	case errors.As(err, &permErr):
		writeJSON(w, http.StatusForbidden, errorBody{
			Kind:    "permission_denied",
			Message: permErr.Error(),
			Remedy:  "open_settings",
		})
	case errors.As(err, &hwErr):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Kind:    "hardware_unavailable",
			Message: hwErr.Error(),
			Remedy:  "retry",
		})
	case errors.Is(err, models.ErrMissingCoordinates):
		writeJSON(w, http.StatusConflict, errorBody{
			Kind:    "missing_coordinates",
			Message: err.Error(),
			Remedy:  "update_outlet",
		})
	case errors.As(err, &geoErr):
		writeJSON(w, http.StatusConflict, errorBody{
			Kind:    "geofence_blocked",
			Message: geoErr.Error(),
			Remedy:  "update_outlet_or_abandon",
		})
	case errors.As(err, &valErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Kind:    "validation",
			Message: valErr.Error(),
		})
	case errors.As(err, &netErr):
		writeJSON(w, http.StatusBadGateway, errorBody{
			Kind:    "network",
			Message: "check your connection",
			Remedy:  "retry",
		})
	case errors.As(err, &srvErr):
		writeJSON(w, http.StatusBadGateway, errorBody{
			Kind:    "server_rejected",
			Message: srvErr.Error(),
		})
	case errors.Is(err, models.ErrSessionExpired):
		writeJSON(w, http.StatusUnauthorized, errorBody{
			Kind:    "session_expired",
			Message: err.Error(),
		})
	case errors.Is(err, services.ErrCaptureInFlight):
		writeJSON(w, http.StatusConflict, errorBody{
			Kind:    "busy",
			Message: err.Error(),
		})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Kind:    "internal",
			Message: err.Error(),
		})
	}
}
