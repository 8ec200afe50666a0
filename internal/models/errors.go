package models

import (
	"errors"
	"fmt"
)

// Error taxonomy for the visit workflow. Permission, hardware, geofence and
// coordinate errors are handled where they occur; validation, network and
// server errors surface once, at the workflow boundary.

// PermissionScope names which permission was refused.
type PermissionScope string

const (
	PermissionLocation PermissionScope = "location"
	PermissionCamera   PermissionScope = "camera"
)

// PermissionError: user-actionable, remedied through system settings, never
// retried automatically.
type PermissionError struct {
	Scope PermissionScope
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s permission denied", e.Scope)
}

// HardwareError: transient device failure (no GPS fix, camera not ready);
// the user may retry the specific action.
type HardwareError struct {
	Scope PermissionScope
	Cause error
}

func (e *HardwareError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s unavailable: %v", e.Scope, e.Cause)
	}
	return fmt.Sprintf("%s unavailable", e.Scope)
}

func (e *HardwareError) Unwrap() error { return e.Cause }

// ErrMissingCoordinates marks an outlet whose registered coordinate string is
// empty or unparsable. This is an outlet data defect, distinct from being out
// of range: capture stays blocked until the outlet record is corrected.
var ErrMissingCoordinates = errors.New("outlet has no usable coordinates")

// GeofenceError: the user is outside the allowed radius. A business rule,
// not a system failure; surfaced as a choice between correcting the outlet
// coordinates and abandoning.
type GeofenceError struct {
	DistanceMeters float64
	RadiusMeters   float64
}

func (e *GeofenceError) Error() string {
	return fmt.Sprintf("outside geofence: %.0fm away, allowed %.0fm", e.DistanceMeters, e.RadiusMeters)
}

// ValidationError: a required field missing before submission. Local; no
// network call is made.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// NetworkError: timeout or connectivity failure on the transport. Surfaced
// with a connection message, never silently retried.
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// ServerError: a structured rejection from the backend envelope. Message is
// the server's, verbatim, when present.
type ServerError struct {
	Code    int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server rejected request (code %d)", e.Code)
}

// ErrSessionExpired is raised before any upload when the bearer token's exp
// has already passed.
var ErrSessionExpired = errors.New("session expired, sign in again")
