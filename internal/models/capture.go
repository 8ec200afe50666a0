package models

import "time"

// CaptureState is the capture pipeline's explicit state. Exactly one capture
// cycle may be in flight at a time.
type CaptureState string

const (
	CapturePermissionPending CaptureState = "permission_pending"
	CaptureReady             CaptureState = "ready"
	CaptureCapturing         CaptureState = "capturing"
	CaptureComposing         CaptureState = "composing"
	CaptureDone              CaptureState = "done"
	CaptureFailed            CaptureState = "failed"
)

// CaptureArtifact is the product of one capture cycle. The raw intermediate
// is deleted once the watermarked composite exists; only the composite is
// ever transmitted.
type CaptureArtifact struct {
	ID              string    `json:"id"`
	WatermarkedPath string    `json:"watermarked_path"`
	CapturedAt      time.Time `json:"captured_at"`
	CapturedAtText  string    `json:"captured_at_text"` // formatted local date/time
	LocationText    string    `json:"location_text"`    // "lat,lng" at shutter time
	TargetLabel     string    `json:"target_label"`
}
