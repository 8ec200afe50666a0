package models

import "time"

// Phase is the screen-level workflow phase. The workflow controller is its
// only owner.
type Phase string

const (
	PhaseSelectTarget Phase = "select_target"
	PhaseCapture      Phase = "capture"
)

// Transaction is the tri-state check-out flag. Unset is invalid at
// submission time.
type Transaction string

const (
	TransactionUnset Transaction = ""
	TransactionYes   Transaction = "YES"
	TransactionNo    Transaction = "NO"
)

// CheckIn is the multipart payload for POST /visit. Built once, sent once; a
// failed send mutates nothing so the user can resubmit.
type CheckIn struct {
	OutletID    string
	Location    string // "lat,lng" at submission time
	Type        VisitType
	PlanVisitID string // only for the scheduled variant
	PhotoPath   string // watermarked composite
	PhotoName   string // checkin-<epochMillis>.jpg
}

// CheckOut is the multipart payload for PUT /visit/{id}.
type CheckOut struct {
	VisitID     string
	Location    string
	Report      string
	Transaction Transaction
	PhotoPath   string
	PhotoName   string
}

// Visit is the backend's record of a submitted visit, as returned in the
// response envelope.
type Visit struct {
	ID          string     `json:"id"`
	OutletID    string     `json:"outlet_id"`
	Type        VisitType  `json:"type"`
	CheckinAt   *time.Time `json:"checkin_at,omitempty"`
	CheckoutAt  *time.Time `json:"checkout_at,omitempty"`
	PlanVisitID string     `json:"plan_visit_id,omitempty"`
}
