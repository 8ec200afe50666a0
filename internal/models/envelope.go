package models

import "encoding/json"

// Envelope is the backend's uniform response shape.
type Envelope struct {
	Meta Meta            `json:"meta"`
	Data json.RawMessage `json:"data"`
}

type Meta struct {
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// OK reports a successful business result. The backend signals business-rule
// blocks (already checked in, etc.) with meta.code 400 inside an HTTP 200.
func (m Meta) OK() bool { return m.Code >= 200 && m.Code < 300 }

// OutletRow is the wire shape of GET /outlet rows.
type OutletRow struct {
	ID       string  `json:"id"`
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	District string  `json:"district"`
	Location string  `json:"location"`
	Radius   float64 `json:"radius"`
}

// PlanVisitRow is the wire shape of GET /planvisit rows.
type PlanVisitRow struct {
	ID        string    `json:"id"`
	VisitDate string    `json:"visit_date"` // YYYY-MM-DD
	Outlet    OutletRow `json:"outlet"`
}
