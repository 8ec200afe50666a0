package models

import (
	"time"

	"github.com/uptrace/bun"
)

// TargetMode selects where visit candidates come from.
type TargetMode string

const (
	ModeScheduled TargetMode = "scheduled" // plan visits for today
	ModeAdhoc     TargetMode = "adhoc"     // free outlet search (extracall)
)

// VisitType is the tag sent with a check-in.
type VisitType string

const (
	VisitPlanned   VisitType = "PLANNED"
	VisitExtracall VisitType = "EXTRACALL"
)

// VisitTarget unifies a scheduled plan-visit row and a bare outlet row under
// one shape. ScheduledVisitID present means the scheduled variant.
// RadiusMeters is never negative; zero disables geofencing for the target.
type VisitTarget struct {
	ID               string     `json:"id"`
	Code             string     `json:"code"`
	Name             string     `json:"name"`
	District         string     `json:"district"`
	CoordinateString string     `json:"coordinates"`
	RadiusMeters     float64    `json:"radius_meters"`
	ScheduledVisitID string     `json:"scheduled_visit_id,omitempty"`
	ScheduledDate    *time.Time `json:"scheduled_date,omitempty"`
}

func (t VisitTarget) Scheduled() bool { return t.ScheduledVisitID != "" }

// VisitType maps the variant to the wire tag.
func (t VisitTarget) VisitType() VisitType {
	if t.Scheduled() {
		return VisitPlanned
	}
	return VisitExtracall
}

// GeofenceDisabled reports the explicit per-target opt-out.
func (t VisitTarget) GeofenceDisabled() bool { return t.RadiusMeters == 0 }

// CachedOutlet is the local copy of an outlet search row, served when the
// backend is unreachable.
type CachedOutlet struct {
	bun.BaseModel `bun:"table:outlets"`

	ID          string    `bun:"id,pk" json:"id"`
	Code        string    `bun:"code" json:"code"`
	Name        string    `bun:"name" json:"name"`
	District    string    `bun:"district" json:"district"`
	Location    string    `bun:"location" json:"location"`
	Radius      float64   `bun:"radius" json:"radius"`
	QueryKey    string    `bun:"query_key" json:"-"`
	Position    int       `bun:"position" json:"-"`
	RefreshedAt time.Time `bun:"refreshed_at" json:"-"`
}

// CachedPlanVisit is the local copy of a plan-visit row for one date.
type CachedPlanVisit struct {
	bun.BaseModel `bun:"table:plan_visits"`

	ID          string    `bun:"id,pk" json:"id"`
	OutletID    string    `bun:"outlet_id" json:"outlet_id"`
	OutletCode  string    `bun:"outlet_code" json:"outlet_code"`
	OutletName  string    `bun:"outlet_name" json:"outlet_name"`
	District    string    `bun:"district" json:"district"`
	Location    string    `bun:"location" json:"location"`
	Radius      float64   `bun:"radius" json:"radius"`
	VisitDate   time.Time `bun:"visit_date" json:"visit_date"`
	Position    int       `bun:"position" json:"-"`
	RefreshedAt time.Time `bun:"refreshed_at" json:"-"`
}

// Target converts a cached outlet row back to the unified shape.
func (o CachedOutlet) Target() VisitTarget {
	return VisitTarget{
		ID:               o.ID,
		Code:             o.Code,
		Name:             o.Name,
		District:         o.District,
		CoordinateString: o.Location,
		RadiusMeters:     o.Radius,
	}
}

// Target converts a cached plan-visit row back to the unified shape.
func (v CachedPlanVisit) Target() VisitTarget {
	d := v.VisitDate
	return VisitTarget{
		ID:               v.OutletID,
		Code:             v.OutletCode,
		Name:             v.OutletName,
		District:         v.District,
		CoordinateString: v.Location,
		RadiusMeters:     v.Radius,
		ScheduledVisitID: v.ID,
		ScheduledDate:    &d,
	}
}
