package services

import (
	"context"
	"fmt"
	"sync"

	"visitagent/internal/models"

	"go.uber.org/zap"
)

// VisitBackend is the CRM surface the workflow submits through.
type VisitBackend interface {
	VisitCheck(ctx context.Context, outletCode string) error
	CheckIn(ctx context.Context, in models.CheckIn) (*models.Visit, error)
	CheckOut(ctx context.Context, out models.CheckOut) (*models.Visit, error)
}

// FlowKind distinguishes the two mirrored flows.
type FlowKind string

const (
	FlowCheckIn  FlowKind = "checkin"
	FlowCheckOut FlowKind = "checkout"
)

// VisitWorkflow sequences one visit flow through its two phases and owns the
// submission. Phase and the flow kind live here; the resolver owns the
// selected target, the location service owns the position slot, the capture
// pipeline owns the artifact until submission takes it.
type VisitWorkflow struct {
	backend  VisitBackend
	location *LocationService
	resolver *TargetResolver
	capture  *CapturePipeline
	logr     *zap.Logger

	mu          sync.Mutex
	phase       models.Phase
	kind        FlowKind
	openVisitID string // check-out only: the visit being closed
}

func NewVisitWorkflow(backend VisitBackend, location *LocationService, resolver *TargetResolver, capture *CapturePipeline, logr *zap.Logger) *VisitWorkflow {
	return &VisitWorkflow{
		backend:  backend,
		location: location,
		resolver: resolver,
		capture:  capture,
		logr:     logr,
		phase:    models.PhaseSelectTarget,
		kind:     FlowCheckIn,
	}
}

// Begin arms the workflow for one flow. Check-out requires the id of the
// visit being closed.
func (w *VisitWorkflow) Begin(kind FlowKind, openVisitID string) error {
	if kind != FlowCheckIn && kind != FlowCheckOut {
		return fmt.Errorf("unknown flow kind %q", kind)
	}
	if kind == FlowCheckOut && openVisitID == "" {
		return &models.ValidationError{Field: "visit_id", Msg: "required for check-out"}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.phase = models.PhaseSelectTarget
	w.kind = kind
	w.openVisitID = openVisitID
	return nil
}

// Phase returns the current phase.
func (w *VisitWorkflow) Phase() models.Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase
}

// Kind returns the active flow kind.
func (w *VisitWorkflow) Kind() FlowKind {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.kind
}

// Geofence evaluates the fence for the current position and selection.
// Derived state only; callers get a fresh result on every call.
func (w *VisitWorkflow) Geofence() (models.GeofenceResult, error) {
	return EvaluateGeofence(w.location.Current(), w.resolver.Selected())
}

// Advance moves SelectTarget → Capture. Guards, in order: a target is
// selected; its coordinates parse; the user is inside the fence (or the
// fence is disabled); for check-in, the backend pre-flight passes. A
// pre-flight meta.code 400 stops the flow here, before any capture, with
// the server message intact.
func (w *VisitWorkflow) Advance(ctx context.Context) error {
	target := w.resolver.Selected()
	if target == nil {
		return &models.ValidationError{Field: "target", Msg: "no target selected"}
	}

	point, err := w.location.Acquire(ctx)
	if err != nil {
		return err
	}

	result, err := EvaluateGeofence(&point, target)
	if err != nil {
		// Missing coordinates: capture stays blocked, the caller offers the
		// outlet-correction path.
		return err
	}
	if !result.WithinRange {
		dist := 0.0
		if result.DistanceMeters != nil {
			dist = *result.DistanceMeters
		}
		return &models.GeofenceError{DistanceMeters: dist, RadiusMeters: target.RadiusMeters}
	}

	w.mu.Lock()
	kind := w.kind
	w.mu.Unlock()

	if kind == FlowCheckIn {
		if err := w.backend.VisitCheck(ctx, target.Code); err != nil {
			return err
		}
	}

	w.mu.Lock()
	w.phase = models.PhaseCapture
	w.mu.Unlock()
	return nil
}

// Back is the unconditional Capture → SelectTarget transition. Any in-flight
// capture cycle is abandoned and its intermediates removed.
func (w *VisitWorkflow) Back() {
	w.capture.Discard()
	w.mu.Lock()
	w.phase = models.PhaseSelectTarget
	w.mu.Unlock()
}

// Reset returns the whole workflow to its initial state. Used after terminal
// success and on teardown.
func (w *VisitWorkflow) Reset() {
	w.capture.Discard()
	w.resolver.ClearSelection()
	w.mu.Lock()
	w.phase = models.PhaseSelectTarget
	w.kind = FlowCheckIn
	w.openVisitID = ""
	w.mu.Unlock()
}

// SubmitCheckIn packages the artifact and sends the multipart check-in. The
// final position is re-read here, and the fence is re-checked against it.
// On success everything resets; on any failure all state (artifact included)
// is left for a user-triggered retry.
func (w *VisitWorkflow) SubmitCheckIn(ctx context.Context) (*models.Visit, error) {
	w.mu.Lock()
	if w.kind != FlowCheckIn {
		w.mu.Unlock()
		return nil, &models.ValidationError{Field: "flow", Msg: "not a check-in flow"}
	}
	if w.phase != models.PhaseCapture {
		w.mu.Unlock()
		return nil, &models.ValidationError{Field: "phase", Msg: "capture phase not reached"}
	}
	w.mu.Unlock()

	target := w.resolver.Selected()
	if target == nil {
		return nil, &models.ValidationError{Field: "target", Msg: "no target selected"}
	}
	artifact := w.capture.Artifact()
	if artifact == nil {
		return nil, &models.ValidationError{Field: "photo", Msg: "no captured photo"}
	}

	point, err := w.finalPosition(ctx, target)
	if err != nil {
		return nil, err
	}

	visit, err := w.backend.CheckIn(ctx, models.CheckIn{
		OutletID:    target.ID,
		Location:    point.CoordinateString(),
		Type:        target.VisitType(),
		PlanVisitID: target.ScheduledVisitID,
		PhotoPath:   artifact.WatermarkedPath,
		PhotoName:   fmt.Sprintf("checkin-%d.jpg", artifact.CapturedAt.UnixMilli()),
	})
	if err != nil {
		w.logr.Warn("check-in failed", zap.String("outlet", target.Code), zap.Error(err))
		return nil, err
	}

	w.logr.Info("checked in",
		zap.String("outlet", target.Code),
		zap.String("type", string(target.VisitType())))
	w.Reset()
	return visit, nil
}

// SubmitCheckOut validates the report fields locally, then sends the
// multipart check-out. The transaction flag is tri-state; unset never
// reaches the network.
func (w *VisitWorkflow) SubmitCheckOut(ctx context.Context, report string, transaction models.Transaction) (*models.Visit, error) {
	w.mu.Lock()
	if w.kind != FlowCheckOut {
		w.mu.Unlock()
		return nil, &models.ValidationError{Field: "flow", Msg: "not a check-out flow"}
	}
	if w.phase != models.PhaseCapture {
		w.mu.Unlock()
		return nil, &models.ValidationError{Field: "phase", Msg: "capture phase not reached"}
	}
	visitID := w.openVisitID
	w.mu.Unlock()

	if report == "" {
		return nil, &models.ValidationError{Field: "report", Msg: "report is required"}
	}
	if transaction != models.TransactionYes && transaction != models.TransactionNo {
		return nil, &models.ValidationError{Field: "transaction", Msg: "must be YES or NO"}
	}
	artifact := w.capture.Artifact()
	if artifact == nil {
		return nil, &models.ValidationError{Field: "photo", Msg: "no captured photo"}
	}

	target := w.resolver.Selected()
	if target == nil {
		return nil, &models.ValidationError{Field: "target", Msg: "no target selected"}
	}

	point, err := w.finalPosition(ctx, target)
	if err != nil {
		return nil, err
	}

	visit, err := w.backend.CheckOut(ctx, models.CheckOut{
		VisitID:     visitID,
		Location:    point.CoordinateString(),
		Report:      report,
		Transaction: transaction,
		PhotoPath:   artifact.WatermarkedPath,
		PhotoName:   fmt.Sprintf("checkout-%d.jpg", artifact.CapturedAt.UnixMilli()),
	})
	if err != nil {
		w.logr.Warn("check-out failed", zap.String("visit", visitID), zap.Error(err))
		return nil, err
	}

	w.logr.Info("checked out", zap.String("visit", visitID))
	w.Reset()
	return visit, nil
}

// finalPosition re-reads the position at submission time and re-applies the
// fence gate against it.
func (w *VisitWorkflow) finalPosition(ctx context.Context, target *models.VisitTarget) (models.GeoPoint, error) {
	point, err := w.location.Acquire(ctx)
	if err != nil {
		return models.GeoPoint{}, err
	}

	result, err := EvaluateGeofence(&point, target)
	if err != nil {
		return models.GeoPoint{}, err
	}
	if !result.WithinRange && !target.GeofenceDisabled() {
		dist := 0.0
		if result.DistanceMeters != nil {
			dist = *result.DistanceMeters
		}
		return models.GeoPoint{}, &models.GeofenceError{DistanceMeters: dist, RadiusMeters: target.RadiusMeters}
	}
	return point, nil
}
