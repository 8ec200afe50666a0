package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"visitagent/internal/device"
	"visitagent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCRM struct {
	mu           sync.Mutex
	checkErr     error
	checkedCodes []string
	checkInErr   error
	checkIns     []models.CheckIn
	checkOutErr  error
	checkOuts    []models.CheckOut
}

func (f *fakeCRM) VisitCheck(ctx context.Context, outletCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkedCodes = append(f.checkedCodes, outletCode)
	return f.checkErr
}

func (f *fakeCRM) CheckIn(ctx context.Context, in models.CheckIn) (*models.Visit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkInErr != nil {
		return nil, f.checkInErr
	}
	f.checkIns = append(f.checkIns, in)
	return &models.Visit{ID: "v1", OutletID: in.OutletID, Type: in.Type}, nil
}

func (f *fakeCRM) CheckOut(ctx context.Context, out models.CheckOut) (*models.Visit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkOutErr != nil {
		return nil, f.checkOutErr
	}
	f.checkOuts = append(f.checkOuts, out)
	return &models.Visit{ID: out.VisitID}, nil
}

type workflowHarness struct {
	workflow *VisitWorkflow
	crm      *fakeCRM
	gps      *fakeGPS
	cam      *fakeCam
	resolver *TargetResolver
	capture  *CapturePipeline
}

// The test outlet sits at -6.2,106.8 with a 100m radius.
func newWorkflowHarness(t *testing.T) *workflowHarness {
	t.Helper()

	crm := &fakeCRM{}
	gps := &fakeGPS{perm: device.PermissionGranted}
	gps.setFix(-6.2, 106.8) // at the outlet door
	cam := &fakeCam{perm: device.PermissionGranted, ready: true, shutter: testJPEG(t, 64, 48)}

	src := &fakeSource{outlets: testOutlets}
	resolver := NewTargetResolver(src, nil, 20, time.Millisecond, zap.NewNop())
	t.Cleanup(resolver.Close)

	location := NewLocationService(gps, time.Second, zap.NewNop())
	capture := NewCapturePipeline(cam, t.TempDir(), 320, 40, 0, zap.NewNop())
	workflow := NewVisitWorkflow(crm, location, resolver, capture, zap.NewNop())

	require.NoError(t, resolver.SetMode(models.ModeAdhoc))
	waitForList(t, resolver, 2)
	require.NoError(t, resolver.Select("o1"))

	return &workflowHarness{
		workflow: workflow,
		crm:      crm,
		gps:      gps,
		cam:      cam,
		resolver: resolver,
		capture:  capture,
	}
}

func (h *workflowHarness) advanceAndCapture(t *testing.T) {
	t.Helper()
	require.NoError(t, h.workflow.Advance(context.Background()))
	require.NoError(t, h.capture.Prepare(context.Background()))
	_, err := h.capture.Start(context.Background(), *h.resolver.Selected(), *h.workflow.location.Current())
	require.NoError(t, err)
}

func TestAdvanceInsideFence(t *testing.T) {
	h := newWorkflowHarness(t)

	require.NoError(t, h.workflow.Advance(context.Background()))
	assert.Equal(t, models.PhaseCapture, h.workflow.Phase())
	assert.Equal(t, []string{"OUT-001"}, h.crm.checkedCodes, "check-in flow runs the pre-flight")
}

func TestAdvanceRefusedOutsideFence(t *testing.T) {
	h := newWorkflowHarness(t)
	h.gps.setFix(-6.20135, 106.8) // ~150m out, radius is 100m

	err := h.workflow.Advance(context.Background())
	var geoErr *models.GeofenceError
	require.ErrorAs(t, err, &geoErr)
	assert.InDelta(t, 150, geoErr.DistanceMeters, 5)
	assert.Equal(t, models.PhaseSelectTarget, h.workflow.Phase(), "phase must not advance")
}

func TestAdvanceZeroRadiusSkipsFence(t *testing.T) {
	h := newWorkflowHarness(t)
	h.gps.setFix(10, 10) // nowhere near the outlet

	src := &fakeSource{outlets: []models.VisitTarget{
		{ID: "o3", Code: "OUT-003", Name: "Toko Bebas", CoordinateString: "-6.2,106.8", RadiusMeters: 0},
	}}
	resolver := NewTargetResolver(src, nil, 20, time.Millisecond, zap.NewNop())
	t.Cleanup(resolver.Close)
	require.NoError(t, resolver.SetMode(models.ModeAdhoc))
	waitForList(t, resolver, 1)
	require.NoError(t, resolver.Select("o3"))

	location := NewLocationService(h.gps, time.Second, zap.NewNop())
	workflow := NewVisitWorkflow(h.crm, location, resolver, h.capture, zap.NewNop())

	require.NoError(t, workflow.Advance(context.Background()))
	assert.Equal(t, models.PhaseCapture, workflow.Phase())
}

func TestAdvanceBlockedByMissingCoordinates(t *testing.T) {
	h := newWorkflowHarness(t)

	src := &fakeSource{outlets: []models.VisitTarget{
		{ID: "o4", Code: "OUT-004", Name: "Toko Rusak", CoordinateString: "", RadiusMeters: 100},
	}}
	resolver := NewTargetResolver(src, nil, 20, time.Millisecond, zap.NewNop())
	t.Cleanup(resolver.Close)
	require.NoError(t, resolver.SetMode(models.ModeAdhoc))
	waitForList(t, resolver, 1)
	require.NoError(t, resolver.Select("o4"))

	location := NewLocationService(h.gps, time.Second, zap.NewNop())
	workflow := NewVisitWorkflow(h.crm, location, resolver, h.capture, zap.NewNop())

	err := workflow.Advance(context.Background())
	assert.ErrorIs(t, err, models.ErrMissingCoordinates)
	assert.Equal(t, models.PhaseSelectTarget, workflow.Phase())
}

func TestPreflightBlockStopsFlow(t *testing.T) {
	h := newWorkflowHarness(t)
	h.crm.checkErr = &models.ServerError{Code: 400, Message: "outlet already checked in today"}

	err := h.workflow.Advance(context.Background())
	var srvErr *models.ServerError
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, "outlet already checked in today", srvErr.Message, "server message must survive verbatim")

	assert.Equal(t, models.PhaseSelectTarget, h.workflow.Phase())
	assert.Equal(t, 0, h.cam.shutterCalls(), "flow stops before any capture")
}

func TestCheckInSuccessResetsWorkflow(t *testing.T) {
	h := newWorkflowHarness(t)
	h.advanceAndCapture(t)
	artifactPath := h.capture.Artifact().WatermarkedPath

	visit, err := h.workflow.SubmitCheckIn(context.Background())
	require.NoError(t, err)
	require.NotNil(t, visit)

	require.Len(t, h.crm.checkIns, 1)
	sent := h.crm.checkIns[0]
	assert.Equal(t, "o1", sent.OutletID)
	assert.Equal(t, models.VisitExtracall, sent.Type, "ad-hoc targets submit as EXTRACALL")
	assert.Equal(t, "-6.2,106.8", sent.Location)
	assert.Empty(t, sent.PlanVisitID)
	assert.Regexp(t, `^checkin-\d+\.jpg$`, sent.PhotoName)

	// Terminal success: selection and phase reset, artifact discarded.
	assert.Equal(t, models.PhaseSelectTarget, h.workflow.Phase())
	assert.Nil(t, h.resolver.Selected())
	assert.Nil(t, h.capture.Artifact())
	assert.NoFileExists(t, artifactPath)
}

func TestCheckInScheduledCarriesPlanVisit(t *testing.T) {
	h := newWorkflowHarness(t)

	planned := models.VisitTarget{
		ID: "o9", Code: "OUT-009", Name: "Toko Plan",
		CoordinateString: "-6.2,106.8", RadiusMeters: 100,
		ScheduledVisitID: "pv7",
	}
	src := &fakeSource{planVisits: []models.VisitTarget{planned}, outlets: testOutlets}
	resolver := NewTargetResolver(src, nil, 20, time.Millisecond, zap.NewNop())
	t.Cleanup(resolver.Close)
	// Resolver starts in scheduled mode; a mode round-trip loads the list.
	require.NoError(t, resolver.SetMode(models.ModeAdhoc))
	require.NoError(t, resolver.SetMode(models.ModeScheduled))
	waitForList(t, resolver, 1)
	require.NoError(t, resolver.Select("o9"))

	location := NewLocationService(h.gps, time.Second, zap.NewNop())
	workflow := NewVisitWorkflow(h.crm, location, resolver, h.capture, zap.NewNop())

	require.NoError(t, workflow.Advance(context.Background()))
	require.NoError(t, h.capture.Prepare(context.Background()))
	_, err := h.capture.Start(context.Background(), planned, *location.Current())
	require.NoError(t, err)

	_, err = workflow.SubmitCheckIn(context.Background())
	require.NoError(t, err)

	require.Len(t, h.crm.checkIns, 1)
	assert.Equal(t, models.VisitPlanned, h.crm.checkIns[0].Type)
	assert.Equal(t, "pv7", h.crm.checkIns[0].PlanVisitID)
}

func TestCheckInFailureKeepsStateForRetry(t *testing.T) {
	h := newWorkflowHarness(t)
	h.advanceAndCapture(t)
	h.crm.checkInErr = &models.NetworkError{Cause: context.DeadlineExceeded}

	_, err := h.workflow.SubmitCheckIn(context.Background())
	var netErr *models.NetworkError
	require.ErrorAs(t, err, &netErr)

	// Nothing was reset: the user retries without re-capturing.
	assert.Equal(t, models.PhaseCapture, h.workflow.Phase())
	assert.NotNil(t, h.resolver.Selected())
	require.NotNil(t, h.capture.Artifact())
	assert.FileExists(t, h.capture.Artifact().WatermarkedPath)

	// Retry succeeds once the network is back.
	h.crm.mu.Lock()
	h.crm.checkInErr = nil
	h.crm.mu.Unlock()
	_, err = h.workflow.SubmitCheckIn(context.Background())
	require.NoError(t, err)
}

func TestCheckOutTransactionTriState(t *testing.T) {
	h := newWorkflowHarness(t)
	require.NoError(t, h.workflow.Begin(FlowCheckOut, "v42"))
	h.advanceAndCapture(t)

	// Unset transaction is rejected locally; the backend never sees it.
	_, err := h.workflow.SubmitCheckOut(context.Background(), "stocked the new shelf", models.TransactionUnset)
	var valErr *models.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "transaction", valErr.Field)
	assert.Empty(t, h.crm.checkOuts)

	// Empty report likewise.
	_, err = h.workflow.SubmitCheckOut(context.Background(), "", models.TransactionYes)
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "report", valErr.Field)
	assert.Empty(t, h.crm.checkOuts)

	_, err = h.workflow.SubmitCheckOut(context.Background(), "stocked the new shelf", models.TransactionYes)
	require.NoError(t, err)
	require.Len(t, h.crm.checkOuts, 1)
	sent := h.crm.checkOuts[0]
	assert.Equal(t, "v42", sent.VisitID)
	assert.Equal(t, models.TransactionYes, sent.Transaction)
	assert.Equal(t, "-6.2,106.8", sent.Location)
	assert.Regexp(t, `^checkout-\d+\.jpg$`, sent.PhotoName)
}

func TestCheckOutSkipsPreflight(t *testing.T) {
	h := newWorkflowHarness(t)
	require.NoError(t, h.workflow.Begin(FlowCheckOut, "v42"))

	require.NoError(t, h.workflow.Advance(context.Background()))
	assert.Empty(t, h.crm.checkedCodes, "pre-flight is a check-in concern")
}

func TestBackCancelsCapture(t *testing.T) {
	h := newWorkflowHarness(t)
	h.advanceAndCapture(t)
	artifactPath := h.capture.Artifact().WatermarkedPath

	h.workflow.Back()
	assert.Equal(t, models.PhaseSelectTarget, h.workflow.Phase())
	assert.Nil(t, h.capture.Artifact())
	assert.NoFileExists(t, artifactPath)
	// Back leaves the selection alone; only mode switches and success clear it.
	assert.NotNil(t, h.resolver.Selected())
}

func TestModeSwitchClearsGeofence(t *testing.T) {
	h := newWorkflowHarness(t)

	_, err := h.workflow.location.Acquire(context.Background())
	require.NoError(t, err)
	result, err := h.workflow.Geofence()
	require.NoError(t, err)
	require.NotNil(t, result.DistanceMeters)
	assert.True(t, result.WithinRange)

	require.NoError(t, h.resolver.SetMode(models.ModeScheduled))

	result, err = h.workflow.Geofence()
	require.NoError(t, err)
	assert.Nil(t, result.DistanceMeters, "no target, no derived fence state")
	assert.False(t, result.WithinRange)
}

func TestSubmitRequiresCapturePhase(t *testing.T) {
	h := newWorkflowHarness(t)

	_, err := h.workflow.SubmitCheckIn(context.Background())
	var valErr *models.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "phase", valErr.Field)
	assert.Empty(t, h.crm.checkIns)
}
