package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"time"

	"visitagent/internal/device"
	"visitagent/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CameraBridge is the slice of the device bridge the capture pipeline needs.
type CameraBridge interface {
	Permission(ctx context.Context, scope models.PermissionScope) (device.PermissionState, error)
	RequestPermission(ctx context.Context, scope models.PermissionScope) (device.PermissionState, error)
	CameraReady(ctx context.Context) (bool, error)
	Shutter(ctx context.Context) ([]byte, error)
}

// ErrCaptureInFlight is returned when Start is invoked while a cycle is
// already running. The call has no side effects.
var ErrCaptureInFlight = errors.New("capture already in progress")

// ErrCaptureCanceled is returned when the cycle was abandoned (back
// navigation, teardown) while still running. All intermediates are removed.
var ErrCaptureCanceled = errors.New("capture canceled")

// CapturePipeline runs one capture cycle at a time:
//
//	PermissionPending → Ready → Capturing → Composing → Done | Failed
//
// Capturing takes the still and shrinks it in memory; Composing burns the
// watermark (time, location, outlet) into a flattened JPEG. The overlay is
// never visible in the shell's viewfinder, only in the final artifact. The
// raw intermediate is deleted as soon as the composite exists.
type CapturePipeline struct {
	bridge   CameraBridge
	dir      string
	maxWidth int
	quality  int
	settle   time.Duration
	logr     *zap.Logger

	mu       sync.Mutex
	state    models.CaptureState
	inFlight bool
	cycle    uint64
	artifact *models.CaptureArtifact
	lastErr  error
}

func NewCapturePipeline(bridge CameraBridge, dir string, maxWidth, quality int, settle time.Duration, logr *zap.Logger) *CapturePipeline {
	return &CapturePipeline{
		bridge:   bridge,
		dir:      dir,
		maxWidth: maxWidth,
		quality:  quality,
		settle:   settle,
		logr:     logr,
		state:    models.CapturePermissionPending,
	}
}

// Prepare moves the pipeline to Ready: camera permission granted and the
// hardware reporting ready. The shutter stays unusable until both hold.
func (p *CapturePipeline) Prepare(ctx context.Context) error {
	state, err := p.bridge.Permission(ctx, models.PermissionCamera)
	if err != nil {
		return &models.HardwareError{Scope: models.PermissionCamera, Cause: err}
	}
	if state == device.PermissionPrompt {
		state, err = p.bridge.RequestPermission(ctx, models.PermissionCamera)
		if err != nil {
			return &models.HardwareError{Scope: models.PermissionCamera, Cause: err}
		}
	}
	if state != device.PermissionGranted {
		return &models.PermissionError{Scope: models.PermissionCamera}
	}

	ready, err := p.bridge.CameraReady(ctx)
	if err != nil {
		return &models.HardwareError{Scope: models.PermissionCamera, Cause: err}
	}
	if !ready {
		return &models.HardwareError{Scope: models.PermissionCamera}
	}

	p.mu.Lock()
	if !p.inFlight {
		p.state = models.CaptureReady
	}
	p.mu.Unlock()
	return nil
}

// Start runs one full cycle and returns the finished artifact. Re-entry
// while a cycle is running returns ErrCaptureInFlight and does nothing.
func (p *CapturePipeline) Start(ctx context.Context, target models.VisitTarget, point models.GeoPoint) (*models.CaptureArtifact, error) {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return nil, ErrCaptureInFlight
	}
	if p.state != models.CaptureReady {
		p.mu.Unlock()
		return nil, fmt.Errorf("capture not ready (state %s)", p.state)
	}
	p.inFlight = true
	p.state = models.CaptureCapturing
	cycle := p.cycle
	p.mu.Unlock()

	artifact, err := p.run(ctx, target, point)

	p.mu.Lock()
	p.inFlight = false
	if p.cycle != cycle {
		// Abandoned mid-flight: drop whatever was produced.
		p.state = models.CapturePermissionPending
		p.mu.Unlock()
		if artifact != nil {
			os.Remove(artifact.WatermarkedPath)
		}
		return nil, ErrCaptureCanceled
	}
	if err != nil {
		p.state = models.CaptureFailed
		p.lastErr = err
	} else {
		p.state = models.CaptureDone
		p.artifact = artifact
		p.lastErr = nil
	}
	p.mu.Unlock()

	return artifact, err
}

func (p *CapturePipeline) run(ctx context.Context, target models.VisitTarget, point models.GeoPoint) (*models.CaptureArtifact, error) {
	id := uuid.New().String()
	capturedAt := time.Now()

	raw, err := p.bridge.Shutter(ctx)
	if err != nil {
		return nil, &models.HardwareError{Scope: models.PermissionCamera, Cause: err}
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &models.HardwareError{Scope: models.PermissionCamera, Cause: fmt.Errorf("decode capture: %w", err)}
	}

	// Shrink immediately so the in-flight payload stays small.
	small := scaleToWidth(img, p.maxWidth)

	rawPath := filepath.Join(p.dir, fmt.Sprintf("raw-%s.jpg", id))
	if err := writeJPEG(rawPath, small, p.quality); err != nil {
		return nil, &models.HardwareError{Scope: models.PermissionCamera, Cause: err}
	}
	// From here on the raw file must not outlive the cycle.
	defer os.Remove(rawPath)

	p.mu.Lock()
	p.state = models.CaptureComposing
	p.mu.Unlock()

	// Optional pause for bridges whose sensor metadata lags the frame.
	// The draw below is synchronous, so zero is a valid setting.
	if p.settle > 0 {
		select {
		case <-time.After(p.settle):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	capturedAtText := capturedAt.Format("02 Jan 2006 15:04:05")
	locationText := point.CoordinateString()

	composite := stampImage(small, []string{
		capturedAtText,
		target.Name,
		locationText,
	})

	finalPath := filepath.Join(p.dir, fmt.Sprintf("visit-%s.jpg", id))
	if err := writeJPEG(finalPath, composite, p.quality); err != nil {
		return nil, &models.HardwareError{Scope: models.PermissionCamera, Cause: err}
	}

	return &models.CaptureArtifact{
		ID:              id,
		WatermarkedPath: finalPath,
		CapturedAt:      capturedAt,
		CapturedAtText:  capturedAtText,
		LocationText:    locationText,
		TargetLabel:     target.Name,
	}, nil
}

// State reports the pipeline state and, when Failed, the error behind it.
func (p *CapturePipeline) State() (models.CaptureState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.lastErr
}

// Artifact returns the finished artifact, or nil.
func (p *CapturePipeline) Artifact() *models.CaptureArtifact {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.artifact
}

// Discard removes the current artifact file and rearms the pipeline. Called
// on back-navigation and on teardown; afterwards nothing references a temp
// file.
func (p *CapturePipeline) Discard() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cycle++
	if p.artifact != nil {
		if err := os.Remove(p.artifact.WatermarkedPath); err != nil && !os.IsNotExist(err) {
			p.logr.Warn("failed to remove capture artifact", zap.Error(err))
		}
		p.artifact = nil
	}
	p.lastErr = nil
	if !p.inFlight {
		p.state = models.CapturePermissionPending
	}
}

func writeJPEG(path string, img image.Image, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
