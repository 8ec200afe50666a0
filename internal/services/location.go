package services

import (
	"context"
	"sync"
	"time"

	"visitagent/internal/device"
	"visitagent/internal/models"

	"go.uber.org/zap"
)

// LocationBridge is the slice of the device bridge the location service
// needs. Tests substitute a fake.
type LocationBridge interface {
	Permission(ctx context.Context, scope models.PermissionScope) (device.PermissionState, error)
	RequestPermission(ctx context.Context, scope models.PermissionScope) (device.PermissionState, error)
	Fix(ctx context.Context) (models.GeoPoint, error)
}

// LocationService acquires position fixes and owns the shared
// current-position slot. It is the slot's single writer; the geofence
// evaluation and the submission coordinator only read it.
type LocationService struct {
	bridge     LocationBridge
	fixTimeout time.Duration
	logr       *zap.Logger

	mu      sync.RWMutex
	current *models.GeoPoint
}

func NewLocationService(bridge LocationBridge, fixTimeout time.Duration, logr *zap.Logger) *LocationService {
	return &LocationService{bridge: bridge, fixTimeout: fixTimeout, logr: logr}
}

// Acquire checks (and if needed requests) the foreground location
// permission, then takes a single balanced-accuracy fix. On success the
// shared slot is replaced atomically: readers observe the previous reading
// or the new one, never a partial write.
func (s *LocationService) Acquire(ctx context.Context) (models.GeoPoint, error) {
	state, err := s.bridge.Permission(ctx, models.PermissionLocation)
	if err != nil {
		return models.GeoPoint{}, &models.HardwareError{Scope: models.PermissionLocation, Cause: err}
	}

	if state == device.PermissionPrompt {
		state, err = s.bridge.RequestPermission(ctx, models.PermissionLocation)
		if err != nil {
			return models.GeoPoint{}, &models.HardwareError{Scope: models.PermissionLocation, Cause: err}
		}
	}

	if state != device.PermissionGranted {
		// Terminal for this call; the user can grant in settings and call
		// Acquire again.
		return models.GeoPoint{}, &models.PermissionError{Scope: models.PermissionLocation}
	}

	fixCtx, cancel := context.WithTimeout(ctx, s.fixTimeout)
	defer cancel()

	point, err := s.bridge.Fix(fixCtx)
	if err != nil {
		s.logr.Warn("gps fix failed", zap.Error(err))
		return models.GeoPoint{}, &models.HardwareError{Scope: models.PermissionLocation, Cause: err}
	}

	s.mu.Lock()
	s.current = &point
	s.mu.Unlock()

	return point, nil
}

// Current returns the latest reading, or nil before the first successful
// fix.
func (s *LocationService) Current() *models.GeoPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}
