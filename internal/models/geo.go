package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// GeoPoint is a single position reading. Readings are immutable; a new
// reading replaces the previous one, no history is kept.
type GeoPoint struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  *float64  `json:"accuracy,omitempty"` // meters, if the fix reports it
	TakenAt   time.Time `json:"taken_at"`
}

// CoordinateString renders the point in the backend wire format "<lat>,<lng>"
// with no surrounding whitespace.
func (p GeoPoint) CoordinateString() string {
	return strconv.FormatFloat(p.Latitude, 'f', -1, 64) + "," +
		strconv.FormatFloat(p.Longitude, 'f', -1, 64)
}

// ParseCoordinates parses an outlet's registered "<lat>,<lng>" string.
// Anything other than exactly two comma-separated finite numbers is an error.
func ParseCoordinates(s string) (lat, lng float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("coordinate string %q: want 2 parts, got %d", s, len(parts))
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("coordinate string %q: bad latitude: %w", s, err)
	}
	lng, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("coordinate string %q: bad longitude: %w", s, err)
	}
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return 0, 0, fmt.Errorf("coordinate string %q: non-finite value", s)
	}
	return lat, lng, nil
}

// GeofenceResult is derived state: recomputed whenever the current position
// or the selected target changes, never stored.
type GeofenceResult struct {
	DistanceMeters *float64 `json:"distance_meters"` // nil while no fix exists
	WithinRange    bool     `json:"within_range"`
}
