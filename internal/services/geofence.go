package services

import (
	"math"

	"visitagent/internal/models"
)

const earthRadiusMeters = 6371000

// EvaluateGeofence derives the geofence result for the current position and
// the selected target. It is pure: the workflow recomputes it whenever
// either input changes.
//
// A target whose coordinate string is empty or unparsable returns
// ErrMissingCoordinates — a data defect distinct from being out of range;
// the caller must keep capture blocked and offer the coordinate-correction
// path instead.
func EvaluateGeofence(point *models.GeoPoint, target *models.VisitTarget) (models.GeofenceResult, error) {
	if target == nil {
		return models.GeofenceResult{}, nil
	}

	lat, lng, err := models.ParseCoordinates(target.CoordinateString)
	if err != nil {
		return models.GeofenceResult{}, models.ErrMissingCoordinates
	}

	if point == nil {
		// No fix yet: a known-good outlet, but nothing to measure against.
		return models.GeofenceResult{DistanceMeters: nil, WithinRange: false}, nil
	}

	dist := haversine(point.Latitude, point.Longitude, lat, lng)

	within := target.GeofenceDisabled() || dist <= target.RadiusMeters
	return models.GeofenceResult{DistanceMeters: &dist, WithinRange: within}, nil
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
