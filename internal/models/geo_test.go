package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoordinates(t *testing.T) {
	t.Run("plain pair", func(t *testing.T) {
		lat, lng, err := ParseCoordinates("-6.200000,106.800000")
		require.NoError(t, err)
		assert.Equal(t, -6.2, lat)
		assert.Equal(t, 106.8, lng)
	})

	t.Run("tolerates inner whitespace from sloppy outlet records", func(t *testing.T) {
		lat, lng, err := ParseCoordinates("-6.2, 106.8")
		require.NoError(t, err)
		assert.Equal(t, -6.2, lat)
		assert.Equal(t, 106.8, lng)
	})

	t.Run("rejects wrong arity", func(t *testing.T) {
		for _, s := range []string{"", "-6.2", "1,2,3"} {
			_, _, err := ParseCoordinates(s)
			assert.Error(t, err, "input %q", s)
		}
	})

	t.Run("rejects non-numeric and non-finite parts", func(t *testing.T) {
		for _, s := range []string{"x,106.8", "-6.2,y", "NaN,1", "+Inf,1", ","} {
			_, _, err := ParseCoordinates(s)
			assert.Error(t, err, "input %q", s)
		}
	})
}

func TestCoordinateString(t *testing.T) {
	p := GeoPoint{Latitude: -6.2, Longitude: 106.8}
	// Wire format is "<lat>,<lng>" with no surrounding whitespace.
	assert.Equal(t, "-6.2,106.8", p.CoordinateString())
}

func TestVisitTargetVariant(t *testing.T) {
	adhoc := VisitTarget{ID: "o1"}
	assert.False(t, adhoc.Scheduled())
	assert.Equal(t, VisitExtracall, adhoc.VisitType())

	planned := VisitTarget{ID: "o1", ScheduledVisitID: "pv9"}
	assert.True(t, planned.Scheduled())
	assert.Equal(t, VisitPlanned, planned.VisitType())
}
