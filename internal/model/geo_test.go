package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineMeters(t *testing.T) {
	// One degree of latitude is about 111.2km.
	d := HaversineMeters(12.0, 77.0, 13.0, 77.0)
	assert.InDelta(t, 111200, d, 400)

	assert.Zero(t, HaversineMeters(12.97, 77.59, 12.97, 77.59))
}

func TestInterpolate(t *testing.T) {
	lat, lng := Interpolate(10, 70, 20, 80, 0.5)
	assert.InDelta(t, 15, lat, 1e-9)
	assert.InDelta(t, 75, lng, 1e-9)

	// t is clamped to [0,1].
	lat, lng = Interpolate(10, 70, 20, 80, -1)
	assert.Equal(t, 10.0, lat)
	assert.Equal(t, 70.0, lng)
	lat, lng = Interpolate(10, 70, 20, 80, 2)
	assert.Equal(t, 20.0, lat)
	assert.Equal(t, 80.0, lng)
}

func TestSortedStopsDoesNotMutateRoute(t *testing.T) {
	r := Route{Stops: []Stop{
		{ID: 3, SequenceOrder: 3},
		{ID: 1, SequenceOrder: 1},
		{ID: 2, SequenceOrder: 2},
	}}
	sorted := r.SortedStops()
	assert.Equal(t, 1, sorted[0].SequenceOrder)
	assert.Equal(t, 3, sorted[2].SequenceOrder)
	assert.Equal(t, 3, r.Stops[0].SequenceOrder, "source slice must stay untouched")
}
