package sampler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saarthi/internal/model"
)

func simRoute() model.Route {
	return model.Route{
		ID:   7,
		Name: "majestic loop",
		Stops: []model.Stop{
			{ID: 1, SequenceOrder: 1, Latitude: 12.9700, Longitude: 77.5900},
			{ID: 2, SequenceOrder: 2, Latitude: 12.9800, Longitude: 77.5900},
			{ID: 3, SequenceOrder: 3, Latitude: 12.9800, Longitude: 77.6000},
		},
	}
}

func TestNewSimSourceRejectsEmptyRoute(t *testing.T) {
	_, err := NewSimSource(model.Route{ID: 1}, time.Millisecond, 30)
	assert.ErrorIs(t, err, ErrEmptyRoute)
}

func TestSimSourceStartsAtFirstStop(t *testing.T) {
	src, err := NewSimSource(simRoute(), time.Millisecond, 30)
	require.NoError(t, err)

	s, err := src.Next(context.Background())
	require.NoError(t, err)

	// One tick at 30km/h moves a few millimeters, so the first reading is
	// effectively the first stop.
	assert.InDelta(t, 12.97, s.Latitude, 0.001)
	assert.InDelta(t, 77.59, s.Longitude, 0.001)
	require.NotNil(t, s.Speed)
	assert.GreaterOrEqual(t, *s.Speed, 10.0)
	assert.LessOrEqual(t, *s.Speed, 60.0)
	require.NotNil(t, s.Heading)
	assert.GreaterOrEqual(t, *s.Heading, 0.0)
	assert.Less(t, *s.Heading, 360.0)
	assert.False(t, s.Timestamp.IsZero())
}

func TestSimSourceProgressesAlongRoute(t *testing.T) {
	src, err := NewSimSource(simRoute(), time.Millisecond, 30)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := src.Next(ctx)
	require.NoError(t, err)

	var last model.PositionSample
	for i := 0; i < 50; i++ {
		last, err = src.Next(ctx)
		require.NoError(t, err)
	}

	// Movement is northbound toward the second stop.
	assert.Greater(t, last.Latitude, first.Latitude)
}

func TestSimSourceHoldsAtRouteEnd(t *testing.T) {
	// A tiny route driven fast runs out quickly.
	route := model.Route{
		ID: 8,
		Stops: []model.Stop{
			{ID: 1, SequenceOrder: 1, Latitude: 12.9700, Longitude: 77.5900},
			{ID: 2, SequenceOrder: 2, Latitude: 12.9701, Longitude: 77.5900},
		},
	}
	src, err := NewSimSource(route, time.Millisecond, 60)
	require.NoError(t, err)
	ctx := context.Background()

	var s model.PositionSample
	for i := 0; i < 1500; i++ {
		s, err = src.Next(ctx)
		require.NoError(t, err)
	}
	assert.InDelta(t, 12.9701, s.Latitude, 1e-6)
	assert.InDelta(t, 77.5900, s.Longitude, 1e-6)
}

func TestSimSourceRespectsContext(t *testing.T) {
	src, err := NewSimSource(simRoute(), time.Hour, 30)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
