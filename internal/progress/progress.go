// Package progress tracks how far into a route's stop sequence the
// active trip has advanced. State is client-local and ephemeral: it is
// armed when a route is selected, reset when a trip starts, advanced only
// by an explicit driver action, and discarded when the trip stops.
package progress

import (
	"errors"
	"sync"

	"saarthi/internal/model"
)

var (
	// ErrNoActiveRoute is returned when advancing or resetting with no
	// route selected. Callers treat it as a logged no-op.
	ErrNoActiveRoute = errors.New("no active route")

	// ErrRouteHasNoStops is returned by SelectRoute for a route with an
	// empty stop list; the tracker state is left untouched.
	ErrRouteHasNoStops = errors.New("route has no stops")

	// ErrTripActive is returned when selecting a different route while a
	// trip is running. The UI disables the control; the tracker enforces
	// the invariant anyway.
	ErrTripActive = errors.New("cannot change route while a trip is active")
)

// Snapshot is a consistent read of the tracker. NextStop is nil at the
// last stop. PercentComplete is index/total and therefore never reaches
// 100% by arriving at the final stop; only the trip lifecycle reports
// completion.
type Snapshot struct {
	RouteID         int
	CurrentStop     *model.Stop
	NextStop        *model.Stop
	Index           int
	TotalStops      int
	PercentComplete float64
}

// Tracker is the route-progress state machine. Safe for concurrent use;
// each transition runs to completion before the next.
type Tracker struct {
	mu         sync.Mutex
	route      *model.Route
	stops      []model.Stop // sorted by sequence order
	index      int
	tripActive bool
}

// New returns a Tracker in the no-route state.
func New() *Tracker { return &Tracker{} }

// SelectRoute arms the tracker on a route at stop index 0. Selecting a
// different route is rejected while a trip is active; re-selecting the
// current route resets the index. Routes with no stops are rejected
// without mutating state.
func (t *Tracker) SelectRoute(r model.Route) error {
	if !r.HasStops() {
		return ErrRouteHasNoStops
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tripActive && (t.route == nil || t.route.ID != r.ID) {
		return ErrTripActive
	}
	route := r
	t.route = &route
	t.stops = r.SortedStops()
	t.index = 0
	return nil
}

// Reset returns to stop index 0 on the selected route. Called when a
// trip starts.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.route == nil {
		return ErrNoActiveRoute
	}
	t.index = 0
	return nil
}

// Advance moves to the next stop. At the last stop the index is clamped
// and complete=true is returned instead of an error. With no route
// selected it returns ErrNoActiveRoute.
func (t *Tracker) Advance() (snap Snapshot, complete bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.route == nil {
		return Snapshot{}, false, ErrNoActiveRoute
	}
	if t.index+1 < len(t.stops) {
		t.index++
	} else {
		complete = true
	}
	return t.snapshotLocked(), complete, nil
}

// SetTripActive records whether a trip is running, which locks route
// selection. Flipped by the trip lifecycle, not by UI code.
func (t *Tracker) SetTripActive(active bool) {
	t.mu.Lock()
	t.tripActive = active
	t.mu.Unlock()
}

// Clear discards all progress state, returning to no-route. Called when
// a trip stops.
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.route = nil
	t.stops = nil
	t.index = 0
	t.tripActive = false
	t.mu.Unlock()
}

// Snapshot returns the current derived view. The zero Snapshot means no
// route is selected.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.route == nil {
		return Snapshot{}
	}
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	s := Snapshot{
		RouteID:    t.route.ID,
		Index:      t.index,
		TotalStops: len(t.stops),
	}
	cur := t.stops[t.index]
	s.CurrentStop = &cur
	if t.index+1 < len(t.stops) {
		next := t.stops[t.index+1]
		s.NextStop = &next
	}
	s.PercentComplete = float64(t.index) / float64(len(t.stops))
	return s
}
