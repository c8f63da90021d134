// Package store is the client's single source of truth for session,
// fleet, and tracking state. Every mutation is a named method over one
// slice; cross-slice effects belong to the trip lifecycle, not here.
// Mutations are serialized: each runs to completion before the next.
package store

import (
	"sync"

	"saarthi/internal/metrics"
	"saarthi/internal/model"
)

// AuthState mirrors the session for view code. The token itself lives in
// the session context; this slice only says who is logged in. Auth is the
// only state that survives process restarts, via the session file.
type AuthState struct {
	User     *model.User
	LoggedIn bool
	Loading  bool
	Err      string
}

// BusState holds the fleet and route caches plus the driver's selection.
type BusState struct {
	Buses         []model.Bus
	Routes        []model.Route
	SelectedBus   *model.Bus
	SelectedRoute *model.Route
	Loading       bool
	Err           string
}

// LocationState holds the device's most recent accepted position and the
// tracking/permission flags.
type LocationState struct {
	Current           *model.PositionSample
	Tracking          bool
	PermissionGranted bool
	Err               string
}

// TripState holds the active trip record, if any.
type TripState struct {
	Active  *model.Trip
	Loading bool
	Err     string
}

// State is a full snapshot. Slices inside are copies; mutating a
// snapshot does not touch the store.
type State struct {
	Auth     AuthState
	Bus      BusState
	Location LocationState
	Trip     TripState
}

// Change identifies a mutation to subscribers.
type Change struct {
	Slice  string
	Action string
}

// Store holds the state and fans out change notifications. Subscribers
// with full channels miss notifications rather than blocking mutations.
type Store struct {
	mu    sync.RWMutex
	state State
	subs  map[chan Change]struct{}
}

// New returns an empty Store.
func New() *Store {
	return &Store{subs: map[chan Change]struct{}{}}
}

// Snapshot returns a copy of the full state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneState(s.state)
}

// Subscribe returns a channel receiving one Change per mutation.
func (s *Store) Subscribe() chan Change {
	ch := make(chan Change, 16)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (s *Store) Unsubscribe(ch chan Change) {
	s.mu.Lock()
	if _, ok := s.subs[ch]; ok {
		delete(s.subs, ch)
		close(ch)
	}
	s.mu.Unlock()
}

// mutate runs fn under the write lock, then notifies subscribers. The
// sends stay under the lock so an Unsubscribe cannot close a channel
// between the snapshot and the send; they are non-blocking, so holding
// the lock here never stalls on a slow subscriber.
func (s *Store) mutate(slice, action string, fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	evt := Change{Slice: slice, Action: action}
	for ch := range s.subs {
		select {
		case ch <- evt:
		default:
		}
	}
	s.mu.Unlock()

	metrics.StoreMutations.WithLabelValues(slice, action).Inc()
}

func cloneState(in State) State {
	out := in
	out.Bus.Buses = append([]model.Bus(nil), in.Bus.Buses...)
	out.Bus.Routes = append([]model.Route(nil), in.Bus.Routes...)
	if in.Auth.User != nil {
		u := *in.Auth.User
		out.Auth.User = &u
	}
	if in.Bus.SelectedBus != nil {
		b := *in.Bus.SelectedBus
		out.Bus.SelectedBus = &b
	}
	if in.Bus.SelectedRoute != nil {
		r := *in.Bus.SelectedRoute
		out.Bus.SelectedRoute = &r
	}
	if in.Location.Current != nil {
		p := *in.Location.Current
		out.Location.Current = &p
	}
	if in.Trip.Active != nil {
		t := *in.Trip.Active
		out.Trip.Active = &t
	}
	return out
}
