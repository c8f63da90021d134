package store

import "saarthi/internal/model"

// Named mutations, one per state transition the app performs.

// SetSession records a logged-in user.
func (s *Store) SetSession(user model.User) {
	s.mutate("auth", "setSession", func(st *State) {
		u := user
		st.Auth.User = &u
		st.Auth.LoggedIn = true
		st.Auth.Err = ""
		st.Auth.Loading = false
	})
}

// ClearSession drops the auth slice to logged-out, optionally with a
// reason shown to the user (forced logout).
func (s *Store) ClearSession(reason string) {
	s.mutate("auth", "clearSession", func(st *State) {
		st.Auth.User = nil
		st.Auth.LoggedIn = false
		st.Auth.Err = reason
		st.Auth.Loading = false
	})
}

// SetAuthLoading flags an auth call in flight.
func (s *Store) SetAuthLoading(v bool) {
	s.mutate("auth", "setLoading", func(st *State) { st.Auth.Loading = v })
}

// SetAuthError records an auth failure for the login screen.
func (s *Store) SetAuthError(msg string) {
	s.mutate("auth", "setError", func(st *State) {
		st.Auth.Err = msg
		st.Auth.Loading = false
	})
}

// SetBuses replaces the fleet cache.
func (s *Store) SetBuses(buses []model.Bus) {
	s.mutate("bus", "setBuses", func(st *State) {
		st.Bus.Buses = append([]model.Bus(nil), buses...)
		st.Bus.Loading = false
		st.Bus.Err = ""
	})
}

// UpdateBus merges one bus into the cache by ID, appending when unknown.
// Location fields are overwritten wholesale: latest value wins.
func (s *Store) UpdateBus(bus model.Bus) {
	s.mutate("bus", "updateBus", func(st *State) {
		for i := range st.Bus.Buses {
			if st.Bus.Buses[i].ID == bus.ID {
				st.Bus.Buses[i] = bus
				return
			}
		}
		st.Bus.Buses = append(st.Bus.Buses, bus)
	})
}

// SetRoutes replaces the route cache.
func (s *Store) SetRoutes(routes []model.Route) {
	s.mutate("bus", "setRoutes", func(st *State) {
		st.Bus.Routes = append([]model.Route(nil), routes...)
		st.Bus.Loading = false
		st.Bus.Err = ""
	})
}

// SelectRoute records the driver's chosen route; nil clears the choice.
func (s *Store) SelectRoute(route *model.Route) {
	s.mutate("bus", "selectRoute", func(st *State) {
		if route == nil {
			st.Bus.SelectedRoute = nil
			return
		}
		r := *route
		st.Bus.SelectedRoute = &r
	})
}

// SelectBus records the bus of interest; nil clears the choice.
func (s *Store) SelectBus(bus *model.Bus) {
	s.mutate("bus", "selectBus", func(st *State) {
		if bus == nil {
			st.Bus.SelectedBus = nil
			return
		}
		b := *bus
		st.Bus.SelectedBus = &b
	})
}

// SetBusLoading flags a fleet fetch in flight.
func (s *Store) SetBusLoading(v bool) {
	s.mutate("bus", "setLoading", func(st *State) { st.Bus.Loading = v })
}

// SetBusError records a fleet/route load failure for the error panel.
func (s *Store) SetBusError(msg string) {
	s.mutate("bus", "setError", func(st *State) {
		st.Bus.Err = msg
		st.Bus.Loading = false
	})
}

// SetCurrentLocation overwrites the last known device position.
func (s *Store) SetCurrentLocation(p model.PositionSample) {
	s.mutate("location", "setCurrentLocation", func(st *State) {
		cp := p
		st.Location.Current = &cp
	})
}

// SetTracking flips the tracking flag.
func (s *Store) SetTracking(v bool) {
	s.mutate("location", "setTracking", func(st *State) { st.Location.Tracking = v })
}

// SetPermissionGranted records the location permission answer.
func (s *Store) SetPermissionGranted(v bool) {
	s.mutate("location", "setPermissionGranted", func(st *State) { st.Location.PermissionGranted = v })
}

// SetLocationError records a tracking failure, shown once.
func (s *Store) SetLocationError(msg string) {
	s.mutate("location", "setError", func(st *State) { st.Location.Err = msg })
}

// SetActiveTrip records the running trip.
func (s *Store) SetActiveTrip(t model.Trip) {
	s.mutate("trip", "setActiveTrip", func(st *State) {
		cp := t
		st.Trip.Active = &cp
		st.Trip.Loading = false
		st.Trip.Err = ""
	})
}

// ClearActiveTrip drops the trip slice to idle.
func (s *Store) ClearActiveTrip() {
	s.mutate("trip", "clearActiveTrip", func(st *State) {
		st.Trip.Active = nil
		st.Trip.Loading = false
	})
}

// SetTripLoading flags a trip command in flight.
func (s *Store) SetTripLoading(v bool) {
	s.mutate("trip", "setLoading", func(st *State) { st.Trip.Loading = v })
}

// SetTripError records a trip command failure, surfaced to the driver.
func (s *Store) SetTripError(msg string) {
	s.mutate("trip", "setError", func(st *State) {
		st.Trip.Err = msg
		st.Trip.Loading = false
	})
}
