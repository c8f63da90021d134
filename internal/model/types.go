// Package model holds the client-side views of the backend's domain
// entities. Everything here except PositionSample is a cached, possibly
// stale copy of server-owned state.
package model

import (
	"sort"
	"time"
)

// Role is a user role as issued by the backend.
type Role string

const (
	RoleDriver    Role = "driver"
	RoleCommuter  Role = "commuter"
	RoleAuthority Role = "authority"
)

// User is the authenticated identity attached to a session.
type User struct {
	ID       int    `json:"id"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Name     string `json:"name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	IsActive bool   `json:"is_active"`
}

// Stop is a fixed geographic point on a route. Ordering within a route is
// by SequenceOrder, which is unique but not guaranteed contiguous.
type Stop struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	SequenceOrder int     `json:"sequence_order"`
}

// Route is an ordered sequence of stops a bus travels.
type Route struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
	Stops       []Stop `json:"stops"`
}

// SortedStops returns the route's stops in ascending sequence order. The
// backend does not promise any particular wire order, so every consumer
// must go through this instead of reading Stops directly.
func (r Route) SortedStops() []Stop {
	out := make([]Stop, len(r.Stops))
	copy(out, r.Stops)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SequenceOrder < out[j].SequenceOrder
	})
	return out
}

// HasStops reports whether the route can be driven at all. A route with
// zero stops cannot be selected or started as a trip.
func (r Route) HasStops() bool { return len(r.Stops) > 0 }

// Occupancy is a commuter-reported crowding level.
type Occupancy string

const (
	OccupancyLow    Occupancy = "low"
	OccupancyMedium Occupancy = "medium"
	OccupancyHigh   Occupancy = "high"
)

// Bus is one vehicle in the fleet. Location fields hold the most recent
// accepted position sample and may be nil before the first update.
type Bus struct {
	ID        int       `json:"id"`
	Number    string    `json:"bus_number"`
	RouteID   *int      `json:"route_id"`
	IsActive  bool      `json:"is_active"`
	Latitude  *float64  `json:"current_latitude,omitempty"`
	Longitude *float64  `json:"current_longitude,omitempty"`
	Speed     float64   `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Occupancy Occupancy `json:"occupancy,omitempty"`
}

// TripStatus enumerates the backend's trip states.
type TripStatus string

const (
	TripStatusScheduled TripStatus = "scheduled"
	TripStatusActive    TripStatus = "active"
	TripStatusCompleted TripStatus = "completed"
	TripStatusCancelled TripStatus = "cancelled"
)

// Trip is one execution instance of a route by a bus/driver. The ID is
// assigned by the backend; a driver has at most one active trip.
type Trip struct {
	ID        string     `json:"trip_id"`
	DriverID  int        `json:"driver_id,omitempty"`
	BusID     int        `json:"bus_id,omitempty"`
	RouteID   int        `json:"route_id"`
	Status    TripStatus `json:"status"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Distance  float64    `json:"distance_traveled,omitempty"`
}

// PositionSample is one GPS reading. Transient: nothing keeps more than
// the latest sample per bus/driver. Seq is a monotonic per-device counter
// stamped by the dispatcher so the backend can discard out-of-order
// arrivals across delivery channels.
type PositionSample struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Heading   *float64  `json:"heading,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Seq       uint64    `json:"seq,omitempty"`
}

// Analytics is the authority dashboard's aggregate view.
type Analytics struct {
	TotalTrips     int     `json:"totalTrips"`
	ActiveTrips    int     `json:"activeTrips"`
	TotalBuses     int     `json:"totalBuses"`
	ActiveBuses    int     `json:"activeBuses"`
	TotalFeedbacks int     `json:"totalFeedbacks"`
	AverageSpeed   float64 `json:"averageSpeed"`
	OnTimeRate     float64 `json:"onTimeRate"`
}

// DriverStats is the driver's lifetime summary.
type DriverStats struct {
	TotalTrips int     `json:"totalTrips"`
	KmDriven   float64 `json:"kmDriven"`
	Passengers int     `json:"passengers"`
}

// Feedback is a commuter occupancy report for a bus.
type Feedback struct {
	BusID     int       `json:"busId"`
	Occupancy Occupancy `json:"occupancy"`
	Comment   string    `json:"comment,omitempty"`
}

// ETA is the backend's arrival estimate for a bus at a stop. The backend
// returns it as display text, not a duration.
type ETA struct {
	ETA string `json:"eta"`
}
