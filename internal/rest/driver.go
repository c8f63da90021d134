package rest

import (
	"context"
	"net/url"
	"strconv"

	"saarthi/internal/model"
)

// ActiveTrip is the backend's answer to "is this driver mid-trip". The
// fields are null/"inactive" when no trip is running, which lets a
// restarted agent resume a trip that outlived the process.
type ActiveTrip struct {
	TripID  string `json:"tripId"`
	RouteID int    `json:"routeId"`
	Status  string `json:"status"`
}

// Active reports whether the backend considers the trip running.
func (t ActiveTrip) Active() bool { return t.TripID != "" && t.Status == "active" }

// AssignedRoutes lists the routes assigned to the logged-in driver. An
// empty list is a normal answer, not an error; the caller must not
// auto-select anything from it.
func (c *Client) AssignedRoutes(ctx context.Context) ([]model.Route, error) {
	var routes []model.Route
	if err := c.get(ctx, "/driver/routes", nil, &routes); err != nil {
		return nil, err
	}
	return routes, nil
}

// ActiveTripStatus fetches the driver's current active trip, if any.
func (c *Client) ActiveTripStatus(ctx context.Context) (ActiveTrip, error) {
	var t ActiveTrip
	if err := c.get(ctx, "/driver/trip/active", nil, &t); err != nil {
		return ActiveTrip{}, err
	}
	return t, nil
}

// StartTrip asks the backend to start a trip on routeID. Rejections
// ("Driver already has an active trip", "No available bus for this
// route") come back as *APIError with the backend's message intact.
func (c *Client) StartTrip(ctx context.Context, routeID int) (string, error) {
	q := url.Values{"routeId": {strconv.Itoa(routeID)}}
	var resp struct {
		TripID  string `json:"tripId"`
		Message string `json:"message"`
	}
	if err := c.post(ctx, "/driver/trip/start", q, nil, &resp); err != nil {
		return "", err
	}
	return resp.TripID, nil
}

// StopTrip ends the given trip.
func (c *Client) StopTrip(ctx context.Context, tripID string) error {
	q := url.Values{"tripId": {tripID}}
	return c.post(ctx, "/driver/trip/stop", q, nil, nil)
}

// PushLocation delivers one position sample over REST. Fire-and-forget at
// the policy level: callers drop failures, the next sample supersedes.
func (c *Client) PushLocation(ctx context.Context, s model.PositionSample) error {
	return c.post(ctx, "/driver/location", nil, s, nil)
}

// Stats fetches the driver's lifetime totals.
func (c *Client) Stats(ctx context.Context) (model.DriverStats, error) {
	var st model.DriverStats
	if err := c.get(ctx, "/driver/stats", nil, &st); err != nil {
		return model.DriverStats{}, err
	}
	return st, nil
}

// TripHistory lists the driver's past trips, newest first.
func (c *Client) TripHistory(ctx context.Context, limit int) ([]model.Trip, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var trips []model.Trip
	if err := c.get(ctx, "/driver/trips", q, &trips); err != nil {
		return nil, err
	}
	return trips, nil
}
