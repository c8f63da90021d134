package rest

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"saarthi/internal/model"
)

// Fleet and route management for the authority surface. These mirror the
// admin dashboard's API layer; edits are last-write-wins with no
// client-side conflict detection.

// BusCreate is the body for registering a bus.
type BusCreate struct {
	Number  string `json:"bus_number"`
	RouteID *int   `json:"route_id,omitempty"`
}

// BusPatch updates a bus. Nil fields are left untouched.
type BusPatch struct {
	RouteID  *int  `json:"route_id,omitempty"`
	IsActive *bool `json:"is_active,omitempty"`
}

// RouteCreate is the body for creating a route.
type RouteCreate struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// RoutePatch updates a route. Nil fields are left untouched.
type RoutePatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// StopCreate is the body for adding a stop to a route.
type StopCreate struct {
	RouteID       int     `json:"route_id"`
	Name          string  `json:"name"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	SequenceOrder int     `json:"sequence_order"`
}

// StopPatch updates a stop. Nil fields are left untouched.
type StopPatch struct {
	Name          *string  `json:"name,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	SequenceOrder *int     `json:"sequence_order,omitempty"`
}

// UserCreate is the body for provisioning a user.
type UserCreate struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
	Name     string     `json:"name,omitempty"`
	Phone    string     `json:"phone,omitempty"`
}

// UserPatch updates a user. Nil fields are left untouched.
type UserPatch struct {
	Role     *model.Role `json:"role,omitempty"`
	Name     *string     `json:"name,omitempty"`
	Phone    *string     `json:"phone,omitempty"`
	IsActive *bool       `json:"is_active,omitempty"`
}

// Analytics fetches the authority dashboard aggregates.
func (c *Client) Analytics(ctx context.Context) (model.Analytics, error) {
	var a model.Analytics
	if err := c.get(ctx, "/authority/analytics", nil, &a); err != nil {
		return model.Analytics{}, err
	}
	return a, nil
}

// ListBuses lists the whole fleet.
func (c *Client) ListBuses(ctx context.Context) ([]model.Bus, error) {
	var buses []model.Bus
	if err := c.get(ctx, "/authority/buses/all", nil, &buses); err != nil {
		return nil, err
	}
	return buses, nil
}

// CreateBus registers a bus.
func (c *Client) CreateBus(ctx context.Context, in BusCreate) (model.Bus, error) {
	var bus model.Bus
	if err := c.post(ctx, "/authority/buses", nil, in, &bus); err != nil {
		return model.Bus{}, err
	}
	return bus, nil
}

// UpdateBus patches a bus.
func (c *Client) UpdateBus(ctx context.Context, id int, in BusPatch) (model.Bus, error) {
	var bus model.Bus
	if err := c.patch(ctx, fmt.Sprintf("/authority/buses/%d", id), in, &bus); err != nil {
		return model.Bus{}, err
	}
	return bus, nil
}

// ListRoutes lists all routes with their stops.
func (c *Client) ListRoutes(ctx context.Context) ([]model.Route, error) {
	var routes []model.Route
	if err := c.get(ctx, "/authority/routes/all", nil, &routes); err != nil {
		return nil, err
	}
	return routes, nil
}

// CreateRoute creates a route (initially with no stops).
func (c *Client) CreateRoute(ctx context.Context, in RouteCreate) (model.Route, error) {
	var route model.Route
	if err := c.post(ctx, "/authority/routes", nil, in, &route); err != nil {
		return model.Route{}, err
	}
	return route, nil
}

// UpdateRoute patches a route.
func (c *Client) UpdateRoute(ctx context.Context, id int, in RoutePatch) (model.Route, error) {
	var route model.Route
	if err := c.patch(ctx, fmt.Sprintf("/authority/routes/%d", id), in, &route); err != nil {
		return model.Route{}, err
	}
	return route, nil
}

// CreateStop adds a stop to a route.
func (c *Client) CreateStop(ctx context.Context, in StopCreate) (model.Stop, error) {
	var stop model.Stop
	if err := c.post(ctx, "/authority/stops", nil, in, &stop); err != nil {
		return model.Stop{}, err
	}
	return stop, nil
}

// UpdateStop patches a stop.
func (c *Client) UpdateStop(ctx context.Context, id int, in StopPatch) (model.Stop, error) {
	var stop model.Stop
	if err := c.patch(ctx, fmt.Sprintf("/authority/stops/%d", id), in, &stop); err != nil {
		return model.Stop{}, err
	}
	return stop, nil
}

// ListUsers lists all accounts.
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.get(ctx, "/authority/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser provisions an account.
func (c *Client) CreateUser(ctx context.Context, in UserCreate) (model.User, error) {
	var user model.User
	if err := c.post(ctx, "/authority/users", nil, in, &user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

// UpdateUser patches an account.
func (c *Client) UpdateUser(ctx context.Context, id int, in UserPatch) (model.User, error) {
	var user model.User
	if err := c.patch(ctx, fmt.Sprintf("/authority/users/%d", id), in, &user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

// DeleteUser removes an account.
func (c *Client) DeleteUser(ctx context.Context, id int) error {
	return c.delete(ctx, fmt.Sprintf("/authority/users/%d", id))
}

// DriverRoutes lists the routes assigned to a driver.
func (c *Client) DriverRoutes(ctx context.Context, driverID int) ([]model.Route, error) {
	var routes []model.Route
	if err := c.get(ctx, fmt.Sprintf("/authority/drivers/%d/routes", driverID), nil, &routes); err != nil {
		return nil, err
	}
	return routes, nil
}

// SetDriverRoutes replaces a driver's route assignments wholesale.
func (c *Client) SetDriverRoutes(ctx context.Context, driverID int, routeIDs []int) error {
	body := struct {
		RouteIDs []int `json:"route_ids"`
	}{RouteIDs: routeIDs}
	return c.put(ctx, fmt.Sprintf("/authority/drivers/%d/routes", driverID), body, nil)
}

// Trips lists trips, optionally filtered to one driver.
func (c *Client) Trips(ctx context.Context, driverID int) ([]model.Trip, error) {
	q := url.Values{}
	if driverID > 0 {
		q.Set("driverId", strconv.Itoa(driverID))
	}
	var trips []model.Trip
	if err := c.get(ctx, "/authority/trips", q, &trips); err != nil {
		return nil, err
	}
	return trips, nil
}

// DeleteTrip removes a trip record.
func (c *Client) DeleteTrip(ctx context.Context, id string) error {
	return c.delete(ctx, "/authority/trips/"+url.PathEscape(id))
}
