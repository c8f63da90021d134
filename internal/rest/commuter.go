package rest

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"saarthi/internal/model"
)

// NearbyBuses lists active buses within radius meters of a point.
func (c *Client) NearbyBuses(ctx context.Context, lat, lng, radius float64) ([]model.Bus, error) {
	q := url.Values{
		"lat":    {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lng":    {strconv.FormatFloat(lng, 'f', -1, 64)},
		"radius": {strconv.FormatFloat(radius, 'f', -1, 64)},
	}
	var buses []model.Bus
	if err := c.get(ctx, "/commuter/buses/nearby", q, &buses); err != nil {
		return nil, err
	}
	return buses, nil
}

// BusETA fetches the arrival estimate for a bus at a stop.
func (c *Client) BusETA(ctx context.Context, busID, stopID int) (model.ETA, error) {
	var eta model.ETA
	path := fmt.Sprintf("/commuter/bus/%d/eta/%d", busID, stopID)
	if err := c.get(ctx, path, nil, &eta); err != nil {
		return model.ETA{}, err
	}
	return eta, nil
}

// SubmitFeedback reports bus occupancy, optionally with a comment.
func (c *Client) SubmitFeedback(ctx context.Context, fb model.Feedback) error {
	return c.post(ctx, "/commuter/feedback", nil, fb, nil)
}
