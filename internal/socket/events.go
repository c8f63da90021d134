package socket

import (
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"saarthi/internal/model"
)

// Server-to-client event names.
const (
	EventServerConnected = "server:connected"
	EventRoomJoined      = "room_joined"
	EventBusLocation     = "bus:location"
	EventBusStatus       = "bus:status"
	EventDriverLocation  = "driver:location"
	EventETAUpdate       = "eta:update"
	EventFeedbackNew     = "feedback:new"
	EventError           = "error"
	EventPong            = "pong"
)

// locationEvent covers both field spellings the backend broadcasts.
type locationEvent struct {
	BusID     int      `json:"busId"`
	RouteID   int      `json:"routeId"`
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Heading   *float64 `json:"heading"`
	Speed     *float64 `json:"speed"`
	TS        string   `json:"ts"`
}

func (e locationEvent) coords() (float64, float64) {
	lat, lng := e.Lat, e.Lng
	if lat == 0 && lng == 0 {
		lat, lng = e.Latitude, e.Longitude
	}
	return lat, lng
}

// handle routes one server event into the store, dispatching by the
// logged-in role, then hands it to the observer.
func (c *Channel) handle(msg Message) {
	if c.st != nil {
		c.apply(msg)
	}
	if c.onEvt != nil {
		c.onEvt(msg.Event, msg.Data)
	}
}

func (c *Channel) apply(msg Message) {
	sess, ok := c.sess.Get()
	if !ok {
		return
	}
	role := sess.User.Role

	switch msg.Event {
	case EventServerConnected, EventRoomJoined, EventPong, EventETAUpdate, EventFeedbackNew:
		// Informational; nothing in the store tracks these.

	case EventBusStatus:
		var bus model.Bus
		if err := json.Unmarshal(msg.Data, &bus); err != nil {
			log.WithError(err).Debug("bad bus:status payload")
			return
		}
		c.st.UpdateBus(bus)

	case EventBusLocation:
		if role != model.RoleCommuter {
			return
		}
		c.applyBusLocation(msg.Data)

	case EventDriverLocation:
		var evt locationEvent
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			log.WithError(err).Debug("bad driver:location payload")
			return
		}
		switch role {
		case model.RoleDriver:
			lat, lng := evt.coords()
			sample := model.PositionSample{
				Latitude:  lat,
				Longitude: lng,
				Heading:   evt.Heading,
				Speed:     evt.Speed,
				Timestamp: parseTS(evt.TS),
			}
			c.st.SetCurrentLocation(sample)
		case model.RoleCommuter:
			c.applyBusLocation(msg.Data)
		}

	case EventError:
		var payload struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(msg.Data, &payload)
		if payload.Message == "" {
			payload.Message = "socket error"
		}
		c.st.SetBusError(payload.Message)
	}
}

// applyBusLocation moves the matching cached bus to the broadcast
// position. Matches by bus ID first, then by route, the same lookup the
// commuter screen performs.
func (c *Channel) applyBusLocation(data json.RawMessage) {
	var evt locationEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		log.WithError(err).Debug("bad bus:location payload")
		return
	}
	lat, lng := evt.coords()
	for _, bus := range c.st.Snapshot().Bus.Buses {
		if bus.ID == evt.BusID || (evt.RouteID != 0 && bus.RouteID != nil && *bus.RouteID == evt.RouteID) {
			bus.Latitude = &lat
			bus.Longitude = &lng
			if evt.Heading != nil {
				bus.Heading = evt.Heading
			}
			if evt.Speed != nil {
				bus.Speed = *evt.Speed
			}
			c.st.UpdateBus(bus)
			return
		}
	}
}

func parseTS(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Now()
}
