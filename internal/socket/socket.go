// Package socket maintains the bidirectional channel beside REST. It is
// strictly best-effort: connect failures degrade the app to REST-only,
// reconnects are bounded, and nothing user-facing depends on it.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"saarthi/internal/metrics"
	"saarthi/internal/model"
	"saarthi/internal/session"
	"saarthi/internal/store"
)

// Reconnect policy: capped attempts with linearly increasing backoff. A
// connection must stay up for minStableUptime before a drop earns a
// fresh attempt budget; anything shorter spends one like a failed dial.
const MaxReconnectAttempts = 5

var (
	reconnectDelay  = time.Second
	minStableUptime = 30 * time.Second
	writeTimeout    = 5 * time.Second
)

// ErrNotConnected is returned by Emit while the channel is down. Callers
// treat it as a skipped best-effort delivery, not a failure.
var ErrNotConnected = errors.New("socket not connected")

// Message is one wire frame in either direction.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler observes every server event after the built-in store routing.
type Handler func(event string, data json.RawMessage)

// Channel is the WebSocket client. One per process; Connect may be called
// once per Channel.
type Channel struct {
	url    string
	sess   *session.Context
	st     *store.Store
	onEvt  Handler
	dialer *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// Option configures a Channel.
type Option func(*Channel)

// WithStore routes incoming events into the state store so screens see
// live updates without their own socket handling.
func WithStore(st *store.Store) Option {
	return func(c *Channel) { c.st = st }
}

// WithHandler adds an observer for every incoming event.
func WithHandler(h Handler) Option {
	return func(c *Channel) { c.onEvt = h }
}

// New builds a Channel against url (ws:// or wss://) using the session's
// token for authentication.
func New(url string, sess *session.Context, opts ...Option) *Channel {
	c := &Channel{
		url:    url,
		sess:   sess,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect starts the connection loop in the background and returns
// immediately; the channel may come up later or never. Without a valid
// token the call is a logged no-op.
func (c *Channel) Connect(ctx context.Context) {
	if c.sess.Token() == "" {
		log.Warn("socket connect skipped: no session token")
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.mu.Lock()
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()
	go c.run(ctx, done)
}

// Close tears the channel down. Idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	cancel := c.cancel
	conn := c.conn
	done := c.done
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}
}

// Connected reports whether the channel is currently up.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Channel) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	attempts := 0
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := c.dial(ctx)
		if err != nil {
			attempts++
			metrics.SocketReconnects.Inc()
			if attempts >= MaxReconnectAttempts {
				log.WithError(err).Warn("socket unavailable, continuing with REST only")
				return
			}
			log.WithError(err).WithField("attempt", attempts).Debug("socket connect failed")
			if !c.backoff(ctx, attempts) {
				return
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.connected = true
		c.mu.Unlock()
		log.WithField("url", c.url).Info("socket connected")
		c.joinRoom()

		up := time.Now()
		c.readPump(ctx, conn)

		c.mu.Lock()
		c.connected = false
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}
		if time.Since(up) >= minStableUptime {
			attempts = 0
		}
		attempts++
		metrics.SocketReconnects.Inc()
		if attempts >= MaxReconnectAttempts {
			log.Warn("socket unavailable, continuing with REST only")
			return
		}
		log.WithField("attempt", attempts).Debug("socket connection dropped")
		if !c.backoff(ctx, attempts) {
			return
		}
	}
}

func (c *Channel) backoff(ctx context.Context, attempts int) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(reconnectDelay * time.Duration(attempts)):
		return true
	}
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	hdr := http.Header{}
	if tok := c.sess.Token(); tok != "" {
		hdr.Set("Authorization", "Bearer "+tok)
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.url, hdr)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// joinRoom announces the role-scoped room so the backend knows where to
// route broadcasts. Re-sent on every (re)connect.
func (c *Channel) joinRoom() {
	sess, ok := c.sess.Get()
	if !ok {
		return
	}
	_ = c.Emit("join_room", map[string]any{
		"user_type": string(sess.User.Role),
		"user_id":   strconv.Itoa(sess.User.ID),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (c *Channel) readPump(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(1 << 20)
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				log.WithError(err).Debug("socket read failed")
			}
			return
		}
		metrics.SocketEvents.WithLabelValues(msg.Event).Inc()
		c.handle(msg)
	}
}

// Emit sends one event frame. Best-effort: while disconnected it returns
// ErrNotConnected and the caller moves on.
func (c *Channel) Emit(event string, data any) error {
	c.mu.Lock()
	conn := c.conn
	ok := c.connected
	c.mu.Unlock()
	if !ok || conn == nil {
		return ErrNotConnected
	}
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return err
		}
		raw = b
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	// A peer that stops reading must not stall the sample pipeline
	// behind this mutex.
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(Message{Event: event, Data: raw})
}

// EmitDriverLocation pushes one position sample over the channel.
func (c *Channel) EmitDriverLocation(s model.PositionSample) error {
	payload := map[string]any{
		"lat":       s.Latitude,
		"lng":       s.Longitude,
		"ts":        s.Timestamp.UTC().Format(time.RFC3339Nano),
		"seq":       s.Seq,
		"timestamp": s.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if s.Heading != nil {
		payload["heading"] = *s.Heading
	}
	if s.Speed != nil {
		payload["speed"] = *s.Speed
	}
	return c.Emit("driver_location_update", payload)
}

// EmitBusStatus announces a bus status change.
func (c *Channel) EmitBusStatus(busID int, status string, occupancy model.Occupancy) error {
	return c.Emit("bus_status_update", map[string]any{
		"busId":     busID,
		"status":    status,
		"occupancy": string(occupancy),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// EmitFeedback mirrors a submitted feedback over the channel.
func (c *Channel) EmitFeedback(fb model.Feedback) error {
	return c.Emit("feedback_submitted", map[string]any{
		"busId":     fb.BusID,
		"occupancy": string(fb.Occupancy),
		"comment":   fb.Comment,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Ping sends a keepalive probe.
func (c *Channel) Ping() error {
	return c.Emit("ping", map[string]any{"timestamp": time.Now().UTC().Format(time.RFC3339)})
}
