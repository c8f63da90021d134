package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saarthi/internal/model"
	"saarthi/internal/session"
	"saarthi/internal/store"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func driverSession(t *testing.T) *session.Context {
	t.Helper()
	sess := session.Open(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, sess.Set(session.Session{
		User:  model.User{ID: 4, Email: "d@x.in", Role: model.RoleDriver},
		Token: "tok-ws",
	}))
	return sess
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestConnectJoinsRoleRoom(t *testing.T) {
	type joined struct {
		UserType string `json:"user_type"`
		UserID   string `json:"user_id"`
	}
	got := make(chan joined, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-ws", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer func() { _ = conn.Close() }()

		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		require.Equal(t, "join_room", msg.Event)
		var j joined
		require.NoError(t, json.Unmarshal(msg.Data, &j))
		got <- j

		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := New(wsURL(srv), driverSession(t))
	c.Connect(context.Background())
	defer c.Close()

	select {
	case j := <-got:
		assert.Equal(t, "driver", j.UserType)
		assert.Equal(t, "4", j.UserID)
	case <-time.After(3 * time.Second):
		t.Fatal("no join_room frame received")
	}
	waitFor(t, c.Connected, "channel never reported connected")
}

func TestConnectWithoutTokenIsNoOp(t *testing.T) {
	sess := session.Open(filepath.Join(t.TempDir(), "session.json"))
	c := New("ws://localhost:1", sess)
	c.Connect(context.Background())
	c.Close()
	assert.False(t, c.Connected())
}

func TestReconnectGivesUpAfterBoundedAttempts(t *testing.T) {
	old := reconnectDelay
	reconnectDelay = time.Millisecond
	defer func() { reconnectDelay = old }()

	var dials atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		http.Error(w, "no websocket here", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(wsURL(srv), driverSession(t))
	c.Connect(context.Background())
	defer c.Close()

	waitFor(t, func() bool { return dials.Load() >= MaxReconnectAttempts },
		"expected the channel to keep retrying up to the cap")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(MaxReconnectAttempts), dials.Load(), "retries must stop at the cap")
	assert.False(t, c.Connected())
}

func TestDroppedConnectionsSpendAttemptBudget(t *testing.T) {
	old := reconnectDelay
	reconnectDelay = time.Millisecond
	defer func() { reconnectDelay = old }()

	// Accept the handshake, then drop the connection immediately. Each
	// short-lived connection must cost an attempt, not reset the budget.
	var dials atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		_ = conn.Close()
	}))
	defer srv.Close()

	c := New(wsURL(srv), driverSession(t))
	c.Connect(context.Background())
	defer c.Close()

	waitFor(t, func() bool { return dials.Load() >= MaxReconnectAttempts },
		"expected the channel to retry up to the cap")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(MaxReconnectAttempts), dials.Load(), "redials must stop at the cap")
	assert.False(t, c.Connected())
}

func TestEmitTimesOutWhenPeerStopsReading(t *testing.T) {
	old := writeTimeout
	writeTimeout = 100 * time.Millisecond
	defer func() { writeTimeout = old }()

	hold := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer func() { _ = conn.Close() }()

		var msg Message
		require.NoError(t, conn.ReadJSON(&msg)) // join_room
		<-hold
	}))
	defer srv.Close()
	defer close(hold)

	c := New(wsURL(srv), driverSession(t))
	c.Connect(context.Background())
	defer c.Close()
	waitFor(t, c.Connected, "channel never came up")

	// The server holds the connection but never reads again; once the
	// buffers fill, Emit must fail on the deadline instead of hanging.
	blob := strings.Repeat("x", 1<<20)
	var err error
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if err = c.Emit("driver_location_update", map[string]any{"blob": blob}); err != nil {
			break
		}
	}
	require.Error(t, err, "emits to a stalled peer must eventually fail")
	assert.NotErrorIs(t, err, ErrNotConnected)
}

func TestDriverLocationEventUpdatesStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer func() { _ = conn.Close() }()

		var msg Message
		require.NoError(t, conn.ReadJSON(&msg)) // join_room

		data, _ := json.Marshal(map[string]any{
			"lat": 12.97, "lng": 77.59, "ts": time.Now().UTC().Format(time.RFC3339Nano),
		})
		require.NoError(t, conn.WriteJSON(Message{Event: EventDriverLocation, Data: data}))

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	st := store.New()
	c := New(wsURL(srv), driverSession(t), WithStore(st))
	c.Connect(context.Background())
	defer c.Close()

	waitFor(t, func() bool { return st.Snapshot().Location.Current != nil },
		"driver:location never reached the store")
	cur := st.Snapshot().Location.Current
	assert.Equal(t, 12.97, cur.Latitude)
	assert.Equal(t, 77.59, cur.Longitude)
}

func TestBusLocationEventMatchesCachedBusForCommuter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer func() { _ = conn.Close() }()

		var msg Message
		require.NoError(t, conn.ReadJSON(&msg)) // join_room

		data, _ := json.Marshal(map[string]any{"busId": 2, "latitude": 13.0, "longitude": 77.6})
		require.NoError(t, conn.WriteJSON(Message{Event: EventBusLocation, Data: data}))

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	sess := session.Open(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, sess.Set(session.Session{
		User:  model.User{ID: 9, Role: model.RoleCommuter},
		Token: "tok-c",
	}))

	st := store.New()
	st.SetBuses([]model.Bus{{ID: 1, Number: "KA-01"}, {ID: 2, Number: "KA-02"}})

	c := New(wsURL(srv), sess, WithStore(st))
	c.Connect(context.Background())
	defer c.Close()

	waitFor(t, func() bool {
		buses := st.Snapshot().Bus.Buses
		return len(buses) == 2 && buses[1].Latitude != nil
	}, "bus:location never reached the cached bus")
	bus := st.Snapshot().Bus.Buses[1]
	assert.Equal(t, 13.0, *bus.Latitude)
	assert.Equal(t, 77.6, *bus.Longitude)
}

func TestEmitWhileDisconnected(t *testing.T) {
	c := New("ws://localhost:1", driverSession(t))
	err := c.EmitDriverLocation(model.PositionSample{Latitude: 1, Longitude: 2})
	assert.ErrorIs(t, err, ErrNotConnected)
}
