package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saarthi/internal/model"
	"saarthi/internal/session"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *session.Context) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	sess := session.Open(filepath.Join(t.TempDir(), "session.json"))
	return NewClient(srv.URL, sess), sess
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLoginStoresSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "d@x.in", creds.Email)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "tok-123",
			"user":         model.User{ID: 4, Email: creds.Email, Role: model.RoleDriver},
		})
	})

	c, sess := newTestClient(t, mux)
	user, err := c.Login(context.Background(), Credentials{Email: "d@x.in", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleDriver, user.Role)
	assert.Equal(t, "tok-123", sess.Token())
}

func TestLoginBadCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})
	})

	c, sess := newTestClient(t, mux)
	_, err := c.Login(context.Background(), Credentials{Email: "d@x.in", Password: "bad"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Incorrect email or password", apiErr.Detail)
	assert.True(t, IsUnauthorized(err))
	assert.Empty(t, sess.Token())
}

func TestLoginAsRejectsWrongRole(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "tok-456",
			"user":         model.User{ID: 9, Email: "c@x.in", Role: model.RoleCommuter},
		})
	})

	c, sess := newTestClient(t, mux)
	_, err := c.LoginAs(context.Background(), Credentials{Email: "c@x.in", Password: "pw"}, model.RoleDriver)

	var roleErr *RoleError
	require.ErrorAs(t, err, &roleErr)
	assert.Equal(t, "Access denied: driver role required", roleErr.Error())
	assert.Empty(t, sess.Token(), "session must not survive a role mismatch")
}

func TestBearerTokenAttached(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, model.User{ID: 4, Role: model.RoleDriver})
	})

	c, sess := newTestClient(t, mux)
	require.NoError(t, sess.Set(session.Session{User: model.User{ID: 4}, Token: "tok-789"}))

	_, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-789", gotAuth)
}

func TestUnauthorizedInvalidatesSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
	})

	c, sess := newTestClient(t, mux)
	require.NoError(t, sess.Set(session.Session{User: model.User{ID: 4}, Token: "stale"}))
	events := sess.Subscribe()
	defer sess.Unsubscribe(events)

	_, err := c.Me(context.Background())
	assert.True(t, IsUnauthorized(err))
	assert.Empty(t, sess.Token())

	select {
	case evt := <-events:
		assert.Equal(t, session.EventInvalidated, evt.Type)
	case <-time.After(time.Second):
		t.Fatal("expected an invalidation event")
	}
}

func TestStartAndStopTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/driver/trip/start", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("routeId"))
		writeJSON(w, http.StatusOK, map[string]string{"tripId": "trip-42", "status": "active"})
	})
	mux.HandleFunc("POST /api/v1/driver/trip/stop", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "trip-42", r.URL.Query().Get("tripId"))
		writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
	})

	c, _ := newTestClient(t, mux)
	tripID, err := c.StartTrip(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "trip-42", tripID)
	require.NoError(t, c.StopTrip(context.Background(), "trip-42"))
}

func TestStartTripConflictSurfacesDetail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/driver/trip/start", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{"detail": "Driver already has an active trip"})
	})

	c, _ := newTestClient(t, mux)
	_, err := c.StartTrip(context.Background(), 3)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Driver already has an active trip", apiErr.Detail)
}

func TestPushLocationBody(t *testing.T) {
	var got map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/driver/location", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	c, _ := newTestClient(t, mux)
	heading := 90.0
	err := c.PushLocation(context.Background(), model.PositionSample{
		Latitude:  12.97,
		Longitude: 77.59,
		Heading:   &heading,
		Timestamp: time.Now(),
		Seq:       12,
	})
	require.NoError(t, err)
	assert.Equal(t, 12.97, got["latitude"])
	assert.Equal(t, 77.59, got["longitude"])
}

func TestNonJSONErrorBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/authority/analytics", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	})

	c, _ := newTestClient(t, mux)
	_, err := c.Analytics(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "upstream exploded", apiErr.Detail)
}

func TestActiveTripStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/driver/trip/active", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"tripId": "trip-7", "routeId": 2, "status": "active"})
	})

	c, _ := newTestClient(t, mux)
	active, err := c.ActiveTripStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, active.Active())
	assert.Equal(t, 2, active.RouteID)
}
