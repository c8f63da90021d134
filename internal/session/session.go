// Package session owns the client's auth session: the {user, token} pair,
// its on-device persistence, and notification when the session is
// invalidated. There is no global token; callers inject a Context into
// the API client explicitly.
package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"saarthi/internal/model"
)

// ErrNotAuthenticated is returned when an operation needs a session and
// none is present.
var ErrNotAuthenticated = errors.New("not authenticated")

// Session is the single persisted entry: the authenticated user and the
// bearer token issued for it.
type Session struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
}

// EventType classifies session change notifications.
type EventType string

const (
	// EventSet fires after a successful login stores a new session.
	EventSet EventType = "set"
	// EventCleared fires after an explicit logout.
	EventCleared EventType = "cleared"
	// EventInvalidated fires when the session is rejected (expired token,
	// 401 from the backend, role guard). Subscribers should drop to the
	// logged-out state.
	EventInvalidated EventType = "invalidated"
)

// Event is delivered to subscribers on every session change.
type Event struct {
	Type   EventType
	Reason string
}

// Context holds the current session and fans out change events. All
// methods are safe for concurrent use.
type Context struct {
	mu   sync.RWMutex
	path string
	cur  *Session
	subs map[chan Event]struct{}
}

// Open creates a Context persisted at path and loads any existing
// session from it. A missing or unreadable file is treated as logged out,
// not an error; corrupt contents are discarded.
func Open(path string) *Context {
	c := &Context{path: path, subs: map[chan Event]struct{}{}}
	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	var s Session
	if json.Unmarshal(data, &s) == nil && s.Token != "" {
		c.cur = &s
	}
	return c
}

// Get returns the current session, if any.
func (c *Context) Get() (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cur == nil {
		return Session{}, false
	}
	return *c.cur, true
}

// Token returns the current bearer token, or "" when logged out.
func (c *Context) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cur == nil {
		return ""
	}
	return c.cur.Token
}

// Set stores a new session, persists it, and notifies subscribers.
func (c *Context) Set(s Session) error {
	c.mu.Lock()
	c.cur = &s
	err := c.persistLocked()
	c.mu.Unlock()
	c.notify(Event{Type: EventSet})
	return err
}

// Clear drops the session and removes the persisted entry. Idempotent.
func (c *Context) Clear() error {
	c.mu.Lock()
	was := c.cur != nil
	c.cur = nil
	err := c.removeLocked()
	c.mu.Unlock()
	if was {
		c.notify(Event{Type: EventCleared})
	}
	return err
}

// Invalidate drops the session like Clear but tells subscribers why, so
// the UI can surface a forced logout.
func (c *Context) Invalidate(reason string) {
	c.mu.Lock()
	was := c.cur != nil
	c.cur = nil
	_ = c.removeLocked()
	c.mu.Unlock()
	if was {
		c.notify(Event{Type: EventInvalidated, Reason: reason})
	}
}

// Subscribe returns a channel receiving session change events. Slow
// subscribers miss events rather than blocking the session.
func (c *Context) Subscribe() chan Event {
	ch := make(chan Event, 4)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (c *Context) Unsubscribe(ch chan Event) {
	c.mu.Lock()
	if _, ok := c.subs[ch]; ok {
		delete(c.subs, ch)
		close(ch)
	}
	c.mu.Unlock()
}

// Expired reports whether the stored token carries an exp claim in the
// past. The signature is not verified; that is the backend's job. Tokens
// without an exp claim are assumed live.
func (c *Context) Expired() bool {
	tok := c.Token()
	if tok == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}

func (c *Context) notify(evt Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for ch := range c.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (c *Context) persistLocked() error {
	if c.path == "" {
		return nil
	}
	data, err := json.Marshal(c.cur)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o600)
}

func (c *Context) removeLocked() error {
	if c.path == "" {
		return nil
	}
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
