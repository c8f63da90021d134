// Package main runs a demo WebSocket client against the fleet backend.
// It logs in, joins the commuter room, and prints every bus location and
// status event it receives for a short window. Useful for checking that
// a driverd instance is actually being fanned out to watchers.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func main() {
	base := os.Getenv("SAARTHI_API_URL")
	if base == "" {
		base = "http://localhost:8000"
	}
	email := os.Getenv("SAARTHI_EMAIL")
	password := os.Getenv("SAARTHI_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("SAARTHI_EMAIL and SAARTHI_PASSWORD must be set")
	}

	// Log in over REST to get a token for the socket handshake.
	creds, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := http.Post(base+"/api/v1/auth/login", "application/json", bytes.NewReader(creds))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var loginResp struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID   int    `json:"id"`
			Role string `json:"role"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		log.Fatal(err)
	}
	if loginResp.AccessToken == "" {
		log.Fatalf("login failed: status %d", resp.StatusCode)
	}
	log.Printf("logged in as %s (id %d)", loginResp.User.Role, loginResp.User.ID)

	wsBase := os.Getenv("SAARTHI_WS_URL")
	if wsBase == "" {
		wsBase = "ws://localhost:8000/ws"
	}
	u, err := url.Parse(wsBase)
	if err != nil {
		log.Fatal(err)
	}
	q := u.Query()
	q.Set("token", loginResp.AccessToken)
	u.RawQuery = q.Encode()

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	join, _ := json.Marshal(map[string]any{
		"user_type": loginResp.User.Role,
		"user_id":   loginResp.User.ID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err := c.WriteJSON(wsMessage{Event: "join_room", Data: join}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Event, string(m.Data))
		}
	}()

	window := 30 * time.Second
	fmt.Printf("listening for events for %s...\n", window)
	select {
	case <-time.After(window):
	case <-done:
	}
}
