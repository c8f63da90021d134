// Package rest implements the /api/v1 HTTP client shared by every Saarthi
// role surface. All calls carry the session bearer token, a fixed
// client-side timeout, and map backend failures onto the error taxonomy
// in errors.go.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"saarthi/internal/buildinfo"
	"saarthi/internal/session"
)

// DefaultTimeout bounds every REST call. On timeout the call fails with
// no automatic retry; the next cycle supersedes it.
const DefaultTimeout = 10 * time.Second

const apiPrefix = "/api/v1"

// Client is the shared HTTP client. Construct one per process and hand it
// to the role surfaces.
type Client struct {
	baseURL string
	http    *http.Client
	sess    *session.Context
}

// Option mutates a Client during construction.
type Option func(*Client)

// WithHTTPClient substitutes the underlying http.Client (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout overrides the fixed request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// NewClient builds a Client rooted at baseURL that reads and invalidates
// the given session context.
func NewClient(baseURL string, sess *session.Context, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		sess:    sess,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session exposes the session context the client was built with.
func (c *Client) Session() *session.Context { return c.sess }

// do issues one JSON request against the versioned API. body and out may
// be nil. Non-2xx responses become *APIError; a 401 additionally
// invalidates the session so every subscriber drops to logged-out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "saarthi-client/"+buildinfo.Version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.sess.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		apiErr := decodeAPIError(resp)
		if resp.StatusCode == http.StatusUnauthorized {
			log.WithField("path", path).Warn("token rejected, invalidating session")
			c.sess.Invalidate("authentication expired")
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.do(ctx, http.MethodPost, path, query, body, out)
}

func (c *Client) patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, nil, body, out)
}

func (c *Client) put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// decodeAPIError turns a FastAPI-style {"detail": "..."} body into an
// *APIError, falling back to the raw body or HTTP status text.
func decodeAPIError(resp *http.Response) *APIError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	detail := ""
	if json.Unmarshal(data, &payload) == nil {
		if payload.Detail != "" {
			detail = payload.Detail
		} else if payload.Message != "" {
			detail = payload.Message
		}
	}
	if detail == "" {
		detail = strings.TrimSpace(string(data))
	}
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Detail: detail}
}
