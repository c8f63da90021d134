package rest

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a domain or validation failure reported by the backend. The
// Detail text is the backend's own message ("Driver already has an active
// trip", "No available bus for this route") and is surfaced verbatim for
// user-initiated commands.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Detail)
}

// IsStatus reports whether err is an *APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// IsUnauthorized reports whether err is a 401. By the time a caller sees
// this the session has already been invalidated.
func IsUnauthorized(err error) bool { return IsStatus(err, http.StatusUnauthorized) }

// RoleError is the client-side guard rejecting a session whose role does
// not match the surface being opened. The backend accepted the login; the
// client refuses to use it.
type RoleError struct {
	Required string
}

func (e *RoleError) Error() string {
	return fmt.Sprintf("Access denied: %s role required", e.Required)
}
