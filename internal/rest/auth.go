package rest

import (
	"context"

	log "github.com/sirupsen/logrus"

	"saarthi/internal/model"
	"saarthi/internal/session"
)

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
	Name     string     `json:"name,omitempty"`
	Phone    string     `json:"phone,omitempty"`
}

type loginResponse struct {
	AccessToken string     `json:"access_token"`
	User        model.User `json:"user"`
}

// Login authenticates against the backend and stores the resulting
// session on success.
func (c *Client) Login(ctx context.Context, creds Credentials) (model.User, error) {
	var resp loginResponse
	if err := c.post(ctx, "/auth/login", nil, creds, &resp); err != nil {
		return model.User{}, err
	}
	if err := c.sess.Set(session.Session{User: resp.User, Token: resp.AccessToken}); err != nil {
		log.WithError(err).Warn("session persisted in memory only")
	}
	return resp.User, nil
}

// LoginAs authenticates and then applies the client-side role guard: when
// the backend accepts the credentials but the account's role does not
// match required, the stored session is cleared and a *RoleError is
// returned without the caller ever seeing a usable session.
func (c *Client) LoginAs(ctx context.Context, creds Credentials, required model.Role) (model.User, error) {
	user, err := c.Login(ctx, creds)
	if err != nil {
		return model.User{}, err
	}
	if user.Role != required {
		_ = c.sess.Clear()
		return model.User{}, &RoleError{Required: string(required)}
	}
	return user, nil
}

// Register creates a new account. It does not log in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (model.User, error) {
	var user model.User
	if err := c.post(ctx, "/auth/register", nil, req, &user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

// Me fetches the profile behind the current token. A 401 here means the
// restored session is dead; the session context will already have been
// invalidated.
func (c *Client) Me(ctx context.Context) (model.User, error) {
	var user model.User
	if err := c.get(ctx, "/auth/me", nil, &user); err != nil {
		return model.User{}, err
	}
	return user, nil
}

// Logout clears the stored session. Purely client-side; the backend keeps
// no session state beyond the token's own lifetime.
func (c *Client) Logout() error { return c.sess.Clear() }
