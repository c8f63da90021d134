package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saarthi/internal/model"
	"saarthi/internal/rest"
	"saarthi/internal/session"
)

func loginBackend(t *testing.T, role model.Role) (*rest.Client, *session.Context) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-cli",
			"user":         model.User{ID: 7, Email: "op@x.in", Role: role},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	sess := session.Open(filepath.Join(t.TempDir(), "session.json"))
	return rest.NewClient(srv.URL, sess), sess
}

func TestLoginGuardsAuthorityRoleByDefault(t *testing.T) {
	api, sess := loginBackend(t, model.RoleCommuter)

	err := cmdLogin(context.Background(), api, []string{"-email", "op@x.in", "-password", "pw"})

	var roleErr *rest.RoleError
	require.ErrorAs(t, err, &roleErr)
	assert.Equal(t, "Access denied: authority role required", roleErr.Error())
	assert.Empty(t, sess.Token(), "session must not survive a role mismatch")
}

func TestLoginAcceptsMatchingRole(t *testing.T) {
	api, sess := loginBackend(t, model.RoleAuthority)

	require.NoError(t, cmdLogin(context.Background(), api,
		[]string{"-email", "op@x.in", "-password", "pw"}))
	assert.Equal(t, "tok-cli", sess.Token())
}

func TestLoginEmptyRoleSkipsGuard(t *testing.T) {
	api, sess := loginBackend(t, model.RoleCommuter)

	require.NoError(t, cmdLogin(context.Background(), api,
		[]string{"-email", "op@x.in", "-password", "pw", "-role", ""}))
	assert.Equal(t, "tok-cli", sess.Token())
}
