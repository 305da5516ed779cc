package controller

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthController_RegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(jsonRequest(t, http.MethodPost, "/api/register", RegisterRequest{
		Name: "  alice ", Password: "walking-daily", ConfirmPassword: "walking-daily",
	}), "")
	require.Equal(t, http.StatusCreated, w.Code)

	var login struct {
		Token string `json:"token"`
		User  struct {
			Name    string `json:"name"`
			IsAdmin bool   `json:"isAdmin"`
		} `json:"user"`
	}
	w = env.do(jsonRequest(t, http.MethodPost, "/api/login", LoginRequest{Name: "alice", Password: "walking-daily"}), "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &login)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, "alice", login.User.Name)
	assert.False(t, login.User.IsAdmin)
	assert.NotContains(t, w.Body.String(), "walking-daily")

	var profile struct {
		Name string `json:"name"`
	}
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/profile", nil), login.Token)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &profile)
	assert.Equal(t, "alice", profile.Name)
}

func TestAuthController_RegisterRejects(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "bob", "password-1", false)

	tests := []struct {
		name string
		req  RegisterRequest
		code int
	}{
		{"duplicate name", RegisterRequest{Name: "bob", Password: "password-2", ConfirmPassword: "password-2"}, http.StatusConflict},
		{"mismatched confirmation", RegisterRequest{Name: "carol", Password: "password-2", ConfirmPassword: "password-3"}, http.StatusBadRequest},
		{"short password", RegisterRequest{Name: "carol", Password: "short", ConfirmPassword: "short"}, http.StatusBadRequest},
		{"blank name", RegisterRequest{Name: "   ", Password: "password-2", ConfirmPassword: "password-2"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(jsonRequest(t, http.MethodPost, "/api/register", tt.req), "")
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestAuthController_LoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "bob", "password-1", false)

	w := env.do(jsonRequest(t, http.MethodPost, "/api/login", LoginRequest{Name: "bob", Password: "password-2"}), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(jsonRequest(t, http.MethodPost, "/api/login", LoginRequest{Name: "nobody", Password: "password-2"}), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthController_ProfileRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/profile", nil), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/profile", nil), "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
