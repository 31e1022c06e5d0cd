package muxhandlers

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/flacon/mux"
)

func basicAuthHeader(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func dispatchAuth(app *mux.App, path, authorization string) *mux.Response {
	req := mux.Request{Method: http.MethodGet, Path: path, Header: http.Header{}}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return app.Dispatch(context.Background(), req)
}

func TestBasicAuthMiddleware(t *testing.T) {
	_, err := BasicAuthMiddleware(BasicAuthConfig{Realm: "ops"})
	assert.ErrorIs(t, err, ErrNoAuthSource)

	staff := map[string]string{"alice": "s3cret", "bob": "a:b:c"}

	tests := []struct {
		name          string
		cfg           BasicAuthConfig
		authorization string
		wantUser      string
	}{
		{name: "known user", cfg: BasicAuthConfig{Credentials: staff}, authorization: basicAuthHeader("alice", "s3cret"), wantUser: "alice"},
		{name: "password with colons", cfg: BasicAuthConfig{Credentials: staff}, authorization: basicAuthHeader("bob", "a:b:c"), wantUser: "bob"},
		{name: "wrong password", cfg: BasicAuthConfig{Credentials: staff}, authorization: basicAuthHeader("alice", "guess")},
		{name: "unknown user with empty password", cfg: BasicAuthConfig{Credentials: staff}, authorization: basicAuthHeader("mallory", "")},
		{name: "no header", cfg: BasicAuthConfig{Credentials: staff}},
		{name: "bearer scheme", cfg: BasicAuthConfig{Credentials: staff}, authorization: "Bearer abc"},
		{name: "bad base64", cfg: BasicAuthConfig{Credentials: staff}, authorization: "Basic ***"},
		{name: "no colon", cfg: BasicAuthConfig{Credentials: staff}, authorization: "Basic " + base64.StdEncoding.EncodeToString([]byte("alice"))},
		{
			name: "validate func wins over credentials",
			cfg: BasicAuthConfig{
				Credentials:  staff,
				ValidateFunc: func(u, p string) bool { return u == "svc" && p == "token" },
			},
			authorization: basicAuthHeader("svc", "token"),
			wantUser:      "svc",
		},
		{
			name: "credentials are ignored with a validate func",
			cfg: BasicAuthConfig{
				Credentials:  staff,
				ValidateFunc: func(string, string) bool { return false },
			},
			authorization: basicAuthHeader("alice", "s3cret"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw, err := BasicAuthMiddleware(tt.cfg)
			require.NoError(t, err)

			app := newTestApp("/test", func(c *mux.Context) (any, error) {
				return BasicAuthUser(c), nil
			}, mw)

			resp := dispatchAuth(app, "/test", tt.authorization)
			if tt.wantUser == "" {
				assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
				assert.Equal(t, `Basic realm="Restricted"`, resp.Header.Get("WWW-Authenticate"))
				assert.Empty(t, resp.Body)
				return
			}

			assert.Equal(t, http.StatusOK, resp.StatusCode())
			assert.Equal(t, tt.wantUser, string(resp.Body))
		})
	}
}

func TestBasicAuthMiddlewareRealm(t *testing.T) {
	mw, err := BasicAuthMiddleware(BasicAuthConfig{Realm: `ops "east"`, Credentials: map[string]string{"a": "b"}})
	require.NoError(t, err)

	resp := dispatchAuth(newTestApp("/test", okHandler, mw), "/test", "")
	assert.Equal(t, `Basic realm="ops \"east\""`, resp.Header.Get("WWW-Authenticate"))
}

func TestBasicAuthMiddlewareScope(t *testing.T) {
	mw, err := BasicAuthMiddleware(BasicAuthConfig{
		Credentials: map[string]string{"admin": "pw"},
		Scope:       Scope{Endpoints: []string{"admin"}},
	})
	require.NoError(t, err)

	app := mux.NewApp("test")
	app.Use(mw)
	app.MustRoute("/admin", "admin", okHandler)
	app.MustRoute("/public", "public", okHandler)

	assert.Equal(t, http.StatusUnauthorized, dispatchAuth(app, "/admin", "").StatusCode())
	assert.Equal(t, http.StatusOK, dispatchAuth(app, "/admin", basicAuthHeader("admin", "pw")).StatusCode())
	assert.Equal(t, http.StatusOK, dispatchAuth(app, "/public", "").StatusCode())
	assert.Equal(t, http.StatusNotFound, dispatchAuth(app, "/missing", "").StatusCode())
}

func BenchmarkBasicAuthMiddleware(b *testing.B) {
	mw, err := BasicAuthMiddleware(BasicAuthConfig{Credentials: map[string]string{"alice": "s3cret"}})
	if err != nil {
		b.Fatal(err)
	}

	app := newTestApp("/test", okHandler, mw)

	for _, bc := range []struct {
		name     string
		password string
	}{
		{name: "accepted", password: "s3cret"},
		{name: "rejected", password: "guess"},
	} {
		header := basicAuthHeader("alice", bc.password)
		b.Run(bc.name, func(b *testing.B) {
			for b.Loop() {
				dispatchAuth(app, "/test", header)
			}
		})
	}
}
