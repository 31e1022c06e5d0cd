package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vitalvas/flacon/config"
	"github.com/vitalvas/flacon/mux"
	"github.com/vitalvas/flacon/muxhandlers"
)

func newTestApp(t *testing.T, cfg *config.Config, deps appDeps) *mux.App {
	t.Helper()

	app, err := newApp(cfg, deps)
	require.NoError(t, err)
	return app
}

func do(h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, r)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestDemoRoutes(t *testing.T) {
	app := newTestApp(t, config.Default(), appDeps{})

	tests := []struct {
		name   string
		method string
		target string
		ctype  string
		body   string
		status int
		want   string
		json   bool
	}{
		{name: "index", method: http.MethodGet, target: "/", status: http.StatusOK, want: "Hello, world!"},
		{name: "typed user", method: http.MethodGet, target: "/users/42", status: http.StatusOK, want: `{"id":42,"profile":"/users/user42"}`, json: true},
		{name: "user by name", method: http.MethodGet, target: "/users/bob", status: http.StatusOK, want: `{"name":"bob"}`, json: true},
		{name: "nested file", method: http.MethodGet, target: "/files/a/b/c.txt", status: http.StatusOK, want: "file: /a/b/c.txt"},
		{name: "files root", method: http.MethodGet, target: "/files/", status: http.StatusOK, want: "directory: /"},
		{name: "teapot", method: http.MethodGet, target: "/teapot", status: http.StatusTeapot, want: "I'm a teapot"},
		{name: "echo", method: http.MethodPost, target: "/echo", ctype: "application/json", body: `{"a":[1,2]}`, status: http.StatusOK, want: `{"a":[1,2]}`, json: true},
		{name: "echo rejects invalid json", method: http.MethodPost, target: "/echo", ctype: "application/json", body: `{`, status: http.StatusBadRequest},
		{name: "echo rejects other content types", method: http.MethodPost, target: "/echo", ctype: "text/plain", body: "hi", status: http.StatusUnsupportedMediaType},
		{name: "echo is post only", method: http.MethodGet, target: "/echo", status: http.StatusMethodNotAllowed, want: "405 Method Not Allowed"},
		{name: "unknown path", method: http.MethodGet, target: "/missing", status: http.StatusNotFound, want: "404 Not Found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(app, tt.method, tt.target, tt.ctype, tt.body)

			assert.Equal(t, tt.status, w.Code)
			switch {
			case tt.json:
				assert.JSONEq(t, tt.want, w.Body.String())
			case tt.want != "":
				assert.Equal(t, tt.want, w.Body.String())
			}
		})
	}
}

func TestDemoMiddleware(t *testing.T) {
	app := newTestApp(t, config.Default(), appDeps{})

	w := do(app, http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, w.Header().Get("X-Server-Hostname"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	t.Run("fallbacks carry the request id", func(t *testing.T) {
		w := do(app, http.MethodGet, "/missing", "", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("custom request id header", func(t *testing.T) {
		cfg := config.Default()
		cfg.RequestID.Header = "X-Trace"
		cfg.RequestID.TrustIncoming = true

		app := newTestApp(t, cfg, appDeps{})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Trace", "abc")
		w := httptest.NewRecorder()
		app.ServeHTTP(w, req)

		assert.Equal(t, "abc", w.Header().Get("X-Trace"))
	})

	t.Run("strict slash", func(t *testing.T) {
		cfg := config.Default()
		cfg.Router.StrictSlash = true

		app := newTestApp(t, cfg, appDeps{})
		w := do(app, http.MethodGet, "/files", "", "")

		assert.Equal(t, http.StatusPermanentRedirect, w.Code)
		assert.Equal(t, "/files/", w.Header().Get("Location"))
	})

	t.Run("rate limit", func(t *testing.T) {
		cfg := config.Default()
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1}

		app := newTestApp(t, cfg, appDeps{})

		assert.Equal(t, http.StatusOK, do(app, http.MethodGet, "/", "", "").Code)

		w := do(app, http.MethodGet, "/", "", "")
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
	})

	t.Run("tracing", func(t *testing.T) {
		recorder := tracetest.NewSpanRecorder()
		provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

		app := newTestApp(t, config.Default(), appDeps{TracerProvider: provider})
		do(app, http.MethodGet, "/users/1", "", "")

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, "GET /users/<int:id>", spans[0].Name())
	})
}

func TestDemoPolicies(t *testing.T) {
	t.Run("cache control", func(t *testing.T) {
		app := newTestApp(t, config.Default(), appDeps{})

		w := do(app, http.MethodGet, "/", "", "")
		assert.Equal(t, "public, max-age=60", w.Header().Get("Cache-Control"))
		assert.NotEmpty(t, w.Header().Get("Expires"))

		w = do(app, http.MethodGet, "/users/bob", "", "")
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
		assert.Empty(t, w.Header().Get("Expires"))

		w = do(app, http.MethodGet, "/teapot", "", "")
		assert.Empty(t, w.Header().Get("Cache-Control"))
	})

	t.Run("item bodies are limited", func(t *testing.T) {
		app := newTestApp(t, config.Default(), appDeps{})

		body := `{"title":"` + strings.Repeat("x", itemBodyLimit) + `"}`
		w := do(app, http.MethodPost, "/items", "application/json", body)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

		w = do(app, http.MethodPost, "/echo", "application/json", body)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("cors", func(t *testing.T) {
		cfg := config.Default()
		cfg.CORS.Enabled = true
		cfg.CORS.AllowedOrigins = []string{"https://app.example.com"}

		app := newTestApp(t, cfg, appDeps{})

		req := httptest.NewRequest(http.MethodOptions, "/items", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		app.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
		assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))

		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://app.example.com")
		w = httptest.NewRecorder()
		app.ServeHTTP(w, req)

		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Request-ID")

		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w = httptest.NewRecorder()
		app.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("admin is off without a password", func(t *testing.T) {
		app := newTestApp(t, config.Default(), appDeps{})
		assert.Equal(t, http.StatusNotFound, do(app, http.MethodGet, "/admin/stats", "", "").Code)
	})

	t.Run("admin requires credentials", func(t *testing.T) {
		cfg := config.Default()
		cfg.Admin.Password = "secret"

		app := newTestApp(t, cfg, appDeps{})

		w := do(app, http.MethodGet, "/admin/stats", "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, `Basic realm="flacon admin"`, w.Header().Get("WWW-Authenticate"))

		assert.Equal(t, http.StatusOK, do(app, http.MethodGet, "/", "", "").Code)

		req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
		req.SetBasicAuth("admin", "secret")
		w = httptest.NewRecorder()
		app.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Cache-Control"))

		var stats struct {
			App   string `json:"app"`
			User  string `json:"user"`
			Items int    `json:"items"`
			Rules int    `json:"rules"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
		assert.Equal(t, "flacon", stats.App)
		assert.Equal(t, "admin", stats.User)
		assert.Zero(t, stats.Items)
		assert.Equal(t, app.Table().Len(), stats.Rules)
	})
}

func TestItems(t *testing.T) {
	app := newTestApp(t, config.Default(), appDeps{})

	w := do(app, http.MethodPost, "/items", "application/json", `{"title":"first"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "first", created.Title)
	assert.Equal(t, "/items/"+created.ID, w.Header().Get("Location"))

	t.Run("get", func(t *testing.T) {
		w := do(app, http.MethodGet, "/items/"+created.ID, "", "")
		require.Equal(t, http.StatusOK, w.Code)

		var got Item
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("list", func(t *testing.T) {
		w := do(app, http.MethodGet, "/items", "", "")
		require.Equal(t, http.StatusOK, w.Code)

		var items []Item
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
		require.Len(t, items, 1)
		assert.Equal(t, created.ID, items[0].ID)
	})

	t.Run("update", func(t *testing.T) {
		w := do(app, http.MethodPut, "/items/"+created.ID, "application/json", `{"title":"renamed"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"title":"renamed"`)
	})

	t.Run("validation error", func(t *testing.T) {
		w := do(app, http.MethodPost, "/items", "application/json", `{"title":" "}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"code":"VALIDATION_ERROR","message":"Title is required"}`, w.Body.String())
	})

	t.Run("unknown field", func(t *testing.T) {
		w := do(app, http.MethodPost, "/items", "application/json", `{"name":"x"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_JSON")
	})

	t.Run("delete", func(t *testing.T) {
		w := do(app, http.MethodDelete, "/items/"+created.ID, "", "")
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = do(app, http.MethodGet, "/items/"+created.ID, "", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "NOT_FOUND")

		w = do(app, http.MethodDelete, "/items/"+created.ID, "", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestNewHandler(t *testing.T) {
	cfg := config.Default()
	metrics := muxhandlers.NewMetrics(cfg.Metrics.Namespace)
	app := newTestApp(t, cfg, appDeps{Metrics: metrics})

	h := newHandler(cfg, app, metrics)

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/", "", "").Code)

	w := do(h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `flacon_requests_total{endpoint="index",method="GET",status="200"} 1`)

	t.Run("without metrics the app is served directly", func(t *testing.T) {
		assert.Same(t, app, newHandler(cfg, app, nil))
	})
}

func TestRoutesCommand(t *testing.T) {
	var out bytes.Buffer

	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"routes"})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, []string{"ENDPOINT", "METHODS", "PATTERN", "SCORE"}, strings.Fields(lines[0]))

	table := out.String()
	assert.Contains(t, table, "/users/<int:id>")
	assert.Contains(t, table, "/files/<path:rest>")
	assert.Contains(t, table, "create_item")

	for _, line := range lines[1:] {
		assert.Len(t, strings.Fields(line), 4, line)
	}
}

func TestRootCommandConfig(t *testing.T) {
	t.Run("config file is applied", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.yaml")
		require.NoError(t, os.WriteFile(path, []byte("name: blog\n"), 0o600))

		var out bytes.Buffer
		cmd := newRootCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"routes", "--config", path})
		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "index")
	})

	t.Run("missing config file", func(t *testing.T) {
		cmd := newRootCmd()
		cmd.SetOut(io.Discard)
		cmd.SetArgs([]string{"serve", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
		assert.ErrorIs(t, cmd.Execute(), os.ErrNotExist)
	})

	t.Run("invalid config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.yaml")
		require.NoError(t, os.WriteFile(path, []byte("log:\n  level: loud\n"), 0o600))

		cmd := newRootCmd()
		cmd.SetArgs([]string{"routes", "-c", path})

		var cerr *config.Error
		assert.ErrorAs(t, cmd.Execute(), &cerr)
	})
}
