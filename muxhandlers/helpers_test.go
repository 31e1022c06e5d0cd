package muxhandlers

import (
	"net/http"
	"net/http/httptest"

	"github.com/vitalvas/flacon/mux"
)

// newTestApp returns an application serving h at pattern under endpoint
// "test", wrapped by mws.
func newTestApp(pattern string, h mux.HandlerFunc, mws ...mux.MiddlewareFunc) *mux.App {
	app := mux.NewApp("test")
	app.Use(mws...)
	app.MustRoute(pattern, "test", h,
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete)
	return app
}

func okHandler(*mux.Context) (any, error) {
	return "ok", nil
}

func serve(app *mux.App, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	app.ServeHTTP(w, req)
	return w
}
