// Package muxhandlers provides middleware for mux applications.
//
// Every constructor validates its configuration and returns a
// mux.MiddlewareFunc. Middleware runs around every dispatch, including the
// 404, 405 and automatic OPTIONS fallbacks, where c.Rule() is nil.
// Rejections are returned as *mux.AbortError, so they pass through outer
// middleware like any other response.
//
// # Scopes
//
// Several middleware take a Scope naming the endpoints they act on. The
// zero Scope covers every endpoint and the fallbacks:
//
//	auth, err := muxhandlers.BasicAuthMiddleware(muxhandlers.BasicAuthConfig{
//	    Realm:       "admin",
//	    Credentials: map[string]string{"admin": "secret"},
//	    Scope:       muxhandlers.Scope{Endpoints: []string{"admin_stats"}},
//	})
//
// BasicAuthUser returns the authenticated user to handlers and to key
// functions such as RateLimitConfig.KeyFunc.
//
// # CORS
//
// CORSMiddleware answers preflights for routed paths with the methods the
// route table allows there, unless AllowedMethods overrides them. Origins
// may be exact, "*", or a pattern with one wildcard:
//
//	cors, err := muxhandlers.CORSMiddleware(muxhandlers.CORSConfig{
//	    AllowedOrigins:   []string{"https://*.example.com"},
//	    AllowCredentials: true,
//	    MaxAge:           10 * time.Minute,
//	})
//
// # Response shaping
//
// CacheControlMiddleware, CompressionMiddleware, SecurityHeadersMiddleware
// and ServerMiddleware work on the buffered *mux.Response returned by
// c.Respond, so they also see aborts and normalized handler results.
//
// # Observability
//
// AccessLogMiddleware writes one zap entry per request. MetricsMiddleware
// records Prometheus request metrics labelled by endpoint, never by raw
// path. TracingMiddleware starts an OpenTelemetry server span and hands its
// context to the handler.
//
//	metrics := muxhandlers.NewMetrics("blog")
//	mw, err := muxhandlers.MetricsMiddleware(metrics)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app.Use(mw, muxhandlers.TracingMiddleware(muxhandlers.TracingConfig{}))
//	http.Handle("/metrics", metrics.Handler())
//
// # Rate limiting
//
// RateLimitMiddleware answers requests over the configured rate with 429
// and a Retry-After header. Buckets can be split per key:
//
//	mw, err := muxhandlers.RateLimitMiddleware(muxhandlers.RateLimitConfig{
//	    RPS:     10,
//	    Burst:   20,
//	    KeyFunc: muxhandlers.BasicAuthUser,
//	})
package muxhandlers
