package main

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vitalvas/flacon/config"
	"github.com/vitalvas/flacon/mux"
	"github.com/vitalvas/flacon/muxhandlers"
	"github.com/vitalvas/flacon/observability"
)

// appDeps are the process-wide collaborators the application is wired to.
// A nil Metrics or TracerProvider disables the matching middleware.
type appDeps struct {
	Logger         *zap.Logger
	Metrics        *muxhandlers.Metrics
	TracerProvider trace.TracerProvider
}

// newApp builds the demo application with the middleware stack selected by
// cfg. The request ID middleware runs outermost so every other middleware
// sees the ID. The admin endpoints exist only while an admin password is
// configured.
func newApp(cfg *config.Config, deps appDeps) (*mux.App, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	app := mux.NewApp(cfg.Name)
	app.Logger = logger.Named(cfg.Name)
	app.MaxBodyBytes = cfg.Server.MaxBodyBytes
	app.StrictSlash(cfg.Router.StrictSlash).AutomaticOptions(cfg.Router.AutomaticOptions)

	mws := []mux.MiddlewareFunc{
		muxhandlers.RequestIDMiddleware(muxhandlers.RequestIDConfig{
			HeaderName:    cfg.RequestID.Header,
			GenerateFunc:  muxhandlers.GenerateUUIDv7,
			TrustIncoming: cfg.RequestID.TrustIncoming,
		}),
	}

	if deps.TracerProvider != nil {
		mws = append(mws, muxhandlers.TracingMiddleware(muxhandlers.TracingConfig{
			TracerProvider: deps.TracerProvider,
			Propagator:     observability.NewPropagator(),
		}))
	}

	accessLog, err := muxhandlers.AccessLogMiddleware(muxhandlers.AccessLogConfig{
		Logger:    logger.Named("access"),
		SkipPaths: []string{cfg.Metrics.Path},
	})
	if err != nil {
		return nil, err
	}
	mws = append(mws, accessLog)

	if deps.Metrics != nil {
		metrics, err := muxhandlers.MetricsMiddleware(deps.Metrics)
		if err != nil {
			return nil, err
		}
		mws = append(mws, metrics)
	}

	if cfg.CORS.Enabled {
		cors, err := muxhandlers.CORSMiddleware(muxhandlers.CORSConfig{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowCredentials: cfg.CORS.AllowCredentials,
			ExposeHeaders:    []string{cfg.RequestID.Header, "Location"},
			MaxAge:           cfg.CORS.MaxAge.Duration(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure cors: %w", err)
		}
		mws = append(mws, cors)
	}

	if cfg.RateLimit.Enabled {
		limit, err := muxhandlers.RateLimitMiddleware(muxhandlers.RateLimitConfig{
			RPS:   cfg.RateLimit.RPS,
			Burst: cfg.RateLimit.Burst,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure rate limit: %w", err)
		}
		mws = append(mws, limit)
	}

	adminEnabled := cfg.Admin.Password != ""
	if adminEnabled {
		auth, err := muxhandlers.BasicAuthMiddleware(muxhandlers.BasicAuthConfig{
			Realm:       cfg.Name + " admin",
			Credentials: map[string]string{cfg.Admin.Username: cfg.Admin.Password},
			Scope:       muxhandlers.Scope{Endpoints: []string{"admin_stats"}},
		})
		if err != nil {
			return nil, err
		}
		mws = append(mws, auth)
	}

	sizeLimit, err := muxhandlers.RequestSizeLimitMiddleware(muxhandlers.RequestSizeLimitConfig{
		Endpoints: map[string]int64{
			"create_item": itemBodyLimit,
			"update_item": itemBodyLimit,
		},
	})
	if err != nil {
		return nil, err
	}

	hostname, err := muxhandlers.ServerMiddleware(muxhandlers.ServerConfig{
		HostnameEnv: []string{"POD_NAME", "HOSTNAME"},
		AppHeader:   "X-App-Name",
	})
	if err != nil {
		return nil, err
	}

	security, err := muxhandlers.SecurityHeadersMiddleware(muxhandlers.SecurityHeadersConfig{})
	if err != nil {
		return nil, err
	}

	contentType, err := muxhandlers.ContentTypeCheckMiddleware(muxhandlers.ContentTypeCheckConfig{
		AllowedTypes: []string{"application/json", "application/*+json"},
	})
	if err != nil {
		return nil, err
	}

	cacheControl, err := muxhandlers.CacheControlMiddleware(muxhandlers.CacheControlConfig{
		Rules: []muxhandlers.CacheControlRule{
			{Endpoint: "index", Value: "public, max-age=60", Expires: time.Minute},
			{ContentType: "application/json", Value: "no-store", Expires: -1},
		},
		Scope: muxhandlers.Scope{Exclude: []string{"admin_stats"}},
	})
	if err != nil {
		return nil, err
	}

	compression, err := muxhandlers.CompressionMiddleware(muxhandlers.CompressionConfig{
		MinLength: 256,
	})
	if err != nil {
		return nil, err
	}

	mws = append(mws, sizeLimit, hostname, security, contentType, cacheControl, compression)
	app.Use(mws...)

	if err := registerDemo(app, adminEnabled); err != nil {
		return nil, err
	}

	return app, nil
}
