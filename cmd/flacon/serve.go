package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vitalvas/flacon/config"
	"github.com/vitalvas/flacon/mux"
	"github.com/vitalvas/flacon/muxhandlers"
	"github.com/vitalvas/flacon/observability"
	"github.com/vitalvas/flacon/server"
)

const tracerShutdownTimeout = 5 * time.Second

func newServeCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) (err error) {
	logger, err := observability.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	deps := appDeps{Logger: logger}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.ServiceName == "" {
			cfg.Tracing.ServiceName = cfg.Name
		}

		provider, perr := observability.NewTracerProvider(ctx, cfg.Tracing)
		if perr != nil {
			return perr
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tracerShutdownTimeout)
			defer cancel()
			err = errors.Join(err, provider.Shutdown(shutdownCtx))
		}()

		deps.TracerProvider = provider
	}

	if cfg.Metrics.Enabled {
		deps.Metrics = muxhandlers.NewMetrics(cfg.Metrics.Namespace)
	}

	app, err := newApp(cfg, deps)
	if err != nil {
		return err
	}

	logger.Info("application configured",
		zap.String("app", app.Name()),
		zap.Int("rules", app.Table().Len()),
		zap.Bool("metrics", cfg.Metrics.Enabled),
		zap.Bool("tracing", cfg.Tracing.Enabled),
	)

	return server.Run(ctx, cfg.Server, newHandler(cfg, app, deps.Metrics), logger)
}

// newHandler mounts the metrics exposition next to the application.
func newHandler(cfg *config.Config, app *mux.App, metrics *muxhandlers.Metrics) http.Handler {
	if metrics == nil {
		return app
	}

	m := http.NewServeMux()
	m.Handle(cfg.Metrics.Path, metrics.Handler())
	m.Handle("/", app)
	return m
}
