package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"familytree/domain/events"
	"familytree/infrastructure/messaging/eventbus"
	"familytree/internal/config"
)

func (a *app) watchCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the tree loaded with autosave, config reload and metrics",
		Long: `Keep the tree loaded until interrupted.

Autosave runs on its interval, configuration files are reloaded when they
change (the log level applies immediately) and, with --metrics-addr,
prometheus metrics are served on /metrics. On exit a final snapshot is saved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.watch(cmd.Context(), metricsAddr)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve /metrics on, e.g. :9090")
	return cmd
}

func (a *app) watch(ctx context.Context, metricsAddr string) error {
	c := a.container
	logger := c.Logger

	eventbus.Subscribe(c.Events, "watch.save-failed", 0, func(_ context.Context, e events.SnapshotSaveFailed) error {
		logger.Warn("Autosave could not write the tree", zap.String("reason", e.Reason))
		return nil
	})
	c.Events.SubscribeAll("watch.log", 100, func(_ context.Context, e events.DomainEvent) error {
		logger.Debug("Domain event", zap.String("type", e.GetEventType()), zap.String("event_id", e.GetEventID()))
		return nil
	})

	watcher, err := config.NewWatcher(a.loader, c.Config, logger)
	if err != nil {
		logger.Warn("Configuration reload disabled", zap.Error(err))
	} else {
		defer watcher.Stop()
		watcher.OnChange(c.ApplyConfig)
	}

	var server *http.Server
	if metricsAddr != "" {
		if c.Metrics == nil {
			return fmt.Errorf("--metrics-addr needs metrics enabled in the configuration")
		}
		server = &http.Server{
			Addr:              metricsAddr,
			Handler:           metricsRouter(c.Metrics.Registry()),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("Serving metrics", zap.String("addr", metricsAddr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	c.Start(ctx)
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}
	c.Shutdown(shutdownCtx)
	return nil
}

// metricsRouter serves the collector's registry and a liveness check
func metricsRouter(registry *prometheus.Registry) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return router
}
