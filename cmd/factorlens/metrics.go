package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/factorlens/internal/config"
)

const metricsShutdownTimeout = 5 * time.Second

// serveMetrics exposes the default Prometheus registry on /metrics and
// returns a function that shuts the server down. An empty listen address
// disables the endpoint.
func serveMetrics(cfg config.MetricsConfig, logger *zap.Logger) func() {
	if cfg.ListenAddr == "" {
		logger.Info("Metrics endpoint disabled")
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Serving metrics", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("Metrics server shutdown incomplete", zap.Error(err))
		}
	}
}
