package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KevinZhao/s3sync/internal/logger"
)

// metricsServer wraps the /metrics HTTP listener started alongside the
// worker loop.
type metricsServer struct {
	srv *http.Server
}

func startMetricsServer(reg *prometheus.Registry, port int) *metricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", logger.Err(err))
		}
	}()
	logger.Info("metrics server listening", "port", port)

	return &metricsServer{srv: srv}
}

func (s *metricsServer) Shutdown(ctx context.Context) {
	if s == nil || s.srv == nil {
		return
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		logger.Error("metrics server shutdown error", logger.Err(err))
	}
}
