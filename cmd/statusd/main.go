// Command statusd is a minimal wiring example: it embeds the observability
// core in an HTTP server, instruments every request, registers a couple of
// health probes and exposes the status endpoints.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thc1006/obscore/pkg/config"
	"github.com/thc1006/obscore/pkg/core"
	"github.com/thc1006/obscore/pkg/handlers"
	"github.com/thc1006/obscore/pkg/health"
)

func main() {
	cfg := config.FromEnv()
	if path := os.Getenv("OBSCORE_CONFIG"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			slog.Error("failed to load config", "path", path, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	promRegistry := prometheus.NewRegistry()
	obs := core.New(cfg, &core.Options{Prometheus: promRegistry})
	defer obs.Close()

	// Probes for the dependencies this demo pretends to have.
	obs.RegisterProbe("self", health.FromFunc(func(ctx context.Context) error {
		return nil
	}))
	if upstream := os.Getenv("UPSTREAM_HEALTH_URL"); upstream != "" {
		obs.RegisterProbe("upstream", health.HTTPProbe(upstream, nil))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := obs.Start(ctx); err != nil {
		slog.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	router := mux.NewRouter()
	router.Use(obs.Instrumenter().Middleware)
	handlers.New(obs, nil).Routes(router)
	router.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	logger := obs.Logger("statusd")

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", map[string]any{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", map[string]any{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", map[string]any{"error": err.Error()})
	}
}
