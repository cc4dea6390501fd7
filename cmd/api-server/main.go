package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-availability/internal/api"
	"github.com/hackgods/clinic-availability/internal/appointment"
	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/bootstrap"
	"github.com/hackgods/clinic-availability/internal/config"
	"github.com/hackgods/clinic-availability/internal/logging"
	"github.com/hackgods/clinic-availability/internal/metrics"
	"github.com/hackgods/clinic-availability/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("store", cfg.StoreBackend),
		zap.String("feed", cfg.FeedBackend),
		zap.String("auth", cfg.AuthMode),
		zap.String("timezone", cfg.Location.String()))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Open(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("open backends", zap.Error(err))
	}
	defer deps.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	mgr := availability.NewManager(deps.Directory, deps.Ledger, deps.ManagerOptions(cfg, logger, m)...)
	appointments := appointment.NewService(deps.Ledger, deps.Feed, logger)
	people := users.NewService(deps.Directory, deps.Accounts, deps.Feed, logger)

	handler := api.NewRouter(api.RouterConfig{
		Slots:             mgr,
		Directory:         deps.Directory,
		Appointments:      appointments,
		Users:             people,
		Verifier:          deps.Verifier,
		Metrics:           m,
		Gatherer:          reg,
		Checks:            deps.Checks,
		Logger:            logger,
		Env:               cfg.Env,
		Version:           cfg.Version,
		BookingRatePerMin: cfg.BookingRatePerMin,
	})

	// no WriteTimeout: slot and appointment streams stay open. BaseContext
	// ends those streams once a shutdown signal arrives.
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return rootCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	logger.Info("shutting down api-server")
}
