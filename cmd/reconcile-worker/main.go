package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/bootstrap"
	"github.com/hackgods/clinic-availability/internal/config"
	"github.com/hackgods/clinic-availability/internal/logging"
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
	logger = logger.With(zap.String("component", "reconcile-worker"))

	if cfg.StoreBackend == config.BackendMemory {
		logger.Fatal("reconcile worker needs a shared store, STORE_BACKEND=memory has nothing to repair")
	}

	logger.Info("reconcile worker starting",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
		zap.Duration("grace", cfg.ReconcileGrace))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Open(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("open backends", zap.Error(err))
	}
	defer deps.Close()

	mgr := availability.NewManager(deps.Directory, deps.Ledger, deps.ManagerOptions(cfg, logger, nil)...)

	// Run once at startup
	runOnce(rootCtx, mgr, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping reconcile worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, mgr, logger)
		}
	}
}

func runOnce(ctx context.Context, mgr *availability.Manager, logger *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := time.Now()
	report, err := mgr.ReconcileBookings(runCtx)
	if err != nil {
		logger.Error("reconcile run failed", zap.Error(err))
		return
	}
	logger.Info("reconcile run complete",
		zap.Int("doctors", report.Doctors),
		zap.Int("checked", report.Checked),
		zap.Int("released", report.Released),
		zap.Int("errors", report.Errors),
		zap.Duration("took", time.Since(start)))
}
