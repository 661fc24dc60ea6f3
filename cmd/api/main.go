package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/keepwarm/internal/config"
	"github.com/hamed0406/keepwarm/internal/httpapi"
	"github.com/hamed0406/keepwarm/internal/logging"
	"github.com/hamed0406/keepwarm/internal/notify"
	"github.com/hamed0406/keepwarm/internal/probe"
	"github.com/hamed0406/keepwarm/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	policy, err := probe.ParsePolicy(cfg.SuccessPolicy)
	if err != nil {
		return err
	}

	var notifier scheduler.Notifier
	if slack := notify.NewSlack(cfg.SlackWebhook); slack != nil {
		notifier = notify.Multi{slack}
	}

	sched := scheduler.New(logger, probe.WithDNSDiagnosis(probe.NewHTTPChecker(policy)), scheduler.Options{
		HistorySize:    cfg.HistorySize,
		DefaultTimeout: cfg.DefaultTimeout(),
		Notifier:       notifier,
	})
	seed(logger, sched, cfg.TargetsFile)

	api := httpapi.NewServer(logger, sched, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AdminRPM:       cfg.AdminRPM,
		AdminBurst:     cfg.AdminBurst,
		HistoryLimit:   cfg.HistorySize,
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(api.Close)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("api_listen",
			zap.String("addr", cfg.Addr),
			zap.String("policy", string(policy)),
			zap.Int("history_size", cfg.HistorySize),
		)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		logger.Info("shutdown_started")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	err = multierr.Combine(err, srv.Shutdown(shutdownCtx), sched.Shutdown(shutdownCtx))
	if err != nil {
		logger.Error("shutdown_failed", zap.Error(err))
		return err
	}
	logger.Info("shutdown_complete")
	return nil
}

func seed(logger *zap.Logger, sched *scheduler.Scheduler, path string) {
	entries, err := config.LoadTargets(path)
	if err != nil {
		logger.Warn("targets_file_unreadable", zap.String("path", path), zap.Error(err))
		return
	}
	seeds := make([]scheduler.SeedTarget, 0, len(entries))
	for _, e := range entries {
		seeds = append(seeds, scheduler.SeedTarget{Spec: e.Spec(), AutoStart: e.AutoStart})
	}
	added, err := sched.Seed(seeds)
	for _, e := range multierr.Errors(err) {
		logger.Warn("seed_target_skipped", zap.Error(e))
	}
	logger.Info("targets_seeded",
		zap.String("path", path),
		zap.Int("count", len(added)),
		zap.Int("running", sched.Running()),
	)
}
