package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/socdash/internal/config"
	"github.com/hamed0406/socdash/internal/engine"
	"github.com/hamed0406/socdash/internal/httpapi"
	apimw "github.com/hamed0406/socdash/internal/httpapi/middleware"
	"github.com/hamed0406/socdash/internal/logging"
	"github.com/hamed0406/socdash/internal/notify"
	"github.com/hamed0406/socdash/internal/probe"
	"github.com/hamed0406/socdash/internal/repo"
	"github.com/hamed0406/socdash/internal/repo/filestore"
	"github.com/hamed0406/socdash/internal/repo/memory"
	pg "github.com/hamed0406/socdash/internal/repo/postgres"
	"github.com/hamed0406/socdash/internal/scheduler"
	"github.com/hamed0406/socdash/internal/telemetry"
)

var version = "dev"

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir, "socdash.log", cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("api_exit", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTraceProvider(ctx, cfg.OTLPEndpoint, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = multierr.Append(err, shutdownTracing(sctx))
	}()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	hub := httpapi.NewHub()
	notifiers := notify.Multi{hub}
	if s := notify.NewSlack(cfg.SlackWebhookURL); s != nil {
		notifiers = append(notifiers, s)
	}
	if w := notify.NewWebhook(cfg.AlertWebhookURL); w != nil {
		notifiers = append(notifiers, w)
	}

	eng := engine.New(
		logger,
		filestore.NewServiceFile(cfg.ServicesFile, logger),
		store,
		buildChecker(cfg),
		notifiers,
		cfg.MaxConcurrent,
	)

	api := httpapi.NewServer(logger, eng, hub)
	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(keys, cfg.AllowedOrigins, cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scheduler.New(logger, eng, cfg.CheckInterval).Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("api_listen",
			zap.String("addr", cfg.Addr),
			zap.String("services_file", cfg.ServicesFile),
			zap.Duration("interval", cfg.CheckInterval),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("api_shutdown")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// openStore picks Postgres when DATABASE_URL is set, else the JSON file
// store, or memory when STORE=memory.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.Store, func(), error) {
	switch {
	case cfg.DatabaseURL != "":
		s, err := pg.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("store_selected", zap.String("store", "postgres"))
		return s, s.Close, nil
	case cfg.Store == "memory":
		logger.Info("store_selected", zap.String("store", "memory"))
		return memory.New(), func() {}, nil
	default:
		s, err := filestore.Open(cfg.DataDir, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("store_selected", zap.String("store", "file"), zap.String("dir", cfg.DataDir))
		return s, func() {}, nil
	}
}

func buildChecker(cfg config.Config) probe.Checker {
	var c probe.Checker = probe.NewProber(cfg.ProbeTimeout, cfg.HTTPTLS)
	if cfg.RetryAttempts > 1 {
		c = &probe.RetryChecker{Inner: c, Attempts: cfg.RetryAttempts, Backoff: cfg.RetryBackoff}
	}
	if cfg.DNSOnFailure {
		c = probe.NewDNSAnnotator(c)
	}
	return c
}
