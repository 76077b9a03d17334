package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/hamed0406/socdash/internal/config"
	"github.com/hamed0406/socdash/internal/logging"
	"github.com/hamed0406/socdash/internal/shipper"
)

func main() {
	cfg := config.ShipperFromEnv()
	logger, err := logging.NewLogger(cfg.LogDir, "shipper.log", cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src := shipper.ChooseSource(cfg.Files, cfg.PollInterval, logger)
	logger.Info("shipper_config",
		zap.String("soc_url", cfg.SOCURL),
		zap.String("source", src.Name()),
		zap.Strings("keywords", cfg.Keywords),
	)

	s := shipper.New(logger, src, shipper.NewMatcher(cfg.Keywords), shipper.NewClient(cfg.SOCURL, cfg.APIKey))
	if err := s.Run(ctx); err != nil {
		_ = logger.Sync()
		os.Exit(1)
	}
}
