package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/gatesync/internal/config"
	"github.com/HerbHall/gatesync/internal/pipeline"
	"github.com/HerbHall/gatesync/internal/status"
	"github.com/HerbHall/gatesync/internal/store"
	"github.com/HerbHall/gatesync/internal/version"
)

func main() {
	configPath := flag.String("config", "gatesync.yaml", "path to configuration file")
	once := flag.Bool("once", false, "run a single sync and exit")
	date := flag.String("date", "", "sync this date (YYYY-MM-DD) instead of today")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("gatesync starting", zap.String("version", version.Short()))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	db, err := store.New(cfg.StorePath)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.Migrate(ctx, store.Migrations); err != nil {
		logger.Fatal("failed to migrate store", zap.Error(err))
	}

	metrics := status.NewMetrics()
	p, err := pipeline.New(cfg, db, metrics, logger)
	if err != nil {
		logger.Fatal("failed to build pipeline", zap.Error(err))
	}

	day := time.Now()
	if *date != "" {
		day, err = time.ParseInLocation("2006-01-02", *date, time.Local)
		if err != nil {
			logger.Fatal("invalid -date", zap.String("date", *date), zap.Error(err))
		}
	}

	if *once {
		if err := p.Run(ctx, day); err != nil {
			logger.Error("sync failed", zap.Error(err))
			os.Exit(1)
		}
		logger.Info("sync completed")
		return
	}

	// Status server, when configured.
	var srv *status.Server
	if cfg.StatusListen != "" {
		srv = status.New(cfg.StatusListen,
			store.NewRunRepository(db.DB()),
			store.NewAddressRepository(db.DB()),
			metrics, logger)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Fatal("status server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()

	logger.Info("gatesync ready", zap.Duration("interval", cfg.SyncInterval))

	runOnce := func() {
		if err := p.Run(ctx, time.Now()); err != nil {
			logger.Error("sync failed", zap.Error(err))
		}
	}
	runOnce()

	for {
		select {
		case <-ticker.C:
			runOnce()
		case sig := <-sigCh:
			logger.Info("received shutdown signal", zap.String("signal", sig.String()))
			cancel()
			if srv != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Error("status server shutdown error", zap.Error(err))
				}
				shutdownCancel()
			}
			logger.Info("gatesync stopped")
			return
		}
	}
}
