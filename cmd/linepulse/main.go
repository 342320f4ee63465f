package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/linepulse-lab/linepulse/internal/aggregation"
	corecfg "github.com/linepulse-lab/linepulse/internal/core/config"
	"github.com/linepulse-lab/linepulse/internal/core/line"
	"github.com/linepulse-lab/linepulse/internal/core/storage/postgres"
	"github.com/linepulse-lab/linepulse/internal/ingestion"
	"github.com/linepulse-lab/linepulse/internal/migrations"
	"github.com/linepulse-lab/linepulse/internal/projection"
	"github.com/linepulse-lab/linepulse/internal/retention"
	"github.com/linepulse-lab/linepulse/internal/server"
)

func main() {
	configPath := flag.String("config", "linepulse.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "config", cfg)

	// 2. Initialize Storage (PostgreSQL)
	dbAdapter, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer dbAdapter.Close()

	// 2.1. Run Database Migrations
	if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	// 3. Load the line configuration (stations + scheduled breaks)
	lineCfg, err := line.LoadDir(cfg.Line.ConfigDir)
	if err != nil {
		slog.Error("Failed to load line configuration", "dir", cfg.Line.ConfigDir, "error", err)
		os.Exit(1)
	}
	holder := line.NewHolder(lineCfg)
	slog.Info("Loaded line configuration",
		"stations", len(lineCfg.Stations()),
		"scheduled_breaks", len(lineCfg.BreakDefinitions()),
	)

	// 4. Initialize Retention
	policies, err := cfg.RetentionPolicies()
	if err != nil {
		slog.Error("Invalid retention policies", "error", err)
		os.Exit(1)
	}
	retentionMgr, err := retention.NewManager(dbAdapter, policies)
	if err != nil {
		slog.Error("Failed to initialize retention manager", "error", err)
		os.Exit(1)
	}
	retentionScheduler := retention.NewScheduler(cfg.RetentionInterval(), retentionMgr)

	// 5. Initialize Aggregation
	aggregator := aggregation.NewService(dbAdapter)

	// 6. Initialize Ingestion and Projection
	ingestionSvc := ingestion.NewService(dbAdapter, dbAdapter, holder, cfg.Server.MaxBodySizeMB)
	projectionSvc := projection.NewService(aggregator, dbAdapter, dbAdapter, holder, retentionMgr)

	// 7. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), dbAdapter.DB(), holder, cfg.Server.Mode)
	ingestionSvc.RegisterRoutes(srv.Engine)
	projectionSvc.RegisterRoutes(srv.Engine)

	// 8. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Retention.Enabled {
		go func() {
			if err := retentionScheduler.Start(ctx); err != nil {
				slog.Error("Retention scheduler stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Retention scheduler disabled by config")
	}

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
