// Package main wires the Serene core services: local storage, the remote API
// client, the content sync coordinator, the offline queue, the activity
// logger, the analytics buffer, and the background scheduler.
//
// The same composition runs as a standalone binary for desktop and as the
// embedded core for mobile shells.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/serenemind/serene/backend/internal/activity"
	"github.com/serenemind/serene/backend/internal/analytics"
	"github.com/serenemind/serene/backend/internal/api"
	"github.com/serenemind/serene/backend/internal/config"
	"github.com/serenemind/serene/backend/internal/content"
	"github.com/serenemind/serene/backend/internal/logging"
	"github.com/serenemind/serene/backend/internal/network"
	"github.com/serenemind/serene/backend/internal/offline"
	"github.com/serenemind/serene/backend/internal/scheduler"
	"github.com/serenemind/serene/backend/internal/storage"
	boltstore "github.com/serenemind/serene/backend/internal/storage/bbolt"
	sqlitestore "github.com/serenemind/serene/backend/internal/storage/sqlite"
)

// Version is set at build time.
var Version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "serene-core: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to YAML config file")
	flag.Parse()

	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logging.Init(os.Stdout, logging.LogLevel(cfg.LogLevel))
	log := logging.Get()
	log.Info("serene core starting", map[string]interface{}{
		"version": Version,
		"backend": cfg.StorageBackend,
	})

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := api.NewHTTPClient(api.Options{
		BaseURL:      cfg.APIBaseURL,
		Token:        cfg.APIToken,
		Timeout:      cfg.RequestTimeout,
		RateLimitRPS: cfg.RateLimitRPS,
	})
	if err != nil {
		return err
	}

	monitor := network.NewMonitor(log)
	probe := network.NewProbe(monitor, client, cfg.ProbeInterval)

	contents := content.NewCoordinator(store, client, log, content.Config{
		StalenessThreshold: cfg.StalenessThreshold,
	})
	queue := offline.NewManager(store, client, monitor.Online, log, offline.Config{
		BatchSize: cfg.ReplayBatchSize,
	})
	activities := activity.NewLogger(store, client, log)
	events := analytics.NewBuffer(store, client, log, analytics.Config{
		FlushInterval:  cfg.FlushInterval,
		FlushThreshold: cfg.FlushThreshold,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	contents.Initialize(ctx)
	queue.Initialize(ctx)
	activities.Initialize(ctx)
	events.Initialize(ctx)

	sched := scheduler.New(monitor, contents, queue, activities, events, log, scheduler.Config{
		ReplayInterval: cfg.ReplayInterval,
	})

	probe.Start()
	events.Start()
	sched.Start()

	log.Info("serene core ready", nil)
	<-ctx.Done()
	log.Info("shutting down", nil)

	sched.Stop()
	probe.Stop()
	events.Stop()
	contents.Shutdown()

	return nil
}

// openStore opens the configured local storage backend.
func openStore(cfg config.Config) (storage.Store, error) {
	switch cfg.StorageBackend {
	case "sqlite":
		return sqlitestore.Open(cfg.DataDir)
	case "bbolt":
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		return boltstore.Open(filepath.Join(cfg.DataDir, "serene.db"))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
