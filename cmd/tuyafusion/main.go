// Tuya Fusion Core - multi-source Tuya device reconciliation engine.
//
// This is the main entry point for the Tuya Fusion service. It fetches
// device snapshots from every configured cloud account, merges them
// into one canonical registry, arbitrates live status reports between
// push channels, and exposes the merged view over a REST API and
// WebSocket feed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/tuya-fusion-core/migrations"

	"github.com/nerrad567/tuya-fusion-core/internal/api"
	"github.com/nerrad567/tuya-fusion-core/internal/history"
	"github.com/nerrad567/tuya-fusion-core/internal/infrastructure/config"
	"github.com/nerrad567/tuya-fusion-core/internal/infrastructure/database"
	"github.com/nerrad567/tuya-fusion-core/internal/infrastructure/logging"
	"github.com/nerrad567/tuya-fusion-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/tuya-fusion-core/internal/merge"
	"github.com/nerrad567/tuya-fusion-core/internal/point"
	"github.com/nerrad567/tuya-fusion-core/internal/reconcile"
	"github.com/nerrad567/tuya-fusion-core/internal/registry"
	"github.com/nerrad567/tuya-fusion-core/internal/snapshot"
	"github.com/nerrad567/tuya-fusion-core/internal/tuya"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Tuya Fusion Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database and run migrations
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Merge engine with discrepancy audit trail
	recorder := snapshot.NewDiscrepancyRecorder(db.DB)
	recorder.SetLogger(log)
	defer recorder.Close()

	engine := merge.New()
	engine.SetLogger(log)
	engine.SetRecorder(recorder)

	handler := reconcile.NewHandler(
		reconcile.NewArbiter(cfg.Reconcile.Hysteresis),
		reconcile.DefaultRules(),
	)
	handler.SetLogger(log)

	manager := registry.NewManager(engine, handler)
	manager.SetLogger(log)

	// Preload the registry from the last persisted snapshots so the
	// API serves devices before the first cloud fetch completes.
	repo := snapshot.NewSQLiteRepository(db.DB)
	preloaded, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading snapshots: %w", err)
	}
	for _, dev := range preloaded {
		manager.RegisterDevice(dev.Source, dev)
	}
	log.Info("registry preloaded from snapshots", "devices", len(preloaded))

	// Construct sources, fetch their device snapshots and connect
	// their push channels.
	sources := make([]*registry.CloudSource, 0, len(cfg.Sources))
	var pushClients []*mqtt.Client
	for _, srcCfg := range cfg.Sources {
		client := tuya.NewClient(tuya.Config{
			Name:     srcCfg.Name,
			BaseURL:  srcCfg.BaseURL,
			ClientID: srcCfg.ClientID,
			Secret:   srcCfg.Secret,
			UID:      srcCfg.UID,
			Timeout:  cfg.FetchTimeout(),
			Workers:  cfg.Reconcile.Workers,
		})
		client.SetLogger(log)

		src := registry.NewCloudSource(client, srcCfg.OpenAPI())
		if regErr := manager.RegisterSource(src); regErr != nil {
			return fmt.Errorf("registering source %s: %w", srcCfg.Name, regErr)
		}
		sources = append(sources, src)

		devices, fetchErr := src.Refresh(ctx)
		if fetchErr != nil {
			// A source being down must not stop the service; its
			// snapshots load from the database and its push channel
			// still connects.
			log.Error("initial fetch failed", "source", srcCfg.Name, "error", fetchErr)
		} else {
			manager.RegisterAll(srcCfg.Name, devices)
			log.Info("source fetched", "source", srcCfg.Name, "devices", len(devices))
		}

		if srcCfg.MQTT.Broker.Host != "" {
			push, pushErr := connectPushChannel(srcCfg, manager, log)
			if pushErr != nil {
				return fmt.Errorf("push channel for %s: %w", srcCfg.Name, pushErr)
			}
			pushClients = append(pushClients, push)
			defer func(name string) {
				log.Info("closing push channel", "source", name)
				if closeErr := push.Close(); closeErr != nil {
					log.Error("error closing push channel", "source", name, "error", closeErr)
				}
			}(srcCfg.Name)
		} else {
			log.Warn("source has no push channel configured", "source", srcCfg.Name)
		}
	}

	// Persist merged snapshots whenever a status batch commits. The
	// listener runs on the push handler's goroutine, so the SQLite
	// write goes through the async writer queue.
	writer := snapshot.NewWriter(repo)
	writer.SetLogger(log)
	defer writer.Close()
	manager.AddListener(func(deviceID string, _ []string) {
		if dev, ok := manager.Snapshot(deviceID); ok {
			writer.Enqueue(dev)
		}
	})

	// Save the freshly merged view once up front.
	saveAll(ctx, repo, manager, log)

	// InfluxDB status history (optional)
	var hist *history.Client
	if cfg.InfluxDB.Enabled {
		var histErr error
		hist, histErr = history.Connect(cfg.InfluxDB)
		if histErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", histErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := hist.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		hist.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		manager.AddListener(hist.Listener(manager))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Periodic cloud refresh keeps specs and strategy tables current
	// for devices added or re-paired after startup.
	if cfg.Reconcile.RefreshInterval > 0 {
		go refreshLoop(ctx, cfg.RefreshInterval(), sources, manager, log)
	}

	// HTTP API and WebSocket feed
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log,
		Registry: manager,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	if err := healthCheck(ctx, db, pushClients, hist); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Persist the final state before the deferred teardown runs.
	saveAll(context.Background(), repo, manager, log)

	log.Info("Tuya Fusion Core stopped")
	return nil
}

// connectPushChannel connects one source's broker and routes its push
// payloads into the registry. The client reconnects on its own; a
// failed initial connection is fatal because the source would silently
// miss status reports.
func connectPushChannel(srcCfg config.SourceConfig, manager *registry.Manager, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(srcCfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}

	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("push channel connected", "source", srcCfg.Name)
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("push channel disconnected", "source", srcCfg.Name, "error", err)
	})

	name := srcCfg.Name
	if err := client.SubscribePush(func(_ string, payload []byte) error {
		manager.OnMessage(name, payload)
		return nil
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("subscribing: %w", err)
	}

	log.Info("push channel subscribed",
		"source", srcCfg.Name,
		"broker", fmt.Sprintf("%s:%d", srcCfg.MQTT.Broker.Host, srcCfg.MQTT.Broker.Port),
		"topic", srcCfg.MQTT.Topic,
	)
	return client, nil
}

// refreshLoop re-fetches every source on the configured interval and
// feeds the fresh snapshots back through the merge pipeline.
func refreshLoop(ctx context.Context, interval time.Duration, sources []*registry.CloudSource, manager *registry.Manager, log *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, src := range sources {
				devices, err := src.Refresh(ctx)
				if err != nil {
					log.Warn("periodic refresh failed", "source", src.Name(), "error", err)
					continue
				}
				manager.RegisterAll(src.Name(), devices)
				log.Debug("periodic refresh complete", "source", src.Name(), "devices", len(devices))
			}
		}
	}
}

// saveAll persists every merged device snapshot.
func saveAll(ctx context.Context, repo snapshot.Repository, manager *registry.Manager, log *logging.Logger) {
	var failed int
	var devices []*point.Device
	for _, dev := range manager.SnapshotMap() {
		devices = append(devices, dev)
	}
	for _, dev := range devices {
		if err := repo.Save(ctx, dev); err != nil {
			failed++
			log.Warn("snapshot save failed", "device_id", dev.ID, "error", err)
		}
	}
	if failed == 0 {
		log.Info("snapshots persisted", "devices", len(devices))
	}
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - pushClients: Connected push-channel clients (may be empty)
//   - histClient: InfluxDB history client (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, pushClients []*mqtt.Client, histClient *history.Client) error {
	// Check database
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// Check push channels
	for _, client := range pushClients {
		if err := client.HealthCheck(ctx); err != nil {
			return fmt.Errorf("push channel: %w", err)
		}
	}

	// Check InfluxDB (if enabled)
	if histClient != nil {
		if err := histClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// getConfigPath returns the configuration file path.
// Uses TUYAFUSION_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("TUYAFUSION_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
