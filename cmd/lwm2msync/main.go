// lwm2msync keeps a backend's view of LwM2M devices in step with the
// devices themselves.
//
// It consumes registrations, read responses and notifications from an LwM2M
// server stack over MQTT, applies per-device reporting profiles and publishes
// attributes and telemetry to the backend. An admin API exposes sessions and
// profiles to operators.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-logic-lwm2m/migrations"

	"github.com/nerrad567/gray-logic-lwm2m/internal/api"
	"github.com/nerrad567/gray-logic-lwm2m/internal/backend"
	bridge "github.com/nerrad567/gray-logic-lwm2m/internal/bridges/lwm2m"
	"github.com/nerrad567/gray-logic-lwm2m/internal/engine"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-lwm2m/internal/profile"
	"github.com/nerrad567/gray-logic-lwm2m/internal/session"
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

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting lwm2msync",
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

	profiles := profile.NewSQLiteRepository(db.DB)
	credentials := backend.NewCredentialStore(db.DB)
	if cfg.Engine.ProfilesFile != "" {
		if seedErr := seedFromFile(ctx, cfg.Engine.ProfilesFile, profiles, credentials, log); seedErr != nil {
			return seedErr
		}
	}

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	go hub.Run(hubCtx)

	publisherOpts := backend.PublisherOptions{
		MQTT:        mqttClient,
		Topics:      mqttClient.Topics(),
		QoS:         byte(cfg.MQTT.QoS),
		Broadcaster: hub,
		Logger:      log.Component("backend"),
	}
	if influxClient != nil {
		publisherOpts.Telemetry = influxClient
	}
	publisher, err := backend.NewPublisher(publisherOpts)
	if err != nil {
		return fmt.Errorf("creating backend publisher: %w", err)
	}

	registry := session.NewRegistry()
	registry.SetLogger(log.Component("sessions"))

	lwm2mBridge, err := bridge.NewBridge(bridge.BridgeOptions{
		MQTTClient:     mqttClient,
		Topics:         mqttClient.Topics(),
		Profiles:       profiles,
		Sessions:       registry,
		Workers:        cfg.Bridge.Workers,
		QueueSize:      cfg.Bridge.QueueSize,
		HealthInterval: cfg.Bridge.HealthInterval,
		BridgeID:       cfg.Bridge.ID,
		Version:        version,
		Logger:         log.Component("bridge"),
	})
	if err != nil {
		return fmt.Errorf("creating LwM2M bridge: %w", err)
	}

	syncEngine, err := engine.New(engine.Options{
		Protocol:         lwm2mBridge,
		Backend:          publisher,
		Authenticator:    credentials,
		Profiles:         profiles,
		Registry:         registry,
		Logger:           log.Component("engine"),
		CommandTimeout:   cfg.Engine.CommandTimeout,
		DiscoveryTimeout: cfg.Engine.DiscoveryTimeout,
		ActivityInterval: cfg.Engine.ActivityInterval,
	})
	if err != nil {
		return fmt.Errorf("creating sync engine: %w", err)
	}

	syncEngine.Start()
	defer func() {
		log.Info("stopping sync engine")
		syncEngine.Stop()
	}()

	if err := lwm2mBridge.Start(ctx, syncEngine); err != nil {
		return fmt.Errorf("starting LwM2M bridge: %w", err)
	}
	defer func() {
		log.Info("stopping LwM2M bridge")
		lwm2mBridge.Stop()
	}()
	log.Info("LwM2M bridge started",
		"server_prefix", cfg.MQTT.Topics.ServerPrefix,
		"backend_prefix", cfg.MQTT.Topics.BackendPrefix,
		"workers", cfg.Bridge.Workers,
	)

	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log.Component("api"),
		Engine:   syncEngine,
		Profiles: profiles,
		Hub:      hub,
		Schema:   db,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API server, bridge, engine,
	// hub, InfluxDB, MQTT, database.

	log.Info("lwm2msync stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LWM2MSYNC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LWM2MSYNC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// seedFromFile stores profiles and device credentials from the seed file.
// Rows that already exist are left untouched.
func seedFromFile(ctx context.Context, path string, profiles *profile.SQLiteRepository, credentials *backend.CredentialStore, log *logging.Logger) error {
	defs, err := profile.LoadFile(path)
	if err != nil {
		return fmt.Errorf("loading profiles file: %w", err)
	}
	seeded, err := profile.Seed(ctx, profiles, defs)
	if err != nil {
		return fmt.Errorf("seeding profiles: %w", err)
	}

	creds, err := backend.LoadCredentialsFile(path)
	if err != nil {
		return fmt.Errorf("loading device credentials: %w", err)
	}
	admitted, err := credentials.Seed(ctx, creds)
	if err != nil {
		return fmt.Errorf("seeding device credentials: %w", err)
	}

	log.Info("seed file applied",
		"path", path,
		"profiles", len(defs),
		"profiles_seeded", seeded,
		"devices", len(creds),
		"devices_seeded", admitted,
	)
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil when InfluxDB is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
