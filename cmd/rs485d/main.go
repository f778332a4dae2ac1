// RS-485 Bridge Core
//
// This is the main entry point for the RS-485 bridge core daemon. It is
// the native sidecar for the desktop frontend:
//   - Supervises the telemetry backend process with a TCP watchdog
//   - Owns the RS-485 serial port session
//   - Ingests telemetry frames into SQLite history and the realtime stream
//   - Serves the loopback HTTP/WebSocket API the frontend talks to
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/Rushikesh-Palande/rs-485/migrations"

	"github.com/Rushikesh-Palande/rs-485/internal/api"
	"github.com/Rushikesh-Palande/rs-485/internal/infrastructure/config"
	"github.com/Rushikesh-Palande/rs-485/internal/infrastructure/database"
	"github.com/Rushikesh-Palande/rs-485/internal/infrastructure/influxdb"
	"github.com/Rushikesh-Palande/rs-485/internal/infrastructure/logging"
	"github.com/Rushikesh-Palande/rs-485/internal/infrastructure/mqtt"
	"github.com/Rushikesh-Palande/rs-485/internal/logstore"
	"github.com/Rushikesh-Palande/rs-485/internal/serialport"
	"github.com/Rushikesh-Palande/rs-485/internal/supervisor"
	"github.com/Rushikesh-Palande/rs-485/internal/telemetry"
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
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	// This is the Go pattern for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting RS-485 bridge core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Telemetry pipeline: store, realtime fan-out, ingestor
	store := telemetry.NewStore(db)
	broadcaster := telemetry.NewBroadcaster(cfg.WebSocket.SendBuffer)

	ingestor := telemetry.NewIngestor(store, broadcaster)
	ingestor.SetLogger(log)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
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

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		if subErr := ingestor.Start(mqttClient, byte(cfg.MQTT.QoS)); subErr != nil {
			return fmt.Errorf("subscribing to telemetry topics: %w", subErr)
		}
		log.Info("telemetry ingest subscribed", "topic", mqtt.Topics{}.AllTelemetry())
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		ingestor.SetMetricWriter(influxClient)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Built-in telemetry simulator (optional, for frontend development
	// without real hardware)
	if cfg.Simulator.Enabled {
		interval := time.Duration(cfg.Simulator.IntervalMs) * time.Millisecond
		sim := telemetry.NewSimulator(cfg.Simulator.DeviceUID, interval, func(ev telemetry.Event) {
			ingestor.Process(ctx, ev, "simulator")
		})
		sim.SetLogger(log)
		go sim.Run(ctx)
		log.Info("telemetry simulator started",
			"device_uid", cfg.Simulator.DeviceUID,
			"interval_ms", cfg.Simulator.IntervalMs,
		)
	}

	// Serial port session manager
	serialManager := serialport.NewManager()
	serialManager.SetLogger(log)

	// Backend process supervisor (optional)
	var backendSupervisor *supervisor.Supervisor
	if cfg.Backend.Managed {
		backendSupervisor, err = startBackend(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("starting backend: %w", err)
		}
		defer func() {
			log.Info("stopping backend")
			if killErr := backendSupervisor.Kill(); killErr != nil {
				log.Error("error stopping backend", "error", killErr)
			}
		}()
	} else {
		log.Info("backend not managed, expecting external process",
			"host", cfg.Backend.Host,
			"port", cfg.Backend.Port,
		)
	}

	// Session log persistence
	logStore := logstore.New(cfg.Logs)
	logStore.SetLogger(log)

	// HTTP API and realtime stream
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log,
		Store:       store,
		Broadcaster: broadcaster,
		Serial:      serialManager,
		Supervisor:  backendSupervisor,
		Logs:        logStore,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Close the serial session before the deferred teardown so the port
	// is released even if a later Close hangs.
	if closeErr := serialManager.Close(); closeErr != nil {
		log.Error("error closing serial session", "error", closeErr)
	}

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Backend supervisor (if managed)
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if enabled)
	// 5. Database

	log.Info("RS-485 bridge core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses RS485_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("RS485_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// startBackend spawns the supervised backend process and launches its
// probe watchdog.
func startBackend(ctx context.Context, cfg *config.Config, log *logging.Logger) (*supervisor.Supervisor, error) {
	sup := supervisor.New(supervisor.Config{
		Name:             "backend",
		Binary:           cfg.Backend.Binary,
		Args:             cfg.Backend.Args,
		WorkDir:          cfg.Backend.WorkDir,
		Host:             cfg.Backend.Host,
		Port:             cfg.Backend.Port,
		Environment:      cfg.App.Environment,
		LogLevel:         cfg.Backend.LogLevel,
		ProbeInterval:    cfg.Backend.GetProbeInterval(),
		ProbeTimeout:     cfg.Backend.GetProbeTimeout(),
		FailureThreshold: cfg.Backend.FailureThreshold,
	})
	sup.SetLogger(log)

	log.Info("spawning backend",
		"binary", cfg.Backend.Binary,
		"host", cfg.Backend.Host,
		"port", cfg.Backend.Port,
	)

	if err := sup.Spawn(); err != nil {
		return nil, fmt.Errorf("spawning backend: %w", err)
	}

	go sup.Watch(ctx)

	log.Info("backend spawned, watchdog running",
		"probe_interval", cfg.Backend.GetProbeInterval(),
		"failure_threshold", cfg.Backend.FailureThreshold,
	)

	return sup, nil
}

// healthCheck verifies all infrastructure connections are healthy.
// MQTT and InfluxDB clients may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if err := apiServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
