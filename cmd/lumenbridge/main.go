// Lumen Bridge - Smart Lighting Gateway
//
// This is the main entry point for the Lumen Bridge gateway. It unifies
// three transports to the same lighting devices:
//   - LAN: direct UDP control on the local network
//   - Radio: advertisement frames relayed by external receivers
//   - Cloud: the vendor's MQTT endpoint, command fallback and push state
//
// Reconciled device state and scene catalogs are published to the local
// automation bus; intents from the bus are dispatched back to devices.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/lumen-bridge/internal/gateway"
	"github.com/nerrad567/lumen-bridge/internal/infrastructure/config"
	"github.com/nerrad567/lumen-bridge/internal/infrastructure/database"
	"github.com/nerrad567/lumen-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/lumen-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/lumen-bridge/internal/infrastructure/mqtt"
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
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Lumen Bridge",
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

	// Connect to the automation bus
	busClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := busClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Set up MQTT logging callbacks
	busClient.SetLogger(log)
	busClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	busClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to the vendor cloud broker (optional)
	var cloudClient *mqtt.Client
	if cfg.Cloud.Enabled {
		cloudClient, err = mqtt.Connect(cloudBrokerConfig(cfg))
		if err != nil {
			return fmt.Errorf("connecting to vendor cloud: %w", err)
		}
		defer func() {
			log.Info("disconnecting from vendor cloud")
			if closeErr := cloudClient.Close(); closeErr != nil {
				log.Error("error closing cloud connection", "error", closeErr)
			}
		}()
		log.Info("vendor cloud connected",
			"broker", fmt.Sprintf("%s:%d", cfg.Cloud.Broker.Host, cfg.Cloud.Broker.Port),
		)

		cloudClient.SetLogger(log)
		cloudClient.SetOnDisconnect(func(err error) {
			log.Warn("vendor cloud disconnected", "error", err)
		})
	} else {
		log.Info("vendor cloud disabled")
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
	} else {
		log.Info("InfluxDB disabled")
	}

	// Assemble the gateway. Optional collaborators stay nil interface
	// values when absent so the gateway's nil checks hold.
	opts := gateway.Options{
		Config: cfg,
		Logger: log,
		Broker: busClient,
		DB:     db,
	}
	if cloudClient != nil {
		opts.CloudBroker = cloudClient
	}
	if influxClient != nil {
		opts.Metrics = influxClient
	}

	g, err := gateway.New(opts)
	if err != nil {
		return fmt.Errorf("assembling gateway: %w", err)
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, busClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, starting gateway")

	// Blocks until the context is cancelled or a component fails.
	if err := g.Run(ctx); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. InfluxDB (if enabled)
	// 2. Vendor cloud (if enabled)
	// 3. MQTT
	// 4. Database

	log.Info("Lumen Bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LUMEN_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LUMEN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// cloudBrokerConfig synthesises an MQTT client config for the vendor
// broker from the cloud section. The vendor endpoint ignores our QoS
// preferences above 1 and we never let it buffer long reconnect storms.
func cloudBrokerConfig(cfg *config.Config) config.MQTTConfig {
	broker := cfg.Cloud.Broker
	if broker.ClientID == "" {
		broker.ClientID = cfg.MQTT.Broker.ClientID + "-cloud"
	}
	return config.MQTTConfig{
		Broker:    broker,
		Auth:      cfg.Cloud.Auth,
		QoS:       1,
		Reconnect: cfg.MQTT.Reconnect,
	}
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - busClient: Automation bus client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, busClient *mqtt.Client, influxClient *influxdb.Client) error {
	// Check database
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// Check MQTT
	if err := busClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	// Check InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
