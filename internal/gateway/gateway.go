package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/lumen-bridge/internal/bus"
	"github.com/nerrad567/lumen-bridge/internal/dispatch"
	"github.com/nerrad567/lumen-bridge/internal/infrastructure/config"
	"github.com/nerrad567/lumen-bridge/internal/infrastructure/database"
	"github.com/nerrad567/lumen-bridge/internal/reconcile"
	"github.com/nerrad567/lumen-bridge/internal/telemetry"
)

// Options carries the externally managed collaborators the gateway is
// assembled from. Config, Logger and Broker are required; the rest
// degrade gracefully when absent.
type Options struct {
	Config *config.Config
	Logger Logger

	// Broker is the automation bus connection.
	Broker mqttConn

	// CloudBroker is the vendor broker connection; nil disables the
	// cloud transport even when configured.
	CloudBroker mqttConn

	// DB enables registry persistence and the catalog cache.
	DB *database.DB

	// Metrics enables time-series recording.
	Metrics metricsWriter
}

// pollTimeout bounds the post-timeout convergence poll.
const pollTimeout = 5 * time.Second

// Gateway owns the assembled runtime: every transport, the update bus,
// the reconciliation engine, the dispatcher and the outward surfaces.
type Gateway struct {
	cfg    *config.Config
	logger Logger

	updates    *bus.Bus
	engine     *reconcile.Engine
	dispatcher *dispatch.Dispatcher
	registry   *Registry
	catalogs   *CatalogManager

	lan       *LANTransport   // nil when the LAN path is disabled
	cloud     *CloudTransport // nil when the cloud path is disabled
	radio     *RadioIngest    // nil when the radio path is disabled
	publisher *StatePublisher
	intents   *IntentRouter
}

// New assembles a gateway from its collaborators. No goroutines start
// until Run.
func New(opts Options) (*Gateway, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("gateway: config is required")
	}
	if opts.Broker == nil {
		return nil, fmt.Errorf("gateway: broker connection is required")
	}
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	qos := byte(cfg.MQTT.QoS) //nolint:gosec // Validated to 0-2 by config

	updates := bus.New(cfg.Gateway.BusCapacity)

	engine := reconcile.New(reconcile.Config{
		DebounceFast:   cfg.DebounceFast(),
		DebounceMedium: cfg.DebounceMedium(),
		DebounceSlow:   cfg.DebounceSlow(),
	}, updates)
	engine.SetLogger(logger)

	var sqlDB *sql.DB
	if opts.DB != nil {
		sqlDB = opts.DB.DB
	}

	offlineAfter := time.Duration(cfg.LAN.OfflineAfterSeconds) * time.Second
	registry := NewRegistry(sqlDB, offlineAfter)
	registry.SetLogger(logger)

	catalogs, err := NewCatalogManager(cfg.Catalog, sqlDB)
	if err != nil {
		return nil, fmt.Errorf("initialising catalogs: %w", err)
	}
	catalogs.SetLogger(logger)
	catalogs.SetPublisher(opts.Broker, qos)

	var lan *LANTransport
	if cfg.LAN.Enabled {
		lan = NewLANTransport(cfg.LAN, registry, updates)
		lan.SetLogger(logger)
	}

	var cloud *CloudTransport
	if cfg.Cloud.Enabled && opts.CloudBroker != nil {
		pollInterval := time.Duration(cfg.Cloud.PollIntervalSeconds) * time.Second
		cloud = NewCloudTransport(opts.CloudBroker, updates, registry, qos, pollInterval)
		cloud.SetLogger(logger)
	}

	// Interface values must stay nil when the transport is absent, so the
	// dispatcher's nil checks keep working.
	var localSender dispatch.LocalSender
	if lan != nil {
		localSender = lan
	}
	var cloudSender dispatch.Sender
	if cloud != nil {
		cloudSender = cloud
	}

	dispatcher := dispatch.New(dispatch.Config{
		OptimisticWindow: cfg.OptimisticWindow(),
		RetryBudget:      cfg.Gateway.RetryBudget,
		RetryBackoff:     cfg.RetryBackoff(),
	}, localSender, cloudSender, updates, catalogs)
	dispatcher.SetLogger(logger)
	engine.SetMatcher(dispatcher)
	if lan != nil {
		lan.SetConfirmer(dispatcher)
	}
	if cloud != nil {
		cloud.SetConfirmer(dispatcher)
	}

	var radio *RadioIngest
	if cfg.Radio.Enabled {
		radio = NewRadioIngest(opts.Broker, updates, qos, cfg.ReassemblyTimeout())
		radio.SetLogger(logger)
		radio.SetCatalogs(catalogs)
		radio.SetConfirmer(dispatcher)
	}

	publisher := NewStatePublisher(engine.Events(), opts.Broker, opts.Metrics, qos)
	publisher.SetLogger(logger)

	intents := NewIntentRouter(opts.Broker, registry, dispatcher, qos)
	intents.SetLogger(logger)

	g := &Gateway{
		cfg:        cfg,
		logger:     logger,
		updates:    updates,
		engine:     engine,
		dispatcher: dispatcher,
		registry:   registry,
		catalogs:   catalogs,
		lan:        lan,
		cloud:      cloud,
		radio:      radio,
		publisher:  publisher,
		intents:    intents,
	}

	registry.SetOnBind(g.handleDiscovery)
	if cfg.Gateway.PollAfterTimeout {
		dispatcher.SetTimeoutHandler(g.handleDispatchTimeout)
	}

	return g, nil
}

// Registry exposes the device fleet for callers that enumerate devices.
func (g *Gateway) Registry() *Registry { return g.registry }

// Snapshot returns the reconciled state of one device.
func (g *Gateway) Snapshot(device telemetry.DeviceID) (telemetry.DeviceSnapshot, bool) {
	return g.engine.Snapshot(device)
}

// Snapshots returns the reconciled state of every known device.
func (g *Gateway) Snapshots() []telemetry.DeviceSnapshot {
	return g.engine.Snapshots()
}

// Run starts every component and blocks until the context is cancelled
// or a component fails. Shutdown drains the component goroutines.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := g.registry.Load(ctx); err != nil {
		return err
	}

	if g.lan != nil {
		if err := g.lan.Start(ctx); err != nil {
			return err
		}
		defer g.lan.Close() //nolint:errcheck // Socket teardown on shutdown
	}
	if g.radio != nil {
		if err := g.radio.Start(); err != nil {
			return err
		}
	}
	if g.cloud != nil {
		if err := g.cloud.Start(); err != nil {
			return err
		}
	}
	if err := g.intents.Start(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 8)
	launch := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}()
	}

	launch("reconcile engine", g.engine.Run)
	launch("dispatcher", g.dispatcher.Run)
	launch("state publisher", g.publisher.Run)
	if g.radio != nil {
		launch("radio ingest", g.radio.Run)
	}
	if g.cloud != nil {
		launch("cloud transport", g.cloud.Run)
	}

	g.logger.Info("gateway running",
		"lan", g.lan != nil,
		"radio", g.radio != nil,
		"cloud", g.cloud != nil,
		"devices", g.registry.Count(),
	)

	<-ctx.Done()
	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

// handleDiscovery runs once per newly discovered device: the device's
// catalog is built if needed and announced on its scenes topic.
func (g *Gateway) handleDiscovery(device telemetry.DeviceID) {
	g.catalogs.PublishDevice(device)
}

// handleDispatchTimeout requests a fresh status report after a command
// expires unconfirmed, so state converges on what the device actually
// did.
func (g *Gateway) handleDispatchTimeout(cmd dispatch.PendingCommand) {
	ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
	defer cancel()

	if g.lan != nil && g.lan.Reachable(cmd.Device) {
		if err := g.lan.RequestStatus(ctx, cmd.Device); err == nil {
			return
		}
	}
	if g.cloud != nil {
		if err := g.cloud.Poll(cmd.Device); err != nil {
			g.logger.Warn("convergence poll failed",
				"device", cmd.Device.String(),
				"error", err,
			)
		}
	}
}
