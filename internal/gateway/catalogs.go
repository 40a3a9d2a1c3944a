package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/nerrad567/lumen-bridge/internal/catalog"
	"github.com/nerrad567/lumen-bridge/internal/infrastructure/config"
	"github.com/nerrad567/lumen-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/lumen-bridge/internal/telemetry"
)

// catalogSummary is the published catalog document: enough for an
// automation consumer to enumerate and address effects, without the
// compiled command blobs.
type catalogSummary struct {
	Model           string          `json:"model"`
	MetadataVersion string          `json:"metadata_version"`
	Effects         []effectSummary `json:"effects"`
}

type effectSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Code        uint16 `json:"code"`
}

// CatalogManager builds, caches and publishes per-model effect catalogs.
//
// Catalogs are built lazily on first request for a model, served from the
// SQLite cache when the metadata version matches, and published retained
// on the model catalog topic. It satisfies the dispatcher's catalog
// provider boundary.
type CatalogManager struct {
	builder *catalog.Builder
	cache   *catalog.SQLiteCache // nil when caching is disabled

	rawMetadata []byte
	version     string

	conn   mqttConn // nil disables publishing
	qos    byte
	logger Logger

	mu    sync.Mutex
	built map[string]*catalog.EffectCatalog
}

// NewCatalogManager loads the vendor metadata and parameter documents
// from the configured paths. A nil db or disabled cache setting turns
// every lookup into a fresh build.
func NewCatalogManager(cfg config.CatalogConfig, db *sql.DB) (*CatalogManager, error) {
	rawMetadata, err := os.ReadFile(cfg.MetadataPath)
	if err != nil {
		return nil, fmt.Errorf("reading scene metadata: %w", err)
	}
	rawParams, err := os.ReadFile(cfg.ParamsPath)
	if err != nil {
		return nil, fmt.Errorf("reading model parameters: %w", err)
	}

	params, err := catalog.ParseParams(rawParams)
	if err != nil {
		return nil, err
	}
	doc, err := catalog.ParseMetadata(rawMetadata)
	if err != nil {
		return nil, err
	}

	m := &CatalogManager{
		builder:     catalog.NewBuilder(params),
		rawMetadata: rawMetadata,
		version:     catalog.MetadataVersion(doc, rawMetadata),
		logger:      noopLogger{},
		built:       make(map[string]*catalog.EffectCatalog),
	}
	if cfg.CacheEnabled && db != nil {
		m.cache = catalog.NewSQLiteCache(db)
	}
	return m, nil
}

// SetLogger sets the manager and builder loggers.
func (m *CatalogManager) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
		m.builder.SetLogger(logger)
	}
}

// SetPublisher wires the broker connection catalogs are announced on.
func (m *CatalogManager) SetPublisher(conn mqttConn, qos byte) {
	m.conn = conn
	m.qos = qos
}

// MetadataVersion returns the loaded metadata document's version key.
func (m *CatalogManager) MetadataVersion() string {
	return m.version
}

// CatalogFor returns the built catalog for a model, building and caching
// it on first request. A model whose build fails yields no catalog; the
// next request retries.
func (m *CatalogManager) CatalogFor(model string) (*catalog.EffectCatalog, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.built[model]; ok {
		return c, true
	}

	c, err := m.load(model)
	if err != nil {
		m.logger.Warn("catalog unavailable",
			"model", model,
			"error", err,
		)
		return nil, false
	}

	m.built[model] = c
	m.publishModel(c)
	return c, true
}

// load serves from the cache when possible, otherwise builds and stores.
// Caller holds the lock.
func (m *CatalogManager) load(model string) (*catalog.EffectCatalog, error) {
	ctx := context.Background()

	if m.cache != nil {
		c, err := m.cache.Get(ctx, model, m.version)
		if err == nil {
			m.logger.Debug("catalog cache hit",
				"model", model,
				"effects", c.Len(),
			)
			return c, nil
		}
		if !errors.Is(err, catalog.ErrCacheMiss) {
			m.logger.Warn("catalog cache read failed, rebuilding",
				"model", model,
				"error", err,
			)
		}
	}

	c, err := m.builder.Build(model, m.rawMetadata)
	if err != nil {
		return nil, err
	}
	m.logger.Info("catalog built",
		"model", model,
		"metadata_version", m.version,
		"effects", c.Len(),
	)

	if m.cache != nil {
		if err := m.cache.Put(ctx, c); err != nil {
			m.logger.Warn("catalog cache write failed",
				"model", model,
				"error", err,
			)
		}
	}
	return c, nil
}

// PublishDevice announces the device's catalog on its per-device scenes
// topic. Called when a device is first discovered.
func (m *CatalogManager) PublishDevice(device telemetry.DeviceID) {
	c, ok := m.CatalogFor(device.Model)
	if !ok || m.conn == nil {
		return
	}
	payload, err := json.Marshal(summarise(c))
	if err != nil {
		m.logger.Error("encoding device catalog", "device", device.String(), "error", err)
		return
	}
	topic := mqtt.Topics{}.DeviceScenes(device.TopicID())
	if err := m.conn.Publish(topic, payload, m.qos, true); err != nil {
		m.logger.Error("publishing device catalog",
			"device", device.String(),
			"error", err,
		)
	}
}

// publishModel announces a freshly available catalog retained on the
// model topic. Caller holds the lock; publish failures are diagnostics.
func (m *CatalogManager) publishModel(c *catalog.EffectCatalog) {
	if m.conn == nil {
		return
	}
	payload, err := json.Marshal(summarise(c))
	if err != nil {
		m.logger.Error("encoding model catalog", "model", c.Model, "error", err)
		return
	}
	if err := m.conn.Publish(mqtt.Topics{}.Catalog(c.Model), payload, m.qos, true); err != nil {
		m.logger.Error("publishing model catalog",
			"model", c.Model,
			"error", err,
		)
	}
}

// summarise strips the compiled command blobs for publication.
func summarise(c *catalog.EffectCatalog) catalogSummary {
	effects := make([]effectSummary, len(c.Effects))
	for i, e := range c.Effects {
		effects[i] = effectSummary{
			ID:          e.ID,
			DisplayName: e.DisplayName,
			Code:        e.Code,
		}
	}
	return catalogSummary{
		Model:           c.Model,
		MetadataVersion: c.MetadataVersion,
		Effects:         effects,
	}
}
