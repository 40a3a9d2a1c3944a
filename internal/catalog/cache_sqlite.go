package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// SQLiteCache implements the persisted-catalog boundary on SQLite.
//
// Compiled catalogs are stored as opaque JSON blobs keyed on
// (device model, metadata version). The gateway functions correctly with
// an empty cache: a miss simply triggers a rebuild from vendor metadata.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache creates a catalog cache over an open SQLite connection.
//
// Parameters:
//   - db: Open SQLite connection (schema bootstrapped by the database
//     package)
//
// Returns:
//   - *SQLiteCache: Cache ready for use
func NewSQLiteCache(db *sql.DB) *SQLiteCache {
	return &SQLiteCache{db: db}
}

// Get retrieves a compiled catalog.
//
// Returns:
//   - *EffectCatalog: The cached catalog
//   - error: ErrCacheMiss when nothing is stored for the key, otherwise
//     the underlying database or decode error
func (c *SQLiteCache) Get(ctx context.Context, model, metadataVersion string) (*EffectCatalog, error) {
	var payload []byte
	err := c.db.QueryRowContext(ctx,
		"SELECT payload FROM scene_catalogs WHERE model = ? AND metadata_version = ?",
		model, metadataVersion,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("querying catalog cache: %w", err)
	}

	var catalog EffectCatalog
	if err := json.Unmarshal(payload, &catalog); err != nil {
		// A corrupt blob is equivalent to a miss: the caller rebuilds.
		return nil, fmt.Errorf("%w: corrupt cache entry: %w", ErrCacheMiss, err)
	}
	return &catalog, nil
}

// Put stores a compiled catalog, replacing any previous entry for the same
// (model, metadata version) key.
func (c *SQLiteCache) Put(ctx context.Context, catalog *EffectCatalog) error {
	if catalog == nil || catalog.Model == "" {
		return fmt.Errorf("catalog with model is required")
	}

	payload, err := json.Marshal(catalog)
	if err != nil {
		return fmt.Errorf("marshalling catalog: %w", err)
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO scene_catalogs (model, metadata_version, built_at, payload)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(model, metadata_version) DO UPDATE SET
		   built_at = excluded.built_at,
		   payload = excluded.payload`,
		catalog.Model,
		catalog.MetadataVersion,
		catalog.BuiltAt.UTC(),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("storing catalog: %w", err)
	}
	return nil
}
