package catalog

import "errors"

// Domain-specific errors for catalog construction and caching.
var (
	// ErrMalformedMetadata is returned when the vendor scene document
	// cannot be parsed at all. Individual malformed leaves are skipped
	// with a diagnostic instead.
	ErrMalformedMetadata = errors.New("catalog: malformed scene metadata")

	// ErrLeafEncoding is the per-leaf failure: a leaf missing a required
	// encoding parameter is skipped, isolated from the rest of the build.
	ErrLeafEncoding = errors.New("catalog: leaf cannot be encoded")

	// ErrNoModelParams is returned when neither the device model nor the
	// "null" fallback entry exists in the model parameter table.
	ErrNoModelParams = errors.New("catalog: no parameters for model")

	// ErrEffectNotFound is returned when an effect id is not in the
	// catalog.
	ErrEffectNotFound = errors.New("catalog: effect not found")

	// ErrCacheMiss is returned by the cache when no catalog is stored for
	// the requested (model, metadata version) key.
	ErrCacheMiss = errors.New("catalog: cache miss")
)
