package catalog

import (
	"encoding/base64"
	"strings"
	"time"
)

// Effect is one catalog entry: a controllable scene with its compiled
// command template.
type Effect struct {
	// ID is stable and unique within the catalog, derived from the vendor
	// scene and parameter ids.
	ID string `json:"id"`

	// DisplayName is the externally controllable label, unique within the
	// catalog; raw vendor duplicates get " (n)" suffixes in first-seen
	// order rather than being dropped.
	DisplayName string `json:"display_name"`

	// RawName is the undisambiguated vendor name.
	RawName string `json:"raw_name"`

	// Code is the vendor scene code. Zero is a valid, meaningful code.
	Code uint16 `json:"code"`

	// Commands is the compiled command template: complete 20-byte lines in
	// transmission order, ready for either wire protocol. Cached here so
	// the dispatcher never re-encodes.
	Commands [][]byte `json:"commands"`
}

// CommandsBase64 returns the compiled template as base64 lines, the form
// the LAN pass-through and the cloud command topic both carry.
func (e Effect) CommandsBase64() []string {
	out := make([]string, len(e.Commands))
	for i, line := range e.Commands {
		out[i] = base64.StdEncoding.EncodeToString(line)
	}
	return out
}

// EffectCatalog is the per-model ordered sequence of effects.
type EffectCatalog struct {
	Model           string    `json:"model"`
	MetadataVersion string    `json:"metadata_version"`
	BuiltAt         time.Time `json:"built_at"`
	Effects         []Effect  `json:"effects"`
}

// ByID returns the effect with the given id.
func (c *EffectCatalog) ByID(id string) (Effect, error) {
	for _, e := range c.Effects {
		if e.ID == id {
			return e, nil
		}
	}
	return Effect{}, ErrEffectNotFound
}

// ByName returns the effect with the given display name, matched
// case-insensitively the way automation front-ends address scenes.
func (c *EffectCatalog) ByName(name string) (Effect, error) {
	for _, e := range c.Effects {
		if strings.EqualFold(e.DisplayName, name) {
			return e, nil
		}
	}
	return Effect{}, ErrEffectNotFound
}

// ByCode returns the first effect carrying the given scene code. Radio
// status advertisements report codes, not ids; this maps them back.
func (c *EffectCatalog) ByCode(code uint16) (Effect, bool) {
	for _, e := range c.Effects {
		if e.Code == code {
			return e, true
		}
	}
	return Effect{}, false
}

// Len returns the number of effects.
func (c *EffectCatalog) Len() int { return len(c.Effects) }
