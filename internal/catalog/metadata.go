package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Vendor scene metadata document shapes. The cloud metadata endpoint is an
// external collaborator; this package only parses the bytes it fetched.
//
// The vendor spells "scence" in its effect fields; the wire tags keep that
// spelling, the Go names do not.

// MetadataDocument is the root of the vendor scene document for one model.
type MetadataDocument struct {
	Version    string          `json:"version"`
	Categories []SceneCategory `json:"categories"`
}

// SceneCategory is a named scene group.
type SceneCategory struct {
	Name   string      `json:"categoryName"`
	Scenes []SceneNode `json:"scenes"`
}

// SceneNode is one scene, optionally carrying named sub-effects.
type SceneNode struct {
	Name    string        `json:"sceneName"`
	SceneID uint32        `json:"sceneId"`
	Code    uint32        `json:"sceneCode"`
	Effects []EffectEntry `json:"lightEffects"`
}

// EffectEntry is one sub-effect leaf: an opaque scene code plus the
// base64-encoded parameter blob the command encoding needs.
type EffectEntry struct {
	Name    string `json:"scenceName"`
	Code    uint16 `json:"sceneCode"`
	Param   string `json:"scenceParam"`
	ParamID uint32 `json:"scenceParamId"`
}

// ParseMetadata decodes a vendor scene document.
func ParseMetadata(raw []byte) (*MetadataDocument, error) {
	var doc MetadataDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMetadata, err)
	}
	return &doc, nil
}

// MetadataVersion returns the document's declared version, falling back to
// a content hash when the vendor omits it. The result is the cache key
// component alongside the device model.
func MetadataVersion(doc *MetadataDocument, raw []byte) string {
	if doc.Version != "" {
		return doc.Version
	}
	sum := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(sum[:8])
}
