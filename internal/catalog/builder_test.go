package catalog

import (
	"encoding/base64"
	"testing"
)

// testParams is a minimal parameter table: one fallback entry covering
// every model, no prefix adjustments.
func testParams(t *testing.T) *ParamsTable {
	t.Helper()
	params, err := ParseParams([]byte(`[
		{
			"models": ["null"],
			"hex_multi_prefix": "a3",
			"on_command": false,
			"type": [
				{"type_entry": 1, "hex_prefix_remove": "", "hex_prefix_add": "", "normal_command_suffix": ""}
			]
		}
	]`))
	if err != nil {
		t.Fatalf("ParseParams() error = %v", err)
	}
	return params
}

func b64(data []byte) string { return base64.StdEncoding.EncodeToString(data) }

func TestBuildSingleEffectScene(t *testing.T) {
	metadata := []byte(`{
		"version": "2026.1",
		"categories": [{
			"categoryName": "Nature",
			"scenes": [{
				"sceneName": "Sunrise", "sceneId": 1, "sceneCode": 0,
				"lightEffects": [
					{"scenceName": "", "sceneCode": 10, "scenceParam": "` + b64([]byte{1, 2, 3}) + `", "scenceParamId": 4}
				]
			}]
		}]
	}`)

	c, err := NewBuilder(testParams(t)).Build("H6159", metadata)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if c.Model != "H6159" || c.MetadataVersion != "2026.1" {
		t.Errorf("catalog header = %s/%s", c.Model, c.MetadataVersion)
	}
	if c.Len() != 1 {
		t.Fatalf("effects = %d, want 1", c.Len())
	}

	effect := c.Effects[0]
	if effect.ID != "1.4" {
		t.Errorf("id = %q, want 1.4", effect.ID)
	}
	if effect.DisplayName != "Sunrise" {
		t.Errorf("display name = %q, want Sunrise", effect.DisplayName)
	}
	if effect.Code != 10 {
		t.Errorf("code = %d, want 10", effect.Code)
	}

	// Compiled commands: the segmented parameter upload plus the scene
	// trigger line.
	if len(effect.Commands) != 2 {
		t.Fatalf("command lines = %d, want 2", len(effect.Commands))
	}
	trigger := effect.Commands[len(effect.Commands)-1]
	if trigger[0] != 0x33 || trigger[1] != 0x05 || trigger[2] != 0x04 {
		t.Errorf("trigger line = % X", trigger[:5])
	}
	if trigger[3] != 10 || trigger[4] != 0 {
		t.Errorf("trigger scene code bytes = %d %d, want 10 0", trigger[3], trigger[4])
	}
}

func TestBuildNamedSubEffectsSplit(t *testing.T) {
	param := b64([]byte{9})
	metadata := []byte(`{
		"version": "1",
		"categories": [{
			"categoryName": "Party",
			"scenes": [{
				"sceneName": "Strobe", "sceneId": 7, "sceneCode": 0,
				"lightEffects": [
					{"scenceName": "Fast", "sceneCode": 20, "scenceParam": "` + param + `", "scenceParamId": 1},
					{"scenceName": "Slow", "sceneCode": 21, "scenceParam": "` + param + `", "scenceParamId": 2}
				]
			}]
		}]
	}`)

	c, err := NewBuilder(testParams(t)).Build("H6159", metadata)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("effects = %d, want 2", c.Len())
	}

	// Two or more named sub-effects flatten to combined names.
	if c.Effects[0].DisplayName != "Strobe-Fast" || c.Effects[1].DisplayName != "Strobe-Slow" {
		t.Errorf("names = %q, %q", c.Effects[0].DisplayName, c.Effects[1].DisplayName)
	}
	if c.Effects[0].ID != "7.1" || c.Effects[1].ID != "7.2" {
		t.Errorf("ids = %q, %q", c.Effects[0].ID, c.Effects[1].ID)
	}
}

func TestBuildSingleNamedSubEffectKeepsSceneName(t *testing.T) {
	metadata := []byte(`{
		"version": "1",
		"categories": [{
			"categoryName": "Calm",
			"scenes": [{
				"sceneName": "Aurora", "sceneId": 3, "sceneCode": 0,
				"lightEffects": [
					{"scenceName": "Default", "sceneCode": 30, "scenceParam": "` + b64([]byte{5}) + `", "scenceParamId": 1}
				]
			}]
		}]
	}`)

	c, err := NewBuilder(testParams(t)).Build("H6159", metadata)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("effects = %d, want 1", c.Len())
	}
	// One named sub-effect is not enough to split: the scene's own name wins.
	if c.Effects[0].DisplayName != "Aurora" {
		t.Errorf("display name = %q, want Aurora", c.Effects[0].DisplayName)
	}
}

func TestBuildSceneWithoutEffectsUsesOwnCode(t *testing.T) {
	metadata := []byte(`{
		"version": "1",
		"categories": [{
			"categoryName": "Basic",
			"scenes": [
				{"sceneName": "Plain", "sceneId": 9, "sceneCode": 0, "lightEffects": []}
			]
		}]
	}`)

	c, err := NewBuilder(testParams(t)).Build("H6159", metadata)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("effects = %d, want 1", c.Len())
	}
	// Scene code zero is a valid code, never "absent".
	if c.Effects[0].Code != 0 {
		t.Errorf("code = %d, want 0", c.Effects[0].Code)
	}
	if c.Effects[0].ID != "9.0" {
		t.Errorf("id = %q, want 9.0", c.Effects[0].ID)
	}
}

func TestBuildEmptyParamSkipsUpload(t *testing.T) {
	metadata := []byte(`{
		"version": "1",
		"categories": [{
			"categoryName": "Basic",
			"scenes": [
				{"sceneName": "Plain", "sceneId": 9, "sceneCode": 23, "lightEffects": []}
			]
		}]
	}`)

	c, err := NewBuilder(testParams(t)).Build("H6159", metadata)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("effects = %d, want 1", c.Len())
	}

	// No parameter blob means no multi-line upload: the scene mode
	// command alone selects the scene.
	cmds := c.Effects[0].Commands
	if len(cmds) != 1 {
		t.Fatalf("command lines = %d, want 1", len(cmds))
	}
	if cmds[0][0] != 0x33 || cmds[0][1] != 0x05 || cmds[0][2] != 0x04 || cmds[0][3] != 23 {
		t.Errorf("lone line = % X, want scene mode command for code 23", cmds[0][:5])
	}
}

func TestBuildDisambiguatesDuplicateNames(t *testing.T) {
	param := b64([]byte{1})
	metadata := []byte(`{
		"version": "1",
		"categories": [{
			"categoryName": "Dup",
			"scenes": [
				{"sceneName": "Ocean", "sceneId": 1, "sceneCode": 0,
				 "lightEffects": [{"scenceName": "", "sceneCode": 11, "scenceParam": "` + param + `", "scenceParamId": 1}]},
				{"sceneName": "Ocean", "sceneId": 2, "sceneCode": 0,
				 "lightEffects": [{"scenceName": "", "sceneCode": 12, "scenceParam": "` + param + `", "scenceParamId": 1}]}
			]
		}]
	}`)

	c, err := NewBuilder(testParams(t)).Build("H6159", metadata)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("effects = %d, want 2", c.Len())
	}

	// Both duplicates survive, each with a numbered suffix in first-seen
	// order; the ids stay distinct without suffixes.
	if c.Effects[0].DisplayName != "Ocean (1)" || c.Effects[1].DisplayName != "Ocean (2)" {
		t.Errorf("names = %q, %q", c.Effects[0].DisplayName, c.Effects[1].DisplayName)
	}
	if c.Effects[0].ID != "1.1" || c.Effects[1].ID != "2.1" {
		t.Errorf("ids = %q, %q", c.Effects[0].ID, c.Effects[1].ID)
	}

	if _, err := c.ByName("ocean (2)"); err != nil {
		t.Error("ByName() is not case-insensitive")
	}
}

func TestBuildSkipsUndecodableLeaf(t *testing.T) {
	metadata := []byte(`{
		"version": "1",
		"categories": [{
			"categoryName": "Mixed",
			"scenes": [
				{"sceneName": "Broken", "sceneId": 1, "sceneCode": 0,
				 "lightEffects": [{"scenceName": "", "sceneCode": 11, "scenceParam": "!!!not-base64!!!", "scenceParamId": 1}]},
				{"sceneName": "Fine", "sceneId": 2, "sceneCode": 0,
				 "lightEffects": [{"scenceName": "", "sceneCode": 12, "scenceParam": "` + b64([]byte{1}) + `", "scenceParamId": 1}]}
			]
		}]
	}`)

	c, err := NewBuilder(testParams(t)).Build("H6159", metadata)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// The broken leaf is skipped; the rest of the catalog still builds.
	if c.Len() != 1 {
		t.Fatalf("effects = %d, want 1", c.Len())
	}
	if c.Effects[0].DisplayName != "Fine" {
		t.Errorf("surviving effect = %q, want Fine", c.Effects[0].DisplayName)
	}
}

func TestBuildMalformedMetadata(t *testing.T) {
	if _, err := NewBuilder(testParams(t)).Build("H6159", []byte("not json")); err == nil {
		t.Error("Build() accepted malformed metadata")
	}
}

func TestMetadataVersionFallsBackToHash(t *testing.T) {
	raw := []byte(`{"categories":[]}`)
	doc, err := ParseMetadata(raw)
	if err != nil {
		t.Fatal(err)
	}

	version := MetadataVersion(doc, raw)
	if version == "" {
		t.Fatal("MetadataVersion() empty")
	}
	if version[:7] != "sha256:" {
		t.Errorf("version = %q, want sha256 prefix", version)
	}
	// Deterministic for identical bytes.
	if again := MetadataVersion(doc, raw); again != version {
		t.Error("hash fallback is not deterministic")
	}
}

func TestParamsForModelFallback(t *testing.T) {
	params, err := ParseParams([]byte(`[
		{"models": ["H6159"], "hex_multi_prefix": "a3", "on_command": true,
		 "type": [{"type_entry": 1}]},
		{"models": ["null"], "hex_multi_prefix": "a3", "on_command": false,
		 "type": [{"type_entry": 1}]}
	]`))
	if err != nil {
		t.Fatal(err)
	}

	own, err := params.ForModel("H6159")
	if err != nil {
		t.Fatalf("ForModel(H6159) error = %v", err)
	}
	if !own.OnCommand {
		t.Error("model-specific entry not selected")
	}

	fallback, err := params.ForModel("H9999")
	if err != nil {
		t.Fatalf("ForModel(H9999) error = %v", err)
	}
	if fallback.OnCommand {
		t.Error("fallback entry not selected for unknown model")
	}
}

func TestBuildOnCommandPrepended(t *testing.T) {
	params, err := ParseParams([]byte(`[
		{"models": ["null"], "hex_multi_prefix": "a3", "on_command": true,
		 "type": [{"type_entry": 1}]}
	]`))
	if err != nil {
		t.Fatal(err)
	}

	metadata := []byte(`{
		"version": "1",
		"categories": [{
			"categoryName": "X",
			"scenes": [{
				"sceneName": "Y", "sceneId": 1, "sceneCode": 0,
				"lightEffects": [{"scenceName": "", "sceneCode": 5, "scenceParam": "` + b64([]byte{1}) + `", "scenceParamId": 1}]
			}]
		}]
	}`)

	c, err := NewBuilder(params).Build("H6159", metadata)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	first := c.Effects[0].Commands[0]
	if first[0] != 0x33 || first[1] != 0x01 || first[2] != 0x01 {
		t.Errorf("first line = % X, want power-on command", first[:3])
	}
}
