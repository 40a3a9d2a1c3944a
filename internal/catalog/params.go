package catalog

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ModelParams carries the model-specific scene encoding parameters from
// the vendor's parameter document: how to adjust the raw scene parameter
// bytes and how to frame the multi-line upload.
type ModelParams struct {
	// Models lists the model codes this entry applies to. The special
	// entry "null" is the fallback for models without their own entry.
	Models []string `json:"models"`

	// HexMultiPrefix is the multi-line prefix byte, hex-encoded ("a3").
	HexMultiPrefix string `json:"hex_multi_prefix"`

	// OnCommand prepends a power-on command line before the scene upload.
	OnCommand bool `json:"on_command"`

	// Types are the prefix-adjustment entries, matched against the raw
	// parameter bytes.
	Types []TypeEntry `json:"type"`
}

// TypeEntry describes one prefix adjustment: strip HexPrefixRemove from
// the parameter bytes if present, prepend HexPrefixAdd, and append
// NormalCommandSuffix to the scene mode command.
type TypeEntry struct {
	Type                uint32 `json:"type_entry"`
	HexPrefixRemove     string `json:"hex_prefix_remove"`
	HexPrefixAdd        string `json:"hex_prefix_add"`
	NormalCommandSuffix string `json:"normal_command_suffix"`
}

// ParamsTable is the parsed parameter document, addressable by model.
type ParamsTable struct {
	entries []ModelParams
}

// ParseParams decodes the vendor's model parameter document.
func ParseParams(raw []byte) (*ParamsTable, error) {
	var entries []ModelParams
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("catalog: parsing model parameters: %w", err)
	}
	return &ParamsTable{entries: entries}, nil
}

// ForModel returns the parameters for a model code, falling back to the
// "null" entry when the model has no entry of its own.
func (t *ParamsTable) ForModel(model string) (*ModelParams, error) {
	if t != nil {
		for i := range t.entries {
			for _, m := range t.entries[i].Models {
				if m == model {
					return &t.entries[i], nil
				}
			}
		}
		for i := range t.entries {
			for _, m := range t.entries[i].Models {
				if m == "null" {
					return &t.entries[i], nil
				}
			}
		}
	}
	return nil, fmt.Errorf("%w: %s (no fallback entry)", ErrNoModelParams, model)
}

// multiPrefixByte decodes the hex multi-line prefix.
func (p *ModelParams) multiPrefixByte() (byte, error) {
	b, err := hex.DecodeString(p.HexMultiPrefix)
	if err != nil || len(b) != 1 {
		return 0, fmt.Errorf("%w: bad hex_multi_prefix %q", ErrLeafEncoding, p.HexMultiPrefix)
	}
	return b[0], nil
}

// matchType selects the prefix-adjustment entry for the given raw
// parameter bytes: first the entry whose non-empty remove-prefix matches,
// otherwise the entry with an empty remove-prefix, otherwise a zero entry.
func (p *ModelParams) matchType(raw []byte) TypeEntry {
	rawHex := hex.EncodeToString(raw)
	for _, te := range p.Types {
		if te.HexPrefixRemove != "" && len(rawHex) >= len(te.HexPrefixRemove) &&
			rawHex[:len(te.HexPrefixRemove)] == te.HexPrefixRemove {
			return te
		}
	}
	for _, te := range p.Types {
		if te.HexPrefixRemove == "" {
			return te
		}
	}
	return TypeEntry{}
}
