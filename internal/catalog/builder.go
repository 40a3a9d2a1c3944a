package catalog

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/nerrad567/lumen-bridge/internal/radio"
)

// Logger is the minimal logging interface the builder needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Builder constructs effect catalogs from vendor metadata.
type Builder struct {
	params *ParamsTable
	logger Logger
	now    func() time.Time
}

// NewBuilder creates a builder using the given model parameter table.
func NewBuilder(params *ParamsTable) *Builder {
	return &Builder{
		params: params,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for per-leaf diagnostics.
func (b *Builder) SetLogger(logger Logger) {
	if logger != nil {
		b.logger = logger
	}
}

// leaf is one flattened scene entry before disambiguation.
type leaf struct {
	rawName string
	code    uint16
	param   string
	sceneID uint32
	paramID uint32
}

// Build parses the vendor scene document for one model and compiles it
// into an effect catalog.
//
// Tree flattening follows the vendor convention: a scene with two or more
// named sub-effects contributes one leaf per sub-effect under the combined
// name "Scene-Effect"; otherwise the scene contributes a single leaf under
// its own name, using its first sub-effect or, failing that, the scene's
// own code. Scene code zero is a valid code and never treated as absent.
//
// A malformed leaf (undecodable parameter, missing model parameters) is
// skipped with a diagnostic; it aborts neither the remaining leaves nor
// other models' builds.
func (b *Builder) Build(model string, rawMetadata []byte) (*EffectCatalog, error) {
	doc, err := ParseMetadata(rawMetadata)
	if err != nil {
		return nil, err
	}

	leaves := flatten(doc, b.logger)

	catalog := &EffectCatalog{
		Model:           model,
		MetadataVersion: MetadataVersion(doc, rawMetadata),
		BuiltAt:         b.now(),
		Effects:         make([]Effect, 0, len(leaves)),
	}

	usedIDs := make(map[string]int, len(leaves))
	for _, lf := range leaves {
		commands, err := b.compile(model, lf.code, lf.param)
		if err != nil {
			b.logger.Warn("skipping scene leaf",
				"model", model,
				"scene", lf.rawName,
				"code", lf.code,
				"error", err,
			)
			continue
		}

		id := fmt.Sprintf("%d.%d", lf.sceneID, lf.paramID)
		if n := usedIDs[id]; n > 0 {
			usedIDs[id] = n + 1
			id = fmt.Sprintf("%s-%d", id, n+1)
		} else {
			usedIDs[id] = 1
		}

		catalog.Effects = append(catalog.Effects, Effect{
			ID:       id,
			RawName:  lf.rawName,
			Code:     lf.code,
			Commands: commands,
		})
	}

	disambiguate(catalog.Effects)

	b.logger.Debug("catalog built",
		"model", model,
		"metadata_version", catalog.MetadataVersion,
		"effects", len(catalog.Effects),
	)
	return catalog, nil
}

// flatten walks the scene tree into an ordered leaf sequence.
func flatten(doc *MetadataDocument, logger Logger) []leaf {
	var leaves []leaf
	for _, cat := range doc.Categories {
		for _, scene := range cat.Scenes {
			var named []EffectEntry
			for _, eff := range scene.Effects {
				if eff.Name != "" {
					named = append(named, eff)
				}
			}

			switch {
			case len(named) >= 2:
				for _, eff := range named {
					leaves = append(leaves, leaf{
						rawName: scene.Name + "-" + eff.Name,
						code:    eff.Code,
						param:   eff.Param,
						sceneID: scene.SceneID,
						paramID: eff.ParamID,
					})
				}
			case len(scene.Effects) > 0:
				eff := scene.Effects[0]
				leaves = append(leaves, leaf{
					rawName: scene.Name,
					code:    eff.Code,
					param:   eff.Param,
					sceneID: scene.SceneID,
					paramID: eff.ParamID,
				})
			default:
				// No sub-effects: fall back to the scene's own code, which
				// may legitimately be zero.
				if scene.Code > 0xFFFF {
					logger.Warn("scene code out of range, skipping leaf",
						"scene", scene.Name,
						"code", scene.Code,
					)
					continue
				}
				leaves = append(leaves, leaf{
					rawName: scene.Name,
					code:    uint16(scene.Code),
					sceneID: scene.SceneID,
				})
			}
		}
	}
	return leaves
}

// disambiguate assigns display names: unique raw names pass through, and
// every occurrence of a duplicated raw name gets a " (n)" suffix numbered
// in first-seen order. Duplicates are legitimate distinct entities here;
// display-name uniqueness is a derived property, never a reason to drop.
func disambiguate(effects []Effect) {
	total := make(map[string]int, len(effects))
	for _, e := range effects {
		total[e.RawName]++
	}

	seen := make(map[string]int, len(total))
	for i := range effects {
		name := effects[i].RawName
		if total[name] == 1 {
			effects[i].DisplayName = name
			continue
		}
		seen[name]++
		effects[i].DisplayName = fmt.Sprintf("%s (%d)", name, seen[name])
	}
}

// compile turns one leaf's scene code and parameter blob into the exact
// command line template, computed once and cached on the effect.
func (b *Builder) compile(model string, code uint16, paramB64 string) ([][]byte, error) {
	params, err := b.params.ForModel(model)
	if err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(paramB64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad parameter blob: %w", ErrLeafEncoding, err)
	}

	te := params.matchType(raw)
	if te.HexPrefixRemove != "" {
		remove, err := hex.DecodeString(te.HexPrefixRemove)
		if err != nil {
			return nil, fmt.Errorf("%w: bad hex_prefix_remove: %w", ErrLeafEncoding, err)
		}
		if bytes.HasPrefix(raw, remove) {
			raw = raw[len(remove):]
		}
	}

	add, err := hex.DecodeString(te.HexPrefixAdd)
	if err != nil {
		return nil, fmt.Errorf("%w: bad hex_prefix_add: %w", ErrLeafEncoding, err)
	}
	payload := append(append([]byte{}, add...), raw...)

	// A leaf without a parameter blob has nothing to upload; the scene
	// mode command alone selects it.
	var lines [][]byte
	if len(payload) > 0 {
		multiPrefix, err := params.multiPrefixByte()
		if err != nil {
			return nil, err
		}
		lines, err = radio.SegmentMultiline(multiPrefix, payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLeafEncoding, err)
		}
	}

	suffix, err := hex.DecodeString(te.NormalCommandSuffix)
	if err != nil {
		return nil, fmt.Errorf("%w: bad normal_command_suffix: %w", ErrLeafEncoding, err)
	}
	lines = append(lines, radio.EncodeSceneModeCommand(code, suffix))

	if params.OnCommand {
		lines = append([][]byte{radio.EncodePowerCommand(true)}, lines...)
	}
	return lines, nil
}
