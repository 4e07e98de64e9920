package core

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var presetsYAML []byte

// DefaultPreset is the preset used when none is requested.
const DefaultPreset = "starfield"

type presetFile struct {
	Presets map[string]yaml.Node `yaml:"presets"`
}

var presets = mustParsePresets(presetsYAML)

func mustParsePresets(data []byte) map[string]Config {
	p, err := ParsePresets(data)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePresets decodes a presets document. Every preset starts from
// DefaultConfig, so a preset only lists what it changes.
func ParsePresets(data []byte) (map[string]Config, error) {
	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	out := make(map[string]Config, len(file.Presets))
	for name, node := range file.Presets {
		cfg := DefaultConfig()
		if err := node.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		out[name] = Normalize(cfg, ParamNone)
	}
	return out, nil
}

// Preset returns a named preset.
func Preset(name string) (Config, error) {
	cfg, ok := presets[name]
	if !ok {
		return Config{}, fmt.Errorf("unknown preset %q (have %v)", name, PresetNames())
	}
	return cfg, nil
}

// PresetNames lists the embedded presets sorted by name.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
