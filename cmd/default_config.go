package cmd

import (
	"bytes"
	_ "embed"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var presetsYAML []byte

// Presets represents the full presets.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Presets struct {
	Version string              `yaml:"version"`
	Presets map[string]Scenario `yaml:"presets"`
}

func parsePresets(data []byte) (*Presets, error) {
	var cfg Presets
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing presets: %w", err)
	}
	return &cfg, nil
}

// PresetNames lists the built-in scenarios in order.
func PresetNames() []string {
	cfg, err := parsePresets(presetsYAML)
	if err != nil {
		panic(err)
	}
	names := make([]string, 0, len(cfg.Presets))
	for name := range cfg.Presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// GetPreset returns a copy of the named built-in scenario, validated.
func GetPreset(name string) (*Scenario, error) {
	cfg, err := parsePresets(presetsYAML)
	if err != nil {
		return nil, err
	}
	sc, ok := cfg.Presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (valid: %v)", name, PresetNames())
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid preset %s: %w", name, err)
	}
	return &sc, nil
}
