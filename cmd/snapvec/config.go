package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"snapvec/internal/imaging"
	"snapvec/internal/tracer"
)

// Preset is a reusable parameter set loaded from YAML. Flags given on
// the command line override preset values.
type Preset struct {
	Colors           int      `yaml:"colors"`
	Fitting          int      `yaml:"fitting"`
	Corner           int      `yaml:"corner"`
	Noise            int      `yaml:"noise"`
	BlurRadius       int      `yaml:"blur_radius"`
	Sampling         int      `yaml:"sampling"`
	Mode             string   `yaml:"mode"`
	RemoveBackground bool     `yaml:"remove_background"`
	BackgroundColor  string   `yaml:"background_color"`
	SmartBackground  *bool    `yaml:"smart_background"`
	AntiAlias        *bool    `yaml:"anti_alias"`
	PaletteLock      []string `yaml:"palette_lock"`
}

// LoadPreset reads a YAML preset file.
func LoadPreset(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset: %w", err)
	}
	preset := &Preset{}
	if err := yaml.Unmarshal(data, preset); err != nil {
		return nil, fmt.Errorf("parse preset %s: %w", path, err)
	}
	return preset, nil
}

// Apply overlays the preset onto params. Zero values mean "not set" for
// numeric fields; booleans use pointers to distinguish false from unset.
func (p *Preset) Apply(params *tracer.Params) error {
	if p.Colors > 0 {
		params.Colors = p.Colors
	}
	if p.Fitting > 0 {
		params.Fitting = p.Fitting
	}
	if p.Corner > 0 {
		params.Corner = p.Corner
	}
	if p.Noise > 0 {
		params.Noise = p.Noise
	}
	if p.BlurRadius > 0 {
		params.BlurRadius = p.BlurRadius
	}
	if p.Sampling > 0 {
		params.Sampling = p.Sampling
	}
	if p.Mode != "" {
		mode, err := imaging.ParseMode(p.Mode)
		if err != nil {
			return fmt.Errorf("preset mode: %w", err)
		}
		params.Mode = mode
	}
	if p.RemoveBackground {
		params.RemoveBackground = true
	}
	if p.BackgroundColor != "" {
		params.BackgroundColor = p.BackgroundColor
	}
	if p.SmartBackground != nil {
		params.SmartBackground = *p.SmartBackground
	}
	if p.AntiAlias != nil {
		params.AntiAlias = *p.AntiAlias
	}
	if len(p.PaletteLock) > 0 {
		params.PaletteLock = append([]string(nil), p.PaletteLock...)
	}
	return nil
}
