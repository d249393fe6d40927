package sylvan

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// PassConfig toggles individual pipeline passes.
type PassConfig struct {
	Shadows     bool `toml:"shadows"`
	Skybox      bool `toml:"skybox"`
	Opaque      bool `toml:"opaque"`
	Transparent bool `toml:"transparent"`
	Outline     bool `toml:"outline"`
	Wireframe   bool `toml:"wireframe"`
}

// Config holds pipeline settings. It can be loaded from TOML:
//
//	shadow_map_size = 1024
//	clear_color = [0.1, 0.1, 0.12, 1.0]
//	wireframe_all = false
//	debug = true
//
//	[passes]
//	shadows = true
//	skybox = false
//
//	[outline]
//	width = 0.04
//	color = [1.0, 0.6, 0.0, 1.0]
type Config struct {
	ShadowMapSize int        `toml:"shadow_map_size"`
	ClearColor    [4]float64 `toml:"clear_color"`
	// WireframeAll draws every visible renderable in the wireframe pass.
	WireframeAll bool          `toml:"wireframe_all"`
	Debug        bool          `toml:"debug"`
	Passes       PassConfig    `toml:"passes"`
	Outline      OutlineConfig `toml:"outline"`
}

// OutlineConfig sets the selection outline style.
type OutlineConfig struct {
	Width float64    `toml:"width"`
	Color [4]float64 `toml:"color"`
}

// DefaultConfig returns a config with every pass enabled.
func DefaultConfig() Config {
	return Config{
		ShadowMapSize: DefaultShadowMapSize,
		ClearColor:    [4]float64{0.1, 0.1, 0.12, 1},
		Passes: PassConfig{
			Shadows:     true,
			Skybox:      true,
			Opaque:      true,
			Transparent: true,
			Outline:     true,
			Wireframe:   true,
		},
		Outline: OutlineConfig{Width: 0.05, Color: [4]float64{1, 0.6, 0, 1}},
	}
}

// LoadConfig parses TOML on top of DefaultConfig, so omitted keys keep their
// defaults.
func LoadConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile reads and parses a TOML config file.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return LoadConfig(data)
}

// Validate reports settings the pipeline cannot use.
func (c Config) Validate() error {
	if c.ShadowMapSize <= 0 || c.ShadowMapSize > 16384 {
		return fmt.Errorf("sylvan: shadow_map_size %d out of range (1..16384)", c.ShadowMapSize)
	}
	if c.Outline.Width < 0 {
		return fmt.Errorf("sylvan: outline width %v is negative", c.Outline.Width)
	}
	return nil
}

// Clear returns ClearColor as a Color.
func (c Config) Clear() Color {
	return Color{c.ClearColor[0], c.ClearColor[1], c.ClearColor[2], c.ClearColor[3]}
}
