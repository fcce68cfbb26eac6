package fathom

import (
	"fmt"
	"math"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config holds the recognized engine options. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	InitialCamera Camera `yaml:"initial_camera"`

	MinZoom float64 `yaml:"min_zoom"`
	MaxZoom float64 `yaml:"max_zoom"`

	// MinDepth/MaxDepth bound the depth axis; nil means unbounded on
	// that side.
	MinDepth *float64 `yaml:"min_depth"`
	MaxDepth *float64 `yaml:"max_depth"`

	DefaultCullDistance float64 `yaml:"default_cull_distance"`
	TargetFrameRate     float64 `yaml:"target_frame_rate"`

	// LODThresholds overrides the default LOD table when non-empty.
	LODThresholds []LODThreshold `yaml:"lod_thresholds"`

	// CullWorkers > 1 enables chunked parallel culling.
	CullWorkers int `yaml:"cull_workers"`

	// Logger receives scheduler and pipeline failure logs. Defaults to a
	// no-op logger.
	Logger *zap.Logger `yaml:"-"`
}

// DefaultConfig returns a config suitable for an 800x600 viewport at
// 60 fps with depth navigation enabled.
func DefaultConfig() Config {
	return Config{
		InitialCamera: Camera{
			Zoom:           1,
			HasDepth:       true,
			ViewportWidth:  800,
			ViewportHeight: 600,
		},
		MinZoom:             0.01,
		MaxZoom:             100,
		DefaultCullDistance: defaultCullDistance,
		TargetFrameRate:     60,
	}
}

// LoadConfig reads a yaml config file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.InitialCamera.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// depthBounds resolves the configured depth bounds to concrete values.
func (c Config) depthBounds() (min, max float64) {
	min, max = math.Inf(-1), math.Inf(1)
	if c.MinDepth != nil {
		min = *c.MinDepth
	}
	if c.MaxDepth != nil {
		max = *c.MaxDepth
	}
	return min, max
}

// logger returns the configured logger or a no-op one.
func (c Config) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}
