// Package config contains the loader and strongly typed model for gosection.yaml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/philipparndt/gosection/pkg/cutting"
)

// EnvPrefix prefixes every environment override, e.g. GOSECTION_LOG_LEVEL.
const EnvPrefix = "GOSECTION_"

// Config is the application configuration. Values come from built-in
// defaults, then the YAML file, then GOSECTION_* environment variables.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel" env:"LOG_LEVEL"`
	// Capping holds the capping settings applied when a model is loaded.
	Capping Capping `yaml:"capping" envPrefix:"CAPPING_"`
	// Viewer configures the in-memory engine.
	Viewer Viewer `yaml:"viewer" envPrefix:"VIEWER_"`
	// Watch configures file watching.
	Watch Watch `yaml:"watch" envPrefix:"WATCH_"`
	// OpenSCAD configures rendering of .scad models.
	OpenSCAD OpenSCAD `yaml:"openscad" envPrefix:"OPENSCAD_"`
}

// Capping describes the capping geometry defaults.
type Capping struct {
	// Visible shows capping geometry.
	Visible bool `yaml:"visible" env:"VISIBLE"`
	// FaceColor is a hex color; empty clears it.
	FaceColor string `yaml:"faceColor" env:"FACE_COLOR"`
	// LineColor is a hex color; empty clears it.
	LineColor string `yaml:"lineColor" env:"LINE_COLOR"`
}

// Viewer describes the engine simulation.
type Viewer struct {
	// Sections is the number of cutting sections.
	Sections int `yaml:"sections" env:"SECTIONS"`
	// Capacity is the number of planes per section.
	Capacity int `yaml:"capacity" env:"CAPACITY"`
	// Latency delays every asynchronous engine operation.
	Latency time.Duration `yaml:"latency" env:"LATENCY"`
}

// Watch describes file watching.
type Watch struct {
	// Debounce is the quiet period before a change triggers a reload.
	Debounce time.Duration `yaml:"debounce" env:"DEBOUNCE"`
}

// OpenSCAD describes the external renderer.
type OpenSCAD struct {
	// Binary is the openscad executable name or path.
	Binary string `yaml:"binary" env:"BINARY"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Capping: Capping{
			Visible:   true,
			FaceColor: cutting.DefaultCappingColor,
			LineColor: cutting.DefaultCappingColor,
		},
		Viewer: Viewer{
			Sections: 4,
			Capacity: 6,
		},
		Watch: Watch{
			Debounce: 500 * time.Millisecond,
		},
		OpenSCAD: OpenSCAD{
			Binary: "openscad",
		},
	}
}

// Load reads the configuration file at path and applies environment
// overrides. An empty path skips the file. Variables from envFiles are
// applied too; the process environment wins over them.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := decode(bytes.NewReader(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	environment, err := loadEnvFiles(envFiles)
	if err != nil {
		return Config{}, err
	}
	for _, kv := range os.Environ() {
		if key, value, ok := strings.Cut(kv, "="); ok {
			environment[key] = value
		}
	}

	if err := ApplyEnvironment(&cfg, environment); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadEnvFiles reads .env style files, later files overriding earlier ones
func loadEnvFiles(files []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, file := range files {
		if file == "" {
			continue
		}
		vars, err := godotenv.Read(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", file, err)
		}
		for k, v := range vars {
			out[k] = v
		}
	}
	return out, nil
}

// Parse decodes YAML data over the defaults without environment overrides.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := decode(bytes.NewReader(data), &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnvironment overrides cfg from the given variables instead of the
// process environment.
func ApplyEnvironment(cfg *Config, environment map[string]string) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix, Environment: environment}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg.Validate()
}

// decode reads YAML rejecting unknown keys. An empty document keeps cfg.
func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks value ranges and colors.
func (c Config) Validate() error {
	if c.Viewer.Sections < 1 {
		return fmt.Errorf("viewer.sections must be at least 1, got %d", c.Viewer.Sections)
	}
	if c.Viewer.Capacity < 1 {
		return fmt.Errorf("viewer.capacity must be at least 1, got %d", c.Viewer.Capacity)
	}
	if c.Viewer.Latency < 0 {
		return fmt.Errorf("viewer.latency must not be negative, got %s", c.Viewer.Latency)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", c.Watch.Debounce)
	}
	if _, err := c.CuttingConfiguration(); err != nil {
		return fmt.Errorf("invalid capping settings: %w", err)
	}
	return nil
}

// CuttingConfiguration converts the capping settings into the form applied
// by the cutting service.
func (c Config) CuttingConfiguration() (cutting.Configuration, error) {
	raw := map[string]any{cutting.KeyCappingGeometryVisibility: c.Capping.Visible}
	if c.Capping.FaceColor != "" {
		raw[cutting.KeyCappingFaceColor] = c.Capping.FaceColor
	}
	if c.Capping.LineColor != "" {
		raw[cutting.KeyCappingLineColor] = c.Capping.LineColor
	}
	return cutting.ParseConfiguration(raw)
}
