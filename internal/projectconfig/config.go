// Package projectconfig provides the ProjectConfig struct and loader for
// .sitesmith.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default values for project configuration. These are the single source of
// truth — New() references them and no other code should duplicate them.
const (
	DefaultServerPort = 8000
	DefaultOutputDir  = "./output"

	DefaultMaxRetries         = 2
	DefaultBuilderConcurrency = 3

	DefaultGatekeeperModel = "llama-3.3-70b-versatile"
	DefaultArchitectModel  = "llama-3.3-70b-versatile"
	DefaultBuilderModel    = "openai/gpt-oss-120b"
	DefaultAuditorModel    = "openai/gpt-oss-120b"

	DefaultGatekeeperTemperature = 0.0
	DefaultArchitectTemperature  = 0.3
	DefaultBuilderTemperature    = 0.1
	DefaultAuditorTemperature    = 0.2

	// APIKeyEnvVar names the environment variable holding the completion
	// API key. Never stored in the config file.
	APIKeyEnvVar = "SITESMITH_API_KEY"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port      int    `yaml:"port,omitempty"`
	OutputDir string `yaml:"output_dir,omitempty"`
}

// ModelsConfig holds per-stage model identifiers.
type ModelsConfig struct {
	Gatekeeper string `yaml:"gatekeeper,omitempty"`
	Architect  string `yaml:"architect,omitempty"`
	Builder    string `yaml:"builder,omitempty"`
	Auditor    string `yaml:"auditor,omitempty"`
}

// TemperaturesConfig holds per-stage sampling temperatures.
type TemperaturesConfig struct {
	Gatekeeper *float64 `yaml:"gatekeeper,omitempty"`
	Architect  *float64 `yaml:"architect,omitempty"`
	Builder    *float64 `yaml:"builder,omitempty"`
	Auditor    *float64 `yaml:"auditor,omitempty"`
}

// PipelineConfig holds pipeline execution settings.
type PipelineConfig struct {
	MaxRetries         *int   `yaml:"max_retries,omitempty"`
	BuilderConcurrency int    `yaml:"builder_concurrency,omitempty"`
	BaseURL            string `yaml:"base_url,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .sitesmith.yaml.
type ProjectConfig struct {
	Server       ServerConfig       `yaml:"server,omitempty"`
	Models       ModelsConfig       `yaml:"models,omitempty"`
	Temperatures TemperaturesConfig `yaml:"temperatures,omitempty"`
	Pipeline     PipelineConfig     `yaml:"pipeline,omitempty"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Server: ServerConfig{
			Port:      DefaultServerPort,
			OutputDir: DefaultOutputDir,
		},
		Models: ModelsConfig{
			Gatekeeper: DefaultGatekeeperModel,
			Architect:  DefaultArchitectModel,
			Builder:    DefaultBuilderModel,
			Auditor:    DefaultAuditorModel,
		},
		Temperatures: TemperaturesConfig{
			Gatekeeper: floatPtr(DefaultGatekeeperTemperature),
			Architect:  floatPtr(DefaultArchitectTemperature),
			Builder:    floatPtr(DefaultBuilderTemperature),
			Auditor:    floatPtr(DefaultAuditorTemperature),
		},
		Pipeline: PipelineConfig{
			MaxRetries:         intPtr(DefaultMaxRetries),
			BuilderConcurrency: DefaultBuilderConcurrency,
		},
	}
}

// Load finds .sitesmith.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // no file found → return defaults
		}
		return nil, fmt.Errorf("loading .sitesmith.yaml: %w", err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing .sitesmith.yaml: %w", err)
	}

	// Merge file values onto defaults.
	mergeConfig(cfg, &fileCfg)
	return cfg, nil
}

// APIKey reads the completion API key from the environment.
func APIKey() string {
	return os.Getenv(APIKeyEnvVar)
}

// findConfigFile walks up from dir looking for .sitesmith.yaml (max 10
// levels). Returns os.ErrNotExist if no config file is found. Propagates real
// I/O errors (e.g. permission denied) instead of silently swallowing them.
func findConfigFile(dir string) ([]byte, error) {
	// Convert to absolute path so filepath.Dir(".") walks correctly.
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, ".sitesmith.yaml")
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// Server
	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}
	if src.Server.OutputDir != "" {
		dst.Server.OutputDir = src.Server.OutputDir
	}

	// Models
	if src.Models.Gatekeeper != "" {
		dst.Models.Gatekeeper = src.Models.Gatekeeper
	}
	if src.Models.Architect != "" {
		dst.Models.Architect = src.Models.Architect
	}
	if src.Models.Builder != "" {
		dst.Models.Builder = src.Models.Builder
	}
	if src.Models.Auditor != "" {
		dst.Models.Auditor = src.Models.Auditor
	}

	// Temperatures
	if src.Temperatures.Gatekeeper != nil {
		dst.Temperatures.Gatekeeper = src.Temperatures.Gatekeeper
	}
	if src.Temperatures.Architect != nil {
		dst.Temperatures.Architect = src.Temperatures.Architect
	}
	if src.Temperatures.Builder != nil {
		dst.Temperatures.Builder = src.Temperatures.Builder
	}
	if src.Temperatures.Auditor != nil {
		dst.Temperatures.Auditor = src.Temperatures.Auditor
	}

	// Pipeline
	if src.Pipeline.MaxRetries != nil {
		dst.Pipeline.MaxRetries = src.Pipeline.MaxRetries
	}
	if src.Pipeline.BuilderConcurrency != 0 {
		dst.Pipeline.BuilderConcurrency = src.Pipeline.BuilderConcurrency
	}
	if src.Pipeline.BaseURL != "" {
		dst.Pipeline.BaseURL = src.Pipeline.BaseURL
	}
}

func floatPtr(f float64) *float64 {
	return &f
}

func intPtr(i int) *int {
	return &i
}
