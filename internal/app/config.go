package app

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// CanvasPath is a canvas document loaded straight from disk.
	CanvasPath string `yaml:"canvas"`
	// CanvasName names the canvas inside the store. It is the save target
	// and, without CanvasPath, the load source.
	CanvasName string `yaml:"canvas_name"`

	Store       string `yaml:"store"`
	StoreDir    string `yaml:"store_dir"`
	RedisURL    string `yaml:"redis_url"`
	RedisPrefix string `yaml:"redis_prefix"`

	NotifyURL       string `yaml:"notify_url"`
	NotifyNamespace string `yaml:"notify_namespace"`
	NotifyInsecure  bool   `yaml:"notify_insecure"`

	LogFormat string `yaml:"log_format"`
	LogLevel  string `yaml:"log_level"`
	MenuDepth int    `yaml:"menu_depth"`
	Save      bool   `yaml:"save"`

	// One-shot inspection modes, set from flags only.
	ListCommands string `yaml:"-"`
	Menu         string `yaml:"-"`
	ListCanvases bool   `yaml:"-"`
}

// DefaultConfig returns the configuration used when neither a config file
// nor a flag sets a field.
func DefaultConfig() Config {
	return Config{
		Store:     StoreFile,
		StoreDir:  "canvases",
		LogFormat: "text",
		LogLevel:  "info",
		MenuDepth: 3,
	}
}

// LoadConfigFile reads a YAML config file on top of DefaultConfig.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	inspecting := cfg.ListCommands != "" || cfg.Menu != "" || cfg.ListCanvases
	if !inspecting && cfg.CanvasPath == "" && cfg.CanvasName == "" {
		return nil, errors.New("a canvas path or canvas name is required")
	}

	switch cfg.Store {
	case StoreFile:
		if cfg.StoreDir == "" {
			return nil, errors.New("store_dir is required for the file store")
		}
	case StoreRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("redis_url is required for the redis store")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("unknown store %q: must be 'file', 'redis' or 'memory'", cfg.Store)
	}

	if cfg.MenuDepth < 1 {
		return nil, fmt.Errorf("menu depth must be at least 1, got %d", cfg.MenuDepth)
	}
	if cfg.Save && cfg.CanvasName == "" {
		return nil, errors.New("saving requires a canvas name")
	}
	return &cfg, nil
}
