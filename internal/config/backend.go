package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Backend reads and writes persisted configuration values.
type Backend interface {
	// Read returns the stored file config, or (nil, nil) when no config
	// file exists yet.
	Read() (*fileConfig, error)
	// Write persists the given file config.
	Write(fc *fileConfig) error
}

// fileConfig mirrors the JSON layout of the config file. Pointer fields
// distinguish "absent" from zero values.
type fileConfig struct {
	Port           *int     `json:"port,omitempty"`
	DataDir        *string  `json:"dataDir,omitempty"`
	RootPaths      []string `json:"rootPaths,omitempty"`
	StatusFilename *string  `json:"statusFilename,omitempty"`
	LogLevel       *string  `json:"logLevel,omitempty"`
}

// fileBackend stores config as JSON at $XDG_CONFIG_HOME/atlas/config.json
// (falling back to ~/.config/atlas/config.json).
type fileBackend struct {
	path string
}

func newFileBackend(path string) *fileBackend {
	if path == "" {
		path = defaultConfigPath()
	}
	return &fileBackend{path: path}
}

func defaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "atlas", "config.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "atlas", "config.json")
}

func (b *fileBackend) Read() (*fileConfig, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", b.path, err)
	}
	return &fc, nil
}

func (b *fileBackend) Write(fc *fileConfig) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(b.path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func applyBackend(cfg *Config, b Backend) error {
	fc, err := b.Read()
	if err != nil {
		return err
	}
	if fc == nil {
		return nil
	}

	if fc.Port != nil && *fc.Port > 0 {
		cfg.Server.Port = *fc.Port
	}
	if fc.DataDir != nil && *fc.DataDir != "" {
		cfg.Storage.DataDir = *fc.DataDir
	}
	if len(fc.RootPaths) > 0 {
		cfg.Registry.RootPaths = fc.RootPaths
	}
	if fc.StatusFilename != nil && *fc.StatusFilename != "" {
		cfg.Registry.StatusFilename = *fc.StatusFilename
	}
	if fc.LogLevel != nil && *fc.LogLevel != "" {
		cfg.Log.Level = *fc.LogLevel
	}
	return nil
}

// SetKey persists a single configuration value through the file backend.
func SetKey(key, value string) error {
	return setKeyWith(newFileBackend(""), key, value)
}

func setKeyWith(b Backend, key, value string) error {
	fc, err := b.Read()
	if err != nil {
		return err
	}
	if fc == nil {
		fc = &fileConfig{}
	}

	switch key {
	case "server.port":
		port, err := parsePort(value)
		if err != nil {
			return err
		}
		fc.Port = &port
	case "storage.dataDir":
		fc.DataDir = &value
	case "registry.rootPaths":
		fc.RootPaths = splitList(value)
	case "registry.statusFilename":
		fc.StatusFilename = &value
	case "log.level":
		fc.LogLevel = &value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}

	return b.Write(fc)
}

func parsePort(value string) (int, error) {
	var port int
	if _, err := fmt.Sscanf(value, "%d", &port); err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", value)
	}
	return port, nil
}
