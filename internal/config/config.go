// Package config loads atlas configuration: built-in defaults, overlaid
// by the JSON file backend, overlaid by ATLAS_* environment variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Registry RegistryConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port int `json:"port"`
}

type StorageConfig struct {
	DataDir string `json:"dataDir"`
}

type RegistryConfig struct {
	// RootPaths are the directories scanned for projects.
	RootPaths []string `json:"rootPaths"`
	// StatusFilename is the per-project status file name.
	StatusFilename string `json:"statusFilename"`
}

type LogConfig struct {
	Level string `json:"level"`
}

func defaults() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Server: ServerConfig{
			Port: 4200,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(home),
		},
		Registry: RegistryConfig{
			RootPaths:      []string{filepath.Join(home, "projects")},
			StatusFilename: "PROJECT-STATUS.md",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir(home string) string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "atlas")
	}
	return filepath.Join(home, ".local", "share", "atlas")
}

// Load reads configuration from the JSON file backend and applies
// environment overrides (ATLAS_PORT, ATLAS_DATA_DIR, ATLAS_ROOTS,
// ATLAS_STATUS_FILE, ATLAS_LOG_LEVEL).
func Load() (Config, error) {
	return loadWith(newFileBackend(""))
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ATLAS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ATLAS_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("ATLAS_ROOTS"); v != "" {
		cfg.Registry.RootPaths = splitList(v)
	}
	if v := os.Getenv("ATLAS_STATUS_FILE"); v != "" {
		cfg.Registry.StatusFilename = v
	}
	if v := os.Getenv("ATLAS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// splitList splits a comma- or colon-separated list, trimming whitespace
// and dropping empty entries.
func splitList(s string) []string {
	sep := ","
	if !strings.Contains(s, ",") && strings.Contains(s, ":") {
		sep = ":"
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// KV is a flattened key/value pair for display.
type KV struct {
	Key   string
	Value string
}

// ShowAll flattens the config into display pairs, sorted by key order of
// declaration.
func ShowAll(cfg Config) []KV {
	return []KV{
		{"server.port", strconv.Itoa(cfg.Server.Port)},
		{"storage.dataDir", cfg.Storage.DataDir},
		{"registry.rootPaths", strings.Join(cfg.Registry.RootPaths, ",")},
		{"registry.statusFilename", cfg.Registry.StatusFilename},
		{"log.level", cfg.Log.Level},
	}
}
