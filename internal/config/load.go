package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultPath returns ~/.config/asky/config.toml.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the config file at path (DefaultPath when empty), decoding
// it over the built-in defaults. A missing file is written out from the
// defaults first so users have something to edit.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefault(path); err != nil {
			slog.Warn("could not create default config file", "path", path, "error", err)
			cfg := Default()
			fillAliases(cfg)
			return cfg, cfg.Validate()
		}
		slog.Info("created default config file", "path", path)
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	fillAliases(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, "# asky configuration file"); err != nil {
		return err
	}
	return toml.NewEncoder(f).Encode(Default())
}

// fillAliases copies each model's map key into its Alias field so a
// Model value is self-describing once it leaves the map.
func fillAliases(cfg *Config) {
	for alias, m := range cfg.Models {
		m.Alias = alias
		cfg.Models[alias] = m
	}
}
