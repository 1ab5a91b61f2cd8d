// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads the TOML configuration file with environment
// overrides and keeps the in-memory config in sync with file edits.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/autobrr/importarr/internal/domain"
)

const envPrefix = "IMPORTARR__"

// AppConfig wraps the loaded configuration and its file location.
type AppConfig struct {
	Config *domain.Config

	viper *viper.Viper
	mu    sync.RWMutex
}

// New loads configuration from the given path. An empty path falls back to
// the default config directory. A missing config file is created with
// defaults so a first run works without any setup.
func New(configPath, version string) (*AppConfig, error) {
	c := &AppConfig{
		Config: domain.Defaults(),
		viper:  viper.New(),
	}
	c.Config.Version = version

	if err := c.load(configPath); err != nil {
		return nil, err
	}
	if err := c.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c.watch()
	return c, nil
}

func (c *AppConfig) load(configPath string) error {
	c.viper.SetConfigType("toml")

	for key, value := range defaultsMap(c.Config) {
		c.viper.SetDefault(key, value)
	}

	if configPath != "" {
		if expanded, err := filepath.Abs(configPath); err == nil {
			configPath = expanded
		}
		if info, err := os.Stat(configPath); err == nil && info.IsDir() {
			configPath = filepath.Join(configPath, "config.toml")
		}
		c.viper.SetConfigFile(configPath)
	} else {
		dir, err := defaultConfigDir()
		if err != nil {
			return err
		}
		configPath = filepath.Join(dir, "config.toml")
		c.viper.SetConfigFile(configPath)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := c.writeDefaultConfig(configPath); err != nil {
			return err
		}
	}

	if err := c.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", configPath, err)
	}

	c.bindEnv()

	if err := c.viper.Unmarshal(c.Config); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	if c.Config.DataDir == "" {
		c.Config.DataDir = filepath.Dir(configPath)
	}
	if c.Config.DatabasePath == "" {
		c.Config.DatabasePath = filepath.Join(c.Config.DataDir, "importarr.db")
	}

	return nil
}

// bindEnv maps IMPORTARR__SNAKE_CASE variables onto config keys.
func (c *AppConfig) bindEnv() {
	for _, key := range c.viper.AllKeys() {
		env := envPrefix + strings.ToUpper(camelToSnake(key))
		_ = c.viper.BindEnv(key, env)
	}
}

func camelToSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// watch reloads mutable settings when the config file changes on disk.
func (c *AppConfig) watch() {
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		c.mu.Lock()
		defer c.mu.Unlock()

		updated := domain.Defaults()
		updated.Version = c.Config.Version
		if err := c.viper.Unmarshal(updated); err != nil {
			log.Error().Err(err).Str("file", e.Name).Msg("config: reload failed, keeping previous settings")
			return
		}
		if err := updated.Validate(); err != nil {
			log.Error().Err(err).Str("file", e.Name).Msg("config: reloaded settings invalid, keeping previous settings")
			return
		}

		// Fields read once at startup (host, port, database path) keep their
		// original values until restart; tunables swap in place.
		c.Config.LogLevel = updated.LogLevel
		c.Config.SourceTimeoutSeconds = updated.SourceTimeoutSeconds
		c.Config.TitleMismatchThreshold = updated.TitleMismatchThreshold
		c.Config.SyncIntervalMinutes = updated.SyncIntervalMinutes

		log.Info().Str("file", e.Name).Msg("config: reloaded")
	})
	c.viper.WatchConfig()
}

func (c *AppConfig) writeDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := c.viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	log.Info().Str("path", path).Msg("config: wrote default config file")
	return nil
}

func defaultConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "importarr"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".config", "importarr"), nil
}

func defaultsMap(cfg *domain.Config) map[string]any {
	return map[string]any{
		"host":                     cfg.Host,
		"port":                     cfg.Port,
		"baseUrl":                  cfg.BaseURL,
		"logLevel":                 cfg.LogLevel,
		"logPath":                  cfg.LogPath,
		"logMaxSize":               cfg.LogMaxSize,
		"logMaxBackups":            cfg.LogMaxBackups,
		"dataDir":                  cfg.DataDir,
		"databasePath":             cfg.DatabasePath,
		"metadataBaseUrl":          cfg.MetadataBaseURL,
		"metadataApiKey":           cfg.MetadataAPIKey,
		"sourceTimeoutSeconds":     cfg.SourceTimeoutSeconds,
		"importWorkers":            cfg.ImportWorkers,
		"analysisHandleTtlMinutes": cfg.AnalysisHandleTTLMinutes,
		"titleMismatchThreshold":   cfg.TitleMismatchThreshold,
		"syncIntervalMinutes":      cfg.SyncIntervalMinutes,
	}
}
