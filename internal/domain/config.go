// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"errors"
	"fmt"
	"time"
)

// Config represents the application configuration
type Config struct {
	Version       string
	Host          string `toml:"host" mapstructure:"host"`
	Port          int    `toml:"port" mapstructure:"port"`
	BaseURL       string `toml:"baseUrl" mapstructure:"baseUrl"`
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`
	DataDir       string `toml:"dataDir" mapstructure:"dataDir"`
	DatabasePath  string `toml:"databasePath" mapstructure:"databasePath"`

	// Metadata provider used for candidate matching. The provider is an
	// opaque lookup service; only its base URL and key are configured here.
	MetadataBaseURL string `toml:"metadataBaseUrl" mapstructure:"metadataBaseUrl"`
	MetadataAPIKey  string `toml:"metadataApiKey" mapstructure:"metadataApiKey"`

	// SourceTimeoutSeconds bounds every outbound adapter call (playlist
	// fetches, NZB downloads, URL probes). A timed-out call surfaces as an
	// unreachable-source analysis error, never as a hung job.
	SourceTimeoutSeconds int `toml:"sourceTimeoutSeconds" mapstructure:"sourceTimeoutSeconds"`

	// ImportWorkers is the number of background job worker slots.
	ImportWorkers int `toml:"importWorkers" mapstructure:"importWorkers"`

	// AnalysisHandleTTLMinutes controls how long analyzed M3U/Xtream batches
	// stay addressable by their opaque handle before the client must re-analyze.
	AnalysisHandleTTLMinutes int `toml:"analysisHandleTtlMinutes" mapstructure:"analysisHandleTtlMinutes"`

	// TitleMismatchThreshold is the minimum similarity ratio (0..1) between a
	// parsed title and the matched metadata title before a soft validation
	// error is raised.
	TitleMismatchThreshold float64 `toml:"titleMismatchThreshold" mapstructure:"titleMismatchThreshold"`

	// SyncIntervalMinutes is how often the scheduler checks saved IPTV
	// sources and RSS feeds for a due sync.
	SyncIntervalMinutes int `toml:"syncIntervalMinutes" mapstructure:"syncIntervalMinutes"`
}

// Defaults returns a config populated with default values.
func Defaults() *Config {
	return &Config{
		Host:                     "127.0.0.1",
		Port:                     7575,
		LogLevel:                 "INFO",
		LogMaxSize:               50,
		LogMaxBackups:            3,
		SourceTimeoutSeconds:     30,
		ImportWorkers:            4,
		AnalysisHandleTTLMinutes: 30,
		TitleMismatchThreshold:   0.5,
		SyncIntervalMinutes:      1,
	}
}

// Validate checks settings that have no safe fallback.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.ImportWorkers <= 0 {
		return errors.New("importWorkers must be > 0")
	}
	if c.TitleMismatchThreshold < 0 || c.TitleMismatchThreshold > 1 {
		return fmt.Errorf("titleMismatchThreshold %v outside 0..1", c.TitleMismatchThreshold)
	}
	return nil
}

// SourceTimeout returns the adapter timeout as a duration.
func (c *Config) SourceTimeout() time.Duration {
	if c.SourceTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.SourceTimeoutSeconds) * time.Second
}

// AnalysisHandleTTL returns the handle cache TTL as a duration.
func (c *Config) AnalysisHandleTTL() time.Duration {
	if c.AnalysisHandleTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.AnalysisHandleTTLMinutes) * time.Minute
}

// SyncInterval returns the scheduler tick interval as a duration.
func (c *Config) SyncInterval() time.Duration {
	if c.SyncIntervalMinutes <= 0 {
		return time.Minute
	}
	return time.Duration(c.SyncIntervalMinutes) * time.Minute
}
