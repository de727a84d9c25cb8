// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the engine configuration from embedded defaults, an
// optional YAML file, and environment variable overrides, in that order of
// precedence (later wins).
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Defaults
// =============================================================================

//go:embed defaults.yaml
var defaultConfigYAML []byte

// MaxYAMLFileSize bounds config files to keep a corrupted or hostile file
// from exhausting memory during parse.
const MaxYAMLFileSize = 1 << 20

// =============================================================================
// Configuration Types
// =============================================================================

// Config is the full engine configuration.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Config struct {
	Engine         EngineConfig  `yaml:"engine"`
	ExpansionCache CacheConfig   `yaml:"expansion_cache"`
	CatalogCache   CacheConfig   `yaml:"catalog_cache"`
	Catalog        CatalogConfig `yaml:"catalog"`
	LLM            LLMConfig     `yaml:"llm"`
	Server         ServerConfig  `yaml:"server"`
}

// EngineConfig tunes the resolution and fan-out pipeline.
type EngineConfig struct {
	// MaxKeywords caps how many keywords the expander returns.
	MaxKeywords int `yaml:"max_keywords"`

	// FanoutKeywords caps how many keywords the fan-out actually queries.
	FanoutKeywords int `yaml:"fanout_keywords"`

	// FanoutConcurrency bounds in-flight catalog searches.
	FanoutConcurrency int `yaml:"fanout_concurrency"`

	// RecommendResultCap and SearchResultCap are the soft caps applied after
	// aggregation for recommendation and search flows respectively.
	RecommendResultCap int `yaml:"recommend_result_cap"`
	SearchResultCap    int `yaml:"search_result_cap"`

	// CatalogTimeoutSeconds bounds one catalog request.
	CatalogTimeoutSeconds int `yaml:"catalog_timeout_seconds"`

	// FanoutGraceSeconds is added on top of the catalog timeout to form the
	// whole-fan-out deadline, letting queued requests drain.
	FanoutGraceSeconds int `yaml:"fanout_grace_seconds"`
}

// CacheConfig sizes one TTL cache.
type CacheConfig struct {
	Capacity   int `yaml:"capacity"`
	TTLSeconds int `yaml:"ttl_seconds"`
}

// TTL returns the configured TTL as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// CatalogConfig holds catalog connection settings.
type CatalogConfig struct {
	BaseURL           string `yaml:"base_url"`
	ItemsURL          string `yaml:"items_url"`
	Username          string `yaml:"username"`
	Password          string `yaml:"password"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

// LLMConfig holds the text-generation provider settings. The API key comes
// only from the environment; it never lives in a config file.
type LLMConfig struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// ServerConfig holds the HTTP listener addresses.
type ServerConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// =============================================================================
// Loading
// =============================================================================

// Load builds the configuration from defaults, an optional file, and the
// environment.
//
// Description:
//
//	Starts from the embedded defaults, overlays the YAML file at path when
//	path is non-empty, then applies environment overrides. Validates the
//	result before returning.
//
// Inputs:
//   - path: Optional YAML file path. Empty skips the file layer.
//
// Outputs:
//   - *Config: The validated configuration.
//   - error: Non-nil on read, parse, or validation failure.
func Load(path string) (*Config, error) {
	cfg, err := parse(defaultConfigYAML)
	if err != nil {
		return nil, fmt.Errorf("embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if len(data) > MaxYAMLFileSize {
			return nil, fmt.Errorf("config file exceeds maximum size (%d > %d)", len(data), MaxYAMLFileSize)
		}
		// Unmarshal over the defaults so absent keys keep their values.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return &cfg, nil
}

// applyEnv overlays environment variables onto cfg.
func applyEnv(cfg *Config) {
	setString(&cfg.Catalog.BaseURL, "KOHA_API_URL")
	setString(&cfg.Catalog.ItemsURL, "KOHA_ITEMS_URL")
	setString(&cfg.Catalog.Username, "KOHA_USERNAME")
	setString(&cfg.Catalog.Password, "KOHA_PASSWORD")
	setInt(&cfg.Catalog.RequestsPerMinute, "KOHA_REQUESTS_PER_MINUTE")
	setInt(&cfg.Engine.CatalogTimeoutSeconds, "KOHA_TIMEOUT")
	setString(&cfg.LLM.Model, "OPENROUTER_MODEL")
	setString(&cfg.LLM.BaseURL, "OPENROUTER_BASE_URL")
	setString(&cfg.Server.ListenAddr, "LISTEN_ADDR")
	setString(&cfg.Server.MetricsAddr, "METRICS_ADDR")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// validate checks invariants the pipeline depends on.
func (c *Config) validate() error {
	if c.Engine.MaxKeywords <= 0 {
		return fmt.Errorf("engine.max_keywords must be positive")
	}
	if c.Engine.FanoutKeywords <= 0 || c.Engine.FanoutKeywords > c.Engine.MaxKeywords {
		return fmt.Errorf("engine.fanout_keywords must be in [1, max_keywords]")
	}
	if c.Engine.FanoutConcurrency <= 0 {
		return fmt.Errorf("engine.fanout_concurrency must be positive")
	}
	if c.Engine.CatalogTimeoutSeconds <= 0 {
		return fmt.Errorf("engine.catalog_timeout_seconds must be positive")
	}
	if c.Engine.FanoutGraceSeconds < 0 {
		return fmt.Errorf("engine.fanout_grace_seconds must not be negative")
	}
	if c.Engine.RecommendResultCap <= 0 || c.Engine.SearchResultCap <= 0 {
		return fmt.Errorf("engine result caps must be positive")
	}
	if c.ExpansionCache.Capacity <= 0 || c.CatalogCache.Capacity <= 0 {
		return fmt.Errorf("cache capacities must be positive")
	}
	return nil
}

// CatalogTimeout returns the per-request catalog timeout as a duration.
func (c *Config) CatalogTimeout() time.Duration {
	return time.Duration(c.Engine.CatalogTimeoutSeconds) * time.Second
}

// FanoutDeadline returns the whole-fan-out deadline: one catalog timeout
// plus the grace period.
func (c *Config) FanoutDeadline() time.Duration {
	return c.CatalogTimeout() + time.Duration(c.Engine.FanoutGraceSeconds)*time.Second
}
