// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Engine.MaxKeywords != 12 {
		t.Errorf("MaxKeywords = %d, want 12", cfg.Engine.MaxKeywords)
	}
	if cfg.Engine.FanoutKeywords != 8 {
		t.Errorf("FanoutKeywords = %d, want 8", cfg.Engine.FanoutKeywords)
	}
	if cfg.CatalogTimeout() != 8*time.Second {
		t.Errorf("CatalogTimeout = %v, want 8s", cfg.CatalogTimeout())
	}
	if cfg.FanoutDeadline() != 12*time.Second {
		t.Errorf("FanoutDeadline = %v, want 12s", cfg.FanoutDeadline())
	}
	if cfg.ExpansionCache.TTL() != 24*time.Hour {
		t.Errorf("expansion cache TTL = %v, want 24h", cfg.ExpansionCache.TTL())
	}
	if cfg.CatalogCache.Capacity != 5000 {
		t.Errorf("catalog cache capacity = %d, want 5000", cfg.CatalogCache.Capacity)
	}
}

func TestLoad_FileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("engine:\n  fanout_keywords: 4\ncatalog:\n  base_url: https://ils.example/api/v1/biblios\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.FanoutKeywords != 4 {
		t.Errorf("FanoutKeywords = %d, want file override 4", cfg.Engine.FanoutKeywords)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Engine.MaxKeywords != 12 {
		t.Errorf("MaxKeywords = %d, want default 12", cfg.Engine.MaxKeywords)
	}
	if cfg.Catalog.BaseURL != "https://ils.example/api/v1/biblios" {
		t.Errorf("BaseURL = %q", cfg.Catalog.BaseURL)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("KOHA_API_URL", "https://env.example/api/v1/biblios")
	t.Setenv("KOHA_TIMEOUT", "3")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Catalog.BaseURL != "https://env.example/api/v1/biblios" {
		t.Errorf("BaseURL = %q, want env value", cfg.Catalog.BaseURL)
	}
	if cfg.CatalogTimeout() != 3*time.Second {
		t.Errorf("CatalogTimeout = %v, want 3s", cfg.CatalogTimeout())
	}
}

func TestLoad_ValidationRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("engine:\n  fanout_keywords: 99\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for fanout_keywords > max_keywords")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
