package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %q", cfg.LogLevel)
	}
	if cfg.LoaderWorkers != 8 {
		t.Errorf("expected 8 loader workers, got %d", cfg.LoaderWorkers)
	}
	if cfg.CacheMaxEntries != 256 {
		t.Errorf("expected cache capacity 256, got %d", cfg.CacheMaxEntries)
	}
	if cfg.StaleMaxAgeSec != 3600 {
		t.Errorf("expected stale max age 3600s, got %d", cfg.StaleMaxAgeSec)
	}
	if cfg.FanoutNamespaces != 20 || cfg.SearchNamespaces != 50 {
		t.Errorf("unexpected fan-out caps: %d/%d", cfg.FanoutNamespaces, cfg.SearchNamespaces)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Errorf("unexpected allowed origins: %v", cfg.AllowedOrigins)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("KUBEGLASS_PORT", "9090")
	t.Setenv("KUBEGLASS_LOADER_WORKERS", "2")
	t.Setenv("KUBEGLASS_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("env override for port not applied: %d", cfg.Port)
	}
	if cfg.LoaderWorkers != 2 {
		t.Errorf("env override for workers not applied: %d", cfg.LoaderWorkers)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("env override for log level not applied: %q", cfg.LogLevel)
	}
}
