package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	HTTP struct {
		Port string `yaml:"port" env:"TEST_HTTP_PORT"`
	} `yaml:"http"`
	Cache struct {
		TTL     time.Duration `yaml:"ttl"`
		Enabled bool          `yaml:"enabled"`
	} `yaml:"cache"`
	Regions []string `yaml:"regions" env:"TEST_REGIONS"`
	Skipped string   `env:"-"`
}

func TestLoadConfigFileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "http:\n  port: \"9000\"\ncache:\n  ttl: 45s\n  enabled: true\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TEST_HTTP_PORT", "9100")
	t.Setenv("CACHE_TTL", "2m")
	t.Setenv("TEST_REGIONS", "Ohio, Texas,,")

	var cfg testConfig
	if err := LoadConfigFile(path, &cfg); err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.HTTP.Port != "9100" {
		t.Fatalf("expected env override port 9100, got %s", cfg.HTTP.Port)
	}
	if cfg.Cache.TTL != 2*time.Minute {
		t.Fatalf("expected ttl 2m, got %s", cfg.Cache.TTL)
	}
	if !cfg.Cache.Enabled {
		t.Fatalf("expected cache enabled from yaml")
	}
	if len(cfg.Regions) != 2 || cfg.Regions[0] != "Ohio" || cfg.Regions[1] != "Texas" {
		t.Fatalf("unexpected regions %v", cfg.Regions)
	}
}

func TestLoadConfigUsesConfigFileEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("cache:\n  ttl: 10s\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(defaultConfigPathEnv, path)

	var cfg testConfig
	if err := LoadConfig(&cfg); err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Cache.TTL != 10*time.Second {
		t.Fatalf("expected ttl 10s, got %s", cfg.Cache.TTL)
	}
}

func TestLoadConfigRejectsInvalidTargets(t *testing.T) {
	if err := LoadConfigFile("", nil); err == nil {
		t.Fatalf("expected error for nil target")
	}
	var cfg testConfig
	if err := LoadConfigFile("", cfg); err == nil {
		t.Fatalf("expected error for non-pointer target")
	}
}

func TestLoadConfigReportsBadEnvValue(t *testing.T) {
	t.Setenv("CACHE_ENABLED", "maybe")

	var cfg testConfig
	if err := LoadConfigFile("", &cfg); err == nil {
		t.Fatalf("expected parse error for invalid bool")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	var cfg testConfig
	if err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml"), &cfg); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadConfigIgnoresEmptyTypedEnv(t *testing.T) {
	t.Setenv("CACHE_TTL", "")
	t.Setenv("CACHE_ENABLED", " ")

	cfg := testConfig{}
	cfg.Cache.TTL = time.Minute
	if err := LoadConfigFile("", &cfg); err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Cache.TTL != time.Minute {
		t.Fatalf("empty env must keep default ttl, got %s", cfg.Cache.TTL)
	}
}
