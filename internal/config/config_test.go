package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("默认配置应可加载: %v", err)
	}

	if cfg.Scheduler.Interval != 60*time.Second {
		t.Fatalf("默认 interval 应为 60s, 实际 %s", cfg.Scheduler.Interval)
	}
	if cfg.Provider.MaxAssets != 50 {
		t.Fatalf("默认 max_assets 应为 50, 实际 %d", cfg.Provider.MaxAssets)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.Backoff != 5*time.Second {
		t.Fatalf("默认重试配置不正确: %+v", cfg.Retry)
	}
	if cfg.Sink.Type != SinkExcel || cfg.Sink.Sheet != "CryptocurrencyData" {
		t.Fatalf("默认 sink 配置不正确: %+v", cfg.Sink)
	}
	if !cfg.Sink.CSVBackup {
		t.Fatal("csv_backup 默认应开启")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
scheduler:
  interval: 5m
provider:
  max_assets: 10
sink:
  type: csv
  path: out/top10.csv
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("配置文件应可加载: %v", err)
	}
	if cfg.Scheduler.Interval != 5*time.Minute {
		t.Fatalf("interval 应为 5m, 实际 %s", cfg.Scheduler.Interval)
	}
	if cfg.Provider.MaxAssets != 10 {
		t.Fatalf("max_assets 应为 10, 实际 %d", cfg.Provider.MaxAssets)
	}
	if cfg.Sink.Type != SinkCSV || cfg.Sink.Path != "out/top10.csv" {
		t.Fatalf("sink 配置不正确: %+v", cfg.Sink)
	}
	// untouched sections keep their defaults
	if cfg.Retry.MaxAttempts != 3 {
		t.Fatalf("未覆盖的默认值应保留: %+v", cfg.Retry)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"non-positive interval", func(c *Config) { c.Scheduler.Interval = 0 }},
		{"non-positive max assets", func(c *Config) { c.Provider.MaxAssets = 0 }},
		{"max assets over provider page cap", func(c *Config) { c.Provider.MaxAssets = 500 }},
		{"empty base url", func(c *Config) { c.Provider.BaseURL = "" }},
		{"non-positive attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"negative backoff", func(c *Config) { c.Retry.Backoff = -time.Second }},
		{"unknown sink type", func(c *Config) { c.Sink.Type = "sqlite" }},
		{"excel sink without path", func(c *Config) { c.Sink.Path = "" }},
		{"postgres sink without dsn", func(c *Config) { c.Sink.Type = SinkPostgres; c.Sink.DSN = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("非法配置应校验失败")
			}
		})
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("CRYPTOTRACKER_PROVIDER_MAX_ASSETS", "25")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("环境变量覆盖应可加载: %v", err)
	}
	if cfg.Provider.MaxAssets != 25 {
		t.Fatalf("环境变量应覆盖默认值, 实际 %d", cfg.Provider.MaxAssets)
	}
}
