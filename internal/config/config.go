package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"crypto-tracker/internal/logging"
)

// Sink type identifiers accepted in sink.type.
const (
	SinkExcel    = "excel"
	SinkCSV      = "csv"
	SinkPostgres = "postgres"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Sink      SinkConfig      `mapstructure:"sink"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ProviderConfig covers access to the market-data API.
type ProviderConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	VsCurrency     string        `mapstructure:"vs_currency"`
	MaxAssets      int           `mapstructure:"max_assets"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// SchedulerConfig governs polling cadence.
type SchedulerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
}

// RetryConfig bounds per-cycle retry behaviour on transient fetch failure.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
	Exponential bool          `mapstructure:"exponential"`
}

// SinkConfig selects and parameterises the tabular output destination.
type SinkConfig struct {
	Type            string        `mapstructure:"type"`
	Path            string        `mapstructure:"path"`
	Sheet           string        `mapstructure:"sheet"`
	CSVBackup       bool          `mapstructure:"csv_backup"`
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxChartBars int `mapstructure:"max_chart_bars"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRYPTOTRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "cryptotracker")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("provider.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("provider.vs_currency", "usd")
	v.SetDefault("provider.max_assets", 50)
	v.SetDefault("provider.request_timeout", "10s")
	v.SetDefault("provider.user_agent", "cryptotracker/1.0")

	v.SetDefault("scheduler.interval", "60s")
	v.SetDefault("scheduler.align_to_bucket", false)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.backoff", "5s")
	v.SetDefault("retry.exponential", false)

	v.SetDefault("sink.type", SinkExcel)
	v.SetDefault("sink.path", "cryptocurrency_live_data.xlsx")
	v.SetDefault("sink.sheet", "CryptocurrencyData")
	v.SetDefault("sink.csv_backup", true)
	v.SetDefault("sink.table", "asset_snapshots")
	v.SetDefault("sink.max_open_conns", 10)
	v.SetDefault("sink.max_idle_conns", 5)
	v.SetDefault("sink.conn_max_lifetime", "30m")

	v.SetDefault("export.max_chart_bars", 15)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
// Any failure here is fatal at startup; the polling loop never runs.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Provider.MaxAssets <= 0 || c.Provider.MaxAssets > 250 {
		return fmt.Errorf("provider.max_assets must be in 1..250")
	}
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url must not be empty")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be greater than zero")
	}
	if c.Retry.Backoff < 0 {
		return fmt.Errorf("retry.backoff cannot be negative")
	}

	switch c.Sink.Type {
	case SinkExcel, SinkCSV:
		if c.Sink.Path == "" {
			return fmt.Errorf("sink.path 必须配置")
		}
	case SinkPostgres:
		if c.Sink.DSN == "" {
			return fmt.Errorf("sink.dsn 必须配置")
		}
		if c.Sink.Table == "" {
			return fmt.Errorf("sink.table must not be empty")
		}
	default:
		return fmt.Errorf("unknown sink.type %q", c.Sink.Type)
	}

	if c.Export.MaxChartBars <= 0 {
		return fmt.Errorf("export.max_chart_bars must be greater than zero")
	}
	return nil
}

// ResolveChartBars returns either the CLI override or config default.
func (c *Config) ResolveChartBars(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxChartBars
}
