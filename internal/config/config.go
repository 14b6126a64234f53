package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/shinmindoree/llmtradingtest/internal/collector"
	"github.com/shinmindoree/llmtradingtest/internal/core"
)

// EnvPrefix prefixes environment overrides, e.g. LLMTRADER_BACKTEST_COMMISSION.
const EnvPrefix = "LLMTRADER"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Data     DataConfig     `mapstructure:"data"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	APIKey      string        `mapstructure:"api_key"`
	JobTTLHours int           `mapstructure:"job_ttl_hours"`
	MaxJobs     int           `mapstructure:"max_jobs"`
	RunTimeout  time.Duration `mapstructure:"run_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BacktestConfig holds the defaults applied to every run.
type BacktestConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital"`
	Commission     float64 `mapstructure:"commission"`
	MinSize        float64 `mapstructure:"min_size"`
	SizePrecision  int     `mapstructure:"size_precision"`
	Timing         string  `mapstructure:"timing"`       // "close" or "open"
	FundsPolicy    string  `mapstructure:"funds_policy"` // "clamp" or "reject"
	Workers        int     `mapstructure:"workers"`
}

// DataConfig selects where bars come from.
type DataConfig struct {
	Source       string        `mapstructure:"source"` // "binance" or "csv"
	Symbol       string        `mapstructure:"symbol"`
	Interval     string        `mapstructure:"interval"`
	Futures      bool          `mapstructure:"futures"`
	BaseURL      string        `mapstructure:"base_url"`
	CSVPath      string        `mapstructure:"csv_path"`
	MaxPoints    int           `mapstructure:"max_points"`
	MaxRequests  int           `mapstructure:"max_requests"`
	RequestDelay time.Duration `mapstructure:"request_delay"`
	Cache        CacheConfig   `mapstructure:"cache"`
}

type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Type    string `mapstructure:"type"` // "sqlite" or "parquet"
	Path    string `mapstructure:"path"`
}

type ArchiveConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Type    string   `mapstructure:"type"` // "localfs" or "s3"
	Path    string   `mapstructure:"path"` // For localfs
	S3      S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type LLMConfig struct {
	Provider string         `mapstructure:"provider"`
	Claude   ProviderConfig `mapstructure:"claude"`
	OpenAI   ProviderConfig `mapstructure:"openai"`
}

// ProviderConfig holds one LLM provider's credentials. BaseURL points the
// client at a compatible server or a test double.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// NotifyConfig lists the endpoints told about finished runs.
type NotifyConfig struct {
	Webhooks []WebhookConfig `mapstructure:"webhooks"`
}

type WebhookConfig struct {
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from path on top of Defaults. An empty path
// loads defaults and environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	// Support environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if ok && strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so environment overrides apply even
// when the file omits them.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.api_key", d.Server.APIKey)
	v.SetDefault("server.job_ttl_hours", d.Server.JobTTLHours)
	v.SetDefault("server.max_jobs", d.Server.MaxJobs)
	v.SetDefault("server.run_timeout", d.Server.RunTimeout)

	v.SetDefault("backtest.initial_capital", d.Backtest.InitialCapital)
	v.SetDefault("backtest.commission", d.Backtest.Commission)
	v.SetDefault("backtest.min_size", d.Backtest.MinSize)
	v.SetDefault("backtest.size_precision", d.Backtest.SizePrecision)
	v.SetDefault("backtest.timing", d.Backtest.Timing)
	v.SetDefault("backtest.funds_policy", d.Backtest.FundsPolicy)
	v.SetDefault("backtest.workers", d.Backtest.Workers)

	v.SetDefault("data.source", d.Data.Source)
	v.SetDefault("data.symbol", d.Data.Symbol)
	v.SetDefault("data.interval", d.Data.Interval)
	v.SetDefault("data.futures", d.Data.Futures)
	v.SetDefault("data.base_url", d.Data.BaseURL)
	v.SetDefault("data.csv_path", d.Data.CSVPath)
	v.SetDefault("data.max_points", d.Data.MaxPoints)
	v.SetDefault("data.max_requests", d.Data.MaxRequests)
	v.SetDefault("data.request_delay", d.Data.RequestDelay)
	v.SetDefault("data.cache.enabled", d.Data.Cache.Enabled)
	v.SetDefault("data.cache.type", d.Data.Cache.Type)
	v.SetDefault("data.cache.path", d.Data.Cache.Path)

	v.SetDefault("archive.enabled", d.Archive.Enabled)
	v.SetDefault("archive.type", d.Archive.Type)
	v.SetDefault("archive.path", d.Archive.Path)
	for _, k := range []string{"bucket", "endpoint", "region", "access_key", "secret_key", "prefix"} {
		v.SetDefault("archive.s3."+k, "")
	}

	v.SetDefault("llm.provider", d.LLM.Provider)
	for _, p := range []string{"claude", "openai"} {
		for _, k := range []string{"api_key", "model", "base_url"} {
			v.SetDefault("llm."+p+"."+k, "")
		}
	}

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			JobTTLHours: 1,
			MaxJobs:     100,
			RunTimeout:  5 * time.Minute,
		},
		Backtest: BacktestConfig{
			InitialCapital: 10000,
			Commission:     0.0004,
			MinSize:        0.001,
			SizePrecision:  6,
			Timing:         "close",
			FundsPolicy:    "clamp",
			Workers:        4,
		},
		Data: DataConfig{
			Source:       "binance",
			Symbol:       "BTCUSDT",
			Interval:     "15m",
			MaxPoints:    10000,
			MaxRequests:  20,
			RequestDelay: 500 * time.Millisecond,
			Cache: CacheConfig{
				Type: "sqlite",
				Path: "bars.db",
			},
		},
		Archive: ArchiveConfig{
			Type: "localfs",
			Path: "./reports",
		},
		LLM: LLMConfig{
			Provider: "openai",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.JobTTLHours < 0 || c.Server.MaxJobs < 0 || c.Server.RunTimeout < 0 {
		return invalid("server job_ttl_hours, max_jobs and run_timeout cannot be negative")
	}

	// Backtest validation
	b := c.Backtest
	if b.InitialCapital <= 0 {
		return invalid("initial_capital must be positive, got %v", b.InitialCapital)
	}
	if b.Commission < 0 || b.Commission >= 1 {
		return invalid("commission must be in [0,1), got %v", b.Commission)
	}
	if b.MinSize <= 0 {
		return invalid("min_size must be positive, got %v", b.MinSize)
	}
	if b.SizePrecision < 0 || b.SizePrecision > 12 {
		return invalid("size_precision must be in [0,12], got %d", b.SizePrecision)
	}
	if !oneOf(b.Timing, "close", "open") {
		return invalid("timing must be close or open, got %q", b.Timing)
	}
	if !oneOf(b.FundsPolicy, "clamp", "reject") {
		return invalid("funds_policy must be clamp or reject, got %q", b.FundsPolicy)
	}
	if b.Workers < 0 {
		return invalid("workers cannot be negative, got %d", b.Workers)
	}

	// Data validation
	d := c.Data
	if !oneOf(d.Source, "binance", "csv") {
		return invalid("data source must be binance or csv, got %q", d.Source)
	}
	if d.Source == "csv" && d.CSVPath == "" {
		return invalid("data csv_path required when source is csv")
	}
	if _, err := collector.IntervalDuration(d.Interval); err != nil {
		return err
	}
	if d.MaxPoints < 0 || d.MaxRequests < 0 || d.RequestDelay < 0 {
		return invalid("data max_points, max_requests and request_delay cannot be negative")
	}
	if d.Cache.Enabled && !oneOf(d.Cache.Type, "sqlite", "parquet") {
		return invalid("data cache type must be sqlite or parquet, got %q", d.Cache.Type)
	}

	// Archive validation
	if c.Archive.Enabled {
		switch c.Archive.Type {
		case "localfs":
			if c.Archive.Path == "" {
				return invalid("archive path required when type is localfs")
			}
		case "s3":
			if c.Archive.S3.Bucket == "" {
				return invalid("archive s3 bucket required when type is s3")
			}
		default:
			return invalid("archive type must be localfs or s3, got %q", c.Archive.Type)
		}
	}

	// LLM validation - keys are checked when a provider is created
	if c.LLM.Provider != "" && !oneOf(c.LLM.Provider, "claude", "openai") {
		return invalid("unknown llm provider %q", c.LLM.Provider)
	}

	for i, w := range c.Notify.Webhooks {
		if !strings.HasPrefix(w.URL, "http://") && !strings.HasPrefix(w.URL, "https://") {
			return invalid("notify webhook %d: url must be http or https, got %q", i, w.URL)
		}
	}

	if !oneOf(strings.ToLower(c.Log.Level), "", "debug", "info", "warn", "error") {
		return invalid("unknown log level %q", c.Log.Level)
	}

	return nil
}

func invalid(format string, args ...any) error {
	return core.WrapError(core.ErrConfigInvalid, fmt.Errorf(format, args...))
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
