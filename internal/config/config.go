package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/strateval/pkg/evaluation"
)

// Config holds all application configuration
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Redis         RedisConfig         `yaml:"redis" mapstructure:"redis"`
	NATS          NATSConfig          `yaml:"nats" mapstructure:"nats"`
	Evaluation    evaluation.Config   `yaml:"evaluation" mapstructure:"evaluation"`
	Sources       SourcesConfig       `yaml:"sources" mapstructure:"sources"`
	Notifications NotificationsConfig `yaml:"notifications" mapstructure:"notifications"`
	API           APIConfig           `yaml:"api" mapstructure:"api"`
	Monitoring    MonitoringConfig    `yaml:"monitoring" mapstructure:"monitoring"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Version     string `yaml:"version" mapstructure:"version"`
	Environment string `yaml:"environment" mapstructure:"environment"` // development, staging, production
	LogLevel    string `yaml:"log_level" mapstructure:"log_level"`
}

// DatabaseConfig contains PostgreSQL settings
type DatabaseConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	PoolSize int    `yaml:"pool_size" mapstructure:"pool_size"`
}

// RedisConfig contains Redis settings
type RedisConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	// ReportTTL is how long cached evaluation reports live, in seconds.
	ReportTTL int `yaml:"report_ttl" mapstructure:"report_ttl"`
}

// NATSConfig contains NATS messaging settings
type NATSConfig struct {
	URL     string `yaml:"url" mapstructure:"url"`
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
}

// SourcesConfig contains trade-history source settings
type SourcesConfig struct {
	Binance BinanceSourceConfig `yaml:"binance" mapstructure:"binance"`
}

// BinanceSourceConfig configures the Binance trade importer
type BinanceSourceConfig struct {
	Enabled   bool     `yaml:"enabled" mapstructure:"enabled"`
	APIKey    string   `yaml:"api_key" mapstructure:"api_key"`
	SecretKey string   `yaml:"secret_key" mapstructure:"secret_key"`
	Testnet   bool     `yaml:"testnet" mapstructure:"testnet"`
	Symbols   []string `yaml:"symbols" mapstructure:"symbols"`
	// PageLimit is the number of fills fetched per request.
	PageLimit int `yaml:"page_limit" mapstructure:"page_limit"`
}

// NotificationsConfig contains outbound notification settings
type NotificationsConfig struct {
	Webhook  WebhookConfig  `yaml:"webhook" mapstructure:"webhook"`
	Telegram TelegramConfig `yaml:"telegram" mapstructure:"telegram"`
}

// WebhookConfig configures the evaluation-completed webhook
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	URL     string `yaml:"url" mapstructure:"url"`
	// TimeoutMS is the per-delivery HTTP timeout in milliseconds.
	TimeoutMS int `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	// RatePerSecond and Burst bound outbound delivery.
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Burst         int     `yaml:"burst" mapstructure:"burst"`
}

// TelegramConfig configures the Telegram notifier
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Token   string `yaml:"token" mapstructure:"token"`
	ChatID  int64  `yaml:"chat_id" mapstructure:"chat_id"`
}

// APIConfig contains REST API settings
type APIConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
	// RatePerSecond and Burst bound requests per client IP.
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Burst         int     `yaml:"burst" mapstructure:"burst"`
}

// MonitoringConfig contains monitoring settings
type MonitoringConfig struct {
	PrometheusPort int  `yaml:"prometheus_port" mapstructure:"prometheus_port"`
	EnableMetrics  bool `yaml:"enable_metrics" mapstructure:"enable_metrics"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable overrides. Nested keys map through the
	// replacer: database.host becomes STRATEVAL_DATABASE_HOST.
	v.AutomaticEnv()
	v.SetEnvPrefix("STRATEVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	// Unmarshal into struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration using comprehensive validation
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration the application runs with when no config
// file or environment overrides are present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// The defaults are static; they always unmarshal
		panic(fmt.Sprintf("config: defaults failed to unmarshal: %v", err))
	}
	return &cfg
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "strateval")
	v.SetDefault("app.version", Version)
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", PostgresPort)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "strateval")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", RedisPort)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.report_ttl", 3600)

	// NATS defaults
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", true)

	// Evaluation engine defaults, mirrored from evaluation.DefaultConfig so a
	// bare config file evaluates exactly like a library caller.
	def := evaluation.DefaultConfig()
	v.SetDefault("evaluation.initial_capital", def.InitialCapital)
	v.SetDefault("evaluation.risk_free_rate", def.RiskFreeRate)
	v.SetDefault("evaluation.rolling_window_trades", def.RollingWindowTrades)
	v.SetDefault("evaluation.vol_tier_low_pct", def.VolTierLowPct)
	v.SetDefault("evaluation.vol_tier_high_pct", def.VolTierHighPct)
	v.SetDefault("evaluation.sharpe_drop_threshold", def.SharpeDropThreshold)
	v.SetDefault("evaluation.workers", def.Workers)
	v.SetDefault("evaluation.friction.commission_rate", def.Friction.CommissionRate)
	v.SetDefault("evaluation.friction.spread_bps", def.Friction.SpreadBps)
	v.SetDefault("evaluation.friction.slippage_bps", def.Friction.SlippageBps)
	v.SetDefault("evaluation.friction.partial_fill_prob", def.Friction.PartialFillProb)
	v.SetDefault("evaluation.friction.fill_ratio_min", def.Friction.FillRatioMin)
	v.SetDefault("evaluation.friction.fill_ratio_max", def.Friction.FillRatioMax)
	v.SetDefault("evaluation.walk_forward.train_days", def.WalkForward.TrainDays)
	v.SetDefault("evaluation.walk_forward.test_days", def.WalkForward.TestDays)
	v.SetDefault("evaluation.walk_forward.step_days", def.WalkForward.StepDays)
	v.SetDefault("evaluation.walk_forward.min_fold_trades", def.WalkForward.MinFoldTrades)
	v.SetDefault("evaluation.monte_carlo.trials", def.MonteCarlo.Trials)
	v.SetDefault("evaluation.monte_carlo.slippage_min_bps", def.MonteCarlo.SlippageMinBps)
	v.SetDefault("evaluation.monte_carlo.slippage_max_bps", def.MonteCarlo.SlippageMaxBps)
	v.SetDefault("evaluation.monte_carlo.shuffle", def.MonteCarlo.Shuffle)
	v.SetDefault("evaluation.monte_carlo.store_distributions", def.MonteCarlo.StoreDistributions)

	// Source defaults
	v.SetDefault("sources.binance.enabled", false)
	v.SetDefault("sources.binance.testnet", false)
	v.SetDefault("sources.binance.symbols", []string{"BTCUSDT", "ETHUSDT"})
	v.SetDefault("sources.binance.page_limit", 1000)

	// Notification defaults
	v.SetDefault("notifications.webhook.enabled", false)
	v.SetDefault("notifications.webhook.timeout_ms", 5000)
	v.SetDefault("notifications.webhook.rate_per_second", 5.0)
	v.SetDefault("notifications.webhook.burst", 10)
	v.SetDefault("notifications.telegram.enabled", false)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", APIServerPort)
	v.SetDefault("api.rate_per_second", 10.0)
	v.SetDefault("api.burst", 20)

	// Monitoring defaults
	v.SetDefault("monitoring.prometheus_port", MetricsPort)
	v.SetDefault("monitoring.enable_metrics", true)
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetReportTTL returns the report cache TTL as a time.Duration
func (c *RedisConfig) GetReportTTL() time.Duration {
	return time.Duration(c.ReportTTL) * time.Second
}

// GetAPIAddr returns the API server address
func (c *APIConfig) GetAPIAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetTimeout returns the webhook delivery timeout as a time.Duration
func (c *WebhookConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}
