//nolint:goconst // Test files use repeated strings for clarity
package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/strateval/pkg/evaluation"
)

// getValidConfig returns a valid configuration for testing
func getValidConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "StratEval",
			Version:     "1.0.0",
			Environment: "development",
			LogLevel:    "info",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "secure_password",
			Database: "strateval",
			SSLMode:  "disable",
			PoolSize: 10,
		},
		Redis: RedisConfig{
			Host:      "localhost",
			Port:      6379,
			DB:        0,
			ReportTTL: 3600,
		},
		NATS: NATSConfig{
			URL:     "nats://localhost:4222",
			Enabled: true,
		},
		Evaluation: evaluation.DefaultConfig(),
		Sources: SourcesConfig{
			Binance: BinanceSourceConfig{
				Enabled:   false,
				PageLimit: 1000,
			},
		},
		Notifications: NotificationsConfig{
			Webhook: WebhookConfig{
				Enabled:       false,
				TimeoutMS:     5000,
				RatePerSecond: 5,
				Burst:         10,
			},
			Telegram: TelegramConfig{
				Enabled: false,
			},
		},
		API: APIConfig{
			Host:          "0.0.0.0",
			Port:          8080,
			RatePerSecond: 10,
			Burst:         20,
		},
		Monitoring: MonitoringConfig{
			PrometheusPort: 9100,
			EnableMetrics:  true,
		},
	}
}

func TestValidateValidConfig(t *testing.T) {
	cfg := getValidConfig()
	err := cfg.Validate()
	assert.NoError(t, err, "Valid configuration should not produce errors")
}

func TestValidateApp(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{
			name: "missing app name",
			modify: func(c *Config) {
				c.App.Name = ""
			},
			expectError: "app.name",
		},
		{
			name: "missing environment",
			modify: func(c *Config) {
				c.App.Environment = ""
			},
			expectError: "app.environment",
		},
		{
			name: "invalid environment",
			modify: func(c *Config) {
				c.App.Environment = "invalid_env"
			},
			expectError: "Invalid environment",
		},
		{
			name: "missing log level",
			modify: func(c *Config) {
				c.App.LogLevel = ""
			},
			expectError: "app.log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidateDatabase(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{
			name: "missing host",
			modify: func(c *Config) {
				c.Database.Host = ""
			},
			expectError: "database.host",
		},
		{
			name: "missing port",
			modify: func(c *Config) {
				c.Database.Port = 0
			},
			expectError: "database.port",
		},
		{
			name: "invalid port - too high",
			modify: func(c *Config) {
				c.Database.Port = 70000
			},
			expectError: "must be between 1 and 65535",
		},
		{
			name: "invalid port - negative",
			modify: func(c *Config) {
				c.Database.Port = -1
			},
			expectError: "must be between 1 and 65535",
		},
		{
			name: "missing user",
			modify: func(c *Config) {
				c.Database.User = ""
			},
			expectError: "database.user",
		},
		{
			name: "missing database name",
			modify: func(c *Config) {
				c.Database.Database = ""
			},
			expectError: "database.database",
		},
		{
			name: "missing password in production",
			modify: func(c *Config) {
				c.App.Environment = "production"
				c.Database.Password = ""
			},
			expectError: "password is required",
		},
		{
			name: "invalid pool size",
			modify: func(c *Config) {
				c.Database.PoolSize = 0
			},
			expectError: "pool size must be positive",
		},
		{
			name: "invalid ssl mode",
			modify: func(c *Config) {
				c.Database.SSLMode = "maybe"
			},
			expectError: "Invalid SSL mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidateRedis(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{
			name: "missing host",
			modify: func(c *Config) {
				c.Redis.Host = ""
			},
			expectError: "redis.host",
		},
		{
			name: "missing port",
			modify: func(c *Config) {
				c.Redis.Port = 0
			},
			expectError: "redis.port",
		},
		{
			name: "invalid port",
			modify: func(c *Config) {
				c.Redis.Port = 70000
			},
			expectError: "must be between 1 and 65535",
		},
		{
			name: "invalid db index",
			modify: func(c *Config) {
				c.Redis.DB = 16
			},
			expectError: "Redis DB must be between 0 and 15",
		},
		{
			name: "negative report ttl",
			modify: func(c *Config) {
				c.Redis.ReportTTL = -1
			},
			expectError: "Report TTL must be >= 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidateNATS(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{
			name: "missing URL",
			modify: func(c *Config) {
				c.NATS.URL = ""
			},
			expectError: "nats.url",
		},
		{
			name: "invalid URL format",
			modify: func(c *Config) {
				c.NATS.URL = "http://localhost:4222"
			},
			expectError: "must start with nats:// or tls://",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidateNATSDisabledSkipsURL(t *testing.T) {
	cfg := getValidConfig()
	cfg.NATS.Enabled = false
	cfg.NATS.URL = ""
	assert.NoError(t, cfg.Validate())
}

func TestValidateEvaluation(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{
			name: "zero initial capital",
			modify: func(c *Config) {
				c.Evaluation.InitialCapital = 0
			},
			expectError: "initial_capital must be positive",
		},
		{
			name: "negative sharpe drop threshold",
			modify: func(c *Config) {
				c.Evaluation.SharpeDropThreshold = -0.5
			},
			expectError: "sharpe_drop_threshold must be >= 0",
		},
		{
			name: "inverted volatility tiers",
			modify: func(c *Config) {
				c.Evaluation.VolTierLowPct = 80
				c.Evaluation.VolTierHighPct = 20
			},
			expectError: "volatility tier percentiles",
		},
		{
			name: "bad walk-forward window",
			modify: func(c *Config) {
				c.Evaluation.WalkForward.TrainDays = 0
			},
			expectError: "walk_forward",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "evaluation")
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidateSources(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{
			name: "enabled without symbols",
			modify: func(c *Config) {
				c.Sources.Binance.Enabled = true
				c.Sources.Binance.Symbols = nil
			},
			expectError: "At least one symbol",
		},
		{
			name: "zero page limit",
			modify: func(c *Config) {
				c.Sources.Binance.Enabled = true
				c.Sources.Binance.Symbols = []string{"BTCUSDT"}
				c.Sources.Binance.PageLimit = 0
			},
			expectError: "Page limit must be between 1 and 1000",
		},
		{
			name: "page limit over exchange cap",
			modify: func(c *Config) {
				c.Sources.Binance.Enabled = true
				c.Sources.Binance.Symbols = []string{"BTCUSDT"}
				c.Sources.Binance.PageLimit = 5000
			},
			expectError: "Page limit must be between 1 and 1000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidateSourcesDisabledSkipsChecks(t *testing.T) {
	cfg := getValidConfig()
	cfg.Sources.Binance.Enabled = false
	cfg.Sources.Binance.Symbols = nil
	cfg.Sources.Binance.PageLimit = 0
	assert.NoError(t, cfg.Validate())
}

func TestValidateNotifications(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{
			name: "webhook enabled without URL",
			modify: func(c *Config) {
				c.Notifications.Webhook.Enabled = true
				c.Notifications.Webhook.URL = ""
			},
			expectError: "Webhook URL is required",
		},
		{
			name: "webhook with non-http URL",
			modify: func(c *Config) {
				c.Notifications.Webhook.Enabled = true
				c.Notifications.Webhook.URL = "ftp://example.com/hook"
			},
			expectError: "valid http(s) URL",
		},
		{
			name: "webhook with zero timeout",
			modify: func(c *Config) {
				c.Notifications.Webhook.Enabled = true
				c.Notifications.Webhook.URL = "https://example.com/hook"
				c.Notifications.Webhook.TimeoutMS = 0
			},
			expectError: "Webhook timeout must be positive",
		},
		{
			name: "webhook with zero rate limit",
			modify: func(c *Config) {
				c.Notifications.Webhook.Enabled = true
				c.Notifications.Webhook.URL = "https://example.com/hook"
				c.Notifications.Webhook.RatePerSecond = 0
			},
			expectError: "rate limit and burst must be positive",
		},
		{
			name: "telegram enabled without token",
			modify: func(c *Config) {
				c.Notifications.Telegram.Enabled = true
				c.Notifications.Telegram.Token = ""
				c.Notifications.Telegram.ChatID = 12345
			},
			expectError: "Telegram bot token is required",
		},
		{
			name: "telegram enabled without chat id",
			modify: func(c *Config) {
				c.Notifications.Telegram.Enabled = true
				c.Notifications.Telegram.Token = "123456:bot-token"
				c.Notifications.Telegram.ChatID = 0
			},
			expectError: "Telegram chat ID is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidateAPI(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{
			name: "missing host",
			modify: func(c *Config) {
				c.API.Host = ""
			},
			expectError: "api.host",
		},
		{
			name: "missing port",
			modify: func(c *Config) {
				c.API.Port = 0
			},
			expectError: "api.port",
		},
		{
			name: "invalid port - too high",
			modify: func(c *Config) {
				c.API.Port = 70000
			},
			expectError: "must be between 1 and 65535",
		},
		{
			name: "zero rate limit",
			modify: func(c *Config) {
				c.API.RatePerSecond = 0
			},
			expectError: "rate limit and burst must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidateEnvironmentRequirements(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{
			name: "SSL disabled in production",
			modify: func(c *Config) {
				c.App.Environment = "production"
				c.Database.Password = "MyStr0ng_P@ssw0rd!"
				c.Database.SSLMode = "disable"
			},
			expectError: "SSL must not be disabled in production",
		},
		{
			name: "placeholder password in production",
			modify: func(c *Config) {
				c.App.Environment = "production"
				c.Database.Password = "changeme"
				c.Database.SSLMode = "require"
			},
			expectError: "placeholder",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidateHardenedProductionConfig(t *testing.T) {
	cfg := getValidConfig()
	cfg.App.Environment = "production"
	cfg.Database.Password = "MyStr0ng_P@ssw0rd!"
	cfg.Database.SSLMode = "require"
	assert.NoError(t, cfg.Validate())
}

func TestValidationErrors_Error(t *testing.T) {
	errors := ValidationErrors{
		{Field: "field1", Message: "error message 1"},
		{Field: "field2", Message: "error message 2"},
		{Field: "field3", Message: "error message 3"},
	}

	errMsg := errors.Error()

	// Check error message structure
	assert.Contains(t, errMsg, "Configuration validation failed with 3 error(s)")
	assert.Contains(t, errMsg, "1. field1: error message 1")
	assert.Contains(t, errMsg, "2. field2: error message 2")
	assert.Contains(t, errMsg, "3. field3: error message 3")
	assert.Contains(t, errMsg, "Please fix the above errors and try again")
}

func TestValidationErrors_Empty(t *testing.T) {
	errors := ValidationErrors{}
	assert.Equal(t, "", errors.Error())
}

func TestValidateAndLoad(t *testing.T) {
	// Create a temporary config file with invalid configuration
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	require.NoError(t, err)
	defer func() { _ = os.Remove(tmpfile.Name()) }() // Test cleanup

	// Write invalid config (missing required fields)
	invalidConfig := `
app:
  name: ""
  environment: "development"
  log_level: "info"
`
	_, err = tmpfile.WriteString(invalidConfig)
	require.NoError(t, err)
	_ = tmpfile.Close() // Test cleanup

	// Try to load - should fail validation
	_, err = Load(tmpfile.Name())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.name")
}

func TestValidateEnvironmentEnum(t *testing.T) {
	tests := []struct {
		environment string
		valid       bool
	}{
		{"development", true},
		{"staging", true},
		{"dev", false},
		{"prod", false},
		{"DEVELOPMENT", false}, // Exact match required
	}

	for _, tt := range tests {
		t.Run(tt.environment, func(t *testing.T) {
			cfg := getValidConfig()
			cfg.App.Environment = tt.environment
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
