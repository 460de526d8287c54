package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	sb.WriteString("\nPlease fix the above errors and try again.\n")
	return sb.String()
}

// Validate performs comprehensive configuration validation
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateApp()...)
	errors = append(errors, c.validateDatabase()...)
	errors = append(errors, c.validateRedis()...)
	errors = append(errors, c.validateNATS()...)
	errors = append(errors, c.validateEvaluation()...)
	errors = append(errors, c.validateSources()...)
	errors = append(errors, c.validateNotifications()...)
	errors = append(errors, c.validateAPI()...)
	errors = append(errors, c.validateEnvironmentRequirements()...)

	if len(errors) > 0 {
		return errors
	}

	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errors ValidationErrors

	if c.App.Name == "" {
		errors = append(errors, ValidationError{
			Field:   "app.name",
			Message: "Application name is required",
		})
	}

	if c.App.Environment == "" {
		errors = append(errors, ValidationError{
			Field:   "app.environment",
			Message: "Environment is required (development, staging, or production)",
		})
	} else {
		validEnvs := []string{"development", "staging", "production"}
		valid := false
		for _, env := range validEnvs {
			if c.App.Environment == env {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, ValidationError{
				Field:   "app.environment",
				Message: fmt.Sprintf("Invalid environment '%s'. Must be one of: %v", c.App.Environment, validEnvs),
			})
		}
	}

	if c.App.LogLevel == "" {
		errors = append(errors, ValidationError{
			Field:   "app.log_level",
			Message: "Log level is required (debug, info, warn, error)",
		})
	}

	return errors
}

func (c *Config) validateDatabase() ValidationErrors {
	var errors ValidationErrors

	if c.Database.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "database.host",
			Message: "Database host is required",
		})
	}

	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "database.port",
			Message: fmt.Sprintf("Database port must be between 1 and 65535, got %d", c.Database.Port),
		})
	}

	if c.Database.User == "" {
		errors = append(errors, ValidationError{
			Field:   "database.user",
			Message: "Database user is required",
		})
	}

	if c.Database.Database == "" {
		errors = append(errors, ValidationError{
			Field:   "database.database",
			Message: "Database name is required",
		})
	}

	if c.Database.PoolSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "database.pool_size",
			Message: fmt.Sprintf("Database pool size must be positive, got %d", c.Database.PoolSize),
		})
	}

	validSSLModes := []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}
	valid := false
	for _, mode := range validSSLModes {
		if c.Database.SSLMode == mode {
			valid = true
			break
		}
	}
	if !valid {
		errors = append(errors, ValidationError{
			Field:   "database.ssl_mode",
			Message: fmt.Sprintf("Invalid SSL mode '%s'. Must be one of: %v", c.Database.SSLMode, validSSLModes),
		})
	}

	return errors
}

func (c *Config) validateRedis() ValidationErrors {
	var errors ValidationErrors

	if c.Redis.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "redis.host",
			Message: "Redis host is required",
		})
	}

	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "redis.port",
			Message: fmt.Sprintf("Redis port must be between 1 and 65535, got %d", c.Redis.Port),
		})
	}

	if c.Redis.DB < 0 || c.Redis.DB > 15 {
		errors = append(errors, ValidationError{
			Field:   "redis.db",
			Message: fmt.Sprintf("Redis DB must be between 0 and 15, got %d", c.Redis.DB),
		})
	}

	if c.Redis.ReportTTL < 0 {
		errors = append(errors, ValidationError{
			Field:   "redis.report_ttl",
			Message: fmt.Sprintf("Report TTL must be >= 0, got %d", c.Redis.ReportTTL),
		})
	}

	return errors
}

func (c *Config) validateNATS() ValidationErrors {
	var errors ValidationErrors

	if !c.NATS.Enabled {
		return errors
	}

	if c.NATS.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "nats.url",
			Message: "NATS URL is required when NATS is enabled",
		})
	} else if !strings.HasPrefix(c.NATS.URL, "nats://") && !strings.HasPrefix(c.NATS.URL, "tls://") {
		errors = append(errors, ValidationError{
			Field:   "nats.url",
			Message: fmt.Sprintf("NATS URL must start with nats:// or tls://, got '%s'", c.NATS.URL),
		})
	}

	return errors
}

func (c *Config) validateEvaluation() ValidationErrors {
	var errors ValidationErrors

	// The engine carries its own parameter validation; surface its verdict
	// under the evaluation prefix.
	if err := c.Evaluation.Validate(); err != nil {
		errors = append(errors, ValidationError{
			Field:   "evaluation",
			Message: err.Error(),
		})
	}

	return errors
}

func (c *Config) validateSources() ValidationErrors {
	var errors ValidationErrors

	if !c.Sources.Binance.Enabled {
		return errors
	}

	if len(c.Sources.Binance.Symbols) == 0 {
		errors = append(errors, ValidationError{
			Field:   "sources.binance.symbols",
			Message: "At least one symbol is required when the Binance source is enabled",
		})
	}

	if c.Sources.Binance.PageLimit <= 0 || c.Sources.Binance.PageLimit > 1000 {
		errors = append(errors, ValidationError{
			Field:   "sources.binance.page_limit",
			Message: fmt.Sprintf("Page limit must be between 1 and 1000, got %d", c.Sources.Binance.PageLimit),
		})
	}

	return errors
}

func (c *Config) validateNotifications() ValidationErrors {
	var errors ValidationErrors

	if c.Notifications.Webhook.Enabled {
		if c.Notifications.Webhook.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "notifications.webhook.url",
				Message: "Webhook URL is required when the webhook is enabled",
			})
		} else if u, err := url.Parse(c.Notifications.Webhook.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, ValidationError{
				Field:   "notifications.webhook.url",
				Message: fmt.Sprintf("Webhook URL must be a valid http(s) URL, got '%s'", c.Notifications.Webhook.URL),
			})
		}

		if c.Notifications.Webhook.TimeoutMS <= 0 {
			errors = append(errors, ValidationError{
				Field:   "notifications.webhook.timeout_ms",
				Message: fmt.Sprintf("Webhook timeout must be positive, got %d", c.Notifications.Webhook.TimeoutMS),
			})
		}

		if c.Notifications.Webhook.RatePerSecond <= 0 || c.Notifications.Webhook.Burst <= 0 {
			errors = append(errors, ValidationError{
				Field:   "notifications.webhook.rate_per_second",
				Message: "Webhook rate limit and burst must be positive",
			})
		}
	}

	if c.Notifications.Telegram.Enabled {
		if c.Notifications.Telegram.Token == "" {
			errors = append(errors, ValidationError{
				Field:   "notifications.telegram.token",
				Message: "Telegram bot token is required when Telegram is enabled",
			})
		}
		if c.Notifications.Telegram.ChatID == 0 {
			errors = append(errors, ValidationError{
				Field:   "notifications.telegram.chat_id",
				Message: "Telegram chat ID is required when Telegram is enabled",
			})
		}
	}

	return errors
}

func (c *Config) validateAPI() ValidationErrors {
	var errors ValidationErrors

	if c.API.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "api.host",
			Message: "API host is required",
		})
	}

	if c.API.Port <= 0 || c.API.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "api.port",
			Message: fmt.Sprintf("API port must be between 1 and 65535, got %d", c.API.Port),
		})
	}

	if c.API.RatePerSecond <= 0 || c.API.Burst <= 0 {
		errors = append(errors, ValidationError{
			Field:   "api.rate_per_second",
			Message: "API rate limit and burst must be positive",
		})
	}

	return errors
}

// validateEnvironmentRequirements enforces the stricter rules that only apply
// in production.
func (c *Config) validateEnvironmentRequirements() ValidationErrors {
	var errors ValidationErrors

	if c.App.Environment != "production" {
		return errors
	}

	if c.Database.Password == "" {
		errors = append(errors, ValidationError{
			Field:   "database.password",
			Message: "Database password is required in production",
		})
	}

	if c.Database.SSLMode == "disable" {
		errors = append(errors, ValidationError{
			Field:   "database.ssl_mode",
			Message: "SSL must not be disabled in production",
		})
	}

	// Production secrets must not be weak or placeholder values.
	errors = append(errors, ValidateProductionSecrets(c)...)

	return errors
}
