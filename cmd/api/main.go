// Strategy evaluation API server
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/strateval/internal/api"
	"github.com/ajitpratap0/strateval/internal/cache"
	"github.com/ajitpratap0/strateval/internal/config"
	"github.com/ajitpratap0/strateval/internal/db"
	"github.com/ajitpratap0/strateval/internal/events"
	"github.com/ajitpratap0/strateval/internal/metrics"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ./configs/config.yaml)")
	verify := flag.Bool("verify", false, "Validate configuration and connectivity, then exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	config.InitLogger(cfg.App.LogLevel, "console")
	log.Info().Str("version", config.GetVersion()).Msg("Starting strateval API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Fail fast on misconfiguration. Connectivity stays best-effort during a
	// normal start; -verify turns the full check on and exits.
	validator := config.NewValidator(cfg, config.ValidatorOptions{
		VerifyConnectivity: *verify,
		VerifyAPIKeys:      *verify,
		Timeout:            5 * time.Second,
	})
	if err := validator.ValidateStartup(ctx); err != nil {
		log.Fatal().Err(err).Msg("Configuration validation failed")
	}
	if *verify {
		log.Info().Msg("Configuration verified")
		return
	}

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize database connection. The server still serves evaluation runs
	// without one; persistence-backed endpoints return errors instead.
	database, err := db.New(ctx, cfg.Database.GetDSN())
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize database, continuing without persistence")
		database = nil
	}
	defer func() {
		if database != nil {
			database.Close()
		}
	}()

	// Report cache
	var reports *cache.ReportCache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, reports will not be cached")
	} else {
		reports = cache.NewReportCache(redisClient, cfg.Redis.GetReportTTL())
		log.Info().Str("addr", cfg.Redis.GetRedisAddr()).Msg("Report cache connected")
	}

	// Event bus
	var bus *events.Bus
	if cfg.NATS.Enabled {
		bus, err = events.NewBus(events.BusConfig{NATSURL: cfg.NATS.URL})
		if err != nil {
			log.Warn().Err(err).Msg("NATS unavailable, lifecycle events will not be published")
			bus = nil
		} else {
			defer bus.Close()
		}
	}

	// Outbound notifications
	notifier := events.NewFanout(events.NewLogNotifier())
	if cfg.Notifications.Webhook.Enabled {
		webhook, err := events.NewWebhookNotifier(events.WebhookSettings{
			URL:           cfg.Notifications.Webhook.URL,
			Timeout:       cfg.Notifications.Webhook.GetTimeout(),
			RatePerSecond: cfg.Notifications.Webhook.RatePerSecond,
			Burst:         cfg.Notifications.Webhook.Burst,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Webhook notifier disabled")
		} else {
			notifier.Add(webhook)
			log.Info().Str("url", cfg.Notifications.Webhook.URL).Msg("Webhook notifications enabled")
		}
	}
	if cfg.Notifications.Telegram.Enabled {
		telegram, err := events.NewTelegramNotifier(cfg.Notifications.Telegram.Token, cfg.Notifications.Telegram.ChatID)
		if err != nil {
			log.Warn().Err(err).Msg("Telegram notifier disabled")
		} else {
			notifier.Add(telegram)
			log.Info().Int64("chat_id", cfg.Notifications.Telegram.ChatID).Msg("Telegram notifications enabled")
		}
	}

	// Create API server
	server := api.NewServer(api.Config{
		Host:          cfg.API.Host,
		Port:          cfg.API.Port,
		RatePerSecond: cfg.API.RatePerSecond,
		Burst:         cfg.API.Burst,
		DB:            database,
		Cache:         reports,
		Bus:           bus,
		Notifier:      notifier,
	})

	// Standalone metrics endpoint plus the gauge refresh loop
	var metricsServer *metrics.Server
	if cfg.Monitoring.EnableMetrics {
		metricsServer = metrics.NewServer(cfg.Monitoring.PrometheusPort, config.NewLogger("metrics"))
		go func() {
			if err := metricsServer.Start(); err != nil {
				log.Error().Err(err).Msg("Metrics server error")
			}
		}()

		if database != nil {
			updater := metrics.NewUpdater(database.Pool(), 30*time.Second)
			go updater.Start(ctx)
			defer updater.Stop()
		}
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for interrupt signal or server error
	select {
	case err := <-serverErrors:
		log.Error().Err(err).Msg("Server error")
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to stop metrics server gracefully")
		}
	}

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to stop server gracefully")
		os.Exit(1)
	}

	log.Info().Msg("Server stopped successfully")
}
