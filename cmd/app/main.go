package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vds-shop-bot/internal/cache"
	"vds-shop-bot/internal/config"
	"vds-shop-bot/internal/cryptopay"
	"vds-shop-bot/internal/db"
	"vds-shop-bot/internal/httpserver"
	"vds-shop-bot/internal/logging"
	"vds-shop-bot/internal/metrics"
	"vds-shop-bot/internal/order"
	"vds-shop-bot/internal/promo"
	"vds-shop-bot/internal/recon"
	"vds-shop-bot/internal/store"
	"vds-shop-bot/internal/tg"
	"vds-shop-bot/internal/webhook"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting vds-shop-bot", "env", cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	gateway, err := db.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer gateway.Close()

	if err := gateway.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	logger.Info("database migrated")

	redisClient := cache.New(cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		UseTLS:   cfg.RedisTLS,
	}, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("failed closing redis", "error", err)
		}
	}()
	if err := redisClient.Ping(ctx); err != nil {
		logger.Warn("redis ping failed", "error", err)
	}

	payClient := cryptopay.New(cryptopay.Config{
		BaseURL:      cfg.CryptoPayBaseURL,
		Token:        cfg.CryptoPayToken,
		Timeout:      cfg.CryptoPayTimeout,
		FallbackRate: cfg.RubUSDTRate,
	}, logger, metricRegistry, redisClient)

	users := store.NewUsers(gateway)
	tariffs := store.NewTariffs(gateway)
	settings := store.NewSettings(gateway)
	promos := promo.NewLedger(gateway)
	orders := order.NewMachine(gateway)

	notifier := tg.NewNotifier(cfg, logger, metricRegistry, users)
	coordinator := recon.New(gateway, orders, users, settings, notifier, metricRegistry, logger)

	telegramBot, err := tg.New(cfg, logger, metricRegistry, tg.Deps{
		Users:     users,
		Tariffs:   tariffs,
		Settings:  settings,
		Orders:    orders,
		Promos:    promos,
		Recon:     coordinator,
		CryptoPay: payClient,
	})
	if err != nil {
		return fmt.Errorf("init telegram bot: %w", err)
	}
	notifier.Bind(telegramBot.API())

	webhookHandler := webhook.NewHandler(logger, metricRegistry, cfg.WebhookSecret, coordinator)

	httpSrv := httpserver.New(cfg.HTTPListenAddr, logger, httpserver.Handlers{
		PaymentWebhook: webhookHandler,
		WebhookPath:    cfg.WebhookPath,
	}, cfg.PublicBasePath)

	botCtx, botCancel := context.WithCancel(ctx)
	defer botCancel()
	go func() {
		if err := telegramBot.Run(botCtx); err != nil {
			logger.Error("telegram bot stopped", "error", err)
			stop()
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	return nil
}
