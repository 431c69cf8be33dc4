package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tripledger/internal/amqp"
	"tripledger/internal/assets"
	"tripledger/internal/cache"
	"tripledger/internal/config"
	"tripledger/internal/core"
	apphttp "tripledger/internal/http"
	applog "tripledger/internal/log"
	"tripledger/internal/services"
	"tripledger/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	receipts, err := assets.NewDiskStore(cfg.ReceiptsDir, "/receipts")
	if err != nil {
		logger.Error("Failed to initialize receipt store", "error", err, "dir", cfg.ReceiptsDir)
		os.Exit(1)
	}

	// AMQP is optional: without a broker, settlement requests are skipped.
	var notifier services.Notifier
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		notifier = amqpClient
		logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Warn("AMQP disabled - no AMQP_URL provided, settlement mail will not be sent")
	}

	summaries := cache.NewLRUCache[core.BalanceSummary](cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
	svc := services.NewExpenseService(repo, repo, receipts, notifier, summaries)

	srv := apphttp.NewServer(":"+cfg.Port, svc, repo, cfg.SessionTTL, logger.WithComponent("http"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting tripledger server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
