package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tripledger/internal/amqp"
	"tripledger/internal/config"
	applog "tripledger/internal/log"
	"tripledger/internal/mail"
	"tripledger/internal/mail/gmail"
	"tripledger/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig()).WithComponent("notify-worker")
	applog.SetDefault(logger)

	logger.Info("Starting notify-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sender mail.Sender
	switch cfg.MailBackend {
	case "gmail":
		client, err := gmail.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Gmail sender", "error", err)
			os.Exit(1)
		}
		sender = client
		logger.Info("Gmail sender initialized", "from", cfg.MailFrom)
	default:
		sender = mail.LogSender{}
		logger.Info("Log sender initialized - mail will not be delivered", "backend", cfg.MailBackend)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	notifyWorker := worker.NewNotifyWorker(sender)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	err = amqpClient.ConsumeSettlementRequests(ctx, func(msg *amqp.SettlementRequestMessage) error {
		return notifyWorker.HandleSettlementRequest(ctx, msg)
	})
	if err != nil && err != context.Canceled {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully")
}
