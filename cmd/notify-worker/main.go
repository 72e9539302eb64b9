// Command notify-worker consumes scheduling events from RabbitMQ and appends
// one line per notification to NOTIFY_LOG_PATH.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fieldz-pro/slot-scheduler/internal/config"
	"github.com/fieldz-pro/slot-scheduler/internal/queue"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.RabbitURL == "" {
		log.Fatal("RABBITMQ_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("consuming %s from exchange %s", cfg.NotifyQueue, cfg.EventsExchange)
	err = queue.StartNotificationConsumer(ctx, queue.ConsumerConfig{
		URL:      cfg.RabbitURL,
		Exchange: cfg.EventsExchange,
		Queue:    cfg.NotifyQueue,
		Prefetch: 16,
		LogPath:  cfg.NotifyLogPath,
	})
	if err != nil && ctx.Err() == nil {
		log.Fatalf("consumer: %v", err)
	}
}
