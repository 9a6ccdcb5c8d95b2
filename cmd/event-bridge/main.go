package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/pixelgenesis/backend/internal/config"
	"github.com/pixelgenesis/backend/internal/db"
	"github.com/pixelgenesis/backend/internal/events"
)

// Event Bridge - подписывается на события идентичности в Redis и пересылает их во внешний webhook.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	if cfg.EventsWebhookURL == "" {
		log.Fatal("EVENTS_WEBHOOK_URL is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	subscriber := events.NewRedisSubscriber(rdb, log)
	forwarder := events.NewWebhookForwarder(cfg.EventsWebhookURL, cfg.UpstreamTimeout, log)

	log.Info("event-bridge started", zap.String("channel", events.Channel))

	err = subscriber.Subscribe(ctx, events.Channel, func(event events.Event) {
		log.Info("forwarding event", zap.String("type", event.Type))
		if err := forwarder.Forward(ctx, event); err != nil {
			log.Warn("failed to forward event", zap.String("type", event.Type), zap.Error(err))
		}
	})
	if err != nil {
		log.Fatal("failed to subscribe", zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down event-bridge")
	cancel()
}
