package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pixelgenesis/backend/internal/config"
	"github.com/pixelgenesis/backend/internal/db"
	"github.com/pixelgenesis/backend/internal/repositories"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	auditRepo := repositories.NewAuditRepo(pool)

	log.Info("worker started", zap.Duration("audit_retention", cfg.AuditRetention))

	retentionTicker := time.NewTicker(1 * time.Hour)
	defer retentionTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	runAuditRetention(ctx, auditRepo, cfg.AuditRetention, log)

	for {
		select {
		case <-retentionTicker.C:
			runAuditRetention(ctx, auditRepo, cfg.AuditRetention, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

type auditPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

func runAuditRetention(ctx context.Context, repo auditPurger, retention time.Duration, log *zap.Logger) {
	if retention <= 0 {
		return
	}

	cutoff := time.Now().Add(-retention)
	purged, err := repo.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		log.Error("failed to purge audit log", zap.Error(err))
		return
	}
	if purged > 0 {
		log.Info("audit log purged", zap.Int64("rows", purged), zap.Time("cutoff", cutoff))
	}
}
