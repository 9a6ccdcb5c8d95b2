package db

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const connectAttempts = 6

// retryConnect повторяет подключение с экспоненциальной задержкой, пока сервис поднимается.
func retryConnect(ctx context.Context, what string, log *zap.Logger, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 5 * time.Second

	b := backoff.WithContext(backoff.WithMaxRetries(policy, connectAttempts), ctx)
	return backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		log.Warn(what+" not ready, retrying", zap.Error(err), zap.Duration("wait", wait))
	})
}
