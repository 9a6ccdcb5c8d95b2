package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const webhookAttempts = 4

// WebhookForwarder пересылает события POST-запросом на внешний URL.
// 5xx и сетевые ошибки повторяются с экспоненциальной задержкой, 4xx - нет.
type WebhookForwarder struct {
	url    string
	client *http.Client
	log    *zap.Logger
}

func NewWebhookForwarder(url string, timeout time.Duration, log *zap.Logger) *WebhookForwarder {
	return &WebhookForwarder{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

func (f *WebhookForwarder) Forward(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Event-Type", event.Type)

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("webhook returned %d", resp.StatusCode)
		case resp.StatusCode >= 300:
			return backoff.Permanent(fmt.Errorf("webhook returned %d", resp.StatusCode))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	b := backoff.WithContext(backoff.WithMaxRetries(policy, webhookAttempts), ctx)

	return backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		f.log.Warn("event forward failed, retrying",
			zap.String("type", event.Type),
			zap.Error(err),
			zap.Duration("wait", wait),
		)
	})
}
