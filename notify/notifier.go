package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"argus/core"
)

const defaultTimeout = 10 * time.Second

// Notifier is the alert transport collaborator: it POSTs the serialized
// alert list to a webhook with bearer-token auth. Delivery is attempted
// once; failures are reported back to the caller, never retried and never
// swallowed.
type Notifier struct {
	webhookURL string
	apiKey     string
	client     *http.Client
	limiter    *rate.Limiter
	logger     *zap.SugaredLogger
}

// NotifierConfig holds configuration for the notifier.
type NotifierConfig struct {
	WebhookURL string
	APIKey     string // attached as Authorization: Bearer
	Timeout    time.Duration
	// RateLimit caps outbound posts per second. Zero disables limiting.
	RateLimit rate.Limit
	Logger    *zap.SugaredLogger
}

// NewNotifier creates a notifier.
func NewNotifier(config *NotifierConfig) *Notifier {
	if config == nil {
		config = &NotifierConfig{}
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(config.RateLimit, 1)
	}

	return &Notifier{
		webhookURL: config.WebhookURL,
		apiKey:     config.APIKey,
		limiter:    limiter,
		logger:     config.Logger,
		client: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		},
	}
}

// Configured reports whether a webhook destination is set.
func (n *Notifier) Configured() bool {
	return n.webhookURL != ""
}

// Deliver POSTs the alert list as a JSON array. A non-2xx response or a
// transport-level failure is returned as an error; the caller decides how
// to surface it.
func (n *Notifier) Deliver(ctx context.Context, alerts []*core.Alert) error {
	if !n.Configured() {
		return fmt.Errorf("no webhook configured")
	}

	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter interrupted: %w", err)
		}
	}

	body, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("failed to marshal alerts: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Argus/1.0")
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			n.logger.Debugf("failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-2xx status: %d", resp.StatusCode)
	}

	n.logger.Infow("delivered alerts", "count", len(alerts), "status", resp.StatusCode)
	return nil
}
