package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"mercator-hq/scanport/pkg/config"
	"mercator-hq/scanport/pkg/export"
	"mercator-hq/scanport/pkg/resilience"
	"mercator-hq/scanport/pkg/telemetry/tracing"
)

// WebhookEvent is the event tag of every webhook payload.
const WebhookEvent = "automated_export"

// maxResponseBody bounds how much of a webhook response is read.
const maxResponseBody = 1 << 20

// WebhookPayload is the JSON body POSTed to webhook destinations.
type WebhookPayload struct {
	Data      []export.Item `json:"data"`
	Timestamp string        `json:"timestamp"`
	Event     string        `json:"event"`
}

// StatusError is a non-2xx webhook response.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook failed with status %d: %s", e.StatusCode, e.Body)
}

// WebhookClient delivers webhook payloads with optional rate limiting and
// retries.
type WebhookClient struct {
	client   *http.Client
	limiter  *rate.Limiter
	executor *resilience.Executor
	logger   *slog.Logger
}

// NewWebhookClient creates a client from the webhook configuration.
// executor may be nil to disable retries.
func NewWebhookClient(cfg config.WebhookConfig, executor *resilience.Executor, logger *slog.Logger) *WebhookClient {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultWebhookTimeout
	}

	w := &WebhookClient{
		client:   &http.Client{Timeout: timeout},
		executor: executor,
		logger:   logger.With("component", "webhook"),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = config.DefaultWebhookBurst
		}
		w.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return w
}

// WithHTTPClient replaces the underlying HTTP client.
func (w *WebhookClient) WithHTTPClient(c *http.Client) *WebhookClient {
	if c != nil {
		w.client = c
	}
	return w
}

// Post sends payload to url. Extra headers are applied after the JSON
// content type, so they may override it.
func (w *WebhookClient) Post(ctx context.Context, url string, headers map[string]string, payload WebhookPayload) (*WebhookOutcome, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("webhook rate limit: %w", err)
		}
	}

	var outcome *WebhookOutcome
	call := func(ctx context.Context) error {
		out, err := w.do(ctx, url, headers, body)
		if err != nil {
			return err
		}
		outcome = out
		return nil
	}

	if w.executor != nil {
		err = w.executor.Do(ctx, webhookTarget(url), call, classifyWebhookError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (w *WebhookClient) do(ctx context.Context, url string, headers map[string]string, body []byte) (*WebhookOutcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("invalid webhook request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	tracing.Inject(ctx, req.Header)

	start := time.Now()
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read webhook response: %w", err)
	}

	w.logger.DebugContext(ctx, "webhook delivered",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := strings.TrimSpace(string(raw))
		if text == "" {
			text = http.StatusText(resp.StatusCode)
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: text}
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		decoded = map[string]any{"status": "success", "message": "No JSON response body."}
	}
	return &WebhookOutcome{StatusCode: resp.StatusCode, Body: decoded}, nil
}

// classifyWebhookError retries transport failures, 429 and 5xx responses.
func classifyWebhookError(err error) resilience.Outcome {
	var status *StatusError
	if errors.As(err, &status) {
		return resilience.HTTPStatus(status.StatusCode)
	}
	return resilience.DefaultClassifier(err)
}

// webhookTarget names the breaker for a webhook URL: one per host.
func webhookTarget(raw string) string {
	if u, err := neturl.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	return raw
}
