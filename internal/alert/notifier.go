package alert

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/nao1215/sitewatch/internal/model"
)

// Notifier delivers alert events to some channel.
type Notifier interface {
	Notify(ctx context.Context, event model.AlertEvent) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, event model.AlertEvent) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, event model.AlertEvent) error {
	return f(ctx, event)
}

// Dispatch sends every event through n and returns how many were delivered.
// Delivery failures are logged and otherwise ignored.
func Dispatch(ctx context.Context, n Notifier, events []model.AlertEvent, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}
	if n == nil {
		return 0
	}

	delivered := 0
	for _, event := range events {
		logger.Info("sending alert", "level", event.Level.String(), "subject", event.Subject)
		if err := n.Notify(ctx, event); err != nil {
			logger.Error("alert delivery failed",
				"level", event.Level.String(),
				"subject", event.Subject,
				"error", err,
			)
			continue
		}
		delivered++
	}
	return delivered
}

// LogNotifier writes events to a logger. CRITICAL and WARNING events are
// logged at warn level, INFO events at info level.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (l *LogNotifier) Notify(ctx context.Context, event model.AlertEvent) error {
	level := slog.LevelWarn
	if event.Level == model.AlertInfo {
		level = slog.LevelInfo
	}
	l.logger.Log(ctx, level, "ALERT "+event.FullSubject(), "site", event.Site)
	return nil
}

// MultiNotifier fans an event out to several notifiers.
type MultiNotifier []Notifier

// Notify delivers to every notifier and joins their errors.
// Delivery counts as failed only when every notifier failed.
func (m MultiNotifier) Notify(ctx context.Context, event model.AlertEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	if len(m) > 0 && len(errs) == len(m) {
		return errors.Join(errs...)
	}
	return nil
}

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the request body when a
	// webhook secret is configured.
	SignatureHeader = "X-Sitewatch-Signature"

	defaultWebhookTimeout = 10 * time.Second

	// maxWebhookMessage bounds the message block; Slack rejects longer text.
	maxWebhookMessage = 2000
)

// WebhookNotifier posts events as Slack-compatible JSON to an incoming
// webhook URL.
type WebhookNotifier struct {
	url    string
	secret []byte
	client *http.Client
}

// WebhookOption configures a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// WithHTTPClient sets the HTTP client used to post events.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *WebhookNotifier) {
		if c != nil {
			w.client = c
		}
	}
}

// WithSecret signs every request body with HMAC-SHA256.
func WithSecret(secret string) WebhookOption {
	return func(w *WebhookNotifier) {
		w.secret = []byte(secret)
	}
}

// NewWebhookNotifier creates a notifier posting to url.
func NewWebhookNotifier(url string, opts ...WebhookOption) *WebhookNotifier {
	w := &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: defaultWebhookTimeout},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type webhookText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type webhookBlock struct {
	Type string      `json:"type"`
	Text webhookText `json:"text"`
}

type webhookPayload struct {
	Text   string         `json:"text"`
	Blocks []webhookBlock `json:"blocks"`
}

// Notify implements Notifier.
func (w *WebhookNotifier) Notify(ctx context.Context, event model.AlertEvent) error {
	body, err := json.Marshal(buildPayload(event))
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if len(w.secret) > 0 {
		req.Header.Set(SignatureHeader, Sign(w.secret, body))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the hex-encoded HMAC-SHA256 of body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func buildPayload(event model.AlertEvent) webhookPayload {
	message := event.Message
	if utf8.RuneCountInString(message) > maxWebhookMessage {
		message = string([]rune(message)[:maxWebhookMessage])
	}
	return webhookPayload{
		Text: event.FullSubject(),
		Blocks: []webhookBlock{
			{Type: "header", Text: webhookText{Type: "plain_text", Text: event.Level.String() + " ALERT"}},
			{Type: "section", Text: webhookText{Type: "mrkdwn", Text: "*" + event.FullSubject() + "*"}},
			{Type: "section", Text: webhookText{Type: "mrkdwn", Text: "```" + message + "```"}},
		},
	}
}
