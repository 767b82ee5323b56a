package providers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NordCoder/Courier/internal/domain/notification"
	"github.com/NordCoder/Courier/internal/domain/provider"
)

type WebhookConfig struct {
	SigningSecret string `mapstructure:"signing_secret"`
}

var _ provider.Provider = (*Webhook)(nil)

// Webhook POSTs the notification as JSON to the recipient URL. Payloads are
// signed with HMAC-SHA256 over "timestamp.payload" so receivers can verify
// origin and reject replays.
type Webhook struct {
	secret  string
	timeout time.Duration
	hc      *http.Client

	log *zap.Logger
}

type webhookPayload struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Subject   string         `json:"subject,omitempty"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func NewWebhook(cfg WebhookConfig, timeout time.Duration) *Webhook {
	return &Webhook{
		secret:  cfg.SigningSecret,
		timeout: timeout,
		hc: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		log: zap.L().With(zap.String("component", "providers.webhook")),
	}
}

func (w *Webhook) WithLogger(l *zap.Logger) *Webhook {
	if l == nil {
		return w
	}
	cp := *w
	cp.log = l.With(zap.String("component", "providers.webhook"))
	return &cp
}

func (w *Webhook) Channel() notification.Channel { return notification.ChannelWebhook }

func (w *Webhook) ValidateConfig() error {
	if w.secret == "" {
		return errors.New("webhook signing secret is empty")
	}
	return nil
}

func (w *Webhook) Send(ctx context.Context, n *notification.Notification) error {
	target, err := url.Parse(n.Recipient)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return &provider.Error{
			Channel: w.Channel(),
			Message: fmt.Sprintf("invalid recipient url %q", n.Recipient),
			Err:     err,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	body, err := json.Marshal(webhookPayload{
		ID:        n.ID.String(),
		UserID:    n.UserID,
		Subject:   n.Subject,
		Message:   n.Message,
		Metadata:  n.Metadata,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return &provider.Error{Channel: w.Channel(), Message: "marshal payload", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		return &provider.Error{Channel: w.Channel(), Message: "build request", Err: err}
	}
	ts := time.Now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Courier-Signature", w.sign(ts, body))
	req.Header.Set("X-Courier-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Courier-Id", uuid.NewString())

	resp, err := w.hc.Do(req)
	if err != nil {
		return &provider.Error{Channel: w.Channel(), Message: "post webhook", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		w.log.Debug("webhook delivered", zap.String("url", target.Host), zap.Int("status", resp.StatusCode))
		return nil
	}
	return &provider.Error{
		Channel:    w.Channel(),
		StatusCode: resp.StatusCode,
		Message:    readCapped(resp.Body),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

// sign computes HMAC-SHA256 over "timestamp.payload", hex encoded.
func (w *Webhook) sign(ts int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(w.secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return hex.EncodeToString(mac.Sum(nil))
}
