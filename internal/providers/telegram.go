package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/Courier/internal/domain/notification"
	"github.com/NordCoder/Courier/internal/domain/provider"
)

type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	APIURL string `mapstructure:"api_url"`
}

const defaultTelegramAPIURL = "https://api.telegram.org"

var _ provider.Provider = (*Telegram)(nil)

// Telegram is the alternative chat adapter: Bot API sendMessage with the
// recipient as chat id. Selected over Slack by the chat provider setting.
type Telegram struct {
	token   string
	apiURL  string
	timeout time.Duration
	hc      *http.Client

	log *zap.Logger
}

func NewTelegram(cfg TelegramConfig, timeout time.Duration) *Telegram {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultTelegramAPIURL
	}
	return &Telegram{
		token:   cfg.Token,
		apiURL:  apiURL,
		timeout: timeout,
		hc:      &http.Client{Timeout: timeout},
		log:     zap.L().With(zap.String("component", "providers.telegram")),
	}
}

func (t *Telegram) WithLogger(l *zap.Logger) *Telegram {
	if l == nil {
		return t
	}
	cp := *t
	cp.log = l.With(zap.String("component", "providers.telegram"))
	return &cp
}

func (t *Telegram) Channel() notification.Channel { return notification.ChannelChat }

func (t *Telegram) ValidateConfig() error {
	if t.token == "" {
		return errors.New("telegram bot token is empty")
	}
	u, err := url.Parse(t.apiURL)
	if err != nil {
		return fmt.Errorf("api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api url scheme %q not allowed", u.Scheme)
	}
	return nil
}

func (t *Telegram) Send(ctx context.Context, n *notification.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	payload := map[string]any{
		"chat_id": n.Recipient,
		"text":    chatText(n),
	}
	if n.HTMLMessage != "" {
		payload["text"] = n.HTMLMessage
		payload["parse_mode"] = "HTML"
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return &provider.Error{Channel: t.Channel(), Message: "marshal payload", Err: err}
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &provider.Error{Channel: t.Channel(), Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.hc.Do(req)
	if err != nil {
		return &provider.Error{Channel: t.Channel(), Message: "send message", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		t.log.Debug("telegram message sent", zap.String("chat_id", n.Recipient))
		return nil
	}

	var api struct {
		Description string `json:"description"`
		Parameters  struct {
			RetryAfter int `json:"retry_after"`
		} `json:"parameters"`
	}
	msg := ""
	if err := json.NewDecoder(resp.Body).Decode(&api); err == nil {
		msg = api.Description
	}
	pe := &provider.Error{
		Channel:    t.Channel(),
		StatusCode: resp.StatusCode,
		Message:    msg,
	}
	if api.Parameters.RetryAfter > 0 {
		pe.RetryAfter = time.Duration(api.Parameters.RetryAfter) * time.Second
	}
	return pe
}
