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

type SlackConfig struct {
	Token  string `mapstructure:"token"`
	APIURL string `mapstructure:"api_url"`
}

const defaultSlackAPIURL = "https://slack.com/api"

var _ provider.Provider = (*Slack)(nil)

// Slack delivers chat notifications via chat.postMessage. The recipient is a
// channel or user id; metadata.blocks passes Block Kit payloads through.
type Slack struct {
	token   string
	apiURL  string
	timeout time.Duration
	hc      *http.Client

	log *zap.Logger
}

func NewSlack(cfg SlackConfig, timeout time.Duration) *Slack {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultSlackAPIURL
	}
	return &Slack{
		token:   cfg.Token,
		apiURL:  apiURL,
		timeout: timeout,
		hc:      &http.Client{Timeout: timeout},
		log:     zap.L().With(zap.String("component", "providers.slack")),
	}
}

func (s *Slack) WithLogger(l *zap.Logger) *Slack {
	if l == nil {
		return s
	}
	cp := *s
	cp.log = l.With(zap.String("component", "providers.slack"))
	return &cp
}

func (s *Slack) Channel() notification.Channel { return notification.ChannelChat }

func (s *Slack) ValidateConfig() error {
	if s.token == "" {
		return errors.New("slack token is empty")
	}
	u, err := url.Parse(s.apiURL)
	if err != nil {
		return fmt.Errorf("api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api url scheme %q not allowed", u.Scheme)
	}
	return nil
}

func (s *Slack) Send(ctx context.Context, n *notification.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	payload := map[string]any{
		"channel": n.Recipient,
		"text":    chatText(n),
	}
	if blocks, ok := n.Metadata["blocks"]; ok {
		payload["blocks"] = blocks
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return &provider.Error{Channel: s.Channel(), Message: "marshal payload", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return &provider.Error{Channel: s.Channel(), Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.hc.Do(req)
	if err != nil {
		return &provider.Error{Channel: s.Channel(), Message: "post message", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &provider.Error{
			Channel:    s.Channel(),
			StatusCode: resp.StatusCode,
			Message:    readCapped(resp.Body),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var api struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return &provider.Error{Channel: s.Channel(), Message: "decode response", Err: err}
	}
	if api.OK {
		s.log.Debug("slack message posted", zap.String("channel_id", n.Recipient))
		return nil
	}
	return s.apiError(api.Error, resp.Header.Get("Retry-After"))
}

// apiError translates Slack's {ok:false, error:"..."} vocabulary into status
// codes the classifier understands.
func (s *Slack) apiError(code, retryAfter string) error {
	pe := &provider.Error{Channel: s.Channel(), Message: code}
	switch code {
	case "ratelimited", "rate_limited":
		pe.StatusCode = 429
		pe.RetryAfter = parseRetryAfter(retryAfter)
	case "invalid_auth", "token_revoked", "token_expired", "not_authed":
		pe.StatusCode = 401
	case "channel_not_found", "user_not_found":
		pe.StatusCode = 404
	case "not_in_channel", "is_archived", "restricted_action":
		pe.StatusCode = 403
	case "msg_too_long", "no_text", "invalid_blocks":
		pe.StatusCode = 400
	}
	return pe
}

func chatText(n *notification.Notification) string {
	if n.Subject != "" {
		return "*" + n.Subject + "*\n" + n.Message
	}
	return n.Message
}
