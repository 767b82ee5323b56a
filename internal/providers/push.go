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

type PushConfig struct {
	ServerKey string `mapstructure:"server_key"`
	APIURL    string `mapstructure:"api_url"`
}

const defaultPushAPIURL = "https://fcm.googleapis.com/fcm/send"

var _ provider.Provider = (*Push)(nil)

// Push sends to a device token through the FCM HTTP endpoint. Metadata rides
// along as the data payload, stringified per the FCM contract.
type Push struct {
	serverKey string
	apiURL    string
	timeout   time.Duration
	hc        *http.Client

	log *zap.Logger
}

func NewPush(cfg PushConfig, timeout time.Duration) *Push {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultPushAPIURL
	}
	return &Push{
		serverKey: cfg.ServerKey,
		apiURL:    apiURL,
		timeout:   timeout,
		hc:        &http.Client{Timeout: timeout},
		log:       zap.L().With(zap.String("component", "providers.push")),
	}
}

func (p *Push) WithLogger(l *zap.Logger) *Push {
	if l == nil {
		return p
	}
	cp := *p
	cp.log = l.With(zap.String("component", "providers.push"))
	return &cp
}

func (p *Push) Channel() notification.Channel { return notification.ChannelPush }

func (p *Push) ValidateConfig() error {
	if p.serverKey == "" {
		return errors.New("push server key is empty")
	}
	u, err := url.Parse(p.apiURL)
	if err != nil {
		return fmt.Errorf("api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api url scheme %q not allowed", u.Scheme)
	}
	return nil
}

func (p *Push) Send(ctx context.Context, n *notification.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	data := make(map[string]string, len(n.Metadata))
	for k, v := range n.Metadata {
		data[k] = fmt.Sprint(v)
	}
	payload := map[string]any{
		"to": n.Recipient,
		"notification": map[string]string{
			"title": n.Subject,
			"body":  n.Message,
		},
	}
	if len(data) > 0 {
		payload["data"] = data
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return &provider.Error{Channel: p.Channel(), Message: "marshal payload", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return &provider.Error{Channel: p.Channel(), Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+p.serverKey)

	resp, err := p.hc.Do(req)
	if err != nil {
		return &provider.Error{Channel: p.Channel(), Message: "send push", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &provider.Error{
			Channel:    p.Channel(),
			StatusCode: resp.StatusCode,
			Message:    readCapped(resp.Body),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var api struct {
		Success int `json:"success"`
		Failure int `json:"failure"`
		Results []struct {
			Error string `json:"error"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return &provider.Error{Channel: p.Channel(), Message: "decode response", Err: err}
	}
	if api.Failure == 0 {
		p.log.Debug("push sent", zap.Int("success", api.Success))
		return nil
	}

	code := ""
	for _, r := range api.Results {
		if r.Error != "" {
			code = r.Error
			break
		}
	}
	switch code {
	case "NotRegistered", "InvalidRegistration", "MissingRegistration":
		return &provider.Error{Channel: p.Channel(), Message: fmt.Sprintf("invalid recipient: %s", code)}
	}
	return &provider.Error{Channel: p.Channel(), Message: code}
}
