package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/Courier/internal/domain/notification"
	"github.com/NordCoder/Courier/internal/domain/provider"
)

type SMSConfig struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	From       string `mapstructure:"from"`
	APIURL     string `mapstructure:"api_url"`
}

const defaultSMSAPIURL = "https://api.twilio.com"

// maxSMSLength is the gateway's hard cap on a message body; longer texts are
// truncated, not rejected.
const maxSMSLength = 1600

var _ provider.Provider = (*SMS)(nil)

type SMS struct {
	accountSID string
	authToken  string
	from       string
	apiURL     string
	timeout    time.Duration
	hc         *http.Client

	log *zap.Logger
}

func NewSMS(cfg SMSConfig, timeout time.Duration) *SMS {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultSMSAPIURL
	}
	return &SMS{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.From,
		apiURL:     apiURL,
		timeout:    timeout,
		hc:         &http.Client{Timeout: timeout},
		log:        zap.L().With(zap.String("component", "providers.sms")),
	}
}

func (s *SMS) WithLogger(l *zap.Logger) *SMS {
	if l == nil {
		return s
	}
	cp := *s
	cp.log = l.With(zap.String("component", "providers.sms"))
	return &cp
}

func (s *SMS) Channel() notification.Channel { return notification.ChannelSMS }

func (s *SMS) ValidateConfig() error {
	if s.accountSID == "" || s.authToken == "" {
		return errors.New("sms credentials are empty")
	}
	if s.from == "" {
		return errors.New("sms from number is empty")
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

func (s *SMS) Send(ctx context.Context, n *notification.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	form := url.Values{}
	form.Set("To", n.Recipient)
	form.Set("From", s.from)
	form.Set("Body", Truncate(n.Message, maxSMSLength))

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.apiURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return &provider.Error{Channel: s.Channel(), Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.hc.Do(req)
	if err != nil {
		return &provider.Error{Channel: s.Channel(), Message: "send sms", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		s.log.Debug("sms queued", zap.String("to", n.Recipient))
		return nil
	}

	var api struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	msg := ""
	if err := json.NewDecoder(resp.Body).Decode(&api); err == nil {
		msg = api.Message
		if api.Code != 0 {
			msg = fmt.Sprintf("%s (code %d)", api.Message, api.Code)
		}
	}
	return &provider.Error{
		Channel:    s.Channel(),
		StatusCode: resp.StatusCode,
		Message:    msg,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

// Truncate trims s to at most limit bytes without splitting a rune.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
