// Package providers holds the per-channel delivery adapters. Every adapter
// speaks its channel's raw protocol and reports failures as *provider.Error
// values; the dispatch worker and the classifier stay channel-agnostic.
package providers

import (
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/Courier/internal/domain/notification"
	"github.com/NordCoder/Courier/internal/domain/provider"
)

const DefaultSendTimeout = 30 * time.Second

const (
	ChatProviderSlack    = "slack"
	ChatProviderTelegram = "telegram"
)

type ChatConfig struct {
	Provider string         `mapstructure:"provider"` // slack | telegram
	Slack    SlackConfig    `mapstructure:"slack"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type Config struct {
	Enabled     []string      `mapstructure:"enabled"` // channels to serve; empty means all
	SendTimeout time.Duration `mapstructure:"send_timeout"`

	Email   EmailConfig   `mapstructure:"email"`
	Chat    ChatConfig    `mapstructure:"chat"`
	SMS     SMSConfig     `mapstructure:"sms"`
	Webhook WebhookConfig `mapstructure:"webhook"`
	Push    PushConfig    `mapstructure:"push"`
}

// Registry maps channels to their configured adapters. An adapter that fails
// its config validation is logged and left out; the rest of the system keeps
// serving the remaining channels.
type Registry struct {
	byChannel map[notification.Channel]provider.Provider
	log       *zap.Logger
}

func NewRegistry(cfg Config, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.L()
	}
	log = log.With(zap.String("component", "providers"))

	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}

	enabled := make(map[notification.Channel]bool, len(cfg.Enabled))
	if len(cfg.Enabled) == 0 {
		for _, ch := range notification.Channels() {
			enabled[ch] = true
		}
	}
	for _, s := range cfg.Enabled {
		enabled[notification.Channel(s)] = true
	}

	r := &Registry{byChannel: make(map[notification.Channel]provider.Provider), log: log}

	if enabled[notification.ChannelEmail] {
		r.register(NewEmail(cfg.Email, timeout).WithLogger(log))
	}
	if enabled[notification.ChannelChat] {
		switch cfg.Chat.Provider {
		case ChatProviderTelegram:
			r.register(NewTelegram(cfg.Chat.Telegram, timeout).WithLogger(log))
		default:
			r.register(NewSlack(cfg.Chat.Slack, timeout).WithLogger(log))
		}
	}
	if enabled[notification.ChannelSMS] {
		r.register(NewSMS(cfg.SMS, timeout).WithLogger(log))
	}
	if enabled[notification.ChannelWebhook] {
		r.register(NewWebhook(cfg.Webhook, timeout).WithLogger(log))
	}
	if enabled[notification.ChannelPush] {
		r.register(NewPush(cfg.Push, timeout).WithLogger(log))
	}
	return r
}

func (r *Registry) register(p provider.Provider) {
	if err := p.ValidateConfig(); err != nil {
		r.log.Warn("provider disabled", zap.String("channel", string(p.Channel())), zap.Error(err))
		return
	}
	r.byChannel[p.Channel()] = p
	r.log.Info("provider registered", zap.String("channel", string(p.Channel())))
}

func (r *Registry) Get(ch notification.Channel) (provider.Provider, bool) {
	p, ok := r.byChannel[ch]
	return p, ok
}

// Available lists the channels with a working adapter, in canonical order.
func (r *Registry) Available() []notification.Channel {
	out := make([]notification.Channel, 0, len(r.byChannel))
	for _, ch := range notification.Channels() {
		if _, ok := r.byChannel[ch]; ok {
			out = append(out, ch)
		}
	}
	return out
}
