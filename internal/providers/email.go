package providers

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/Courier/internal/domain/notification"
	"github.com/NordCoder/Courier/internal/domain/provider"
)

type EmailConfig struct {
	Addr       string `mapstructure:"addr"`
	From       string `mapstructure:"from"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	UseTLS     bool   `mapstructure:"use_tls"`
	SubjPrefix string `mapstructure:"subj_prefix"`
}

var _ provider.Provider = (*Email)(nil)

type Email struct {
	addr       string
	from       string
	subjPrefix string
	auth       smtp.Auth
	useTLS     bool
	timeout    time.Duration

	log *zap.Logger
}

func NewEmail(cfg EmailConfig, timeout time.Duration) *Email {
	var auth smtp.Auth
	if cfg.User != "" || cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, smtpHost(cfg.Addr))
	}
	return &Email{
		addr:       cfg.Addr,
		from:       cfg.From,
		subjPrefix: cfg.SubjPrefix,
		auth:       auth,
		useTLS:     cfg.UseTLS,
		timeout:    timeout,
		log:        zap.L().With(zap.String("component", "providers.email")),
	}
}

func (e *Email) WithLogger(l *zap.Logger) *Email {
	if l == nil {
		return e
	}
	cp := *e
	cp.log = l.With(zap.String("component", "providers.email"))
	return &cp
}

func (e *Email) Channel() notification.Channel { return notification.ChannelEmail }

func (e *Email) ValidateConfig() error {
	if e.addr == "" {
		return errors.New("smtp addr is empty")
	}
	if _, _, err := net.SplitHostPort(e.addr); err != nil {
		return fmt.Errorf("smtp addr %q: %w", e.addr, err)
	}
	if _, err := mail.ParseAddress(e.from); err != nil {
		return fmt.Errorf("from address %q: %w", e.from, err)
	}
	return nil
}

func (e *Email) Send(ctx context.Context, n *notification.Notification) error {
	if _, err := mail.ParseAddress(n.Recipient); err != nil {
		return &provider.Error{
			Channel: e.Channel(),
			Message: fmt.Sprintf("invalid recipient %q", n.Recipient),
			Err:     err,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	msg, err := e.buildMessage(n)
	if err != nil {
		return &provider.Error{Channel: e.Channel(), Message: "build message", Err: err}
	}

	start := time.Now()
	if err := e.deliver(ctx, n.Recipient, msg); err != nil {
		e.log.Warn("smtp send failed", zap.String("to", n.Recipient), zap.Error(err))
		return e.wrapSMTPError(err)
	}
	e.log.Debug("email sent", zap.String("to", n.Recipient), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (e *Email) buildMessage(n *notification.Notification) ([]byte, error) {
	subj := strings.TrimSpace(strings.TrimSpace(e.subjPrefix) + " " + n.Subject)

	var buf bytes.Buffer
	write := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }
	write("From", e.from)
	write("To", n.Recipient)
	write("Subject", subj)
	write("MIME-Version", "1.0")
	if hdrs, ok := n.Metadata["headers"].(map[string]any); ok {
		for k, v := range hdrs {
			if sanitizeHeader(k) {
				write(k, fmt.Sprint(v))
			}
		}
	}

	if n.HTMLMessage == "" {
		write("Content-Type", "text/plain; charset=utf-8")
		buf.WriteString("\r\n")
		buf.WriteString(n.Message)
		buf.WriteString("\r\n")
		return buf.Bytes(), nil
	}

	// the writer emits nothing until the first part, so the header line can
	// reference its boundary before any body bytes land in buf
	w := multipart.NewWriter(&buf)
	write("Content-Type", "multipart/alternative; boundary="+w.Boundary())
	buf.WriteString("\r\n")

	part, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}})
	if err != nil {
		return nil, err
	}
	if _, err := part.Write([]byte(n.Message)); err != nil {
		return nil, err
	}
	part, err = w.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=utf-8"}})
	if err != nil {
		return nil, err
	}
	if _, err := part.Write([]byte(n.HTMLMessage)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Email) deliver(ctx context.Context, to string, msg []byte) error {
	dialer := net.Dialer{Timeout: e.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", e.addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	host := smtpHost(e.addr)
	if e.useTLS {
		tconn := tls.Client(conn, &tls.Config{ServerName: host})
		if err := tconn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return fmt.Errorf("tls handshake: %w", err)
		}
		conn = tconn
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer func() { _ = c.Close() }()

	if e.auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(e.auth); err != nil {
				return fmt.Errorf("auth: %w", err)
			}
		}
	}
	if err := c.Mail(e.from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}
	return c.Quit()
}

// wrapSMTPError keeps SMTP reply semantics visible to the classifier: 55x
// replies mean the mailbox is bad, everything else stays optimistic.
func (e *Email) wrapSMTPError(err error) error {
	msg := err.Error()
	var te *textproto.Error
	if errors.As(err, &te) {
		switch te.Code {
		case 550, 551, 553:
			msg = fmt.Sprintf("invalid recipient: %s", te.Msg)
		}
	}
	return &provider.Error{Channel: e.Channel(), Message: msg, Err: err}
}

func sanitizeHeader(k string) bool {
	switch strings.ToLower(k) {
	case "from", "to", "subject", "content-type", "mime-version":
		return false
	}
	return !strings.ContainsAny(k, "\r\n:")
}

func smtpHost(addr string) string {
	if i := strings.Index(addr, ":"); i >= 0 {
		return addr[:i]
	}
	return addr
}
