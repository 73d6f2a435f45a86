package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/sessionguard"
	gomail "github.com/wneessen/go-mail"
)

var (
	_ sessionguard.MailSender = (*SMTPSender)(nil)
	_ sessionguard.MailSender = (*LogSender)(nil)
)

// ResetLink appends token to base as the "token" query parameter. An empty
// base yields the bare token.
func ResetLink(base, token string) string {
	if base == "" {
		return token
	}
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// SMTPConfig configures [SMTPSender].
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// ResetURLBase is the page that accepts the reset token, e.g.
	// https://app.example.com/reset-password.
	ResetURLBase string
	Subject      string
	// Timeout bounds one delivery when the caller's context has no deadline.
	Timeout time.Duration
}

const defaultTimeout = 10 * time.Second

type deliverFunc func(ctx context.Context, c *gomail.Client, m *gomail.Msg) error

func dialAndSend(ctx context.Context, c *gomail.Client, m *gomail.Msg) error {
	return c.DialAndSendWithContext(ctx, m)
}

// SMTPSender delivers reset mail over SMTP, upgrading with STARTTLS when the
// relay offers it and using PLAIN auth when a username is configured.
type SMTPSender struct {
	cfg     SMTPConfig
	deliver deliverFunc
}

// NewSMTPSender validates cfg and fills in the port, subject and timeout
// defaults.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, errors.New("mail: smtp host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("mail: from address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Subject == "" {
		cfg.Subject = "Reset your password"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &SMTPSender{cfg: cfg, deliver: dialAndSend}, nil
}

// SendPasswordReset mails the reset link to address. The whole SMTP exchange
// is bounded by ctx, or by the configured timeout when ctx has no deadline.
func (s *SMTPSender) SendPasswordReset(ctx context.Context, address, token, displayName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if address == "" {
		return errors.New("mail: empty recipient")
	}

	msg, err := s.message(address, token, displayName)
	if err != nil {
		return err
	}
	client, err := s.client()
	if err != nil {
		return err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.deliver(ctx, client, msg); err != nil {
		return fmt.Errorf("mail: send to %s: %w", addr, err)
	}
	return nil
}

func (s *SMTPSender) client() (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTimeout(s.cfg.Timeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithDialContextFunc(dialWithDeadline),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	c, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mail: client: %w", err)
	}
	return c, nil
}

// dialWithDeadline applies the context deadline to the connection itself, so
// a relay that accepts and then stalls cannot hold the exchange open.
func dialWithDeadline(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

func (s *SMTPSender) message(address, token, displayName string) (*gomail.Msg, error) {
	greeting := "Hello,"
	if displayName != "" {
		greeting = "Hello " + displayName + ","
	}

	m := gomail.NewMsg(gomail.WithEncoding(gomail.NoEncoding))
	if err := m.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("mail: from address: %w", err)
	}
	if err := m.To(address); err != nil {
		return nil, fmt.Errorf("mail: recipient: %w", err)
	}
	m.Subject(s.cfg.Subject)
	m.SetDate()

	body := []string{
		greeting,
		"",
		"We received a request to reset your password. Use the link below to choose a new one:",
		"",
		ResetLink(s.cfg.ResetURLBase, token),
		"",
		"If you did not ask for this, you can ignore this message.",
	}
	m.SetBodyString(gomail.TypeTextPlain, strings.Join(body, "\n")+"\n")
	return m, nil
}

// LogSender writes reset links to a logger instead of sending mail.
type LogSender struct {
	logger       *slog.Logger
	resetURLBase string
}

// NewLogSender logs reset links to logger, or to slog.Default when nil.
func NewLogSender(logger *slog.Logger, resetURLBase string) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger, resetURLBase: resetURLBase}
}

// SendPasswordReset logs the reset link for address.
func (s *LogSender) SendPasswordReset(ctx context.Context, address, token, _ string) error {
	s.logger.InfoContext(ctx, "password reset mail (not sent)",
		"component", "mail",
		"to", address,
		"link", ResetLink(s.resetURLBase, token),
	)
	return nil
}
