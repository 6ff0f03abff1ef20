package notifier

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

const (
	LostSubject = "Internet Connection Lost"
	TestSubject = "Internet Monitor Test Email"

	timeLayout = "2006-01-02 15:04:05"
)

// Mailer delivers one message to one recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig describes the outgoing mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// Email sends mail over SMTP. Every call dials a fresh connection, upgrades
// it with STARTTLS and authenticates before sending; nothing is pooled.
type Email struct {
	cfg SMTPConfig
}

func NewEmail(cfg SMTPConfig) (*Email, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.From == "" {
		return nil, errors.New("smtp sender address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Email{cfg: cfg}, nil
}

var dialAndSend = func(ctx context.Context, c *mail.Client, msg *mail.Msg) error {
	return c.DialAndSendWithContext(ctx, msg)
}

func (e *Email) Send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(e.cfg.From); err != nil {
		return fmt.Errorf("set from %q: %w", e.cfg.From, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set to %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetDate()
	// multipart/alternative: the text part first, an escaped HTML copy after
	msg.SetBodyString(mail.TypeTextPlain, body)
	msg.AddAlternativeString(mail.TypeTextHTML, "<p>"+html.EscapeString(body)+"</p>")

	opts := []mail.Option{
		mail.WithPort(e.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(e.cfg.Timeout),
	}
	if e.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(e.cfg.Username),
			mail.WithPassword(e.cfg.Password),
		)
	}
	client, err := mail.NewClient(e.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()
	if err := dialAndSend(ctx, client, msg); err != nil {
		return fmt.Errorf("send to %s via %s:%d: %w", to, e.cfg.Host, e.cfg.Port, err)
	}
	return nil
}

// LostMessage returns the subject and body queued when the link drops.
func LostMessage(at time.Time) (string, string) {
	return LostSubject, fmt.Sprintf("The internet connection was lost at %s.", at.Format(timeLayout))
}

// TestMessage returns the subject and body of the configuration check mail.
func TestMessage(at time.Time) (string, string) {
	return TestSubject, fmt.Sprintf("This is a test email from your Internet Monitor. "+
		"If you're receiving this, your email configuration is working correctly. Sent at: %s", at.Format(timeLayout))
}

// SendAll mails every recipient in order and returns how many failed.
// Failures are logged and never stop the remaining sends.
func SendAll(ctx context.Context, m Mailer, logger *slog.Logger, recipients []string, subject, body string) int {
	failed := 0
	for _, to := range recipients {
		if err := m.Send(ctx, to, subject, body); err != nil {
			failed++
			logger.Error("failed to send email", "to", to, "err", err)
			continue
		}
		logger.Info("email sent", "to", to)
	}
	return failed
}
