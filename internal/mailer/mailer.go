package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cayc/incubator/internal/logger"
)

const (
	// DefaultHost is the SMTP server used when none is configured
	DefaultHost = "smtp.gmail.com"
	// DefaultPort is the submission port with STARTTLS
	DefaultPort = 587
)

// ErrInvalidMessage is returned when a message lacks a recipient, subject or body
var ErrInvalidMessage = errors.New("invalid message")

// Message is a plain text email
type Message struct {
	To      string
	Subject string
	Body    string
}

// Validate checks the message carries every required field
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" || m.Subject == "" || m.Body == "" {
		return ErrInvalidMessage
	}
	return nil
}

// Mailer sends plain text emails
//
//go:generate mockgen -source=mailer.go -destination=../mocks/mailer.go -package=mocks -mock_names=Mailer=MockMailer
type Mailer interface {
	// Send delivers the message, blocking until the server accepts or rejects it
	Send(ctx context.Context, msg Message) error
}

// Config holds the SMTP settings
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// From defaults to Username
	From string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type smtpMailer struct {
	addr     string
	host     string
	from     string
	auth     smtp.Auth
	sendMail sendMailFunc
	now      func() time.Time
}

// NewSMTPMailer creates a mailer authenticating with PLAIN auth
func NewSMTPMailer(cfg Config) Mailer {
	return newSMTPMailer(cfg, smtp.SendMail)
}

func newSMTPMailer(cfg Config, send sendMailFunc) *smtpMailer {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return &smtpMailer{
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host:     cfg.Host,
		from:     cfg.From,
		auth:     auth,
		sendMail: send,
		now:      time.Now,
	}
}

// Send delivers the message. net/smtp has no context support, so a cancelled
// context returns early while the SMTP exchange finishes in the background.
func (m *smtpMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	data := m.compose(msg)
	done := make(chan error, 1)
	go func() {
		done <- m.sendMail(m.addr, m.auth, m.from, []string{msg.To}, data)
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.WarnCtx(ctx, "SMTP server rejected message",
				zap.String("host", m.host),
				zap.String("to", msg.To),
				zap.Error(err))
			return fmt.Errorf("failed to send email: %w", err)
		}
		logger.InfoCtx(ctx, "Email sent", zap.String("to", msg.To), zap.String("subject", msg.Subject))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// compose renders an RFC 5322 message with a plain text body
func (m *smtpMailer) compose(msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + m.from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(msg.Subject) + "\r\n")
	b.WriteString("Date: " + m.now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.Body, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(b.String())
}

// sanitizeHeader drops line breaks so a subject cannot inject headers
func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
