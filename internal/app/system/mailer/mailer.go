// internal/app/system/mailer/mailer.go
package mailer

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Email is one outgoing message. Bcc recipients never appear in headers.
type Email struct {
	To       string
	Bcc      []string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers email.
type Sender interface {
	Send(ctx context.Context, msg Email) error
}

// Config configures SMTP delivery.
type Config struct {
	Host     string
	Port     int
	User     string
	Pass     string
	From     string
	FromName string
}

// SMTPSender sends through an SMTP relay with optional PLAIN auth.
type SMTPSender struct {
	cfg Config
	log *zap.Logger
}

func NewSMTP(cfg Config, logger *zap.Logger) *SMTPSender {
	return &SMTPSender{cfg: cfg, log: logger}
}

// New returns an SMTP sender, or a log-only sender when no host is set.
func New(cfg Config, logger *zap.Logger) Sender {
	if strings.TrimSpace(cfg.Host) == "" {
		logger.Info("mail_smtp_host not set; emails will be logged, not sent")
		return NewLog(logger)
	}
	return NewSMTP(cfg, logger)
}

func (s *SMTPSender) Send(ctx context.Context, msg Email) error {
	rcpts := recipients(msg)
	if len(rcpts) == 0 {
		return errors.New("mailer: no recipients")
	}
	from := s.cfg.From
	if _, err := mail.ParseAddress(from); err != nil {
		return fmt.Errorf("mailer: bad from address %q: %w", from, err)
	}

	body, err := s.build(msg)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	}

	done := make(chan error, 1)
	go func() { done <- smtp.SendMail(addr, auth, from, rcpts, body) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mailer: send via %s: %w", addr, err)
		}
		s.log.Info("email sent",
			zap.String("subject", msg.Subject),
			zap.Int("recipients", len(rcpts)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func recipients(msg Email) []string {
	var out []string
	if strings.TrimSpace(msg.To) != "" {
		out = append(out, msg.To)
	}
	for _, b := range msg.Bcc {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// build renders a multipart/alternative message with text and HTML parts.
func (s *SMTPSender) build(msg Email) ([]byte, error) {
	var buf bytes.Buffer
	from := (&mail.Address{Name: s.cfg.FromName, Address: s.cfg.From}).String()
	to := msg.To
	if to == "" {
		to = from
	}

	mw := multipart.NewWriter(&buf)
	headers := []string{
		"From: " + from,
		"To: " + to,
		"Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject),
		"Date: " + time.Now().Format(time.RFC1123Z),
		"Message-ID: " + messageID(s.cfg.From),
		"MIME-Version: 1.0",
		"Content-Type: multipart/alternative; boundary=" + mw.Boundary(),
	}
	for _, h := range headers {
		buf.WriteString(h + "\r\n")
	}
	buf.WriteString("\r\n")

	for _, part := range []struct{ ctype, body string }{
		{"text/plain; charset=utf-8", msg.TextBody},
		{"text/html; charset=utf-8", msg.HTMLBody},
	} {
		if part.body == "" {
			continue
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.ctype},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.body)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func messageID(from string) string {
	domain := "localhost"
	if i := strings.LastIndexByte(from, '@'); i >= 0 {
		domain = from[i+1:]
	}
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return "<" + hex.EncodeToString(b) + "@" + domain + ">"
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	log *zap.Logger
}

func NewLog(logger *zap.Logger) *LogSender {
	return &LogSender{log: logger}
}

func (l *LogSender) Send(_ context.Context, msg Email) error {
	l.log.Info("email (not sent)",
		zap.String("to", msg.To),
		zap.Int("bcc", len(msg.Bcc)),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.TextBody))
	return nil
}
