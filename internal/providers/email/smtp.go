package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

var ErrNoRecipients = errors.New("email has no recipients")

type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	// Timeout applies when the context carries no deadline.
	Timeout time.Duration
}

// SMTPProvider delivers messages over a fresh SMTP connection per send,
// upgrading with STARTTLS when the server offers it.
type SMTPProvider struct {
	cfg Config
	now func() time.Time
}

func NewSMTP(cfg Config) *SMTPProvider {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPProvider{cfg: cfg, now: time.Now}
}

func (p *SMTPProvider) Send(ctx context.Context, msg Message) error {
	to := cleanRecipients(msg.To)
	if len(to) == 0 {
		return ErrNoRecipients
	}

	addr := net.JoinHostPort(p.cfg.Host, strconv.Itoa(p.cfg.Port))
	dialer := &net.Dialer{Timeout: p.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(p.cfg.Timeout)
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, p.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: p.cfg.Host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if p.cfg.Username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}

	if err := client.Mail(p.cfg.FromEmail); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(p.compose(to, msg)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return client.Quit()
}

func (p *SMTPProvider) compose(to []string, msg Message) []byte {
	from := mail.Address{Name: p.cfg.FromName, Address: p.cfg.FromEmail}

	var b bytes.Buffer
	header := func(key, value string) {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(headerValue(value))
		b.WriteString("\r\n")
	}
	header("From", from.String())
	header("To", strings.Join(to, ", "))
	if replyTo := strings.TrimSpace(msg.ReplyTo); replyTo != "" {
		header("Reply-To", replyTo)
	}
	header("Subject", mime.QEncoding.Encode("utf-8", headerValue(msg.Subject)))
	header("Date", p.now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="UTF-8"`)
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	return b.Bytes()
}

func cleanRecipients(to []string) []string {
	out := make([]string, 0, len(to))
	for _, addr := range to {
		addr = headerValue(addr)
		if addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// headerValue drops line breaks so values cannot inject headers.
func headerValue(v string) string {
	v = strings.ReplaceAll(v, "\r", "")
	v = strings.ReplaceAll(v, "\n", " ")
	return strings.TrimSpace(v)
}
