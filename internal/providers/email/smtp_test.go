package email

import (
	"context"
	"errors"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/revolutionai/storefront/internal/config"
	"go.uber.org/zap"
)

type fakeSMTP struct {
	host string
	port int
	done chan struct{}

	mu    sync.Mutex
	from  string
	rcpts []string
	data  string
}

func startFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	tcpAddr := ln.Addr().(*net.TCPAddr)
	s := &fakeSMTP{host: "127.0.0.1", port: tcpAddr.Port, done: make(chan struct{})}

	go func() {
		defer close(s.done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		tp := textproto.NewConn(conn)
		_ = tp.PrintfLine("220 localhost ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			upper := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
				_ = tp.PrintfLine("250 localhost")
			case strings.HasPrefix(upper, "MAIL FROM:"):
				s.mu.Lock()
				s.from = strings.Trim(line[len("MAIL FROM:"):], "<> ")
				s.mu.Unlock()
				_ = tp.PrintfLine("250 OK")
			case strings.HasPrefix(upper, "RCPT TO:"):
				s.mu.Lock()
				s.rcpts = append(s.rcpts, strings.Trim(line[len("RCPT TO:"):], "<> "))
				s.mu.Unlock()
				_ = tp.PrintfLine("250 OK")
			case upper == "DATA":
				_ = tp.PrintfLine("354 End data with <CR><LF>.<CR><LF>")
				lines, err := tp.ReadDotLines()
				if err != nil {
					return
				}
				s.mu.Lock()
				s.data = strings.Join(lines, "\n")
				s.mu.Unlock()
				_ = tp.PrintfLine("250 OK")
			case upper == "QUIT":
				_ = tp.PrintfLine("221 Bye")
				return
			default:
				_ = tp.PrintfLine("502 not implemented")
			}
		}
	}()
	return s
}

func (s *fakeSMTP) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("smtp session did not finish")
	}
}

func TestSMTPSend(t *testing.T) {
	server := startFakeSMTP(t)
	provider := NewSMTP(Config{
		Host:      server.host,
		Port:      server.port,
		FromEmail: "noreply@shop.test",
		FromName:  "Revolution AI",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := provider.Send(ctx, Message{
		To:      []string{"ops@shop.test", " "},
		ReplyTo: "ada@example.com",
		Subject: "New order\r\nBcc: victim@example.com",
		HTML:    "<p>hello</p>\n.\n<p>bye</p>",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	server.wait(t)

	server.mu.Lock()
	defer server.mu.Unlock()
	if server.from != "noreply@shop.test" {
		t.Fatalf("unexpected MAIL FROM %q", server.from)
	}
	if len(server.rcpts) != 1 || server.rcpts[0] != "ops@shop.test" {
		t.Fatalf("unexpected recipients %v", server.rcpts)
	}
	for _, want := range []string{
		"Revolution AI",
		"<noreply@shop.test>",
		"To: ops@shop.test",
		"Reply-To: ada@example.com",
		"Subject: New order Bcc: victim@example.com",
		"Content-Type: text/html",
		"<p>hello</p>\n.\n<p>bye</p>",
	} {
		if !strings.Contains(server.data, want) {
			t.Fatalf("message missing %q:\n%s", want, server.data)
		}
	}
	if strings.Contains(server.data, "\nBcc:") {
		t.Fatalf("header injection in message:\n%s", server.data)
	}
}

func TestSMTPSendWithoutRecipients(t *testing.T) {
	provider := NewSMTP(Config{Host: "127.0.0.1", Port: 1})
	if err := provider.Send(context.Background(), Message{To: []string{""}}); !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}
}

func TestSMTPSendDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	provider := NewSMTP(Config{Host: "127.0.0.1", Port: port, Timeout: time.Second})
	if err := provider.Send(context.Background(), Message{To: []string{"a@b.test"}}); err == nil {
		t.Fatalf("expected dial error")
	}
}

func TestNewFromConfig(t *testing.T) {
	if _, ok := NewFromConfig(config.Config{}, zap.NewNop()).(*NoOpProvider); !ok {
		t.Fatalf("expected no-op provider without SMTP host")
	}

	cfg := config.Config{Email: config.EmailConfig{Host: "smtp.shop.test", Port: 2525}}
	provider, ok := NewFromConfig(cfg, zap.NewNop()).(*SMTPProvider)
	if !ok {
		t.Fatalf("expected SMTP provider")
	}
	if provider.cfg.Port != 2525 {
		t.Fatalf("unexpected port %d", provider.cfg.Port)
	}
}

func TestRender(t *testing.T) {
	body, err := Render(TemplateBookingAdmin, map[string]string{
		"FirstName": "Ada",
		"Message":   "<script>alert(1)</script>",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(body, "Ada") {
		t.Fatalf("expected name in body")
	}
	if strings.Contains(body, "<script>") {
		t.Fatalf("template output must be escaped")
	}

	for _, name := range []string{TemplateOrderCompleted, TemplateOrderAdmin, TemplateBookingConfirmation} {
		if _, err := Render(name, map[string]string{}); err != nil {
			t.Fatalf("render %s: %v", name, err)
		}
	}
	if _, err := Render("missing", nil); err == nil {
		t.Fatalf("expected error for unknown template")
	}
}
