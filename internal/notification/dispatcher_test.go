package notification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	contactdomain "github.com/revolutionai/storefront/internal/contact/domain"
	orderdomain "github.com/revolutionai/storefront/internal/order/domain"
	"github.com/revolutionai/storefront/internal/providers/email"
	"go.uber.org/zap"
)

type fakeEmail struct {
	mu       sync.Mutex
	messages []email.Message
	err      error
	block    bool
}

func (f *fakeEmail) Send(ctx context.Context, msg email.Message) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return f.err
}

func (f *fakeEmail) sent() []email.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]email.Message(nil), f.messages...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
	body   map[string]any
}

func (f *fakePublisher) Publish(ctx context.Context, eventType string, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	f.body = payload
	return nil
}

func completedOrder() orderdomain.Order {
	ref := "cs_test_1"
	return orderdomain.Order{
		ID:                1234,
		ProductID:         "ai-email-assistant",
		ProductName:       "AI Email Assistant",
		ProductPrice:      "$9",
		AmountCents:       900,
		Currency:          "USD",
		CustomerFirstName: "Ada",
		CustomerLastName:  "Lovelace",
		CustomerEmail:     "ada@example.com",
		CustomerPhone:     "+441234567890",
		PaymentMethod:     "card",
		Status:            orderdomain.StatusCompleted,
		ExternalReference: &ref,
		UpdatedAt:         time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func findMessage(t *testing.T, messages []email.Message, to string) email.Message {
	t.Helper()
	for _, msg := range messages {
		if len(msg.To) == 1 && msg.To[0] == to {
			return msg
		}
	}
	t.Fatalf("no message to %s in %+v", to, messages)
	return email.Message{}
}

func TestNotifyOrderCompleted(t *testing.T) {
	mail := &fakeEmail{}
	pub := &fakePublisher{}
	d := NewDispatcher(zap.NewNop(), mail, pub, nil, Options{AdminEmail: "ops@shop.test", Location: time.UTC})

	d.NotifyOrderCompleted(context.Background(), completedOrder())
	d.Wait()

	messages := mail.sent()
	if len(messages) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(messages))
	}
	customer := findMessage(t, messages, "ada@example.com")
	if !strings.Contains(customer.Subject, "AI Email Assistant") || !strings.Contains(customer.HTML, "1234") {
		t.Fatalf("unexpected customer email: %+v", customer)
	}
	admin := findMessage(t, messages, "ops@shop.test")
	if admin.ReplyTo != "ada@example.com" || !strings.Contains(admin.HTML, "cs_test_1") {
		t.Fatalf("unexpected admin email: %+v", admin)
	}

	if len(pub.events) != 1 || pub.events[0] != EventOrderCompleted {
		t.Fatalf("expected one order.completed event, got %v", pub.events)
	}
	if pub.body["order_id"] != "1234" || pub.body["amount_cents"] != int64(900) {
		t.Fatalf("unexpected event payload: %v", pub.body)
	}
}

func TestNotifyOrderCompletedWithoutAdminOrPublisher(t *testing.T) {
	mail := &fakeEmail{}
	d := NewDispatcher(zap.NewNop(), mail, nil, nil, Options{})

	d.NotifyOrderCompleted(context.Background(), completedOrder())
	d.Wait()

	if n := len(mail.sent()); n != 1 {
		t.Fatalf("expected only the customer email, got %d", n)
	}
}

func TestNotificationFailuresAreSwallowed(t *testing.T) {
	mail := &fakeEmail{err: errors.New("smtp down")}
	pub := &fakePublisher{}
	d := NewDispatcher(zap.NewNop(), mail, pub, nil, Options{AdminEmail: "ops@shop.test"})

	d.NotifyOrderCompleted(context.Background(), completedOrder())
	d.Wait()

	if len(pub.events) != 1 {
		t.Fatalf("email failure must not block the event publish")
	}
}

func TestNotificationOutlivesCallerContext(t *testing.T) {
	mail := &fakeEmail{}
	d := NewDispatcher(zap.NewNop(), mail, nil, nil, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	d.NotifyOrderCompleted(ctx, completedOrder())
	cancel()
	d.Wait()

	if n := len(mail.sent()); n != 1 {
		t.Fatalf("expected send to complete after caller cancelled, got %d", n)
	}
}

func TestNotificationTimeout(t *testing.T) {
	mail := &fakeEmail{block: true}
	d := NewDispatcher(zap.NewNop(), mail, nil, nil, Options{Timeout: 20 * time.Millisecond})

	d.NotifyOrderCompleted(context.Background(), completedOrder())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Drain(ctx); err != nil {
		t.Fatalf("blocked send should be cut off by the notification timeout: %v", err)
	}
}

func TestDrainGivesUp(t *testing.T) {
	mail := &fakeEmail{block: true}
	d := NewDispatcher(zap.NewNop(), mail, nil, nil, Options{Timeout: time.Second})

	d.NotifyOrderCompleted(context.Background(), completedOrder())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := d.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	d.Wait()
}

func TestNotifyBooking(t *testing.T) {
	mail := &fakeEmail{}
	d := NewDispatcher(zap.NewNop(), mail, nil, nil, Options{AdminEmail: "ops@shop.test", Location: time.UTC})

	d.NotifyBooking(context.Background(), contactdomain.Booking{
		Reference: "01HZX3J9Q4",
		FirstName: "Seán",
		LastName:  "O&#39;Brien",
		Email:     "sean@example.com",
		Message:   "We need help with &lt;automation&gt;",
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	})
	d.Wait()

	messages := mail.sent()
	if len(messages) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(messages))
	}

	confirmation := findMessage(t, messages, "sean@example.com")
	if confirmation.ReplyTo != "ops@shop.test" || !strings.Contains(confirmation.HTML, "Not specified") {
		t.Fatalf("unexpected confirmation: %+v", confirmation)
	}

	admin := findMessage(t, messages, "ops@shop.test")
	if admin.ReplyTo != "sean@example.com" {
		t.Fatalf("admin email should reply to the visitor, got %q", admin.ReplyTo)
	}
	if admin.Subject != "New consultation request from Seán O'Brien" {
		t.Fatalf("unexpected subject %q", admin.Subject)
	}
	if strings.Contains(admin.HTML, "&amp;#39;") || strings.Contains(admin.HTML, "&amp;lt;") {
		t.Fatalf("stored values must not be escaped twice:\n%s", admin.HTML)
	}
	if !strings.Contains(admin.HTML, "01HZX3J9Q4") || !strings.Contains(admin.HTML, "Unknown") {
		t.Fatalf("admin email missing details:\n%s", admin.HTML)
	}
}
