// Package notification fans order and booking events out to email and SNS.
// Every send runs detached from the caller with its own timeout; failures are
// logged and counted, never returned.
package notification

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	contactdomain "github.com/revolutionai/storefront/internal/contact/domain"
	obscontext "github.com/revolutionai/storefront/internal/observability/context"
	"github.com/revolutionai/storefront/internal/observability/logger"
	obsmetrics "github.com/revolutionai/storefront/internal/observability/metrics"
	orderdomain "github.com/revolutionai/storefront/internal/order/domain"
	"github.com/revolutionai/storefront/internal/providers/email"
	"go.uber.org/zap"
)

const (
	channelEmail = "email"
	channelSNS   = "sns"

	EventOrderCompleted = "order.completed"
	EventBookingCreated = "booking.created"
)

// Publisher sends a JSON event to a fan-out topic.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]any) error
}

type Options struct {
	AdminEmail string
	SiteName   string
	Timeout    time.Duration
	// Location formats timestamps in admin emails. Defaults to Europe/London.
	Location *time.Location
}

type Dispatcher struct {
	log       *zap.Logger
	email     email.Provider
	publisher Publisher
	metrics   *obsmetrics.Metrics
	opts      Options

	wg sync.WaitGroup
}

func NewDispatcher(log *zap.Logger, provider email.Provider, publisher Publisher, metrics *obsmetrics.Metrics, opts Options) *Dispatcher {
	if provider == nil {
		provider = &email.NoOpProvider{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.SiteName == "" {
		opts.SiteName = "Revolution AI"
	}
	if opts.Location == nil {
		opts.Location = londonLocation()
	}
	opts.AdminEmail = strings.TrimSpace(opts.AdminEmail)

	return &Dispatcher{
		log:       log.Named("notification"),
		email:     provider,
		publisher: publisher,
		metrics:   metrics,
		opts:      opts,
	}
}

// NotifyOrderCompleted sends the purchase confirmation, the admin alert and the
// order.completed event.
func (d *Dispatcher) NotifyOrderCompleted(ctx context.Context, order orderdomain.Order) {
	ctx = obscontext.WithOrderID(ctx, order.ID.String())
	data := orderData{
		SiteName:      d.opts.SiteName,
		OrderID:       order.ID.String(),
		FirstName:     order.CustomerFirstName,
		CustomerName:  order.CustomerName(),
		Email:         order.CustomerEmail,
		Phone:         order.CustomerPhone,
		ProductID:     order.ProductID,
		ProductName:   order.ProductName,
		Price:         order.ProductPrice,
		PaymentMethod: methodLabel(order.PaymentMethod),
		Reference:     order.Reference(),
		CompletedAt:   d.formatTime(order.UpdatedAt),
	}

	d.dispatch(ctx, channelEmail, "order confirmation", func(ctx context.Context) error {
		return d.sendTemplate(ctx, email.TemplateOrderCompleted, email.Message{
			To:      []string{order.CustomerEmail},
			Subject: fmt.Sprintf("Your %s order is confirmed", order.ProductName),
		}, data)
	})

	if d.opts.AdminEmail != "" {
		d.dispatch(ctx, channelEmail, "order admin alert", func(ctx context.Context) error {
			return d.sendTemplate(ctx, email.TemplateOrderAdmin, email.Message{
				To:      []string{d.opts.AdminEmail},
				ReplyTo: order.CustomerEmail,
				Subject: fmt.Sprintf("New order: %s (%s)", order.ProductName, order.CustomerName()),
			}, data)
		})
	}

	if d.publisher != nil {
		payload := map[string]any{
			"order_id":       order.ID.String(),
			"product_id":     order.ProductID,
			"amount_cents":   order.AmountCents,
			"currency":       order.Currency,
			"payment_method": order.PaymentMethod,
			"reference":      order.Reference(),
			"customer_email": order.CustomerEmail,
			"completed_at":   order.UpdatedAt.UTC().Format(time.RFC3339),
		}
		d.dispatch(ctx, channelSNS, EventOrderCompleted, func(ctx context.Context) error {
			return d.publisher.Publish(ctx, EventOrderCompleted, payload)
		})
	}
}

// NotifyBooking sends the visitor confirmation and the admin alert for a
// consultation request.
func (d *Dispatcher) NotifyBooking(ctx context.Context, booking contactdomain.Booking) {
	data := bookingData{
		SiteName:  d.opts.SiteName,
		Reference: booking.Reference,
		FirstName: unescape(booking.FirstName, ""),
		LastName:  unescape(booking.LastName, ""),
		Email:     booking.Email,
		Phone:     unescape(booking.Phone, "Not provided"),
		Company:   unescape(booking.Company, "Not specified"),
		Service:   unescape(booking.Service, "General inquiry"),
		Budget:    unescape(booking.Budget, "Not specified"),
		Timeline:  unescape(booking.Timeline, "Not specified"),
		Message:   unescape(booking.Message, ""),
		CreatedAt: d.formatTime(booking.CreatedAt),
		IPAddress: fallback(booking.IPAddress, "Unknown"),
		UserAgent: fallback(booking.UserAgent, "Unknown"),
	}

	d.dispatch(ctx, channelEmail, "booking confirmation", func(ctx context.Context) error {
		return d.sendTemplate(ctx, email.TemplateBookingConfirmation, email.Message{
			To:      []string{booking.Email},
			ReplyTo: d.opts.AdminEmail,
			Subject: "We received your consultation request",
		}, data)
	})

	if d.opts.AdminEmail != "" {
		d.dispatch(ctx, channelEmail, "booking admin alert", func(ctx context.Context) error {
			return d.sendTemplate(ctx, email.TemplateBookingAdmin, email.Message{
				To:      []string{d.opts.AdminEmail},
				ReplyTo: booking.Email,
				Subject: fmt.Sprintf("New consultation request from %s %s", data.FirstName, data.LastName),
			}, data)
		})
	}
}

// Wait blocks until every in-flight send has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Drain waits for in-flight sends or gives up when ctx is done.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) dispatch(parent context.Context, channel, name string, send func(context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), d.opts.Timeout)
		defer cancel()
		log := logger.WithContext(ctx, d.log).With(zap.String("channel", channel), zap.String("notification", name))

		defer func() {
			if r := recover(); r != nil {
				log.Error("notification panicked", zap.Any("panic", r))
				d.metrics.RecordNotification(ctx, channel, "failed")
			}
		}()

		if err := send(ctx); err != nil {
			log.Warn("notification failed", zap.Error(err))
			d.metrics.RecordNotification(ctx, channel, "failed")
			return
		}
		log.Debug("notification sent")
		d.metrics.RecordNotification(ctx, channel, "sent")
	}()
}

func (d *Dispatcher) sendTemplate(ctx context.Context, name string, msg email.Message, data any) error {
	body, err := email.Render(name, data)
	if err != nil {
		return err
	}
	msg.HTML = body
	return d.email.Send(ctx, msg)
}

func (d *Dispatcher) formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(d.opts.Location).Format("Monday, 2 January 2006 at 15:04 MST")
}

type orderData struct {
	SiteName      string
	OrderID       string
	FirstName     string
	CustomerName  string
	Email         string
	Phone         string
	ProductID     string
	ProductName   string
	Price         string
	PaymentMethod string
	Reference     string
	CompletedAt   string
}

type bookingData struct {
	SiteName  string
	Reference string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Company   string
	Service   string
	Budget    string
	Timeline  string
	Message   string
	CreatedAt string
	IPAddress string
	UserAgent string
}

func methodLabel(method string) string {
	switch method {
	case "card":
		return "Card"
	case "crypto":
		return "Cryptocurrency"
	default:
		return method
	}
}

// unescape undoes the escaping applied when bookings are stored; the templates
// escape again on output.
func unescape(value, def string) string {
	return fallback(html.UnescapeString(value), def)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

func londonLocation() *time.Location {
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		return time.UTC
	}
	return loc
}
