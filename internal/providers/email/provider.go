package email

import "context"

// Message is a single HTML email.
type Message struct {
	To      []string
	ReplyTo string
	Subject string
	HTML    string
}

type Provider interface {
	Send(ctx context.Context, msg Message) error
}

// NoOpProvider drops every message. Used when SMTP is not configured.
type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, msg Message) error {
	return nil
}
