package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

const (
	TemplateOrderCompleted      = "order_completed"
	TemplateOrderAdmin          = "order_admin"
	TemplateBookingConfirmation = "booking_confirmation"
	TemplateBookingAdmin        = "booking_admin"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Render executes one of the built-in templates.
func Render(name string, data any) (string, error) {
	t := templates.Lookup(name + ".html")
	if t == nil {
		return "", fmt.Errorf("email template %q not found", name)
	}
	var body bytes.Buffer
	if err := t.Execute(&body, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return body.String(), nil
}
