package notify

import (
	"context"
	"log"

	"github.com/google/uuid"
)

// Provider is the external messaging service. Free-form sends are only
// accepted by the provider inside an active session; templated sends use a
// pre-approved template with bound variables.
type Provider interface {
	SendFreeform(ctx context.Context, recipient, body string) (string, error)
	SendTemplate(ctx context.Context, recipient, templateID string, vars map[string]string) (string, error)
}

// LoggingProvider logs messages instead of sending them. Used when the
// messaging provider is not configured (development, tests).
type LoggingProvider struct{}

// SendFreeform logs the message body and returns a pseudo message ID.
func (p *LoggingProvider) SendFreeform(ctx context.Context, recipient, body string) (string, error) {
	log.Printf("--- Sending message (logged) ---")
	log.Printf("To: %s", recipient)
	log.Printf("Body: %s", body)
	log.Printf("--- End message ---")
	return "logged-" + uuid.NewString(), nil
}

// SendTemplate logs the template invocation and returns a pseudo message ID.
func (p *LoggingProvider) SendTemplate(ctx context.Context, recipient, templateID string, vars map[string]string) (string, error) {
	log.Printf("--- Sending template message (logged) ---")
	log.Printf("To: %s", recipient)
	log.Printf("Template: %s, Vars: %v", templateID, vars)
	log.Printf("--- End message ---")
	return "logged-" + uuid.NewString(), nil
}
