package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"time"

	"fieldquote/backend/internal/config"
)

// whatsAppProvider implements Provider against a WhatsApp Cloud-style
// messages endpoint.
type whatsAppProvider struct {
	cfg        *config.Config
	httpClient *http.Client
}

// NewWhatsAppProvider creates the HTTP messaging provider. Falls back to a
// LoggingProvider when no API token is configured, so development setups
// never need provider credentials.
func NewWhatsAppProvider(cfg *config.Config) Provider {
	if cfg.MessagingAPIToken == "" {
		log.Println("Messaging API token not configured, using logging provider.")
		return &LoggingProvider{}
	}
	return &whatsAppProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendFreeform sends a plain text message. Only deliverable inside an active
// session; the dispatcher guarantees that before calling.
func (p *whatsAppProvider) SendFreeform(ctx context.Context, recipient, body string) (string, error) {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                recipient,
		"type":              "text",
		"text":              map[string]string{"body": body},
	}
	return p.post(ctx, payload)
}

// SendTemplate sends a pre-approved template with positional body parameters.
// Variables are bound in stable (sorted) name order.
func (p *whatsAppProvider) SendTemplate(ctx context.Context, recipient, templateID string, vars map[string]string) (string, error) {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]map[string]string, 0, len(names))
	for _, name := range names {
		params = append(params, map[string]string{"type": "text", "text": vars[name]})
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                recipient,
		"type":              "template",
		"template": map[string]interface{}{
			"name":     templateID,
			"language": map[string]string{"code": "en"},
			"components": []map[string]interface{}{
				{"type": "body", "parameters": params},
			},
		},
	}
	return p.post(ctx, payload)
}

func (p *whatsAppProvider) post(ctx context.Context, payload interface{}) (string, error) {
	url := fmt.Sprintf("%s/%s/messages", p.cfg.MessagingAPIBaseURL, p.cfg.MessagingPhoneID)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode message payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.MessagingAPIToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		// Network errors and timeouts are transient.
		return "", Transient(fmt.Errorf("provider request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Transient(fmt.Errorf("failed to read provider response: %w", err))
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return "", Transient(fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body)))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("provider rejected message with status %d: %s", resp.StatusCode, string(body))
	}

	var parsed sendResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse provider response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("provider error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if len(parsed.Messages) == 0 {
		return "", fmt.Errorf("provider response contained no message ID")
	}
	return parsed.Messages[0].ID, nil
}
