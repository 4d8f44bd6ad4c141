// Package whatsapp sends templated WhatsApp notifications through the
// Twilio messaging API.
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"taller_portal_backend/platform/config"
	"taller_portal_backend/platform/logger"
	"taller_portal_backend/platform/phone"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// Client sends pre-approved WhatsApp template messages. The portal owns only
// the positional variables; template bodies live in Twilio.
type Client struct {
	accountSID        string
	authToken         string
	from              string
	templateCreated   string
	templateReminder  string
	templateCancelled string
	defaultRegion     string
	http              *http.Client
	log               *logger.Logger
	baseURL           string
}

// NewClient creates a WhatsApp client from configuration. Returns nil when
// WhatsApp sending is disabled or not configured.
func NewClient(cfg config.WhatsAppConfig, log *logger.Logger) *Client {
	if !cfg.IsWhatsAppEnabled() || cfg.GetTwilioAccountSID() == "" {
		return nil
	}

	return &Client{
		accountSID:        cfg.GetTwilioAccountSID(),
		authToken:         cfg.GetTwilioAuthToken(),
		from:              cfg.GetTwilioWhatsAppFrom(),
		templateCreated:   cfg.GetTwilioTemplateCreated(),
		templateReminder:  cfg.GetTwilioTemplateReminder(),
		templateCancelled: cfg.GetTwilioTemplateCancelled(),
		defaultRegion:     cfg.GetDefaultPhoneRegion(),
		http:              &http.Client{Timeout: 10 * time.Second},
		log:               log,
		baseURL:           twilioAPIBase,
	}
}

// SendAppointmentCreated sends the booking confirmation template.
// Variables: customer name, date, time, vehicle model, plate, center name,
// service summary, comment.
func (c *Client) SendAppointmentCreated(ctx context.Context, toPhone string, variables []string) error {
	return c.sendTemplate(ctx, toPhone, c.templateCreated, variables)
}

// SendAppointmentReminder sends the reminder template.
func (c *Client) SendAppointmentReminder(ctx context.Context, toPhone string, variables []string) error {
	return c.sendTemplate(ctx, toPhone, c.templateReminder, variables)
}

// SendAppointmentCancelled sends the cancellation template.
func (c *Client) SendAppointmentCancelled(ctx context.Context, toPhone string, variables []string) error {
	return c.sendTemplate(ctx, toPhone, c.templateCancelled, variables)
}

func (c *Client) sendTemplate(ctx context.Context, toPhone, templateSID string, variables []string) error {
	if c == nil {
		return nil
	}
	if templateSID == "" {
		return fmt.Errorf("whatsapp template not configured")
	}

	normalized := phone.NormalizeE164(toPhone, c.defaultRegion)
	if !strings.HasPrefix(normalized, "+") {
		return fmt.Errorf("whatsapp recipient %q could not be normalized", toPhone)
	}

	contentVariables, err := positionalVariables(variables)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("To", "whatsapp:"+normalized)
	form.Set("From", "whatsapp:"+c.from)
	form.Set("ContentSid", templateSID)
	form.Set("ContentVariables", contentVariables)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("twilio returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("whatsapp template sent", "to", normalized, "template", templateSID)
	return nil
}

// positionalVariables renders the Twilio ContentVariables JSON: positional
// keys "1".."n" mapped to the template values.
func positionalVariables(variables []string) (string, error) {
	vars := make(map[string]string, len(variables))
	for i, v := range variables {
		vars[strconv.Itoa(i+1)] = v
	}
	data, err := json.Marshal(vars)
	if err != nil {
		return "", fmt.Errorf("marshal whatsapp variables: %w", err)
	}
	return string(data), nil
}
