// Package email sends transactional appointment emails over SMTP.
package email

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"taller_portal_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

// Attachment represents a file attachment for an email.
type Attachment struct {
	FileName    string
	ContentType string
	Content     []byte
}

// AppointmentEmailData carries the fields the appointment templates render.
type AppointmentEmailData struct {
	CustomerName      string
	AppointmentNumber string
	Date              string
	StartTime         string
	CenterName        string
	VehiclePlate      string
	VehicleModel      string
}

// Sender delivers appointment emails.
type Sender interface {
	SendAppointmentCreated(ctx context.Context, toEmail string, data AppointmentEmailData, attachments ...Attachment) error
	SendAppointmentReminder(ctx context.Context, toEmail string, data AppointmentEmailData) error
	SendAppointmentCancelled(ctx context.Context, toEmail string, data AppointmentEmailData) error
}

// SMTPSender implements Sender using a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a sender from the email configuration. Returns nil
// when email sending is disabled.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	if !cfg.GetEmailEnabled() || cfg.GetSMTPHost() == "" {
		return nil
	}
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string, attachments ...Attachment) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	for _, att := range attachments {
		msg.AttachReader(att.FileName, bytes.NewReader(att.Content))
	}

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) SendAppointmentCreated(ctx context.Context, toEmail string, data AppointmentEmailData, attachments ...Attachment) error {
	content, err := renderEmailTemplate("appointment_created.html", data)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf(subjectAppointmentCreatedFmt, data.AppointmentNumber)
	return s.send(ctx, toEmail, subject, content, attachments...)
}

func (s *SMTPSender) SendAppointmentReminder(ctx context.Context, toEmail string, data AppointmentEmailData) error {
	content, err := renderEmailTemplate("appointment_reminder.html", data)
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectAppointmentReminder, content)
}

func (s *SMTPSender) SendAppointmentCancelled(ctx context.Context, toEmail string, data AppointmentEmailData) error {
	content, err := renderEmailTemplate("appointment_cancelled.html", data)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf(subjectAppointmentCancelledFmt, data.AppointmentNumber)
	return s.send(ctx, toEmail, subject, content)
}

// NoopSender discards every email. Used when email delivery is disabled.
type NoopSender struct{}

func (NoopSender) SendAppointmentCreated(context.Context, string, AppointmentEmailData, ...Attachment) error {
	return nil
}
func (NoopSender) SendAppointmentReminder(context.Context, string, AppointmentEmailData) error {
	return nil
}
func (NoopSender) SendAppointmentCancelled(context.Context, string, AppointmentEmailData) error {
	return nil
}

var _ Sender = (*SMTPSender)(nil)
var _ Sender = NoopSender{}
