// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetAPIToken() string
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// ERPConfig provides settings for the legacy ERP SOAP webservice.
type ERPConfig interface {
	GetERPEndpoint() string
	GetERPUsername() string
	GetERPPassword() string
	GetERPTimeout() time.Duration
	GetERPThrottleInterval() time.Duration
	GetERPJobRetries() int
	IsERPEnabled() bool
}

// CRMConfig provides settings for the CRM offer webservice.
type CRMConfig interface {
	GetCRMOfferEndpoint() string
	GetCRMVehicleEndpoint() string
	GetCRMUsername() string
	GetCRMPassword() string
	GetCRMTimeout() time.Duration
	GetGenericCustomerID() string
}

// NoShowConfig provides the no-show detection threshold.
type NoShowConfig interface {
	GetNoShowThreshold() time.Duration
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// WhatsAppConfig provides settings for WhatsApp template notifications.
type WhatsAppConfig interface {
	GetTwilioAccountSID() string
	GetTwilioAuthToken() string
	GetTwilioWhatsAppFrom() string
	GetTwilioTemplateCreated() string
	GetTwilioTemplateReminder() string
	GetTwilioTemplateCancelled() string
	GetDefaultPhoneRegion() string
	IsWhatsAppEnabled() bool
}

// ReminderConfig provides settings for appointment reminders.
type ReminderConfig interface {
	GetReminderLeadTime() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL string
	APIToken    string

	CORSAllowAll bool
	CORSOrigins  []string

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	ERPEnabled          bool
	ERPEndpoint         string
	ERPUsername         string
	ERPPassword         string
	ERPTimeout          time.Duration
	ERPThrottleInterval time.Duration
	ERPJobRetries       int

	CRMOfferEndpoint   string
	CRMVehicleEndpoint string
	CRMUsername        string
	CRMPassword        string
	CRMTimeout         time.Duration
	GenericCustomerID  string

	NoShowThreshold  time.Duration
	ReminderLeadTime time.Duration

	EmailEnabled     bool
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFromName    string
	EmailFromAddress string

	TwilioAccountSID        string
	TwilioAuthToken         string
	TwilioWhatsAppFrom      string
	TwilioTemplateCreated   string
	TwilioTemplateReminder  string
	TwilioTemplateCancelled string
	DefaultPhoneRegion      string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetAPIToken() string      { return c.APIToken }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// ERPConfig implementation
func (c *Config) GetERPEndpoint() string                { return c.ERPEndpoint }
func (c *Config) GetERPUsername() string                { return c.ERPUsername }
func (c *Config) GetERPPassword() string                { return c.ERPPassword }
func (c *Config) GetERPTimeout() time.Duration          { return c.ERPTimeout }
func (c *Config) GetERPThrottleInterval() time.Duration { return c.ERPThrottleInterval }
func (c *Config) GetERPJobRetries() int                 { return c.ERPJobRetries }
func (c *Config) IsERPEnabled() bool                    { return c.ERPEnabled && c.ERPEndpoint != "" }

// CRMConfig implementation
func (c *Config) GetCRMOfferEndpoint() string   { return c.CRMOfferEndpoint }
func (c *Config) GetCRMVehicleEndpoint() string { return c.CRMVehicleEndpoint }
func (c *Config) GetCRMUsername() string        { return c.CRMUsername }
func (c *Config) GetCRMPassword() string        { return c.CRMPassword }
func (c *Config) GetCRMTimeout() time.Duration  { return c.CRMTimeout }
func (c *Config) GetGenericCustomerID() string  { return c.GenericCustomerID }

// NoShowConfig implementation
func (c *Config) GetNoShowThreshold() time.Duration { return c.NoShowThreshold }

// ReminderConfig implementation
func (c *Config) GetReminderLeadTime() time.Duration { return c.ReminderLeadTime }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// WhatsAppConfig implementation
func (c *Config) GetTwilioAccountSID() string        { return c.TwilioAccountSID }
func (c *Config) GetTwilioAuthToken() string         { return c.TwilioAuthToken }
func (c *Config) GetTwilioWhatsAppFrom() string      { return c.TwilioWhatsAppFrom }
func (c *Config) GetTwilioTemplateCreated() string   { return c.TwilioTemplateCreated }
func (c *Config) GetTwilioTemplateReminder() string  { return c.TwilioTemplateReminder }
func (c *Config) GetTwilioTemplateCancelled() string { return c.TwilioTemplateCancelled }
func (c *Config) GetDefaultPhoneRegion() string      { return c.DefaultPhoneRegion }
func (c *Config) IsWhatsAppEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioWhatsAppFrom != ""
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")
	smtpHost := getEnv("SMTP_HOST", "")

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		APIToken:    getEnv("API_TOKEN", ""),

		CORSAllowAll: corsAllowAll,
		CORSOrigins:  corsOrigins,

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),

		ERPEnabled:          strings.EqualFold(getEnv("ERP_ENABLED", "true"), "true"),
		ERPEndpoint:         getEnv("ERP_ENDPOINT", ""),
		ERPUsername:         getEnv("ERP_USERNAME", ""),
		ERPPassword:         getEnv("ERP_PASSWORD", ""),
		ERPTimeout:          mustDuration(getEnv("ERP_TIMEOUT", "10s")),
		ERPThrottleInterval: mustDuration(getEnv("ERP_THROTTLE_INTERVAL", "100ms")),
		ERPJobRetries:       mustInt(getEnv("ERP_JOB_RETRIES", "3")),

		CRMOfferEndpoint:   getEnv("CRM_OFFER_ENDPOINT", ""),
		CRMVehicleEndpoint: getEnv("CRM_VEHICLE_ENDPOINT", ""),
		CRMUsername:        getEnv("CRM_USERNAME", ""),
		CRMPassword:        getEnv("CRM_PASSWORD", ""),
		CRMTimeout:         mustDuration(getEnv("CRM_TIMEOUT", "30s")),
		GenericCustomerID:  getEnv("CRM_GENERIC_CUSTOMER_ID", "1200166011"),

		NoShowThreshold:  mustDuration(getEnv("NO_SHOW_THRESHOLD", "10h")),
		ReminderLeadTime: mustDuration(getEnv("REMINDER_LEAD_TIME", "48h")),

		EmailEnabled:     emailEnabled && smtpHost != "",
		SMTPHost:         smtpHost,
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Taller"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),

		TwilioAccountSID:        getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:         getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppFrom:      getEnv("TWILIO_WHATSAPP_FROM", ""),
		TwilioTemplateCreated:   getEnv("TWILIO_TEMPLATE_CREATED", ""),
		TwilioTemplateReminder:  getEnv("TWILIO_TEMPLATE_REMINDER", ""),
		TwilioTemplateCancelled: getEnv("TWILIO_TEMPLATE_CANCELLED", ""),
		DefaultPhoneRegion:      getEnv("DEFAULT_PHONE_REGION", "PE"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.NoShowThreshold <= 0 {
		return nil, fmt.Errorf("NO_SHOW_THRESHOLD must be a positive duration")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
