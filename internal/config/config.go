package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"csbridge/internal/constants"
	"csbridge/internal/models"
	"csbridge/internal/security"

	"gopkg.in/yaml.v3"
)

var (
	ErrMissingWhatsAppURL = models.ConfigError{Message: "missing WhatsApp API URL"}
	ErrMissingDBPath      = models.ConfigError{Message: "missing database path"}
	ErrMissingUploadsDir  = models.ConfigError{Message: "missing uploads directory"}
	ErrInvalidEventMode   = models.ConfigError{Message: "event_mode must be \"websocket\" or \"webhook\""}
)

// LoadConfig reads a JSON or YAML (.yaml/.yml) configuration file, fills
// defaults, applies environment overrides and validates the result.
func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	config, err := Parse(file, filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(config)

	if err := validate(config); err != nil {
		return nil, err
	}
	if err := validateSecurity(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Parse decodes raw configuration bytes. ext selects the format; anything other
// than .yaml or .yml is treated as JSON.
func Parse(data []byte, ext string) (*models.Config, error) {
	var config models.Config
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parse json config: %w", err)
		}
	}
	ApplyDefaults(&config)
	return &config, nil
}

// ApplyDefaults fills every unset tunable with its default.
func ApplyDefaults(c *models.Config) {
	if c.Server.Port == 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}
	if c.Server.RateLimitPerSecond <= 0 {
		c.Server.RateLimitPerSecond = constants.DefaultRateLimitPerSecond
	}
	if c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = constants.DefaultRateLimitBurst
	}

	if c.WhatsApp.APIBaseURL == "" {
		c.WhatsApp.APIBaseURL = constants.DefaultWhatsAppURL
	}
	if c.WhatsApp.SessionName == "" {
		c.WhatsApp.SessionName = constants.DefaultSessionName
	}
	if c.WhatsApp.TimeoutMs <= 0 {
		c.WhatsApp.TimeoutMs = constants.DefaultHTTPTimeoutSec * 1000
	}
	if c.WhatsApp.EventMode == "" {
		c.WhatsApp.EventMode = constants.EventModeWebsocket
	}

	if c.Generative.APIBaseURL == "" {
		c.Generative.APIBaseURL = constants.DefaultGenerativeBaseURL
	}
	if c.Generative.Model == "" {
		c.Generative.Model = constants.DefaultGenerativeModel
	}
	if c.Generative.TimeoutSec <= 0 {
		c.Generative.TimeoutSec = constants.DefaultGenerativeTimeoutSec
	}
	if c.Generative.Persona == "" {
		c.Generative.Persona = constants.DefaultPersona
	}
	if c.Generative.FallbackText == "" {
		c.Generative.FallbackText = constants.DefaultFallbackText
	}
	if c.Generative.BreakerMaxFailures <= 0 {
		c.Generative.BreakerMaxFailures = constants.DefaultBreakerMaxFailures
	}
	if c.Generative.BreakerResetSec <= 0 {
		c.Generative.BreakerResetSec = constants.DefaultBreakerResetSec
	}

	if c.Database.Path == "" {
		c.Database.Path = constants.DefaultDatabasePath
	}
	if c.Uploads.Dir == "" {
		c.Uploads.Dir = constants.DefaultUploadsDir
	}
	if c.Uploads.MaxUploadMB <= 0 {
		c.Uploads.MaxUploadMB = constants.DefaultMaxUploadMB
	}

	if c.Gate.ExclusionsFile == "" {
		c.Gate.ExclusionsFile = constants.DefaultExclusionsFile
	}
	if c.Gate.Keywords == nil {
		c.Gate.Keywords = append([]string(nil), constants.DefaultKeywords...)
	}
	if c.Gate.MaxTextLength <= 0 {
		c.Gate.MaxTextLength = constants.DefaultMaxTextLength
	}

	if c.Timezone.Name == "" {
		c.Timezone.Name = constants.DefaultTimezoneName
		if c.Timezone.OffsetHours == 0 {
			c.Timezone.OffsetHours = constants.DefaultTimezoneOffsetHours
		}
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultBackoffInitialMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultBackoffMaxSec * 1000
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "csbridge"
	}
	if c.Tracing.Environment == "" {
		c.Tracing.Environment = "development"
	}
	if c.Tracing.SampleRate <= 0 {
		c.Tracing.SampleRate = 1.0
	}

	if c.Events.Exchange == "" {
		c.Events.Exchange = "csbridge.events"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func validate(c *models.Config) error {
	if c.WhatsApp.APIBaseURL == "" {
		return ErrMissingWhatsAppURL
	}
	if u, err := url.Parse(c.WhatsApp.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return models.ConfigError{Message: fmt.Sprintf("invalid WhatsApp API URL: %q", c.WhatsApp.APIBaseURL)}
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.Uploads.Dir == "" {
		return ErrMissingUploadsDir
	}
	if c.WhatsApp.EventMode != constants.EventModeWebsocket && c.WhatsApp.EventMode != constants.EventModeWebhook {
		return ErrInvalidEventMode
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return models.ConfigError{Message: fmt.Sprintf("invalid server port: %d", c.Server.Port)}
	}
	if c.Timezone.OffsetHours < -12 || c.Timezone.OffsetHours > 14 {
		return models.ConfigError{Message: fmt.Sprintf("invalid timezone offset: %d", c.Timezone.OffsetHours)}
	}
	if c.Tracing.SampleRate > 1 {
		return models.ConfigError{Message: "tracing sample_rate must be between 0 and 1"}
	}
	if c.Retry.MaxBackoffMs < c.Retry.InitialBackoffMs {
		return models.ConfigError{Message: "retry maxBackoffMs must not be lower than initialBackoffMs"}
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if v := os.Getenv("WHATSAPP_API_URL"); v != "" {
		c.WhatsApp.APIBaseURL = v
	}
	// SECURITY: credentials are only ever read from the environment
	c.WhatsApp.APIKey = os.Getenv("WHATSAPP_API_KEY")
	c.Generative.APIKey = os.Getenv("GEMINI_API_KEY")

	if v := os.Getenv("CSBRIDGE_WEBHOOK_SECRET"); v != "" {
		c.WhatsApp.WebhookSecret = v
	}
	if v := os.Getenv("CSBRIDGE_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("CSBRIDGE_UPLOADS_DIR"); v != "" {
		c.Uploads.Dir = v
	}
	if v := os.Getenv("CSBRIDGE_AMQP_URL"); v != "" {
		c.Events.AMQPURL = v
	}
}

// validateSecurity performs security-specific validation
func validateSecurity(c *models.Config) error {
	isProduction := os.Getenv("CSBRIDGE_ENV") == "production"

	if isProduction {
		if c.WhatsApp.EventMode == constants.EventModeWebhook {
			if c.WhatsApp.WebhookSecret == "" {
				return models.ConfigError{Message: "webhook secret is required in production (set CSBRIDGE_WEBHOOK_SECRET environment variable)"}
			}
			if len(c.WhatsApp.WebhookSecret) < 32 {
				return models.ConfigError{Message: "webhook secret must be at least 32 characters long"}
			}
		}
		if c.Server.DashboardPasswordHash == "" {
			return models.ConfigError{Message: "dashboard_password_hash is required in production"}
		}
		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
		}
	} else {
		if c.WhatsApp.EventMode == constants.EventModeWebhook && c.WhatsApp.WebhookSecret == "" {
			fmt.Fprintf(os.Stderr, "WARNING: webhook secret not set. Set CSBRIDGE_WEBHOOK_SECRET environment variable for security.\n")
		}
		if c.Server.DashboardPasswordHash == "" {
			fmt.Fprintf(os.Stderr, "WARNING: dashboard_password_hash not set, the dashboard API is unauthenticated.\n")
		}
	}

	return nil
}
