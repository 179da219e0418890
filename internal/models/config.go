package models

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	WhatsApp   WhatsAppConfig   `json:"whatsapp" yaml:"whatsapp"`
	Generative GenerativeConfig `json:"generative" yaml:"generative"`
	Database   DatabaseConfig   `json:"database" yaml:"database"`
	Uploads    UploadsConfig    `json:"uploads" yaml:"uploads"`
	Gate       GateConfig       `json:"gate" yaml:"gate"`
	Timezone   TimezoneConfig   `json:"timezone" yaml:"timezone"`
	Retry      RetryConfig      `json:"retry" yaml:"retry"`
	Tracing    TracingConfig    `json:"tracing" yaml:"tracing"`
	Events     EventsConfig     `json:"events" yaml:"events"`
	LogLevel   string           `json:"log_level" yaml:"log_level"`
}

// ServerConfig holds dashboard HTTP server settings
type ServerConfig struct {
	Port                  int     `json:"port" yaml:"port"`
	ReadTimeoutSec        int     `json:"readTimeoutSec" yaml:"readTimeoutSec"`
	WriteTimeoutSec       int     `json:"writeTimeoutSec" yaml:"writeTimeoutSec"`
	IdleTimeoutSec        int     `json:"idleTimeoutSec" yaml:"idleTimeoutSec"`
	DashboardUser         string  `json:"dashboard_user" yaml:"dashboard_user"`
	DashboardPasswordHash string  `json:"dashboard_password_hash" yaml:"dashboard_password_hash"` // bcrypt
	RateLimitPerSecond    float64 `json:"rateLimitPerSecond" yaml:"rateLimitPerSecond"`
	RateLimitBurst        int     `json:"rateLimitBurst" yaml:"rateLimitBurst"`
	TrustProxy            bool    `json:"trustProxy" yaml:"trustProxy"`
}

// WhatsAppConfig holds WAHA transport settings
type WhatsAppConfig struct {
	APIBaseURL    string `json:"api_base_url" yaml:"api_base_url"`
	APIKey        string `json:"-" yaml:"-"`
	SessionName   string `json:"session_name" yaml:"session_name"`
	TimeoutMs     int    `json:"timeout_ms" yaml:"timeout_ms"`
	WebhookSecret string `json:"webhook_secret" yaml:"webhook_secret"`
	// EventMode selects how inbound events arrive: "websocket" or "webhook".
	EventMode string `json:"event_mode" yaml:"event_mode"`
}

// GenerativeConfig holds generative-text backend settings
type GenerativeConfig struct {
	APIBaseURL         string `json:"api_base_url" yaml:"api_base_url"`
	Model              string `json:"model" yaml:"model"`
	APIKey             string `json:"-" yaml:"-"`
	TimeoutSec         int    `json:"timeoutSec" yaml:"timeoutSec"`
	Persona            string `json:"persona" yaml:"persona"`
	BusinessName       string `json:"business_name" yaml:"business_name"`
	FallbackText       string `json:"fallback_text" yaml:"fallback_text"`
	BreakerMaxFailures int    `json:"breakerMaxFailures" yaml:"breakerMaxFailures"`
	BreakerResetSec    int    `json:"breakerResetSec" yaml:"breakerResetSec"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path string `json:"path" yaml:"path"`
}

// UploadsConfig holds attachment storage settings
type UploadsConfig struct {
	Dir         string `json:"dir" yaml:"dir"`
	MaxUploadMB int    `json:"maxUploadMB" yaml:"maxUploadMB"`
}

// GateConfig holds inbound filtering settings
type GateConfig struct {
	ExclusionsFile string   `json:"exclusions_file" yaml:"exclusions_file"`
	Keywords       []string `json:"keywords" yaml:"keywords"`
	MaxTextLength  int      `json:"maxTextLength" yaml:"maxTextLength"`
}

// TimezoneConfig names the fixed reference offset used for timestamps
type TimezoneConfig struct {
	Name        string `json:"name" yaml:"name"`
	OffsetHours int    `json:"offsetHours" yaml:"offsetHours"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs" yaml:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs" yaml:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts" yaml:"maxAttempts"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled      bool    `json:"enabled" yaml:"enabled"`
	ServiceName  string  `json:"service_name" yaml:"service_name"`
	Environment  string  `json:"environment" yaml:"environment"`
	OTLPEndpoint string  `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	SampleRate   float64 `json:"sample_rate" yaml:"sample_rate"`
	UseStdout    bool    `json:"use_stdout" yaml:"use_stdout"`
}

// EventsConfig holds the optional AMQP event publisher settings
type EventsConfig struct {
	AMQPURL  string `json:"amqp_url" yaml:"amqp_url"`
	Exchange string `json:"exchange" yaml:"exchange"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
