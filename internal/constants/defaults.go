package constants

import "time"

// Default retry configuration values
const (
	DefaultRetryBackoffMs = 1000
	DefaultMaxBackoffMs   = 60000
	DefaultMaxAttempts    = 5
	DefaultServerPort     = 8082
)

// Gate defaults
const (
	DefaultMaxTextLength  = 200
	DefaultExclusionsFile = "excluded.json"
)

// Timestamp defaults. The reference zone is a fixed offset with no DST.
const (
	DefaultTimezoneName        = "WIB"
	DefaultTimezoneOffsetHours = 7
	StorageTimeLayout          = "2006-01-02 15:04:05"
	DisplayTimeLayout          = "02/01/2006 15.04.05"
)

// Generative backend defaults
const (
	DefaultGenerativeBaseURL    = "https://generativelanguage.googleapis.com"
	DefaultGenerativeModel      = "gemini-2.5-flash"
	DefaultGenerativeTimeoutSec = 12
	DefaultBreakerMaxFailures   = 5
	DefaultBreakerResetSec      = 60
	DefaultFallbackText         = "Terima kasih, kami akan segera merespons."
	DefaultPersona              = "Balas 1 paragraf pendek, sopan, formal, ringkas, dan jelas. Jangan timbulkan pertanyaan untuk konsumen, jika ada pertanyaan dan masih belum selesai jawab tolong ditunggu updatenya."
)

// Storage defaults
const (
	DefaultDatabasePath = "csbridge.db"
	DefaultUploadsDir   = "uploads"
	DefaultMaxUploadMB  = 25
)

// WhatsApp transport defaults
const (
	DefaultSessionName = "default"
	DefaultWhatsAppURL = "http://localhost:3000"
	EventModeWebsocket = "websocket"
	EventModeWebhook   = "webhook"
)

// Default timeout values
const (
	DefaultHTTPTimeoutSec          = 30
	DefaultDatabaseRetryAttempts   = 3
	DefaultGracefulShutdownSec     = 30
	DefaultBackoffInitialMs        = 500
	DefaultBackoffMaxSec           = 5
	DefaultServerReadTimeoutSec    = 15
	DefaultServerWriteTimeoutSec   = 30
	DefaultServerIdleTimeoutSec    = 60
	DefaultSessionStatusTimeoutSec = 5
	DefaultConfigWatchInterval     = 2 * time.Second
)

// Dashboard rate limit defaults
const (
	DefaultRateLimitPerSecond = 5.0
	DefaultRateLimitBurst     = 20
)

// Privacy settings
const (
	DefaultPhoneMaskLength = 4
	DefaultMessageIDLength = 8
)

// DefaultKeywords is the keyword list shipped with the example configuration.
var DefaultKeywords = []string{
	"kode", "tujuan", "cek", "tolong", "up", "update", "bantu", "sore", "siang", "pagi", "tim",
	"gimana", "gmn", "lama", "hc", "marah", "validasi", "refund", "batalkan", "batal", "diproses",
	"proses", "Menunggu Jawaban", "trx", "Mhn tunggu trx sblmnya selesai", "bagaimana",
}
