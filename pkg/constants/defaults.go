package constants

// Default timeout values used by client packages
const (
	DefaultHTTPTimeoutSec = 30
)

// Size limits applied to response bodies read by client packages
const (
	BytesPerMegabyte      = 1024 * 1024
	MaxErrorBodyBytes     = 4096
	MaxMediaDownloadBytes = 64 * BytesPerMegabyte
)
