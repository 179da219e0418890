package constants

// MimeTypes maps file extensions to the MIME types the bridge recognizes
// when an operator sends a file without an explicit type.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".pdf":  "application/pdf",
}

// DefaultMimeType is the fallback MIME type for unknown file extensions
const DefaultMimeType = "application/octet-stream"

// MediaExtensions maps inbound media MIME types to the extension used when
// saving them under the uploads root.
var MediaExtensions = map[string]string{
	"image/jpeg":      "jpg",
	"image/jpg":       "jpg",
	"image/png":       "png",
	"image/webp":      "webp",
	"application/pdf": "pdf",
}

// DefaultMediaExtension is used for inbound media of any other type.
const DefaultMediaExtension = "bin"
