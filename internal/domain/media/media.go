// Package media classifies attachment media types.
package media

import (
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Class is the rendering class of an attachment.
type Class string

const (
	// Image is a still image attachment.
	Image Class = "image"
	// Video is a video attachment.
	Video Class = "video"
	// Unsupported is anything the application cannot render.
	Unsupported Class = "unsupported"
)

var videoExts = map[string]bool{
	".mp4": true, ".mov": true, ".webm": true, ".avi": true,
	".mkv": true, ".m4v": true, ".3gp": true,
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".heic": true, ".heif": true, ".bmp": true,
}

// Classify decides the rendering class of an attachment. The declared MIME
// type wins when present; the URL extension is a fallback for legacy
// attachments stored without metadata. Ambiguous inputs classify as
// Unsupported rather than guessing.
func Classify(mimeType, url string) Class {
	if mt := strings.ToLower(strings.TrimSpace(mimeType)); mt != "" {
		switch {
		case strings.HasPrefix(mt, "video/"):
			return Video
		case strings.HasPrefix(mt, "image/"):
			return Image
		default:
			return Unsupported
		}
	}

	ext := strings.ToLower(path.Ext(stripQuery(url)))
	switch {
	case videoExts[ext]:
		return Video
	case imageExts[ext]:
		return Image
	default:
		return Unsupported
	}
}

// Detect sniffs the MIME type from content. Used when a client declares no
// MIME type (or the generic application/octet-stream) for an uploaded file.
func Detect(data []byte) string {
	return mimetype.Detect(data).String()
}

// stripQuery drops a query string so presigned URL parameters do not confuse
// the extension check.
func stripQuery(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}
