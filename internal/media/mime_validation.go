package media

import (
	"mime"
	"net/http"
	"strings"

	"github.com/coursehub/coursehub-backend/pkg/enums"
)

var mimeTypesByKind = map[enums.MediaKind][]string{
	enums.MediaKindImage: {"image/jpeg", "image/png", "image/webp", "image/gif"},
	enums.MediaKindVideo: {"video/mp4", "video/webm", "video/quicktime"},
}

var extensionsByMime = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/gif":       ".gif",
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"video/quicktime": ".mov",
}

// kindForMime returns the media kind accepting contentType, if any.
func kindForMime(contentType string) (enums.MediaKind, bool) {
	normalized := normalizeMime(contentType)
	for kind, allowed := range mimeTypesByKind {
		for _, candidate := range allowed {
			if candidate == normalized {
				return kind, true
			}
		}
	}
	return "", false
}

// sniffImage reports the detected type of an image header. Declared types are
// not trusted for files written to the public directory.
func sniffImage(head []byte) (string, bool) {
	detected := normalizeMime(http.DetectContentType(head))
	kind, ok := kindForMime(detected)
	return detected, ok && kind == enums.MediaKindImage
}

func normalizeMime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	parsed, _, err := mime.ParseMediaType(value)
	if err != nil {
		return strings.ToLower(value)
	}
	return strings.ToLower(parsed)
}
