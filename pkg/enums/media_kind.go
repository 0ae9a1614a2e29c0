package enums

import "fmt"

// MediaKind separates locally stored images from object-storage videos.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

var validMediaKinds = []MediaKind{
	MediaKindImage,
	MediaKindVideo,
}

// String returns the literal string for the kind.
func (k MediaKind) String() string {
	return string(k)
}

// IsValid reports whether the kind is supported.
func (k MediaKind) IsValid() bool {
	for _, candidate := range validMediaKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseMediaKind converts raw input into MediaKind.
func ParseMediaKind(value string) (MediaKind, error) {
	for _, candidate := range validMediaKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid media kind %q", value)
}
