package asset

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// SniffLength is the number of leading bytes ResolveContentType inspects.
const SniffLength = 3072

// ResolveContentType returns the declared content type unless it is missing or
// the generic octet-stream, in which case the type is detected from head. A
// declared specific type is never overridden so mismatches stay visible to the
// validator.
func ResolveContentType(declared string, head []byte) string {
	trimmed := strings.TrimSpace(declared)
	if trimmed != "" && PrimaryType(trimmed) != "" && !isGeneric(trimmed) {
		return trimmed
	}
	if len(head) == 0 {
		return trimmed
	}
	detected := mimetype.Detect(head)
	if detected == nil || detected.Is("application/octet-stream") {
		return trimmed
	}
	return detected.String()
}

func isGeneric(contentType string) bool {
	mediaType, _, _ := strings.Cut(strings.ToLower(contentType), ";")
	switch strings.TrimSpace(mediaType) {
	case "application/octet-stream", "binary/octet-stream":
		return true
	default:
		return false
	}
}
