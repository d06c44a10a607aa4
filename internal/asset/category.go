package asset

import (
	"mime"
	"path/filepath"
	"strings"
)

// Category is the primary media kind of an asset.
type Category string

const (
	CategoryImage Category = "image"
	CategoryAudio Category = "audio"
	CategoryVideo Category = "video"
)

var extensionCategories = map[string]Category{
	"jpg":  CategoryImage,
	"jpeg": CategoryImage,
	"png":  CategoryImage,
	"gif":  CategoryImage,
	"mp3":  CategoryAudio,
	"wav":  CategoryAudio,
	"m4a":  CategoryAudio,
	"mp4":  CategoryVideo,
	"mov":  CategoryVideo,
}

var extensionContentTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"m4a":  "audio/mp4",
	"mp4":  "video/mp4",
	"mov":  "video/quicktime",
}

// ContentTypeForName returns the canonical MIME type for an allowed
// extension, or "" when the extension is not accepted.
func ContentTypeForName(name string) string {
	return extensionContentTypes[Extension(name)]
}

// Extension returns the lowercase extension of name without the leading dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(strings.TrimSpace(name)), "."))
}

// CategoryForName derives the category implied by the asset name's extension.
// The boolean is false when the extension is not on the allow-list.
func CategoryForName(name string) (Category, bool) {
	category, ok := extensionCategories[Extension(name)]
	return category, ok
}

// AllowedExtensions lists the accepted extensions for a category.
func AllowedExtensions(category Category) []string {
	var out []string
	for _, ext := range []string{"jpg", "jpeg", "png", "gif", "mp3", "wav", "m4a", "mp4", "mov"} {
		if extensionCategories[ext] == category {
			out = append(out, ext)
		}
	}
	return out
}

// PrimaryType returns the lowercase primary type of a MIME content type, e.g.
// "image" for "image/png; charset=binary". Unparseable values yield "".
func PrimaryType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	primary, _, _ := strings.Cut(mediaType, "/")
	return strings.ToLower(primary)
}
