package main

import (
	"github.com/gabriel-vasile/mimetype"

	"reelforge/internal/asset"
)

// declaredContentType picks the type sent with an upload. The file's sniffed
// type wins when it agrees with the category the name implies; otherwise the
// canonical type for the extension is declared.
func declaredContentType(name, path string) string {
	category, ok := asset.CategoryForName(name)
	if !ok {
		return ""
	}
	if detected, err := mimetype.DetectFile(path); err == nil && detected != nil {
		if asset.PrimaryType(detected.String()) == string(category) {
			return detected.String()
		}
	}
	return asset.ContentTypeForName(name)
}
