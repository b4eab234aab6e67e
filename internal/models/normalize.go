package models

import "strings"

// thumbnailSuffix is appended to the image URL to request the resized
// rendition served by the image CDN.
const thumbnailSuffix = "width=320"

// Normalize enforces the derived-image invariant on e in place:
// ThumbnailURL is defined iff ImageURL is non-empty, and is always
// recomputed from ImageURL rather than trusted from input.
func Normalize(e *JournalEntry) {
	if e.ImageURL == "" {
		e.ThumbnailURL = ""
		return
	}
	e.ThumbnailURL = ThumbnailFor(e.ImageURL)
}

// ThumbnailFor derives the thumbnail rendition URL for an image URL.
func ThumbnailFor(imageURL string) string {
	if imageURL == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(imageURL, "?") {
		sep = "&"
	}
	return imageURL + sep + thumbnailSuffix
}
