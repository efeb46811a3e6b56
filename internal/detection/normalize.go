package detection

import (
	"strings"

	"golang.org/x/text/width"
)

// Fold maps full-width ASCII (Ａ, １, ！) to its narrow form and trims space.
func Fold(text string) string {
	return strings.TrimSpace(width.Fold.String(text))
}

// Normalize is Fold plus lowercasing; dictionary matching runs on this form.
func Normalize(text string) string {
	return strings.ToLower(Fold(text))
}
