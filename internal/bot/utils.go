package bot

import (
	"slices"
	"strings"
)

// NormalizeCommand folds a message for command comparison: surrounding
// whitespace is dropped, inner runs collapse to one space, and case is folded.
func NormalizeCommand(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// MatchCommand reports whether text equals any of the command aliases after
// normalization. Commands must be the whole message, so a conversation that
// merely contains "Chat more" is still analysed.
func MatchCommand(text string, aliases ...string) bool {
	norm := NormalizeCommand(text)
	if norm == "" {
		return false
	}
	return slices.ContainsFunc(aliases, func(a string) bool {
		return NormalizeCommand(a) == norm
	})
}

// TruncateID shortens a LINE ID for logs.
func TruncateID(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}
