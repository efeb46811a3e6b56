package bot

import (
	"slices"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// isBotMentioned reports whether any mentionee of the message is the bot itself.
func isBotMentioned(textMsg webhook.TextMessageContent) bool {
	if textMsg.Mention == nil {
		return false
	}
	return slices.ContainsFunc(textMsg.Mention.Mentionees, func(m webhook.MentioneeInterface) bool {
		u, ok := m.(webhook.UserMentionee)
		return ok && u.IsSelf
	})
}

// stripBotMentions removes the bot's own @mentions from text.
//
// Index and Length count runes. Line breaks are kept because a pasted
// conversation export is parsed line by line; only the surrounding
// whitespace is trimmed.
func stripBotMentions(text string, mention *webhook.Mention) string {
	if mention == nil {
		return strings.TrimSpace(text)
	}

	type span struct{ start, end int }
	var spans []span
	for _, m := range mention.Mentionees {
		if u, ok := m.(webhook.UserMentionee); ok && u.IsSelf {
			spans = append(spans, span{int(u.Index), int(u.Index + u.Length)})
		}
	}

	// Back to front so earlier indices stay valid.
	slices.SortFunc(spans, func(a, b span) int { return b.start - a.start })

	runes := []rune(text)
	for _, s := range spans {
		start := max(s.start, 0)
		end := min(s.end, len(runes))
		if start >= end {
			continue
		}
		runes = append(runes[:start], runes[end:]...)
	}

	return strings.TrimSpace(string(runes))
}
