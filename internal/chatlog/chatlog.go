// Package chatlog recognizes and parses LINE "export chat history" text.
//
// An export looks like:
//
//	2024.05.01 星期三
//	21:03	小美	你好呀
//	21:05	小美	今天好想你
//
// Fields are tab separated by the LINE app; pasted copies often turn tabs
// into spaces, so both are accepted.
package chatlog

import (
	"regexp"
	"strings"

	domerrors "github.com/garyellow/scamguard-linebot-go/internal/errors"
)

var (
	dateLine    = regexp.MustCompile(`(?m)^\d{4}\.\d{2}\.\d{2}\s+\p{Han}+$`)
	messageLine = regexp.MustCompile(`(?m)^\d{1,2}:\d{2}\s+.+\s+.+$`)

	// time, sender, content
	lineFields = regexp.MustCompile(`^(\d{1,2}:\d{2})(?:\t+|\s+)([^\t]+?)(?:\t+|\s+)(.+)$`)
	tabFields  = regexp.MustCompile(`^(\d{1,2}:\d{2})\t+([^\t]+)\t+(.+)$`)
)

// Line is a single chat message from an export.
type Line struct {
	Date    string
	Time    string
	Sender  string
	Content string
}

// Validate returns a *errors.ValidationError unless text carries the basic
// shape of a LINE export: a newline, a date header, and a message line.
func Validate(text string) error {
	text = normalizeNewlines(text)
	switch {
	case strings.TrimSpace(text) == "":
		return domerrors.NewValidationError("text", "輸入文字為空")
	case !strings.Contains(text, "\n"):
		return domerrors.NewValidationError("text", "輸入缺少換行符，不像 LINE 匯出格式")
	case !dateLine.MatchString(text):
		return domerrors.NewValidationError("text", "找不到 'YYYY.MM.DD 星期X' 格式的日期標記行")
	case !messageLine.MatchString(text):
		return domerrors.NewValidationError("text", "找不到 'HH:MM 發送者 內容' 格式的訊息行")
	}
	return nil
}

// IsExport is Validate as a predicate.
func IsExport(text string) bool {
	return Validate(text) == nil
}

// Parse extracts message lines. Date headers set Line.Date for the lines
// that follow; anything else (system notices, continuation lines) is
// appended to the previous message.
func Parse(text string) []Line {
	var (
		lines []Line
		date  string
	)
	for raw := range strings.SplitSeq(normalizeNewlines(text), "\n") {
		row := strings.TrimRight(raw, " \t")
		if row == "" {
			continue
		}
		if dateLine.MatchString(row) {
			date = strings.Fields(row)[0]
			continue
		}

		m := tabFields.FindStringSubmatch(row)
		if m == nil {
			m = lineFields.FindStringSubmatch(row)
		}
		if m != nil {
			lines = append(lines, Line{
				Date:    date,
				Time:    m[1],
				Sender:  strings.TrimSpace(m[2]),
				Content: strings.TrimSpace(m[3]),
			})
			continue
		}

		if n := len(lines); n > 0 {
			lines[n-1].Content += "\n" + strings.TrimSpace(row)
		}
	}
	return lines
}

// Contents joins message bodies with newlines, in order.
func Contents(lines []Line) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.Content != "" {
			parts = append(parts, l.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// Senders returns distinct senders in order of first appearance.
func Senders(lines []Line) []string {
	seen := make(map[string]struct{}, 2)
	var out []string
	for _, l := range lines {
		if _, ok := seen[l.Sender]; ok {
			continue
		}
		seen[l.Sender] = struct{}{}
		out = append(out, l.Sender)
	}
	return out
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
