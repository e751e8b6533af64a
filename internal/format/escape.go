// Package format renders normalized payloads into message text, either
// through a named Formatter or through a text template.
package format

import "strings"

// Parse modes understood by the platform.
const (
	ModeMarkdownV2 = "MarkdownV2"
	ModeMarkdown   = "Markdown"
	ModeHTML       = "HTML"
)

const (
	markdownV2Specials = "_*[]()~`>#+-=|{}.!"
	markdownSpecials   = "_*`["
)

// EscapeMarkdownV2 escapes every MarkdownV2 special character so the
// input round-trips as literal text. Formatting must be added in the
// template itself, around already-escaped values.
func EscapeMarkdownV2(s string) string {
	return escapeSet(s, markdownV2Specials)
}

// EscapeMarkdown escapes the legacy Markdown specials (_ * ` [).
func EscapeMarkdown(s string) string {
	return escapeSet(s, markdownSpecials)
}

func escapeSet(s, specials string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if r < 128 && strings.ContainsRune(specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Sanitize escapes text for the given parse mode. HTML mode returns the
// text untouched: the platform expects raw tags there. Unknown modes are
// passed through rather than broken.
func Sanitize(text, parseMode string) string {
	switch parseMode {
	case ModeMarkdownV2:
		return EscapeMarkdownV2(text)
	case ModeMarkdown:
		return EscapeMarkdown(text)
	default:
		return text
	}
}

// FormatLink renders a clickable link for the given parse mode. Inputs
// are not escaped here; escape them first if they are untrusted.
func FormatLink(text, url, parseMode string) string {
	if text == "" || url == "" {
		return text
	}
	switch parseMode {
	case ModeHTML:
		return `<a href="` + url + `">` + text + `</a>`
	case ModeMarkdownV2, ModeMarkdown:
		return "[" + text + "](" + url + ")"
	default:
		return text + " (" + url + ")"
	}
}
