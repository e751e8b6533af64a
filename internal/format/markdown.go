package format

import (
	"strings"

	"hookbot/internal/payload"
)

// Markdown renders key/value payloads for a Markdown-dialect parse
// mode: keys named title, heading or header become bold section
// headers, every other value is escaped for the configured dialect.
type Markdown struct{}

var headerKeys = []string{"title", "heading", "header"}

func isHeaderKey(k string) bool {
	for _, h := range headerKeys {
		if k == h {
			return true
		}
	}
	return false
}

func (Markdown) Format(p payload.Payload, opts Options) (string, error) {
	mode := opts.ParseMode
	if mode == "" {
		mode = ModeMarkdown
	}

	var b strings.Builder
	line := func(s string) {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(s)
	}

	// Headers lead the message regardless of payload key order.
	for _, h := range headerKeys {
		if _, ok := p[h]; ok {
			line("*" + Sanitize(valueText(p[h]), mode) + "*")
		}
	}
	for _, k := range sortedKeys(p) {
		if isHeaderKey(k) {
			continue
		}
		v := Sanitize(valueText(p[k]), mode)
		if k == "message" {
			line(v)
			continue
		}
		line(Sanitize(label(k, opts.Labels), mode) + ": " + v)
	}
	return b.String(), nil
}
