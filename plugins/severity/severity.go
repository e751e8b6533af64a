// Package severity is a formatter plugin that prefixes the message
// with an urgency marker derived from a severity/priority field.
package severity

import (
	"strings"

	"hookbot/internal/format"
	"hookbot/internal/payload"
)

// Formatter renders like the plain formatter but leads with an icon
// picked from the payload's severity (critical/warning/info) or a
// numeric priority. The field name is configurable via plugin_config
// ("field", default "severity").
type Formatter struct{}

func New() *Formatter { return &Formatter{} }

func (f *Formatter) Format(p payload.Payload, opts format.Options) (string, error) {
	field := "severity"
	if v, ok := opts.PluginConfig["field"].(string); ok && v != "" {
		field = v
	}

	prefix := prefixFor(p[field])

	rest := make(payload.Payload, len(p))
	for k, v := range p {
		if k == field {
			continue
		}
		rest[k] = v
	}
	plain := &format.Plain{}
	body, err := plain.Format(rest, opts)
	if err != nil {
		return "", err
	}
	if prefix == "" {
		return body, nil
	}
	return prefix + body, nil
}

func prefixFor(v any) string {
	switch s := v.(type) {
	case string:
		switch strings.ToLower(s) {
		case "critical", "fatal", "emergency":
			return "🚨 "
		case "error", "warning", "warn":
			return "⚠️ "
		case "info", "notice":
			return "ℹ️ "
		}
	case float64:
		return prefixForLevel(int(s))
	case int:
		return prefixForLevel(s)
	}
	return ""
}

func prefixForLevel(n int) string {
	switch {
	case n >= 9:
		return "🚨 "
	case n >= 7:
		return "⚠️ "
	case n >= 5:
		return "ℹ️ "
	default:
		return ""
	}
}
