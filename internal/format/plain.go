package format

import (
	"sort"
	"strings"

	"hookbot/internal/payload"
)

// Plain renders "label: value" lines with no markup. A "message" key is
// emitted bare, first.
type Plain struct{}

func (Plain) Format(p payload.Payload, opts Options) (string, error) {
	var b strings.Builder
	for _, k := range sortedKeys(p) {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		v := valueText(p[k])
		if k == "message" {
			b.WriteString(v)
			continue
		}
		b.WriteString(label(k, opts.Labels))
		b.WriteString(": ")
		b.WriteString(v)
	}
	return b.String(), nil
}

// valueText renders scalars directly and nested values compactly.
func valueText(v any) string {
	switch x := v.(type) {
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, valueText(item))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+valueText(x[k]))
		}
		return strings.Join(parts, " ")
	default:
		return payload.Stringify(v)
	}
}
