// Package payload turns an arbitrary inbound JSON object into the flat
// mapping the rest of the pipeline evaluates templates against.
package payload

import (
	"strconv"
	"strings"
)

// Payload is a normalized request payload. Constructed once per request,
// read-only afterwards.
type Payload map[string]any

// Normalize applies an alias map {target: source-dot-path} to raw and
// drops top-level keys whose value is null or the empty string.
//
// Missing or malformed source paths resolve to "absent": the target key
// is simply not set. Normalizing an already-normalized payload with the
// same alias map yields the same result.
func Normalize(raw map[string]any, aliases map[string]string) Payload {
	out := make(Payload, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	for target, source := range aliases {
		if v, ok := Resolve(raw, source); ok && v != nil {
			out[target] = v
		}
	}
	for k, v := range out {
		if v == nil || v == "" {
			delete(out, k)
		}
	}
	return out
}

// Resolve walks a dot-notation path through nested maps and sequences.
// Numeric path segments index into sequences ("items.0.price"). Any
// mismatch (missing key, out-of-range index, scalar mid-path) yields
// (nil, false), never an error.
func Resolve(root any, path string) (any, bool) {
	if strings.TrimSpace(path) == "" {
		return nil, false
	}
	cur := root
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Field resolves a downstream field name through the alias map first,
// then falls back to a direct top-level lookup.
func (p Payload) Field(name string, aliases map[string]string) any {
	if src, ok := aliases[name]; ok && src != "" {
		if v, found := Resolve(map[string]any(p), src); found {
			return v
		}
		return nil
	}
	return p[name]
}

// String returns the field as a string. Numbers are formatted without
// an exponent so chat ids survive JSON's float64 decoding.
func (p Payload) String(name string, aliases map[string]string) string {
	return Stringify(p.Field(name, aliases))
}

// Strings returns the field as a string slice ([]any of scalars, or a
// single scalar promoted to a one-element slice).
func (p Payload) Strings(name string, aliases map[string]string) []string {
	v := p.Field(name, aliases)
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s := Stringify(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return x
	default:
		if s := Stringify(x); s != "" {
			return []string{s}
		}
		return nil
	}
}

// Map returns the field as a nested object, or nil.
func (p Payload) Map(name string, aliases map[string]string) map[string]any {
	m, _ := p.Field(name, aliases).(map[string]any)
	return m
}

// Int returns the field coerced to int, or 0.
func (p Payload) Int(name string, aliases map[string]string) int {
	switch x := p.Field(name, aliases).(type) {
	case float64:
		return int(x)
	case int:
		return x
	case int64:
		return int(x)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(x))
		return n
	default:
		return 0
	}
}

// Stringify renders a scalar for interpolation into message parameters.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		// JSON numbers arrive as float64; render integral values plain.
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return ""
	}
}
