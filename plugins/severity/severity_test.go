package severity

import (
	"strings"
	"testing"

	"hookbot/internal/format"
	"hookbot/internal/payload"
)

func TestSeverityPrefix(t *testing.T) {
	t.Parallel()
	f := New()
	cases := []struct {
		name   string
		p      payload.Payload
		prefix string
	}{
		{"critical", payload.Payload{"severity": "critical", "message": "disk full"}, "🚨 "},
		{"warning", payload.Payload{"severity": "warning", "message": "disk filling"}, "⚠️ "},
		{"info", payload.Payload{"severity": "info", "message": "rotated"}, "ℹ️ "},
		{"numeric", payload.Payload{"severity": float64(9), "message": "down"}, "🚨 "},
		{"none", payload.Payload{"message": "hello"}, ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := f.Format(tc.p, format.Options{})
			if err != nil {
				t.Fatalf("format: %v", err)
			}
			if tc.prefix == "" {
				if strings.HasPrefix(got, "🚨") || strings.HasPrefix(got, "⚠️") {
					t.Fatalf("unexpected prefix: %q", got)
				}
			} else if !strings.HasPrefix(got, tc.prefix) {
				t.Fatalf("got %q, want prefix %q", got, tc.prefix)
			}
			if !strings.Contains(got, tc.p["message"].(string)) {
				t.Fatalf("body lost: %q", got)
			}
			if strings.Contains(got, "severity") {
				t.Fatalf("severity field leaked into body: %q", got)
			}
		})
	}
}

func TestCustomFieldName(t *testing.T) {
	t.Parallel()
	f := New()
	got, err := f.Format(payload.Payload{"level": "critical", "message": "x"}, format.Options{
		PluginConfig: map[string]any{"field": "level"},
	})
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if !strings.HasPrefix(got, "🚨 ") {
		t.Fatalf("custom field ignored: %q", got)
	}
}
