package format

import (
	"strings"
	"testing"
)

func TestEscapeMarkdownV2(t *testing.T) {
	t.Parallel()
	got := EscapeMarkdownV2("Hello_World! Price: $99.99")
	for _, want := range []string{`\_`, `\!`, `\.`} {
		if !strings.Contains(got, want) {
			t.Fatalf("escaped %q missing %q", got, want)
		}
	}
	if strings.Contains(got, `\$`) {
		t.Fatalf("$ is not a MarkdownV2 special: %q", got)
	}
}

func TestEscapeMarkdownV2AllSpecials(t *testing.T) {
	t.Parallel()
	in := "_*[]()~`>#+-=|{}.!"
	got := EscapeMarkdownV2(in)
	// Every special must be preceded by exactly one backslash, so the
	// text round-trips as literal characters under the dialect.
	for i, r := range in {
		want := `\` + string(r)
		if !strings.Contains(got, want) {
			t.Fatalf("special %q (index %d) not escaped in %q", string(r), i, got)
		}
	}
	if len(got) != 2*len(in) {
		t.Fatalf("expected one backslash per special, got %q", got)
	}
}

func TestEscapeMarkdownLegacy(t *testing.T) {
	t.Parallel()
	got := EscapeMarkdown("Hello *world* [link]_x_ `code`")
	for _, want := range []string{`\*`, `\[`, `\_`, "\\`"} {
		if !strings.Contains(got, want) {
			t.Fatalf("escaped %q missing %q", got, want)
		}
	}
	if strings.Contains(got, `\]`) {
		t.Fatal("closing bracket is not escaped in legacy Markdown")
	}
}

func TestSanitizeByMode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		mode string
		in   string
		want string
	}{
		{name: "v2", mode: ModeMarkdownV2, in: "a.b", want: `a\.b`},
		{name: "legacy", mode: ModeMarkdown, in: "a*b", want: `a\*b`},
		{name: "html passthrough", mode: ModeHTML, in: "<b>x</b>", want: "<b>x</b>"},
		{name: "plain passthrough", mode: "", in: "a_b", want: "a_b"},
		{name: "unknown passthrough", mode: "WeirdMode", in: "a_b", want: "a_b"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in, tt.mode); got != tt.want {
				t.Fatalf("Sanitize(%q, %q) = %q, want %q", tt.in, tt.mode, got, tt.want)
			}
		})
	}
}

func TestFormatLink(t *testing.T) {
	t.Parallel()
	tests := []struct {
		mode string
		want string
	}{
		{mode: ModeHTML, want: `<a href="https://example.com">Click</a>`},
		{mode: ModeMarkdownV2, want: `[Click](https://example.com)`},
		{mode: ModeMarkdown, want: `[Click](https://example.com)`},
		{mode: "", want: `Click (https://example.com)`},
	}
	for _, tt := range tests {
		if got := FormatLink("Click", "https://example.com", tt.mode); got != tt.want {
			t.Fatalf("FormatLink mode %q = %q, want %q", tt.mode, got, tt.want)
		}
	}
	if got := FormatLink("Click", "", ModeHTML); got != "Click" {
		t.Fatalf("empty url should return text, got %q", got)
	}
}
