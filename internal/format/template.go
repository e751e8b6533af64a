package format

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Engine parses and renders message templates. Templates get the sprig
// function map (default, upper, lower, title, int, trim, ...) on top of
// text/template's builtin conditionals and range loops.
type Engine struct {
	funcs template.FuncMap
}

func NewEngine() *Engine {
	funcs := sprig.TxtFuncMap()
	// Parse-mode-aware helpers usable inside template literals.
	funcs["escapeMarkdownV2"] = EscapeMarkdownV2
	funcs["escapeMarkdown"] = EscapeMarkdown
	return &Engine{funcs: funcs}
}

// Parse compiles a template body. Missing keys resolve to the zero
// value so conditionals on optional payload fields work; the zero-value
// placeholder is stripped after execution.
func (e *Engine) Parse(name, body string) (*template.Template, error) {
	t, err := template.New(name).Option("missingkey=zero").Funcs(e.funcs).Parse(body)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", name, err)
	}
	return t, nil
}

// Render executes t against the payload. When parseMode is a strict
// markup dialect, every string value in the evaluation context is
// escaped before substitution so untrusted payload content cannot
// produce malformed markup; literal template text is left alone.
func (e *Engine) Render(t *template.Template, data map[string]any, parseMode string) (string, error) {
	ctx := data
	switch parseMode {
	case ModeMarkdownV2, ModeMarkdown:
		ctx = escapeValues(data, parseMode)
	}
	return execute(t, ctx)
}

// RenderRaw executes t without value escaping. Used for fields that are
// not message text: button URLs, callback data, invoice payload tokens.
func (e *Engine) RenderRaw(t *template.Template, data map[string]any) (string, error) {
	return execute(t, data)
}

func execute(t *template.Template, data map[string]any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	// missingkey=zero renders absent map keys as "<no value>".
	return strings.ReplaceAll(b.String(), "<no value>", ""), nil
}

// escapeValues deep-copies the context, escaping string values for the
// given dialect. Non-string scalars are left as-is so numeric template
// comparisons keep working.
func escapeValues(in map[string]any, parseMode string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = escapeValue(v, parseMode)
	}
	return out
}

func escapeValue(v any, parseMode string) any {
	switch x := v.(type) {
	case string:
		return Sanitize(x, parseMode)
	case map[string]any:
		return escapeValues(x, parseMode)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = escapeValue(item, parseMode)
		}
		return out
	default:
		return v
	}
}
