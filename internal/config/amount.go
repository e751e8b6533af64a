package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Amount is a price value that is either a literal integer (smallest
// currency unit) or a template string resolved to an integer at render
// time. Which variant applies is fixed at load time; resolution happens
// per request.
type Amount struct {
	literal    int64
	template   string
	isTemplate bool
	set        bool
}

func LiteralAmount(v int64) Amount {
	return Amount{literal: v, set: true}
}

func TemplateAmount(s string) Amount {
	return Amount{template: s, isTemplate: true, set: true}
}

func (a Amount) IsSet() bool      { return a.set }
func (a Amount) IsTemplate() bool { return a.isTemplate }
func (a Amount) Literal() int64   { return a.literal }
func (a Amount) Template() string { return a.template }

// Coerce parses a rendered template result into an integer amount.
func Coerce(rendered string) (int64, error) {
	s := strings.TrimSpace(rendered)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q is not an integer", rendered)
	}
	return n, nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*a = LiteralAmount(n)
		return nil
	}
	// YAML floats land here as JSON numbers with a fraction; reject them.
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		if f != float64(int64(f)) {
			return fmt.Errorf("amount %v must be an integer (smallest currency unit)", f)
		}
		*a = LiteralAmount(int64(f))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("amount must be an integer or a template string")
	}
	*a = TemplateAmount(s)
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.set {
		return []byte("null"), nil
	}
	if a.isTemplate {
		return json.Marshal(a.template)
	}
	return json.Marshal(a.literal)
}
