package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Validate applies the structural invariants that can be checked
// without a request payload. A failure covers this endpoint only.
func (e *EndpointConfig) Validate() error {
	if strings.TrimSpace(e.Path) == "" {
		return Errorf("endpoint", "path is required")
	}
	if !strings.HasPrefix(e.Path, "/") {
		e.Path = "/" + e.Path
	}
	section := "endpoint " + e.Path

	exclusive := 0
	if e.ReplyKeyboard != nil {
		exclusive++
	}
	if e.ReplyKeyboardRemove != nil {
		exclusive++
	}
	if e.ForceReply != nil {
		exclusive++
	}
	if exclusive > 1 {
		return Errorf(section, "reply_keyboard, reply_keyboard_remove and force_reply are mutually exclusive")
	}

	if err := ValidateButtons(e.Buttons); err != nil {
		return Errorf(section, "%s", err)
	}

	if e.Invoice != nil {
		if err := e.Invoice.Validate(); err != nil {
			return Errorf(section, "%s", err)
		}
	}

	if e.Formatter != "" && e.Template != "" {
		return Errorf(section, "formatter and template are mutually exclusive")
	}
	return nil
}

// ValidateButtons enforces the static placement invariants of an inline
// grid: exactly one action variant per button, and pay / callback_game
// only at row 0, column 0.
func ValidateButtons(grid [][]ButtonConfig) error {
	for ri, row := range grid {
		for ci, btn := range row {
			if strings.TrimSpace(btn.Text) == "" {
				return fmt.Errorf("button [%d][%d]: text is required", ri, ci)
			}
			if n := btn.actionCount(); n != 1 {
				return fmt.Errorf("button [%d][%d] (%q): exactly one action variant required, got %d", ri, ci, btn.Text, n)
			}
			if btn.Pay && (ri != 0 || ci != 0) {
				return fmt.Errorf("pay button must be the first button in the first row")
			}
			if btn.CallbackGame && (ri != 0 || ci != 0) {
				return fmt.Errorf("callback game button must be the first button in the first row")
			}
		}
	}
	return nil
}

func (b *ButtonConfig) actionCount() int {
	n := 0
	if b.URL != "" {
		n++
	}
	if b.CallbackData != "" {
		n++
	}
	if b.WebApp != nil {
		n++
	}
	if b.LoginURL != nil {
		n++
	}
	// Empty string is a valid inline query ("any query"), so presence is
	// pointer-ness, not non-emptiness.
	if b.SwitchInlineQuery != nil {
		n++
	}
	if b.SwitchInlineQueryCurrentChat != nil {
		n++
	}
	if b.SwitchInlineQueryChosenChat != nil {
		n++
	}
	if b.CopyText != nil {
		n++
	}
	if b.CallbackGame {
		n++
	}
	if b.Pay {
		n++
	}
	return n
}

// Validate checks the parts of an invoice that are static: required
// fields and the currency / provider token pairing. "XTR" (Telegram
// Stars) requires an empty provider token; every other currency
// requires a real one.
func (inv *InvoiceConfig) Validate() error {
	switch {
	case strings.TrimSpace(inv.Title) == "":
		return fmt.Errorf("invoice: title is required")
	case strings.TrimSpace(inv.Description) == "":
		return fmt.Errorf("invoice: description is required")
	case strings.TrimSpace(inv.Payload) == "":
		return fmt.Errorf("invoice: payload is required")
	case strings.TrimSpace(inv.Currency) == "":
		return fmt.Errorf("invoice: currency is required")
	case len(inv.Prices) == 0:
		return fmt.Errorf("invoice: at least one price line is required")
	}
	for i, p := range inv.Prices {
		if strings.TrimSpace(p.Label) == "" {
			return fmt.Errorf("invoice: price %d: label is required", i)
		}
		if !p.Amount.IsSet() {
			return fmt.Errorf("invoice: price %d (%q): amount is required", i, p.Label)
		}
	}
	return inv.ValidateProviderToken()
}

// ValidateProviderToken enforces the currency pairing invariant alone,
// so the builder can re-check it per request as well. Templated
// currency or token fields are only checkable after rendering, so the
// static pass leaves them to the builder.
func (inv *InvoiceConfig) ValidateProviderToken() error {
	if strings.Contains(inv.Currency, "{{") || strings.Contains(inv.ProviderToken, "{{") {
		return nil
	}
	if inv.Currency == "XTR" {
		if inv.ProviderToken != "" {
			return fmt.Errorf("invoice: currency XTR (Telegram Stars) requires an empty provider_token")
		}
		return nil
	}
	if inv.ProviderToken == "" {
		return fmt.Errorf("invoice: currency %s requires a provider_token", inv.Currency)
	}
	return nil
}

// ValidateCommand checks a command handler entry.
func (c *CommandConfig) Validate() error {
	if strings.TrimSpace(c.Command) == "" {
		return Errorf("commands", "command is required")
	}
	if !strings.HasPrefix(c.Command, "/") {
		c.Command = "/" + c.Command
	}
	return ValidateButtons(c.Buttons)
}

// ChatIDWarnings flags chat id shapes that usually indicate a config
// mistake. They are warnings, not errors: the platform is the final
// authority on what resolves.
func ChatIDWarnings(id string) []string {
	if id == "" {
		return nil
	}
	if strings.HasPrefix(id, "@") {
		return nil
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return []string{fmt.Sprintf("chat_id %q is not a numeric ID or @username", id)}
	}
	if n > 0 && len(id) > 10 {
		return []string{fmt.Sprintf("chat_id %q looks like a channel ID but is positive; did you mean %q?", id, "-100"+id)}
	}
	return nil
}
