package config

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
bot:
  token: "${HOOKBOT_TOKEN:-123456:test-token}"
  test_mode: true
server:
  port: 9000
  api_key: secret
templates:
  greet: "Hello {{.name}}!"
endpoints:
  - path: /notify/test
    chat_id: "123456789"
    formatter: plain
    labels:
      order_id: "Order"
    field_map:
      image_url: "data.img"
commands:
  - command: /start
    response: "Hi {{.first_name}}!"
callbacks:
  - data: confirm
    response: "Confirmed"
`

func TestParseYAML(t *testing.T) {
	cfg, err := Parse("config.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Bot.Token != "123456:test-token" {
		t.Fatalf("token = %q (env default not applied)", cfg.Bot.Token)
	}
	if !cfg.Bot.TestMode {
		t.Fatal("test_mode lost")
	}
	if cfg.Server.Port != 9000 || cfg.Server.Host != "0.0.0.0" {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Bot.WebhookPath != "/bot/webhook" || cfg.Bot.Mode != "webhook" {
		t.Fatalf("bot defaults = %+v", cfg.Bot)
	}
	if len(cfg.Endpoints) != 1 || cfg.Endpoints[0].FieldMap["image_url"] != "data.img" {
		t.Fatalf("endpoints = %+v", cfg.Endpoints)
	}
	if cfg.Templates["greet"] == "" {
		t.Fatal("templates lost")
	}
}

func TestParseEnvOverride(t *testing.T) {
	t.Setenv("HOOKBOT_TOKEN", "999:from-env")
	cfg, err := Parse("config.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Bot.Token != "999:from-env" {
		t.Fatalf("token = %q", cfg.Bot.Token)
	}
}

func TestParseMissingEnv(t *testing.T) {
	_, err := Parse("c.yaml", []byte("bot:\n  token: \"${HOOKBOT_DEFINITELY_UNSET_VAR}\"\nendpoints: []\n"))
	if err == nil || !strings.Contains(err.Error(), "HOOKBOT_DEFINITELY_UNSET_VAR") {
		t.Fatalf("expected missing-env error, got %v", err)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse("c.yaml", []byte("bot:\n  token: t\n  tokn_typo: x\nendpoints: []\n"))
	if err == nil {
		t.Fatal("expected unknown-field error")
	}
}

func TestEndpointValidatePathSlash(t *testing.T) {
	t.Parallel()
	e := EndpointConfig{Path: "notify/x"}
	if err := e.Validate(); err != nil {
		t.Fatal(err)
	}
	if e.Path != "/notify/x" {
		t.Fatalf("path = %q", e.Path)
	}
}

func TestEndpointValidateMarkupExclusivity(t *testing.T) {
	t.Parallel()
	e := EndpointConfig{
		Path:                "/x",
		ReplyKeyboard:       &ReplyKeyboardConfig{},
		ReplyKeyboardRemove: &ReplyKeyboardRemoveConfig{RemoveKeyboard: true},
	}
	if err := e.Validate(); err == nil {
		t.Fatal("expected mutual-exclusivity error")
	}
}

func TestValidateButtonsPayPlacement(t *testing.T) {
	t.Parallel()
	pay := ButtonConfig{Text: "Pay", Pay: true}
	link := ButtonConfig{Text: "Open", URL: "https://example.com"}

	if err := ValidateButtons([][]ButtonConfig{{pay, link}}); err != nil {
		t.Fatalf("pay at (0,0) must be valid: %v", err)
	}
	if err := ValidateButtons([][]ButtonConfig{{link, pay}}); err == nil {
		t.Fatal("pay at (0,1) must be rejected")
	}
	if err := ValidateButtons([][]ButtonConfig{{link}, {pay}}); err == nil {
		t.Fatal("pay at (1,0) must be rejected")
	}

	game := ButtonConfig{Text: "Play", CallbackGame: true}
	if err := ValidateButtons([][]ButtonConfig{{link}, {game}}); err == nil {
		t.Fatal("callback_game off (0,0) must be rejected")
	}
}

func TestValidateButtonsActionVariants(t *testing.T) {
	t.Parallel()
	empty := ""
	tests := []struct {
		name string
		btn  ButtonConfig
		ok   bool
	}{
		{name: "url", btn: ButtonConfig{Text: "t", URL: "https://x"}, ok: true},
		{name: "empty switch query is one action", btn: ButtonConfig{Text: "t", SwitchInlineQuery: &empty}, ok: true},
		{name: "no action", btn: ButtonConfig{Text: "t"}, ok: false},
		{name: "two actions", btn: ButtonConfig{Text: "t", URL: "https://x", CallbackData: "d"}, ok: false},
		{name: "no text", btn: ButtonConfig{URL: "https://x"}, ok: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateButtons([][]ButtonConfig{{tt.btn}})
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestInvoiceCurrencyPairing(t *testing.T) {
	t.Parallel()
	base := InvoiceConfig{
		Title:       "T",
		Description: "D",
		Payload:     "p",
		Prices:      []PriceConfig{{Label: "Item", Amount: LiteralAmount(100)}},
	}

	stars := base
	stars.Currency = "XTR"
	if err := stars.Validate(); err != nil {
		t.Fatalf("XTR with empty provider token must pass: %v", err)
	}

	stars.ProviderToken = "live:abc"
	if err := stars.Validate(); err == nil {
		t.Fatal("XTR with provider token must fail")
	}

	fiat := base
	fiat.Currency = "USD"
	if err := fiat.Validate(); err == nil {
		t.Fatal("USD without provider token must fail")
	}

	fiat.ProviderToken = "live:abc"
	if err := fiat.Validate(); err != nil {
		t.Fatalf("USD with provider token must pass: %v", err)
	}
}

func TestAmountUnmarshal(t *testing.T) {
	t.Parallel()
	var p PriceConfig
	if err := json.Unmarshal([]byte(`{"label":"x","amount":1000}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.Amount.IsTemplate() || p.Amount.Literal() != 1000 {
		t.Fatalf("amount = %+v", p.Amount)
	}

	if err := json.Unmarshal([]byte(`{"label":"x","amount":"{{.total}}"}`), &p); err != nil {
		t.Fatal(err)
	}
	if !p.Amount.IsTemplate() || p.Amount.Template() != "{{.total}}" {
		t.Fatalf("amount = %+v", p.Amount)
	}

	if err := json.Unmarshal([]byte(`{"label":"x","amount":10.5}`), &p); err == nil {
		t.Fatal("fractional amount must be rejected")
	}
}

func TestChatIDWarnings(t *testing.T) {
	t.Parallel()
	if w := ChatIDWarnings("@channel"); len(w) != 0 {
		t.Fatalf("unexpected warnings: %v", w)
	}
	if w := ChatIDWarnings("-1001234567890"); len(w) != 0 {
		t.Fatalf("unexpected warnings: %v", w)
	}
	if w := ChatIDWarnings("not-a-chat"); len(w) == 0 {
		t.Fatal("expected warning for junk chat id")
	}
	if w := ChatIDWarnings("12345678901"); len(w) == 0 {
		t.Fatal("expected warning for suspicious positive channel-sized id")
	}
}

func TestDurationFields(t *testing.T) {
	t.Parallel()
	n := NotifierConfig{}
	if d, err := n.RetryBaseDuration(); err != nil || d != 500*time.Millisecond {
		t.Fatalf("default retry_base = %v, %v", d, err)
	}
	n.RetryBase = "2s"
	if d, err := n.RetryBaseDuration(); err != nil || d != 2*time.Second {
		t.Fatalf("retry_base = %v, %v", d, err)
	}
	n.RetryMaxDelay = "soon"
	if _, err := n.RetryMaxDelayDuration(); err == nil {
		t.Fatal("garbage duration accepted")
	}
	n.RetryMaxDelay = "-1s"
	if _, err := n.RetryMaxDelayDuration(); err == nil {
		t.Fatal("negative duration accepted")
	}
	b := BotConfig{PollTimeout: "30s"}
	if d, err := b.PollTimeoutDuration(); err != nil || d != 30*time.Second {
		t.Fatalf("poll_timeout = %v, %v", d, err)
	}
}
