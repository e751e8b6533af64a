package dispatch

import (
	"errors"
	"testing"

	"hookbot/internal/config"
	"hookbot/internal/format"
	"hookbot/internal/payload"
	"hookbot/internal/templates"
	"hookbot/internal/transport"
	"hookbot/pkg/logx"
)

func newAssembler(t *testing.T, inline map[string]string) *Assembler {
	t.Helper()
	engine := format.NewEngine()
	store, err := templates.New(engine, inline, "", logx.Nop())
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	return NewAssembler(format.NewRegistry(), store, engine, logx.Nop())
}

func compileEndpoint(t *testing.T, spec *config.EndpointConfig) *Endpoint {
	t.Helper()
	ep, err := CompileEndpoint(format.NewEngine(), spec)
	if err != nil {
		t.Fatalf("compile endpoint: %v", err)
	}
	return ep
}

func TestBuildTextMessage(t *testing.T) {
	t.Parallel()
	a := newAssembler(t, map[string]string{"order": "Order {{.order_id}}"})
	ep := compileEndpoint(t, &config.EndpointConfig{
		Path:     "/order",
		ChatID:   "100",
		Template: "order",
	})

	plan, err := a.Build(ep, payload.Payload{"order_id": "ABC123"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(plan.ChatIDs) != 1 || plan.ChatIDs[0] != "100" {
		t.Fatalf("chats: %v", plan.ChatIDs)
	}
	if len(plan.Messages) != 1 {
		t.Fatalf("messages: %+v", plan.Messages)
	}
	msg := plan.Messages[0]
	if msg.Kind != transport.KindText || msg.Text != "Order ABC123" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestBuildTextThenInvoice(t *testing.T) {
	t.Parallel()
	a := newAssembler(t, map[string]string{"order": "Order {{.order_id}}"})
	ep := compileEndpoint(t, &config.EndpointConfig{
		Path:     "/order",
		ChatID:   "100",
		Template: "order",
		Buttons: [][]config.ButtonConfig{
			{{Text: "Pay {{.total_price}} XTR", Pay: true}},
		},
		Invoice: &config.InvoiceConfig{
			Title:       "Order {{.order_id}}",
			Description: "Purchase",
			Payload:     "order:{{.order_id}}",
			Currency:    "XTR",
			Prices: []config.PriceConfig{
				{Label: "Total", Amount: config.TemplateAmount("{{.total_price}}")},
			},
		},
	})

	plan, err := a.Build(ep, payload.Payload{"order_id": "ABC123", "total_price": 1000})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(plan.Messages) != 2 {
		t.Fatalf("expected text + invoice, got %+v", plan.Messages)
	}
	text, inv := plan.Messages[0], plan.Messages[1]
	if text.Kind != transport.KindText || text.Markup != nil {
		t.Fatalf("lead-in message must be bare text: %+v", text)
	}
	if inv.Kind != transport.KindInvoice || inv.Invoice == nil {
		t.Fatalf("second message must be the invoice: %+v", inv)
	}
	if inv.Invoice.Prices[0].Amount != 1000 {
		t.Fatalf("amount: %+v", inv.Invoice.Prices)
	}
	km, ok := inv.Markup.(*transport.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("invoice should carry the buttons, got %T", inv.Markup)
	}
	if got := km.InlineKeyboard[0][0].Text; got != "Pay 1000 ⭐" {
		t.Fatalf("pay button text: %q", got)
	}
}

func TestPayloadChatOverride(t *testing.T) {
	t.Parallel()
	a := newAssembler(t, map[string]string{"msg": "{{.message}}"})
	ep := compileEndpoint(t, &config.EndpointConfig{Path: "/n", ChatID: "static", Template: "msg"})

	plan, err := a.Build(ep, payload.Payload{"message": "hi", "chat_ids": []any{"1", "2"}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(plan.ChatIDs) != 2 || plan.ChatIDs[0] != "1" || plan.ChatIDs[1] != "2" {
		t.Fatalf("chat_ids override lost: %v", plan.ChatIDs)
	}

	plan, err = a.Build(ep, payload.Payload{"message": "hi", "chat_id": "777"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(plan.ChatIDs) != 1 || plan.ChatIDs[0] != "777" {
		t.Fatalf("chat_id override lost: %v", plan.ChatIDs)
	}
}

func TestNoChatIDIsValidationError(t *testing.T) {
	t.Parallel()
	a := newAssembler(t, map[string]string{"msg": "{{.message}}"})
	ep := compileEndpoint(t, &config.EndpointConfig{Path: "/n", Template: "msg"})

	_, err := a.Build(ep, payload.Payload{"message": "hi"})
	var verr *transport.ValidationError
	if !errors.As(err, &verr) || verr.ErrorCode() != "no_chat_id" {
		t.Fatalf("expected no_chat_id, got %v", err)
	}
}

func TestMissingFormatterIsNotFound(t *testing.T) {
	t.Parallel()
	a := newAssembler(t, nil)
	ep := compileEndpoint(t, &config.EndpointConfig{Path: "/n", ChatID: "1", Formatter: "ghost"})

	_, err := a.Build(ep, payload.Payload{"message": "hi"})
	var nf *format.NotFoundError
	if !errors.As(err, &nf) || nf.Name != "ghost" {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestMediaSelection(t *testing.T) {
	t.Parallel()
	a := newAssembler(t, map[string]string{"msg": "{{.message}}"})
	ep := compileEndpoint(t, &config.EndpointConfig{Path: "/n", ChatID: "1", Template: "msg"})

	cases := []struct {
		name string
		set  payload.Payload
		kind transport.MessageKind
	}{
		{"photo", payload.Payload{"image_url": "https://x/i.png"}, transport.KindPhoto},
		{"album", payload.Payload{"image_urls": []any{"https://x/a.png", "https://x/b.png"}}, transport.KindMediaGroup},
		{"document", payload.Payload{"document_url": "https://x/r.pdf"}, transport.KindDocument},
		{"video", payload.Payload{"video_url": "https://x/v.mp4"}, transport.KindVideo},
		{"audio", payload.Payload{"audio_url": "https://x/a.mp3"}, transport.KindAudio},
		{"voice", payload.Payload{"voice_url": "https://x/v.ogg"}, transport.KindVoice},
		{"location", payload.Payload{"location": map[string]any{"latitude": 1.5, "longitude": 2.5}}, transport.KindLocation},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := payload.Payload{"message": "caption"}
			for k, v := range tc.set {
				p[k] = v
			}
			plan, err := a.Build(ep, p)
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			if len(plan.Messages) != 1 || plan.Messages[0].Kind != tc.kind {
				t.Fatalf("kind = %v, want %v", plan.Messages[0].Kind, tc.kind)
			}
			if tc.kind != transport.KindLocation && plan.Messages[0].Text != "caption" {
				t.Fatalf("caption lost: %+v", plan.Messages[0])
			}
		})
	}
}

func TestDocumentPrecedesPhoto(t *testing.T) {
	t.Parallel()
	a := newAssembler(t, map[string]string{"msg": "{{.message}}"})
	ep := compileEndpoint(t, &config.EndpointConfig{Path: "/n", ChatID: "1", Template: "msg"})

	plan, err := a.Build(ep, payload.Payload{
		"message":      "m",
		"document_url": "https://x/r.pdf",
		"image_url":    "https://x/i.png",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if plan.Messages[0].Kind != transport.KindDocument {
		t.Fatalf("precedence: %v", plan.Messages[0].Kind)
	}
}

func TestAlbumCappedAtTen(t *testing.T) {
	t.Parallel()
	a := newAssembler(t, map[string]string{"msg": "{{.message}}"})
	ep := compileEndpoint(t, &config.EndpointConfig{Path: "/n", ChatID: "1", Template: "msg"})

	urls := make([]any, 12)
	for i := range urls {
		urls[i] = "https://x/i.png"
	}
	plan, err := a.Build(ep, payload.Payload{"message": "m", "image_urls": urls})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := len(plan.Messages[0].Album); got != 10 {
		t.Fatalf("album size = %d", got)
	}
}

func TestInvalidLocation(t *testing.T) {
	t.Parallel()
	a := newAssembler(t, map[string]string{"msg": "{{.message}}"})
	ep := compileEndpoint(t, &config.EndpointConfig{Path: "/n", ChatID: "1", Template: "msg"})

	_, err := a.Build(ep, payload.Payload{
		"message":  "m",
		"location": map[string]any{"latitude": 1.5},
	})
	var verr *transport.ValidationError
	if !errors.As(err, &verr) || verr.ErrorCode() != "invalid_location" {
		t.Fatalf("expected invalid_location, got %v", err)
	}
}

func TestMediaOnlyEndpointWithoutBody(t *testing.T) {
	t.Parallel()
	a := newAssembler(t, nil)
	ep := compileEndpoint(t, &config.EndpointConfig{Path: "/n", ChatID: "1"})

	plan, err := a.Build(ep, payload.Payload{"image_url": "https://x/i.png"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if plan.Messages[0].Kind != transport.KindPhoto || plan.Messages[0].Text != "" {
		t.Fatalf("media-only message: %+v", plan.Messages[0])
	}

	_, err = a.Build(ep, payload.Payload{"note": "nothing recognizable"})
	var verr *transport.ValidationError
	if !errors.As(err, &verr) || verr.ErrorCode() != "no_content" {
		t.Fatalf("expected no_content, got %v", err)
	}
}

func TestParseModeOverrideFromPayload(t *testing.T) {
	t.Parallel()
	a := newAssembler(t, map[string]string{"msg": "{{.message}}"})
	ep := compileEndpoint(t, &config.EndpointConfig{Path: "/n", ChatID: "1", Template: "msg", ParseMode: "HTML"})

	plan, err := a.Build(ep, payload.Payload{"message": "m", "parse_mode": "MarkdownV2"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if plan.Messages[0].ParseMode != "MarkdownV2" {
		t.Fatalf("parse_mode = %q", plan.Messages[0].ParseMode)
	}
}
