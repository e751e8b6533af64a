// Package dispatch turns a normalized payload into outbound messages
// and delivers them with per-chat ordering and bounded retry.
package dispatch

import (
	"hookbot/internal/config"
	"hookbot/internal/format"
	"hookbot/internal/invoice"
	"hookbot/internal/markup"
	"hookbot/internal/payload"
	"hookbot/internal/templates"
	"hookbot/internal/transport"
	"hookbot/pkg/logx"
)

// Endpoint is a compiled endpoint spec: validated once, with every
// template field parsed, shared read-only across requests.
type Endpoint struct {
	Spec     *config.EndpointConfig
	Controls *markup.Controls
	Invoice  *invoice.Builder
}

// CompileEndpoint validates the endpoint config and compiles its markup and
// invoice templates. Errors here keep the endpoint from registering.
func CompileEndpoint(engine *format.Engine, spec *config.EndpointConfig) (*Endpoint, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	controls, err := markup.Compile(engine, spec)
	if err != nil {
		return nil, err
	}
	inv, err := invoice.Compile(engine, spec.Invoice)
	if err != nil {
		return nil, err
	}
	return &Endpoint{Spec: spec, Controls: controls, Invoice: inv}, nil
}

// Plan is the outcome of assembly: the resolved broadcast targets and
// the messages to send to each, in order.
type Plan struct {
	ChatIDs  []string
	Messages []*transport.Outbound
}

// Assembler builds delivery plans. It resolves formatters at request
// time so plugins registered after startup are visible.
type Assembler struct {
	registry *format.Registry
	store    *templates.Store
	engine   *format.Engine
	log      logx.Logger
}

func NewAssembler(registry *format.Registry, store *templates.Store, engine *format.Engine, log logx.Logger) *Assembler {
	return &Assembler{registry: registry, store: store, engine: engine, log: log}
}

// Build assembles the message sequence for one request. The payload's
// own chat_id / chat_ids / parse_mode take precedence over the
// endpoint's static values.
func (a *Assembler) Build(ep *Endpoint, p payload.Payload) (*Plan, error) {
	spec := ep.Spec
	aliases := spec.FieldMap

	chatIDs := p.Strings("chat_ids", aliases)
	if len(chatIDs) == 0 {
		if id := p.String("chat_id", aliases); id != "" {
			chatIDs = []string{id}
		}
	}
	if len(chatIDs) == 0 {
		chatIDs = spec.TargetChatIDs()
	}
	if len(chatIDs) == 0 {
		return nil, transport.ValidationCode("no_chat_id", "no chat_id specified in config or request")
	}

	parseMode := p.String("parse_mode", aliases)
	if parseMode == "" {
		parseMode = spec.ParseMode
	}

	text, err := a.renderBody(ep, p, parseMode)
	if err != nil {
		return nil, err
	}

	ctrl, err := ep.Controls.Render(p)
	if err != nil {
		// A bad dynamic value degrades to no controls, never a failed
		// request.
		a.log.Warn("markup render failed", logx.String("path", spec.Path), logx.Err(err))
		ctrl = nil
	}

	plan := &Plan{ChatIDs: chatIDs}

	if ep.Invoice != nil {
		// The invoice carries the controls (its pay button leads the
		// grid); a preceding text message goes bare.
		if text != "" {
			plan.Messages = append(plan.Messages, &transport.Outbound{
				Kind:      transport.KindText,
				Text:      text,
				ParseMode: parseMode,
			})
		}
		params, err := ep.Invoice.Render(p)
		if err != nil {
			return nil, err
		}
		plan.Messages = append(plan.Messages, &transport.Outbound{
			Kind:    transport.KindInvoice,
			Invoice: params,
			Markup:  ctrl,
		})
		return plan, nil
	}

	msg, err := a.mediaMessage(p, aliases, text, parseMode, ctrl)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		if text == "" {
			return nil, transport.ValidationCode("no_content", "endpoint produced no text and the payload carries no media")
		}
		msg = &transport.Outbound{
			Kind:      transport.KindText,
			Text:      text,
			ParseMode: parseMode,
			Markup:    ctrl,
		}
	}
	plan.Messages = append(plan.Messages, msg)
	return plan, nil
}

func (a *Assembler) renderBody(ep *Endpoint, p payload.Payload, parseMode string) (string, error) {
	spec := ep.Spec
	switch {
	case spec.Formatter != "":
		f, err := a.registry.Get(spec.Formatter)
		if err != nil {
			return "", err
		}
		return f.Format(p, format.Options{
			Labels:       spec.Labels,
			ParseMode:    parseMode,
			PluginConfig: spec.PluginConfig,
		})
	case spec.Template != "":
		tpl, ok := a.store.Lookup(spec.Template)
		if !ok {
			return "", transport.ValidationCode("template_not_found", "template %q is not defined", spec.Template)
		}
		return a.engine.Render(tpl, map[string]any(p), parseMode)
	}
	return "", nil
}

// mediaMessage picks the media kind the payload asks for, most specific
// first. Returns nil when the payload carries no media field.
func (a *Assembler) mediaMessage(p payload.Payload, aliases map[string]string, caption, parseMode string, ctrl any) (*transport.Outbound, error) {
	base := transport.Outbound{Text: caption, ParseMode: parseMode, Markup: ctrl}

	if loc := p.Map("location", aliases); loc != nil {
		lat, latOK := toFloat(loc["latitude"])
		lon, lonOK := toFloat(loc["longitude"])
		if !latOK || !lonOK {
			return nil, transport.ValidationCode("invalid_location", "location must have latitude and longitude")
		}
		msg := base
		msg.Kind = transport.KindLocation
		msg.Location = &transport.LocationParams{
			Latitude:             lat,
			Longitude:            lon,
			HorizontalAccuracy:   toFloatPtr(loc["horizontal_accuracy"]),
			LivePeriod:           toIntPtr(loc["live_period"]),
			Heading:              toIntPtr(loc["heading"]),
			ProximityAlertRadius: toIntPtr(loc["proximity_alert_radius"]),
		}
		return &msg, nil
	}
	if u := p.String("document_url", aliases); u != "" {
		msg := base
		msg.Kind = transport.KindDocument
		msg.Document = &transport.DocumentParams{
			URL:      u,
			Filename: p.String("filename", aliases),
		}
		return &msg, nil
	}
	if u := p.String("video_url", aliases); u != "" {
		msg := base
		msg.Kind = transport.KindVideo
		msg.Video = &transport.VideoParams{
			URL:               u,
			ThumbnailURL:      p.String("thumbnail_url", aliases),
			Width:             p.Int("width", aliases),
			Height:            p.Int("height", aliases),
			Duration:          p.Int("duration", aliases),
			SupportsStreaming: toBoolPtr(p.Field("supports_streaming", aliases)),
		}
		return &msg, nil
	}
	if u := p.String("audio_url", aliases); u != "" {
		msg := base
		msg.Kind = transport.KindAudio
		msg.Audio = &transport.AudioParams{
			URL:          u,
			Duration:     p.Int("duration", aliases),
			Performer:    p.String("performer", aliases),
			Title:        p.String("title", aliases),
			ThumbnailURL: p.String("thumbnail_url", aliases),
		}
		return &msg, nil
	}
	if u := p.String("voice_url", aliases); u != "" {
		msg := base
		msg.Kind = transport.KindVoice
		msg.Voice = &transport.VoiceParams{
			URL:      u,
			Duration: p.Int("duration", aliases),
		}
		return &msg, nil
	}
	if urls := p.Strings("image_urls", aliases); len(urls) > 0 {
		if len(urls) > 10 {
			urls = urls[:10]
		}
		msg := base
		// Media groups cannot carry reply markup.
		msg.Markup = nil
		msg.Kind = transport.KindMediaGroup
		msg.Album = urls
		return &msg, nil
	}
	if u := p.String("image_url", aliases); u != "" {
		msg := base
		msg.Kind = transport.KindPhoto
		msg.Photo = &transport.PhotoParams{URL: u}
		return &msg, nil
	}
	return nil, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toFloatPtr(v any) *float64 {
	if f, ok := toFloat(v); ok {
		return &f
	}
	return nil
}

func toIntPtr(v any) *int {
	if f, ok := toFloat(v); ok {
		n := int(f)
		return &n
	}
	return nil
}

func toBoolPtr(v any) *bool {
	if b, ok := v.(bool); ok {
		return &b
	}
	return nil
}
