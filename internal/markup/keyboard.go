package markup

import (
	"strings"
	"text/template"

	"hookbot/internal/config"
	"hookbot/internal/format"
	"hookbot/internal/payload"
	"hookbot/internal/transport"
)

// replyButton is one compiled reply-keyboard button. Text and the
// web_app url render per request; request variants pass through.
type replyButton struct {
	spec   config.KeyboardButtonConfig
	text   *template.Template
	webApp *template.Template
}

// ReplyGrid is a compiled reply keyboard layout.
type ReplyGrid struct {
	engine      *format.Engine
	spec        *config.ReplyKeyboardConfig
	rows        [][]replyButton
	placeholder *template.Template
}

func CompileReply(engine *format.Engine, spec *config.ReplyKeyboardConfig) (*ReplyGrid, error) {
	if spec == nil {
		return nil, nil
	}
	g := &ReplyGrid{engine: engine, spec: spec}
	for i, row := range spec.Keyboard {
		out := make([]replyButton, 0, len(row))
		for j, btn := range row {
			if strings.TrimSpace(btn.Text) == "" {
				return nil, config.Errorf("reply_keyboard", "button at row %d col %d has empty text", i, j)
			}
			t, err := engine.Parse("keyboard.text", btn.Text)
			if err != nil {
				return nil, config.Errorf("reply_keyboard", "%s", err)
			}
			rb := replyButton{spec: btn, text: t}
			if btn.WebApp != nil {
				rb.webApp, err = engine.Parse("keyboard.web_app", btn.WebApp.URL)
				if err != nil {
					return nil, config.Errorf("reply_keyboard", "%s", err)
				}
			}
			out = append(out, rb)
		}
		g.rows = append(g.rows, out)
	}
	if spec.InputFieldPlaceholder != "" {
		t, err := engine.Parse("keyboard.placeholder", spec.InputFieldPlaceholder)
		if err != nil {
			return nil, config.Errorf("reply_keyboard", "%s", err)
		}
		g.placeholder = t
	}
	return g, nil
}

func (g *ReplyGrid) Render(p payload.Payload) (*transport.ReplyKeyboardMarkup, error) {
	if g == nil {
		return nil, nil
	}
	data := map[string]any(p)
	keyboard := make([][]transport.KeyboardButton, 0, len(g.rows))
	for _, row := range g.rows {
		out := make([]transport.KeyboardButton, 0, len(row))
		for _, rb := range row {
			text, err := g.engine.RenderRaw(rb.text, data)
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(text) == "" {
				continue
			}
			btn := transport.KeyboardButton{
				Text:            text,
				RequestContact:  rb.spec.RequestContact,
				RequestLocation: rb.spec.RequestLocation,
			}
			if rb.spec.RequestPoll != nil {
				btn.RequestPoll = &transport.PollType{Type: rb.spec.RequestPoll.Type}
			}
			if rb.webApp != nil {
				u, err := g.engine.RenderRaw(rb.webApp, data)
				if err != nil {
					return nil, err
				}
				btn.WebApp = &transport.WebAppInfo{URL: u}
			}
			out = append(out, btn)
		}
		if len(out) > 0 {
			keyboard = append(keyboard, out)
		}
	}
	if len(keyboard) == 0 {
		return nil, nil
	}
	markup := &transport.ReplyKeyboardMarkup{
		Keyboard:        keyboard,
		IsPersistent:    g.spec.IsPersistent,
		ResizeKeyboard:  g.spec.ResizeKeyboard,
		OneTimeKeyboard: g.spec.OneTimeKeyboard,
		Selective:       g.spec.Selective,
	}
	if g.placeholder != nil {
		ph, err := g.engine.RenderRaw(g.placeholder, data)
		if err != nil {
			return nil, err
		}
		markup.InputFieldPlaceholder = ph
	}
	return markup, nil
}

// forceReply is the compiled force-reply variant; its placeholder is a
// template like every other user-visible markup string.
type forceReply struct {
	engine      *format.Engine
	placeholder *template.Template
	selective   *bool
}

func compileForceReply(engine *format.Engine, spec *config.ForceReplyConfig) (*forceReply, error) {
	if spec == nil {
		return nil, nil
	}
	fr := &forceReply{engine: engine, selective: spec.Selective}
	if spec.InputFieldPlaceholder != "" {
		t, err := engine.Parse("force_reply.placeholder", spec.InputFieldPlaceholder)
		if err != nil {
			return nil, config.Errorf("force_reply", "%s", err)
		}
		fr.placeholder = t
	}
	return fr, nil
}

func (fr *forceReply) render(p payload.Payload) (*transport.ForceReply, error) {
	out := &transport.ForceReply{ForceReply: true, Selective: fr.selective}
	if fr.placeholder != nil {
		ph, err := fr.engine.RenderRaw(fr.placeholder, map[string]any(p))
		if err != nil {
			return nil, err
		}
		out.InputFieldPlaceholder = ph
	}
	return out, nil
}

// Controls is the compiled markup attachment of an endpoint: at most
// one of the variants is set (enforced at config validation).
type Controls struct {
	inline     *InlineGrid
	reply      *ReplyGrid
	remove     *transport.ReplyKeyboardRemove
	forceReply *forceReply
}

// Compile builds the endpoint's configured control variant.
func Compile(engine *format.Engine, e *config.EndpointConfig) (*Controls, error) {
	c := &Controls{}
	var err error
	if c.inline, err = CompileInline(engine, e.Buttons); err != nil {
		return nil, err
	}
	if c.reply, err = CompileReply(engine, e.ReplyKeyboard); err != nil {
		return nil, err
	}
	if e.ReplyKeyboardRemove != nil {
		c.remove = &transport.ReplyKeyboardRemove{
			RemoveKeyboard: true,
			Selective:      e.ReplyKeyboardRemove.Selective,
		}
	}
	if c.forceReply, err = compileForceReply(engine, e.ForceReply); err != nil {
		return nil, err
	}
	return c, nil
}

// Render returns the wire markup for a request, or nil when nothing
// applies. Render errors degrade to nil so a bad dynamic value never
// blocks the message itself; the error is reported for logging.
func (c *Controls) Render(p payload.Payload) (any, error) {
	if c == nil {
		return nil, nil
	}
	switch {
	case c.inline != nil:
		m, err := c.inline.Render(p)
		if err != nil || m == nil {
			return nil, err
		}
		return m, nil
	case c.reply != nil:
		m, err := c.reply.Render(p)
		if err != nil || m == nil {
			return nil, err
		}
		return m, nil
	case c.remove != nil:
		return c.remove, nil
	case c.forceReply != nil:
		return c.forceReply.render(p)
	}
	return nil, nil
}
