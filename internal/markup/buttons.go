// Package markup compiles declarative button specs into renderable
// control layouts. Compilation happens once at startup so template
// syntax errors and placement violations surface as configuration
// errors, not request failures.
package markup

import (
	"strings"
	"text/template"

	"hookbot/internal/config"
	"hookbot/internal/format"
	"hookbot/internal/payload"
	"hookbot/internal/transport"
)

// InlineGrid is a compiled inline keyboard layout.
type InlineGrid struct {
	engine *format.Engine
	rows   [][]*inlineButton
}

type inlineButton struct {
	spec config.ButtonConfig

	text       *template.Template
	url        *template.Template
	callback   *template.Template
	webAppURL  *template.Template
	loginURL   *template.Template
	loginFwd   *template.Template
	switchQ    *template.Template
	switchCur  *template.Template
	chosenQ    *template.Template
	copyText   *template.Template
}

// CompileInline validates and compiles a button grid. A nil return with
// nil error means "no buttons configured".
func CompileInline(engine *format.Engine, grid [][]config.ButtonConfig) (*InlineGrid, error) {
	if len(grid) == 0 {
		return nil, nil
	}
	if err := config.ValidateButtons(grid); err != nil {
		return nil, config.Errorf("buttons", "%s", err)
	}

	g := &InlineGrid{engine: engine, rows: make([][]*inlineButton, 0, len(grid))}
	for _, row := range grid {
		out := make([]*inlineButton, 0, len(row))
		for _, spec := range row {
			b := &inlineButton{spec: spec}
			var err error
			parse := func(field, body string) *template.Template {
				if err != nil || body == "" {
					return nil
				}
				var t *template.Template
				t, err = engine.Parse("button."+field, body)
				return t
			}

			b.text = parse("text", spec.Text)
			b.url = parse("url", spec.URL)
			b.callback = parse("callback_data", spec.CallbackData)
			if spec.WebApp != nil {
				b.webAppURL = parse("web_app.url", spec.WebApp.URL)
			}
			if spec.LoginURL != nil {
				b.loginURL = parse("login_url.url", spec.LoginURL.URL)
				b.loginFwd = parse("login_url.forward_text", spec.LoginURL.ForwardText)
			}
			if spec.SwitchInlineQuery != nil {
				b.switchQ = parse("switch_inline_query", *spec.SwitchInlineQuery)
			}
			if spec.SwitchInlineQueryCurrentChat != nil {
				b.switchCur = parse("switch_inline_query_current_chat", *spec.SwitchInlineQueryCurrentChat)
			}
			if spec.SwitchInlineQueryChosenChat != nil && spec.SwitchInlineQueryChosenChat.Query != nil {
				b.chosenQ = parse("switch_inline_query_chosen_chat.query", *spec.SwitchInlineQueryChosenChat.Query)
			}
			if spec.CopyText != nil {
				b.copyText = parse("copy_text.text", spec.CopyText.Text)
			}
			if err != nil {
				return nil, config.Errorf("buttons", "%s", err)
			}
			out = append(out, b)
		}
		g.rows = append(g.rows, out)
	}
	return g, nil
}

// Render evaluates every templated field against the payload and emits
// the wire-level markup. Buttons whose text renders empty are dropped;
// if nothing survives, the result is nil (no controls attached).
func (g *InlineGrid) Render(p payload.Payload) (*transport.InlineKeyboardMarkup, error) {
	if g == nil {
		return nil, nil
	}
	data := map[string]any(p)
	keyboard := make([][]transport.InlineKeyboardButton, 0, len(g.rows))
	for _, row := range g.rows {
		out := make([]transport.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			btn, ok, err := g.renderButton(b, data)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, btn)
			}
		}
		if len(out) > 0 {
			keyboard = append(keyboard, out)
		}
	}
	if len(keyboard) == 0 {
		return nil, nil
	}
	return &transport.InlineKeyboardMarkup{InlineKeyboard: keyboard}, nil
}

func (g *InlineGrid) renderButton(b *inlineButton, data map[string]any) (transport.InlineKeyboardButton, bool, error) {
	var btn transport.InlineKeyboardButton

	text, err := g.render(b.text, data)
	if err != nil {
		return btn, false, err
	}
	if strings.TrimSpace(text) == "" {
		return btn, false, nil
	}
	if b.spec.Pay {
		text = PayButtonText(text)
	}
	btn.Text = text

	switch {
	case b.url != nil:
		btn.URL, err = g.render(b.url, data)
	case b.callback != nil:
		btn.CallbackData, err = g.render(b.callback, data)
	case b.spec.WebApp != nil:
		var u string
		u, err = g.render(b.webAppURL, data)
		btn.WebApp = &transport.WebAppInfo{URL: u}
	case b.spec.LoginURL != nil:
		var u, fwd string
		if u, err = g.render(b.loginURL, data); err == nil {
			fwd, err = g.render(b.loginFwd, data)
		}
		btn.LoginURL = &transport.LoginURL{
			URL:                u,
			ForwardText:        fwd,
			BotUsername:        b.spec.LoginURL.BotUsername,
			RequestWriteAccess: b.spec.LoginURL.RequestWriteAccess,
		}
	case b.spec.SwitchInlineQuery != nil:
		var q string
		q, err = g.render(b.switchQ, data)
		btn.SwitchInlineQuery = &q
	case b.spec.SwitchInlineQueryCurrentChat != nil:
		var q string
		q, err = g.render(b.switchCur, data)
		btn.SwitchInlineQueryCurrentChat = &q
	case b.spec.SwitchInlineQueryChosenChat != nil:
		cc := &transport.SwitchInlineQueryChosenChat{
			AllowUserChats:    b.spec.SwitchInlineQueryChosenChat.AllowUserChats,
			AllowBotChats:     b.spec.SwitchInlineQueryChosenChat.AllowBotChats,
			AllowGroupChats:   b.spec.SwitchInlineQueryChosenChat.AllowGroupChats,
			AllowChannelChats: b.spec.SwitchInlineQueryChosenChat.AllowChannelChats,
		}
		if b.chosenQ != nil {
			var q string
			q, err = g.render(b.chosenQ, data)
			cc.Query = &q
		}
		btn.SwitchInlineQueryChosenChat = cc
	case b.spec.CopyText != nil:
		var txt string
		txt, err = g.render(b.copyText, data)
		btn.CopyText = &transport.CopyTextButton{Text: txt}
	case b.spec.CallbackGame:
		btn.CallbackGame = &struct{}{}
	case b.spec.Pay:
		btn.Pay = true
	}
	if err != nil {
		return btn, false, err
	}
	return btn, true, nil
}

func (g *InlineGrid) render(t *template.Template, data map[string]any) (string, error) {
	if t == nil {
		return "", nil
	}
	return g.engine.RenderRaw(t, data)
}

// PayButtonText applies the platform's star-icon substitution to a pay
// button label: "⭐️" and "XTR" are each replaced with "⭐", as two
// independent sequential substring replacements.
func PayButtonText(text string) string {
	text = strings.ReplaceAll(text, "⭐️", "⭐")
	return strings.ReplaceAll(text, "XTR", "⭐")
}
