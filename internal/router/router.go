// Package router dispatches inbound platform updates to configured
// command and callback handlers.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"text/template"
	"time"

	"hookbot/internal/config"
	"hookbot/internal/format"
	"hookbot/internal/markup"
	"hookbot/internal/payload"
	"hookbot/internal/transport"
	"hookbot/pkg/logx"
)

type commandHandler struct {
	spec     config.CommandConfig
	response *template.Template
	grid     *markup.InlineGrid
}

// Router matches updates against handlers by exact string. Handlers are
// registered at startup; matching is lock-free afterward.
type Router struct {
	engine    *format.Engine
	sender    transport.Sender
	commands  map[string]*commandHandler
	callbacks map[string]config.CallbackConfig
	http      *http.Client
	log       logx.Logger

	fwdWG sync.WaitGroup
}

func New(engine *format.Engine, sender transport.Sender, log logx.Logger) *Router {
	return &Router{
		engine:    engine,
		sender:    sender,
		commands:  make(map[string]*commandHandler),
		callbacks: make(map[string]config.CallbackConfig),
		http:      &http.Client{Timeout: 10 * time.Second},
		log:       log,
	}
}

// AddCommand compiles and registers one command handler. A compile
// failure rejects this handler only.
func (r *Router) AddCommand(spec config.CommandConfig) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	h := &commandHandler{spec: spec}
	if spec.Response != "" {
		t, err := r.engine.Parse("command"+spec.Command, spec.Response)
		if err != nil {
			return config.Errorf("commands", "%s: %s", spec.Command, err)
		}
		h.response = t
	}
	grid, err := markup.CompileInline(r.engine, spec.Buttons)
	if err != nil {
		return err
	}
	h.grid = grid
	r.commands[spec.Command] = h
	return nil
}

func (r *Router) AddCallback(spec config.CallbackConfig) error {
	if strings.TrimSpace(spec.Data) == "" {
		return config.Errorf("callbacks", "data is required")
	}
	r.callbacks[spec.Data] = spec
	return nil
}

// HandleUpdate routes one update. Errors never propagate to the
// webhook response; they are logged and swallowed.
func (r *Router) HandleUpdate(ctx context.Context, up *transport.Update) {
	if up == nil {
		return
	}
	switch up.Kind {
	case transport.UpdateMessage:
		r.handleMessage(ctx, up.Message)
	case transport.UpdateCallback:
		r.handleCallback(ctx, up.Callback)
	}
}

// handleMessage answers exact-match commands. Anything else, including
// unknown commands, is dropped silently so the bot never replies to
// conversations that are not for it.
func (r *Router) handleMessage(ctx context.Context, m *transport.Message) {
	if m == nil || !strings.HasPrefix(m.Text, "/") {
		return
	}
	token := strings.Fields(m.Text)[0]
	if at := strings.Index(token, "@"); at >= 0 {
		token = token[:at]
	}
	h, ok := r.commands[token]
	if !ok {
		return
	}
	r.log.Info("command matched",
		logx.String("command", token),
		logx.String("chat_id", m.ChatID),
		logx.Int64("from", m.FromID))

	cmdCtx := map[string]any{
		"user": map[string]any{
			"id":         m.FromID,
			"first_name": m.FirstName,
			"username":   m.Username,
		},
		"chat_id":    m.ChatID,
		"first_name": m.FirstName,
		"username":   m.Username,
		"command":    token,
	}

	if h.response == nil {
		return
	}
	text, err := r.engine.Render(h.response, cmdCtx, h.spec.ParseMode)
	if err != nil {
		r.log.Warn("command response render failed", logx.String("command", token), logx.Err(err))
		return
	}
	if text == "" {
		return
	}

	var mk any
	if h.grid != nil {
		km, err := h.grid.Render(payload.Payload(cmdCtx))
		if err != nil {
			r.log.Warn("command buttons render failed", logx.String("command", token), logx.Err(err))
		} else if km != nil {
			mk = km
		}
	}

	_, err = r.sender.Send(ctx, m.ChatID, &transport.Outbound{
		Kind:      transport.KindText,
		Text:      text,
		ParseMode: h.spec.ParseMode,
		Markup:    mk,
	})
	if err != nil {
		r.log.Warn("command reply failed", logx.String("command", token), logx.Err(err))
	}
}

// handleCallback acknowledges every callback; matched ones get the
// configured response text and an optional forward POST.
func (r *Router) handleCallback(ctx context.Context, cb *transport.Callback) {
	if cb == nil {
		return
	}
	spec, ok := r.callbacks[cb.Data]
	if !ok {
		if err := r.sender.AnswerCallback(ctx, cb.ID, ""); err != nil {
			r.log.Warn("callback ack failed", logx.String("id", cb.ID), logx.Err(err))
		}
		return
	}
	if err := r.sender.AnswerCallback(ctx, cb.ID, spec.Response); err != nil {
		r.log.Warn("callback answer failed", logx.String("id", cb.ID), logx.Err(err))
	}
	if spec.URL != "" {
		r.fwdWG.Add(1)
		go r.forward(spec.URL, cb)
	}
}

// forward relays the callback context to an external URL. Fire and
// forget: a slow or broken receiver never delays the acknowledgment.
func (r *Router) forward(url string, cb *transport.Callback) {
	defer r.fwdWG.Done()
	body, err := json.Marshal(map[string]any{
		"callback_data": cb.Data,
		"user":          cb.From,
		"message":       cb.Message,
	})
	if err != nil {
		r.log.Warn("callback forward encode failed", logx.Err(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		r.log.Warn("callback forward failed", logx.String("url", url), logx.Err(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.http.Do(req)
	if err != nil {
		r.log.Warn("callback forward failed", logx.String("url", url), logx.Err(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		r.log.Warn("callback forward rejected",
			logx.String("url", url),
			logx.Err(fmt.Errorf("status %d", resp.StatusCode)))
	}
}
