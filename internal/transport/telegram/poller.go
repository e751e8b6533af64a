package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"hookbot/internal/transport"
	"hookbot/pkg/logx"
)

// Poller feeds updates into the router through Bot API long polling,
// for deployments that cannot expose a public webhook URL.
type Poller struct {
	bot *tele.Bot
	log logx.Logger

	runMu     sync.Mutex
	running   bool
	runCancel context.CancelFunc
	runWG     sync.WaitGroup

	dropped uint64
}

func NewPoller(token string, pollTimeout time.Duration, log logx.Logger) (*Poller, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("bot token is empty")
	}
	if pollTimeout <= 0 {
		pollTimeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: pollTimeout},
	})
	if err != nil {
		return nil, err
	}
	return &Poller{bot: b, log: log}, nil
}

// Start begins polling and pushes updates onto out. Non-blocking; a
// full channel drops the update rather than stalling the poll loop.
func (p *Poller) Start(ctx context.Context, out chan<- *transport.Update) error {
	p.runMu.Lock()
	if p.running {
		p.runMu.Unlock()
		return nil
	}
	p.running = true
	rctx, cancel := context.WithCancel(ctx)
	p.runCancel = cancel
	p.runWG.Add(1)
	p.runMu.Unlock()

	emit := func(up *transport.Update) {
		select {
		case out <- up:
		default:
			atomic.AddUint64(&p.dropped, 1)
		}
	}

	p.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Chat == nil || m.Sender == nil {
			return nil
		}
		emit(&transport.Update{
			Kind: transport.UpdateMessage,
			Message: &transport.Message{
				ID:        m.ID,
				ChatID:    strconv.FormatInt(m.Chat.ID, 10),
				FromID:    m.Sender.ID,
				FirstName: m.Sender.FirstName,
				Username:  m.Sender.Username,
				Text:      m.Text,
			},
		})
		return nil
	})

	p.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		cb := c.Callback()
		m := c.Message()
		if cb == nil || m == nil || m.Chat == nil {
			return nil
		}
		out := &transport.Callback{
			ID:        cb.ID,
			ChatID:    strconv.FormatInt(m.Chat.ID, 10),
			MessageID: m.ID,
			// telebot prefixes callback data with "\f"; strip it so
			// matching sees the configured string.
			Data: strings.TrimPrefix(cb.Data, "\f"),
			Message: map[string]any{
				"message_id": m.ID,
				"chat":       map[string]any{"id": m.Chat.ID},
			},
		}
		if cb.Sender != nil {
			out.From = map[string]any{
				"id":         cb.Sender.ID,
				"first_name": cb.Sender.FirstName,
				"username":   cb.Sender.Username,
			}
		}
		emit(&transport.Update{Kind: transport.UpdateCallback, Callback: out})
		return nil
	})

	go func() {
		defer p.runWG.Done()
		go func() {
			<-rctx.Done()
			p.bot.Stop()
		}()
		p.log.Info("polling started")
		p.bot.Start() // blocks until Stop
		if n := atomic.SwapUint64(&p.dropped, 0); n > 0 {
			p.log.Warn("updates dropped (channel full)", logx.Int64("count", int64(n)))
		}
	}()
	return nil
}

// Stop ends polling. Best effort: long-poll shutdown must never hold
// process shutdown hostage.
func (p *Poller) Stop() {
	p.runMu.Lock()
	cancel := p.runCancel
	p.runCancel = nil
	wasRunning := p.running
	p.running = false
	p.runMu.Unlock()

	if !wasRunning {
		return
	}
	if cancel != nil {
		cancel()
	}
	done := make(chan struct{})
	go func() {
		p.runWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		p.log.Warn("poller stop timed out")
	}
}
