package dispatch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"hookbot/internal/transport"
	"hookbot/pkg/logx"
)

// Options bound the dispatcher's retry and throughput behavior.
type Options struct {
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	SendTimeout   time.Duration
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.RetryBase <= 0 {
		out.RetryBase = 500 * time.Millisecond
	}
	if out.RetryMaxDelay <= 0 {
		out.RetryMaxDelay = 10 * time.Second
	}
	if out.SendTimeout <= 0 {
		out.SendTimeout = 30 * time.Second
	}
	return out
}

// Result is the outcome of one (message, chat) delivery.
type Result struct {
	ChatID    string
	MessageID int
	Err       error
}

// Dispatcher drives outbound delivery: chats in parallel, messages
// within a chat in plan order, transient failures retried with
// exponential backoff.
type Dispatcher struct {
	sender  transport.Sender
	limiter *rate.Limiter
	opts    Options
	log     logx.Logger

	// sleep is swapped in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(sender transport.Sender, opts Options, log logx.Logger) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		sender: sender,
		opts:   opts,
		log:    log,
		sleep:  sleepCtx,
	}
	if opts.RatePerSec > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.RatePerSec)
	}
	return d
}

// Dispatch delivers the plan and reports one result per (message, chat)
// pair, grouped in chat order. Delivery outlives the caller's request:
// a disconnected HTTP client must not cancel sends already underway.
func (d *Dispatcher) Dispatch(ctx context.Context, plan *Plan) []Result {
	ctx = context.WithoutCancel(ctx)

	perChat := make([][]Result, len(plan.ChatIDs))
	var wg sync.WaitGroup
	for i, chatID := range plan.ChatIDs {
		wg.Add(1)
		go func(i int, chatID string) {
			defer wg.Done()
			perChat[i] = d.sendChat(ctx, chatID, plan.Messages)
		}(i, chatID)
	}
	wg.Wait()

	var out []Result
	for _, rs := range perChat {
		out = append(out, rs...)
	}
	return out
}

// sendChat delivers the sequence to one chat in order. A failed message
// stops the rest of the sequence for that chat: sending an invoice
// whose lead-in text never arrived would reorder the conversation.
func (d *Dispatcher) sendChat(ctx context.Context, chatID string, msgs []*transport.Outbound) []Result {
	out := make([]Result, 0, len(msgs))
	for _, msg := range msgs {
		res, err := d.sendOne(ctx, chatID, msg)
		if err != nil {
			out = append(out, Result{ChatID: chatID, Err: err})
			break
		}
		out = append(out, Result{ChatID: chatID, MessageID: res.MessageID})
	}
	return out
}

func (d *Dispatcher) sendOne(ctx context.Context, chatID string, msg *transport.Outbound) (transport.SendResult, error) {
	maxAttempts := 1
	if d.opts.RetryMax > 0 {
		maxAttempts = 1 + d.opts.RetryMax
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return transport.SendResult{}, err
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
		res, err := d.sender.Send(callCtx, chatID, msg)
		cancel()
		if err == nil {
			return res, nil
		}
		lastErr = err

		hint, transient := transport.IsTransient(err)
		if !transient {
			d.log.Warn("send failed permanently",
				logx.String("chat_id", chatID),
				logx.String("kind", string(msg.Kind)),
				logx.Err(err))
			return transport.SendResult{}, err
		}
		d.log.Debug("send failed",
			logx.String("chat_id", chatID),
			logx.Int("attempt", attempt),
			logx.Int("max", maxAttempts),
			logx.Err(err))
		if attempt >= maxAttempts {
			break
		}

		delay := d.retryDelay(attempt)
		if hint > delay {
			delay = hint
		}
		if err := d.sleep(ctx, delay); err != nil {
			return transport.SendResult{}, err
		}
	}
	return transport.SendResult{}, lastErr
}

// retryDelay computes the wait before attempt+1: base * 2^(attempt-1),
// capped at the configured maximum.
func (d *Dispatcher) retryDelay(attempt int) time.Duration {
	delay := d.opts.RetryBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= d.opts.RetryMaxDelay {
			return d.opts.RetryMaxDelay
		}
	}
	if delay > d.opts.RetryMaxDelay {
		delay = d.opts.RetryMaxDelay
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
