package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hookbot/internal/transport"
	"hookbot/pkg/logx"
)

type sentCall struct {
	ChatID string
	Kind   transport.MessageKind
}

// fakeSender scripts per-chat failures and records call order.
type fakeSender struct {
	mu    sync.Mutex
	calls []sentCall
	// failures maps chat id to the errors returned before success.
	failures map[string][]error
	nextID   int
}

func (f *fakeSender) Send(ctx context.Context, chatID string, msg *transport.Outbound) (transport.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sentCall{ChatID: chatID, Kind: msg.Kind})
	if queue := f.failures[chatID]; len(queue) > 0 {
		err := queue[0]
		f.failures[chatID] = queue[1:]
		return transport.SendResult{}, err
	}
	f.nextID++
	return transport.SendResult{ChatID: chatID, MessageID: f.nextID}, nil
}

func (f *fakeSender) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return nil
}

func (f *fakeSender) callsFor(chatID string) []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentCall
	for _, c := range f.calls {
		if c.ChatID == chatID {
			out = append(out, c)
		}
	}
	return out
}

func noSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	var mu sync.Mutex
	return func(_ context.Context, d time.Duration) error {
		mu.Lock()
		*delays = append(*delays, d)
		mu.Unlock()
		return nil
	}
}

func textInvoicePlan(chats ...string) *Plan {
	return &Plan{
		ChatIDs: chats,
		Messages: []*transport.Outbound{
			{Kind: transport.KindText, Text: "Order ABC123"},
			{Kind: transport.KindInvoice, Invoice: &transport.InvoiceParams{Title: "Order"}},
		},
	}
}

func TestTextPrecedesInvoicePerChat(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	d := NewDispatcher(sender, Options{}, logx.Nop())

	results := d.Dispatch(context.Background(), textInvoicePlan("100", "200"))
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d: %+v", len(results), results)
	}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("unexpected failure: %+v", r)
		}
	}
	for _, chat := range []string{"100", "200"} {
		calls := sender.callsFor(chat)
		if len(calls) != 2 {
			t.Fatalf("chat %s: expected 2 sends, got %d", chat, len(calls))
		}
		if calls[0].Kind != transport.KindText || calls[1].Kind != transport.KindInvoice {
			t.Fatalf("chat %s: wrong order: %+v", chat, calls)
		}
	}
}

func TestRetriesTransientWithIncreasingDelay(t *testing.T) {
	t.Parallel()
	transientErr := &transport.TransientError{Err: errors.New("rate limited")}
	sender := &fakeSender{failures: map[string][]error{
		"100": {transientErr, transientErr},
	}}
	var delays []time.Duration
	d := NewDispatcher(sender, Options{
		RetryMax:  3,
		RetryBase: 500 * time.Millisecond,
	}, logx.Nop())
	d.sleep = noSleep(&delays)

	results := d.Dispatch(context.Background(), &Plan{
		ChatIDs:  []string{"100"},
		Messages: []*transport.Outbound{{Kind: transport.KindText, Text: "hi"}},
	})
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("expected success after retries, got %+v", results)
	}
	if got := len(sender.callsFor("100")); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if len(delays) != 2 {
		t.Fatalf("expected 2 backoff waits, got %v", delays)
	}
	if delays[0] != 500*time.Millisecond || delays[1] != time.Second {
		t.Fatalf("delays not doubling: %v", delays)
	}
}

func TestRetryAfterHintStretchesBackoff(t *testing.T) {
	t.Parallel()
	hinted := &transport.TransientError{Err: errors.New("429"), RetryAfter: 5 * time.Second}
	sender := &fakeSender{failures: map[string][]error{"100": {hinted}}}
	var delays []time.Duration
	d := NewDispatcher(sender, Options{RetryMax: 1, RetryBase: 100 * time.Millisecond}, logx.Nop())
	d.sleep = noSleep(&delays)

	d.Dispatch(context.Background(), &Plan{
		ChatIDs:  []string{"100"},
		Messages: []*transport.Outbound{{Kind: transport.KindText, Text: "hi"}},
	})
	if len(delays) != 1 || delays[0] != 5*time.Second {
		t.Fatalf("Retry-After hint not honored: %v", delays)
	}
}

func TestPermanentErrorNotRetried(t *testing.T) {
	t.Parallel()
	permErr := &transport.PermanentError{Code: 400, Err: errors.New("chat not found")}
	sender := &fakeSender{failures: map[string][]error{"bad": {permErr, permErr, permErr}}}
	d := NewDispatcher(sender, Options{RetryMax: 5}, logx.Nop())

	results := d.Dispatch(context.Background(), &Plan{
		ChatIDs:  []string{"bad"},
		Messages: []*transport.Outbound{{Kind: transport.KindText, Text: "hi"}},
	})
	if len(results) != 1 || results[0].Err == nil {
		t.Fatalf("expected a reported failure, got %+v", results)
	}
	if got := len(sender.callsFor("bad")); got != 1 {
		t.Fatalf("permanent error retried: %d attempts", got)
	}
}

func TestChatFailuresAreIndependent(t *testing.T) {
	t.Parallel()
	permErr := &transport.PermanentError{Code: 400, Err: errors.New("chat not found")}
	sender := &fakeSender{failures: map[string][]error{"bad": {permErr}}}
	d := NewDispatcher(sender, Options{}, logx.Nop())

	results := d.Dispatch(context.Background(), textInvoicePlan("bad", "good"))

	var badResults, goodResults []Result
	for _, r := range results {
		switch r.ChatID {
		case "bad":
			badResults = append(badResults, r)
		case "good":
			goodResults = append(goodResults, r)
		}
	}
	// The failed first message halts the rest of that chat's sequence.
	if len(badResults) != 1 || badResults[0].Err == nil {
		t.Fatalf("bad chat: %+v", badResults)
	}
	if len(goodResults) != 2 {
		t.Fatalf("good chat blocked by bad chat: %+v", goodResults)
	}
	for _, r := range goodResults {
		if r.Err != nil {
			t.Fatalf("good chat failed: %+v", r)
		}
	}
}

func TestFailedFirstMessageStopsSequence(t *testing.T) {
	t.Parallel()
	permErr := &transport.PermanentError{Code: 400, Err: errors.New("bad markup")}
	sender := &fakeSender{failures: map[string][]error{"100": {permErr}}}
	d := NewDispatcher(sender, Options{}, logx.Nop())

	d.Dispatch(context.Background(), textInvoicePlan("100"))
	if got := len(sender.callsFor("100")); got != 1 {
		t.Fatalf("invoice sent after text failed: %d calls", got)
	}
}
