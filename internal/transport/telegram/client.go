// Package telegram implements the outbound platform capability against
// the Bot API over plain HTTP, plus the inbound update sources (webhook
// parsing and an optional long-poll adapter).
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hookbot/internal/transport"
	"hookbot/pkg/logx"
)

const defaultAPIBase = "https://api.telegram.org"

// Client performs exactly one Bot API call per Send; retry policy is
// the caller's. Safe for concurrent use.
type Client struct {
	token    string
	apiBase  string
	testMode bool
	http     *http.Client
	log      logx.Logger
}

type ClientOption func(*Client)

// WithAPIBase points the client at a different API host. Used by tests
// and local Bot API servers.
func WithAPIBase(base string) ClientOption {
	return func(c *Client) { c.apiBase = strings.TrimRight(base, "/") }
}

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithTestMode makes every send a logged no-op that reports success.
func WithTestMode(on bool) ClientOption {
	return func(c *Client) { c.testMode = on }
}

func NewClient(token string, log logx.Logger, opts ...ClientOption) *Client {
	c := &Client{
		token:   strings.TrimSpace(token),
		apiBase: defaultAPIBase,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiResponse is the Bot API envelope shared by every method.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// call posts one method and decodes the envelope. Error classification:
// 429 and 5xx (and network failures) are transient, other non-OK
// responses are permanent.
func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return &transport.PermanentError{Err: fmt.Errorf("%s: encode: %w", method, err)}
	}
	url := c.apiBase + "/bot" + c.token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &transport.PermanentError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &transport.TransientError{Err: fmt.Errorf("%s: %w", method, err)}
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return &transport.TransientError{Err: fmt.Errorf("%s: decode: %w", method, err)}
	}
	if out.OK {
		if result != nil && len(out.Result) > 0 {
			if err := json.Unmarshal(out.Result, result); err != nil {
				return &transport.PermanentError{Err: fmt.Errorf("%s: result: %w", method, err)}
			}
		}
		return nil
	}

	apiErr := fmt.Errorf("%s: %s (code=%d http=%d)", method, out.Description, out.ErrorCode, resp.StatusCode)
	switch {
	case out.ErrorCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTooManyRequests:
		var hint time.Duration
		if out.Parameters != nil && out.Parameters.RetryAfter > 0 {
			hint = time.Duration(out.Parameters.RetryAfter) * time.Second
		}
		return &transport.TransientError{Err: apiErr, RetryAfter: hint}
	case resp.StatusCode >= 500:
		return &transport.TransientError{Err: apiErr}
	default:
		return &transport.PermanentError{Code: out.ErrorCode, Err: apiErr}
	}
}

type sentMessage struct {
	MessageID int `json:"message_id"`
}

// Send delivers one outbound message with a single API call.
func (c *Client) Send(ctx context.Context, chatID string, msg *transport.Outbound) (transport.SendResult, error) {
	if c.testMode {
		c.log.Info("test mode: send skipped",
			logx.String("chat_id", chatID),
			logx.String("kind", string(msg.Kind)),
			logx.String("text", msg.Text))
		return transport.SendResult{ChatID: chatID}, nil
	}

	method, params := c.buildCall(chatID, msg)

	if msg.Kind == transport.KindMediaGroup {
		var sent []sentMessage
		if err := c.call(ctx, method, params, &sent); err != nil {
			return transport.SendResult{}, err
		}
		res := transport.SendResult{ChatID: chatID}
		if len(sent) > 0 {
			res.MessageID = sent[0].MessageID
		}
		return res, nil
	}

	var sent sentMessage
	if err := c.call(ctx, method, params, &sent); err != nil {
		return transport.SendResult{}, err
	}
	return transport.SendResult{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// AnswerCallback acknowledges a callback query, optionally with a
// notification text.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if c.testMode {
		c.log.Info("test mode: answerCallbackQuery skipped", logx.String("id", callbackID))
		return nil
	}
	params := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		params["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", params, nil)
}

// buildCall maps an outbound message onto its Bot API method and
// parameter object.
func (c *Client) buildCall(chatID string, msg *transport.Outbound) (string, map[string]any) {
	p := map[string]any{"chat_id": chatID}
	setText := func(key string) {
		if msg.Text != "" {
			p[key] = msg.Text
			if msg.ParseMode != "" {
				p["parse_mode"] = msg.ParseMode
			}
		}
	}
	if msg.Markup != nil {
		p["reply_markup"] = msg.Markup
	}

	switch msg.Kind {
	case transport.KindPhoto:
		p["photo"] = msg.Photo.URL
		setText("caption")
		return "sendPhoto", p

	case transport.KindMediaGroup:
		delete(p, "reply_markup")
		media := make([]map[string]any, 0, len(msg.Album))
		for i, url := range msg.Album {
			item := map[string]any{"type": "photo", "media": url}
			// The album caption rides on its first item.
			if i == 0 && msg.Text != "" {
				item["caption"] = msg.Text
				if msg.ParseMode != "" {
					item["parse_mode"] = msg.ParseMode
				}
			}
			media = append(media, item)
		}
		p["media"] = media
		return "sendMediaGroup", p

	case transport.KindDocument:
		p["document"] = msg.Document.URL
		setText("caption")
		return "sendDocument", p

	case transport.KindVideo:
		v := msg.Video
		p["video"] = v.URL
		setText("caption")
		if v.ThumbnailURL != "" {
			p["thumbnail"] = v.ThumbnailURL
		}
		if v.Width > 0 {
			p["width"] = v.Width
		}
		if v.Height > 0 {
			p["height"] = v.Height
		}
		if v.Duration > 0 {
			p["duration"] = v.Duration
		}
		if v.SupportsStreaming != nil {
			p["supports_streaming"] = *v.SupportsStreaming
		}
		return "sendVideo", p

	case transport.KindAudio:
		a := msg.Audio
		p["audio"] = a.URL
		setText("caption")
		if a.Duration > 0 {
			p["duration"] = a.Duration
		}
		if a.Performer != "" {
			p["performer"] = a.Performer
		}
		if a.Title != "" {
			p["title"] = a.Title
		}
		if a.ThumbnailURL != "" {
			p["thumbnail"] = a.ThumbnailURL
		}
		return "sendAudio", p

	case transport.KindVoice:
		p["voice"] = msg.Voice.URL
		setText("caption")
		if msg.Voice.Duration > 0 {
			p["duration"] = msg.Voice.Duration
		}
		return "sendVoice", p

	case transport.KindLocation:
		l := msg.Location
		p["latitude"] = l.Latitude
		p["longitude"] = l.Longitude
		if l.HorizontalAccuracy != nil {
			p["horizontal_accuracy"] = *l.HorizontalAccuracy
		}
		if l.LivePeriod != nil {
			p["live_period"] = *l.LivePeriod
		}
		if l.Heading != nil {
			p["heading"] = *l.Heading
		}
		if l.ProximityAlertRadius != nil {
			p["proximity_alert_radius"] = *l.ProximityAlertRadius
		}
		return "sendLocation", p

	case transport.KindInvoice:
		inv := msg.Invoice
		b, _ := json.Marshal(inv)
		_ = json.Unmarshal(b, &p)
		p["chat_id"] = chatID
		if msg.Markup != nil {
			p["reply_markup"] = msg.Markup
		}
		return "sendInvoice", p

	default:
		setText("text")
		if msg.Text == "" {
			p["text"] = ""
		}
		return "sendMessage", p
	}
}
