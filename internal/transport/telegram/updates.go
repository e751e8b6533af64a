package telegram

import (
	"encoding/json"
	"fmt"
	"strconv"

	"hookbot/internal/transport"
)

// wireUpdate mirrors the subset of the Bot API update object the router
// consumes. From and Message on callbacks stay raw so they can be
// forwarded without loss.
type wireUpdate struct {
	UpdateID int          `json:"update_id"`
	Message  *wireMessage `json:"message"`
	Callback *struct {
		ID      string          `json:"id"`
		From    json.RawMessage `json:"from"`
		Message json.RawMessage `json:"message"`
		Data    string          `json:"data"`
	} `json:"callback_query"`
}

type wireMessage struct {
	MessageID int `json:"message_id"`
	From      *struct {
		ID        int64  `json:"id"`
		FirstName string `json:"first_name"`
		Username  string `json:"username"`
	} `json:"from"`
	Chat *struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	Text string `json:"text"`
}

// ParseUpdate decodes a webhook body into the router's update shape.
// Updates carrying neither a message nor a callback query return
// (nil, nil): valid traffic this gateway does not handle.
func ParseUpdate(body []byte) (*transport.Update, error) {
	var w wireUpdate
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}

	if w.Callback != nil {
		cb := &transport.Callback{
			ID:   w.Callback.ID,
			Data: w.Callback.Data,
		}
		if len(w.Callback.From) > 0 {
			_ = json.Unmarshal(w.Callback.From, &cb.From)
		}
		if len(w.Callback.Message) > 0 {
			_ = json.Unmarshal(w.Callback.Message, &cb.Message)
			var msg wireMessage
			if json.Unmarshal(w.Callback.Message, &msg) == nil {
				cb.MessageID = msg.MessageID
				if msg.Chat != nil {
					cb.ChatID = strconv.FormatInt(msg.Chat.ID, 10)
				}
			}
		}
		return &transport.Update{Kind: transport.UpdateCallback, Callback: cb}, nil
	}

	if w.Message != nil {
		m := &transport.Message{
			ID:   w.Message.MessageID,
			Text: w.Message.Text,
		}
		if w.Message.Chat != nil {
			m.ChatID = strconv.FormatInt(w.Message.Chat.ID, 10)
		}
		if w.Message.From != nil {
			m.FromID = w.Message.From.ID
			m.FirstName = w.Message.From.FirstName
			m.Username = w.Message.From.Username
		}
		return &transport.Update{Kind: transport.UpdateMessage, Message: m}, nil
	}

	return nil, nil
}
