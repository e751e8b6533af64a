package transport

import "context"

// ---- Inbound updates ----

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type Message struct {
	ID        int
	ChatID    string
	FromID    int64
	FirstName string
	Username  string
	Text      string
}

type Callback struct {
	ID        string
	ChatID    string
	MessageID int
	Data      string

	// From and Message carry the raw update objects so a forwarding
	// hook can relay them verbatim.
	From    map[string]any
	Message map[string]any
}

// ---- Outbound messages ----

type MessageKind string

const (
	KindText       MessageKind = "text"
	KindPhoto      MessageKind = "photo"
	KindMediaGroup MessageKind = "media_group"
	KindDocument   MessageKind = "document"
	KindVideo      MessageKind = "video"
	KindAudio      MessageKind = "audio"
	KindVoice      MessageKind = "voice"
	KindLocation   MessageKind = "location"
	KindInvoice    MessageKind = "invoice"
)

// Outbound is one message ready for delivery. Built by the assembler,
// consumed once by the dispatcher, not retained.
type Outbound struct {
	Kind      MessageKind
	Text      string // message body, or caption for media kinds
	ParseMode string

	// Markup is one of *InlineKeyboardMarkup, *ReplyKeyboardMarkup,
	// *ReplyKeyboardRemove, *ForceReply, or nil.
	Markup any

	Photo    *PhotoParams
	Album    []string // photo URLs, capped at 10 by the assembler
	Document *DocumentParams
	Video    *VideoParams
	Audio    *AudioParams
	Voice    *VoiceParams
	Location *LocationParams
	Invoice  *InvoiceParams
}

type PhotoParams struct {
	URL string
}

type DocumentParams struct {
	URL      string
	Filename string
}

type VideoParams struct {
	URL               string
	ThumbnailURL      string
	Width             int
	Height            int
	Duration          int
	SupportsStreaming *bool
}

type AudioParams struct {
	URL          string
	Duration     int
	Performer    string
	Title        string
	ThumbnailURL string
}

type VoiceParams struct {
	URL      string
	Duration int
}

type LocationParams struct {
	Latitude             float64
	Longitude            float64
	HorizontalAccuracy   *float64
	LivePeriod           *int
	Heading              *int
	ProximityAlertRadius *int
}

type InvoiceParams struct {
	Title               string         `json:"title"`
	Description         string         `json:"description"`
	Payload             string         `json:"payload"`
	ProviderToken       string         `json:"provider_token"`
	Currency            string         `json:"currency"`
	Prices              []LabeledPrice `json:"prices"`
	MaxTipAmount        *int64         `json:"max_tip_amount,omitempty"`
	SuggestedTipAmounts []int64        `json:"suggested_tip_amounts,omitempty"`
	StartParameter      string         `json:"start_parameter,omitempty"`
	ProviderData        string         `json:"provider_data,omitempty"`
	PhotoURL            string         `json:"photo_url,omitempty"`
	PhotoSize           int            `json:"photo_size,omitempty"`
	PhotoWidth          int            `json:"photo_width,omitempty"`
	PhotoHeight         int            `json:"photo_height,omitempty"`
	NeedName            *bool          `json:"need_name,omitempty"`
	NeedPhoneNumber     *bool          `json:"need_phone_number,omitempty"`
	NeedEmail           *bool          `json:"need_email,omitempty"`
	NeedShippingAddress *bool          `json:"need_shipping_address,omitempty"`
	SendPhoneToProvider *bool          `json:"send_phone_number_to_provider,omitempty"`
	SendEmailToProvider *bool          `json:"send_email_to_provider,omitempty"`
	IsFlexible          *bool          `json:"is_flexible,omitempty"`
}

type LabeledPrice struct {
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

// ---- Reply markup (Bot API wire shapes) ----

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

type InlineKeyboardButton struct {
	Text                         string                       `json:"text"`
	URL                          string                       `json:"url,omitempty"`
	CallbackData                 string                       `json:"callback_data,omitempty"`
	WebApp                       *WebAppInfo                  `json:"web_app,omitempty"`
	LoginURL                     *LoginURL                    `json:"login_url,omitempty"`
	SwitchInlineQuery            *string                      `json:"switch_inline_query,omitempty"`
	SwitchInlineQueryCurrentChat *string                      `json:"switch_inline_query_current_chat,omitempty"`
	SwitchInlineQueryChosenChat  *SwitchInlineQueryChosenChat `json:"switch_inline_query_chosen_chat,omitempty"`
	CopyText                     *CopyTextButton              `json:"copy_text,omitempty"`
	CallbackGame                 *struct{}                    `json:"callback_game,omitempty"`
	Pay                          bool                         `json:"pay,omitempty"`
}

type WebAppInfo struct {
	URL string `json:"url"`
}

type LoginURL struct {
	URL                string `json:"url"`
	ForwardText        string `json:"forward_text,omitempty"`
	BotUsername        string `json:"bot_username,omitempty"`
	RequestWriteAccess *bool  `json:"request_write_access,omitempty"`
}

type SwitchInlineQueryChosenChat struct {
	Query             *string `json:"query,omitempty"`
	AllowUserChats    *bool   `json:"allow_user_chats,omitempty"`
	AllowBotChats     *bool   `json:"allow_bot_chats,omitempty"`
	AllowGroupChats   *bool   `json:"allow_group_chats,omitempty"`
	AllowChannelChats *bool   `json:"allow_channel_chats,omitempty"`
}

type CopyTextButton struct {
	Text string `json:"text"`
}

type ReplyKeyboardMarkup struct {
	Keyboard              [][]KeyboardButton `json:"keyboard"`
	IsPersistent          *bool              `json:"is_persistent,omitempty"`
	ResizeKeyboard        *bool              `json:"resize_keyboard,omitempty"`
	OneTimeKeyboard       *bool              `json:"one_time_keyboard,omitempty"`
	InputFieldPlaceholder string             `json:"input_field_placeholder,omitempty"`
	Selective             *bool              `json:"selective,omitempty"`
}

type KeyboardButton struct {
	Text            string      `json:"text"`
	RequestContact  *bool       `json:"request_contact,omitempty"`
	RequestLocation *bool       `json:"request_location,omitempty"`
	RequestPoll     *PollType   `json:"request_poll,omitempty"`
	WebApp          *WebAppInfo `json:"web_app,omitempty"`
}

type PollType struct {
	Type string `json:"type,omitempty"`
}

type ReplyKeyboardRemove struct {
	RemoveKeyboard bool  `json:"remove_keyboard"`
	Selective      *bool `json:"selective,omitempty"`
}

type ForceReply struct {
	ForceReply            bool   `json:"force_reply"`
	InputFieldPlaceholder string `json:"input_field_placeholder,omitempty"`
	Selective             *bool  `json:"selective,omitempty"`
}

// ---- Delivery capability ----

// SendResult identifies the message the platform accepted.
type SendResult struct {
	ChatID    string
	MessageID int
}

// Sender is the outbound platform capability. Implementations must be
// safe for concurrent use. Send performs exactly one delivery attempt;
// retry policy belongs to the caller.
type Sender interface {
	Send(ctx context.Context, chatID string, msg *Outbound) (SendResult, error)
	AnswerCallback(ctx context.Context, callbackID, text string) error
}
