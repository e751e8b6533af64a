// Package config loads and validates the gateway's declarative
// configuration. The loaded Config is an immutable snapshot: it is
// shared read-only across every request after startup.
package config

import (
	"encoding/json"
	"fmt"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Bot      BotConfig      `json:"bot"`
	Logging  LoggingConfig  `json:"logging"`
	Notifier NotifierConfig `json:"notifier,omitempty"`

	// Templates maps template names to inline bodies. TemplatesDir, if
	// set, is a directory of *.tmpl files loaded (and hot-reloaded) by
	// name on top of the inline map.
	Templates    map[string]string `json:"templates,omitempty"`
	TemplatesDir string            `json:"templates_dir,omitempty"`

	Endpoints []EndpointConfig `json:"endpoints"`
	Commands  []CommandConfig  `json:"commands,omitempty"`
	Callbacks []CallbackConfig `json:"callbacks,omitempty"`
	Schedules []ScheduleConfig `json:"schedules,omitempty"`
}

type ServerConfig struct {
	Host   string `json:"host,omitempty"`
	Port   int    `json:"port,omitempty"`
	APIKey string `json:"api_key,omitempty"`

	// Strict makes any endpoint validation error fatal to startup.
	// Default: bad endpoints are skipped, the rest keep working.
	Strict bool `json:"strict,omitempty"`
}

type BotConfig struct {
	Token    string `json:"token"`
	TestMode bool   `json:"test_mode,omitempty"`

	// Mode selects how platform updates arrive: "webhook" (default)
	// serves Bot API updates on WebhookPath, "poll" long-polls.
	Mode        string `json:"mode,omitempty"`
	WebhookPath string `json:"webhook_path,omitempty"`

	// PollTimeout is a Go duration string (poll mode only).
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string     `json:"level,omitempty"`
	Console *bool      `json:"console,omitempty"`
	File    FileConfig `json:"file,omitempty"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// NotifierConfig tunes outbound delivery. All durations are Go duration
// strings (e.g. "500ms", "10s"). Zero values fall back to dispatcher
// defaults.
type NotifierConfig struct {
	RatePerSec    int    `json:"rate_per_sec,omitempty"`
	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
}

// EndpointConfig declares one notification endpoint: an HTTP path plus
// the recipe for turning its payloads into outbound messages.
type EndpointConfig struct {
	Path      string   `json:"path"`
	ChatID    string   `json:"chat_id,omitempty"`
	ChatIDs   []string `json:"chat_ids,omitempty"`
	Formatter string   `json:"formatter,omitempty"`
	Template  string   `json:"template,omitempty"`
	ParseMode string   `json:"parse_mode,omitempty"`

	Labels       map[string]string `json:"labels,omitempty"`
	FieldMap     map[string]string `json:"field_map,omitempty"`
	PluginConfig map[string]any    `json:"plugin_config,omitempty"`

	Buttons [][]ButtonConfig `json:"buttons,omitempty"`

	// At most one of the three may be set.
	ReplyKeyboard       *ReplyKeyboardConfig       `json:"reply_keyboard,omitempty"`
	ReplyKeyboardRemove *ReplyKeyboardRemoveConfig `json:"reply_keyboard_remove,omitempty"`
	ForceReply          *ForceReplyConfig          `json:"force_reply,omitempty"`

	Invoice *InvoiceConfig `json:"invoice,omitempty"`
}

// TargetChatIDs combines chat_id and chat_ids, chat_id first.
func (e *EndpointConfig) TargetChatIDs() []string {
	ids := make([]string, 0, len(e.ChatIDs)+1)
	if e.ChatID != "" {
		ids = append(ids, e.ChatID)
	}
	return append(ids, e.ChatIDs...)
}

// ButtonConfig declares one inline keyboard button. Text plus exactly
// one action variant. Template-bearing fields are rendered against the
// request payload.
type ButtonConfig struct {
	Text                         string             `json:"text"`
	URL                          string             `json:"url,omitempty"`
	CallbackData                 string             `json:"callback_data,omitempty"`
	WebApp                       *WebAppConfig      `json:"web_app,omitempty"`
	LoginURL                     *LoginURLConfig    `json:"login_url,omitempty"`
	SwitchInlineQuery            *string            `json:"switch_inline_query,omitempty"`
	SwitchInlineQueryCurrentChat *string            `json:"switch_inline_query_current_chat,omitempty"`
	SwitchInlineQueryChosenChat  *ChosenChatConfig  `json:"switch_inline_query_chosen_chat,omitempty"`
	CopyText                     *CopyTextConfig    `json:"copy_text,omitempty"`
	CallbackGame                 bool               `json:"callback_game,omitempty"`
	Pay                          bool               `json:"pay,omitempty"`
}

type WebAppConfig struct {
	URL string `json:"url"`
}

type LoginURLConfig struct {
	URL                string `json:"url"`
	ForwardText        string `json:"forward_text,omitempty"`
	BotUsername        string `json:"bot_username,omitempty"`
	RequestWriteAccess *bool  `json:"request_write_access,omitempty"`
}

type ChosenChatConfig struct {
	Query             *string `json:"query,omitempty"`
	AllowUserChats    *bool   `json:"allow_user_chats,omitempty"`
	AllowBotChats     *bool   `json:"allow_bot_chats,omitempty"`
	AllowGroupChats   *bool   `json:"allow_group_chats,omitempty"`
	AllowChannelChats *bool   `json:"allow_channel_chats,omitempty"`
}

type CopyTextConfig struct {
	Text string `json:"text"`
}

type ReplyKeyboardConfig struct {
	Keyboard              [][]KeyboardButtonConfig `json:"keyboard"`
	IsPersistent          *bool                    `json:"is_persistent,omitempty"`
	ResizeKeyboard        *bool                    `json:"resize_keyboard,omitempty"`
	OneTimeKeyboard       *bool                    `json:"one_time_keyboard,omitempty"`
	InputFieldPlaceholder string                   `json:"input_field_placeholder,omitempty"`
	Selective             *bool                    `json:"selective,omitempty"`
}

// KeyboardButtonConfig accepts either a bare string (plain text button)
// or an object with request variants.
type KeyboardButtonConfig struct {
	Text            string        `json:"text"`
	RequestContact  *bool         `json:"request_contact,omitempty"`
	RequestLocation *bool         `json:"request_location,omitempty"`
	RequestPoll     *PollConfig   `json:"request_poll,omitempty"`
	WebApp          *WebAppConfig `json:"web_app,omitempty"`
}

type PollConfig struct {
	Type string `json:"type,omitempty"`
}

func (b *KeyboardButtonConfig) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.Text = s
		return nil
	}
	type raw KeyboardButtonConfig
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*b = KeyboardButtonConfig(r)
	return nil
}

type ReplyKeyboardRemoveConfig struct {
	RemoveKeyboard bool  `json:"remove_keyboard"`
	Selective      *bool `json:"selective,omitempty"`
}

type ForceReplyConfig struct {
	ForceReply            bool   `json:"force_reply"`
	InputFieldPlaceholder string `json:"input_field_placeholder,omitempty"`
	Selective             *bool  `json:"selective,omitempty"`
}

// InvoiceConfig declares a payment invoice. Every string field is a
// template rendered against the request payload.
type InvoiceConfig struct {
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Payload       string        `json:"payload"`
	Currency      string        `json:"currency"`
	ProviderToken string        `json:"provider_token,omitempty"`
	Prices        []PriceConfig `json:"prices"`

	MaxTipAmount        *Amount  `json:"max_tip_amount,omitempty"`
	SuggestedTipAmounts []Amount `json:"suggested_tip_amounts,omitempty"`

	StartParameter string `json:"start_parameter,omitempty"`
	ProviderData   string `json:"provider_data,omitempty"`

	PhotoURL    string `json:"photo_url,omitempty"`
	PhotoSize   int    `json:"photo_size,omitempty"`
	PhotoWidth  int    `json:"photo_width,omitempty"`
	PhotoHeight int    `json:"photo_height,omitempty"`

	NeedName            *bool `json:"need_name,omitempty"`
	NeedPhoneNumber     *bool `json:"need_phone_number,omitempty"`
	NeedEmail           *bool `json:"need_email,omitempty"`
	NeedShippingAddress *bool `json:"need_shipping_address,omitempty"`
	SendPhoneToProvider *bool `json:"send_phone_number_to_provider,omitempty"`
	SendEmailToProvider *bool `json:"send_email_to_provider,omitempty"`
	IsFlexible          *bool `json:"is_flexible,omitempty"`
}

type PriceConfig struct {
	Label  string `json:"label"`
	Amount Amount `json:"amount"`
}

type CommandConfig struct {
	Command   string           `json:"command"`
	Response  string           `json:"response,omitempty"`
	ParseMode string           `json:"parse_mode,omitempty"`
	Buttons   [][]ButtonConfig `json:"buttons,omitempty"`
}

type CallbackConfig struct {
	Data     string `json:"data"`
	Response string `json:"response,omitempty"`
	URL      string `json:"url,omitempty"`
}

// ScheduleConfig fires a fixed payload into an endpoint on a cron
// schedule, as if it had arrived over HTTP.
type ScheduleConfig struct {
	Name     string         `json:"name,omitempty"`
	Cron     string         `json:"cron"`
	Endpoint string         `json:"endpoint"`
	Payload  map[string]any `json:"payload,omitempty"`
}

// Error is a configuration-time failure. It is fatal to the endpoint
// (or section) that carries it, not to the process, unless server.strict
// is set.
type Error struct {
	Section string
	Msg     string
}

func (e *Error) Error() string {
	if e.Section == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Section, e.Msg)
}

func Errorf(section, format string, args ...any) error {
	return &Error{Section: section, Msg: fmt.Sprintf(format, args...)}
}
