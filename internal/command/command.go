// Package command defines the command handler contract and the registry that
// resolves command names to handlers.
package command

import "context"

// User identifies the sender of an inbound message.
type User struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
	Lang      string
}

// Chat identifies where the reply should go.
type Chat struct {
	ID int64
}

// Request is one inbound message routed to a handler.
type Request struct {
	User User
	Chat Chat
	// Text is the raw message text as received.
	Text string
	// Payload is the text after the matched command token; for continuation
	// deliveries it equals Text.
	Payload string
	// Meta carries opaque context saved by a previous turn of a multi-step
	// flow, such as a login attempt identifier.
	Meta map[string]string
}

// Format selects how the response text is rendered.
type Format string

const (
	FormatPlain    Format = "plain"
	FormatMarkdown Format = "markdown"
)

// Button is the data shape of one inline keyboard button.
type Button struct {
	Text string
	Data string
}

// Keyboard is a grid of buttons attached to a response.
type Keyboard [][]Button

// ResponseKind discriminates the outbound payload variants.
type ResponseKind int

const (
	ResponseSend ResponseKind = iota
	ResponseEdit
	ResponseMedia
)

// Response is the payload a handler returns for the transport to deliver.
type Response struct {
	Kind      ResponseKind
	ChatID    int64
	MessageID int
	Text      string
	Format    Format
	Keyboard  Keyboard
	MediaRef  string
	Caption   string
}

// NewMessage builds a plain text send response.
func NewMessage(chatID int64, text string) *Response {
	return &Response{Kind: ResponseSend, ChatID: chatID, Text: text, Format: FormatPlain}
}

// NewMarkdown builds a rich markup send response. Callers must escape
// user-supplied content embedded in text.
func NewMarkdown(chatID int64, text string) *Response {
	return &Response{Kind: ResponseSend, ChatID: chatID, Text: text, Format: FormatMarkdown}
}

// NewEdit builds an edit of a previously sent message.
func NewEdit(chatID int64, messageID int, text string) *Response {
	return &Response{Kind: ResponseEdit, ChatID: chatID, MessageID: messageID, Text: text, Format: FormatPlain}
}

// NewMedia builds a media send response.
func NewMedia(chatID int64, mediaRef, caption string) *Response {
	return &Response{Kind: ResponseMedia, ChatID: chatID, MediaRef: mediaRef, Caption: caption}
}

// Handler is the unit of command logic.
type Handler func(ctx context.Context, req *Request) (*Response, error)
