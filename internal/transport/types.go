package transport

import (
	"context"
	"errors"
)

// ErrBadPayload marks webhook bodies that do not decode to a known event
// shape. The HTTP boundary rejects these with a client error.
var ErrBadPayload = errors.New("bad webhook payload")

type EventKind string

const (
	EventCommand EventKind = "command"
	EventText    EventKind = "text"
	EventButton  EventKind = "button"
)

// Event is the closed set of inbound shapes the dispatcher understands.
// Exactly one payload pointer is set, matching Kind. Internal logic switches
// on the variant and never probes the raw provider envelope.
type Event struct {
	Kind    EventKind
	Command *Command
	Text    *Text
	Button  *Button
}

type Command struct {
	ChatID   int64
	FromID   int64
	FromName string
	Name     string // lower-cased, leading slash kept, bot mention stripped
	Args     string
}

type Text struct {
	ChatID   int64
	FromID   int64
	FromName string
	Body     string
}

type Button struct {
	CallbackID string
	ChatID     int64
	FromID     int64
	FromName   string
	MessageID  int
	Data       string
}

// ChatID returns the originating chat regardless of variant.
func (e Event) ChatID() int64 {
	switch {
	case e.Command != nil:
		return e.Command.ChatID
	case e.Text != nil:
		return e.Text.ChatID
	case e.Button != nil:
		return e.Button.ChatID
	}
	return 0
}

// FromID returns the acting user regardless of variant.
func (e Event) FromID() int64 {
	switch {
	case e.Command != nil:
		return e.Command.FromID
	case e.Text != nil:
		return e.Text.FromID
	case e.Button != nil:
		return e.Button.FromID
	}
	return 0
}

func (e Event) FromName() string {
	switch {
	case e.Command != nil:
		return e.Command.FromName
	case e.Text != nil:
		return e.Text.FromName
	case e.Button != nil:
		return e.Button.FromName
	}
	return ""
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

// InlineButton is one inline-keyboard button; Data is the callback payload.
type InlineButton struct {
	Text string
	Data string
}

type Keyboard [][]InlineButton

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	Keyboard       Keyboard
}

// Messenger is the outbound capability of the chat platform. The dispatcher
// depends on this interface only; the Telegram adapter implements it.
type Messenger interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendVideo(ctx context.Context, to ChatTarget, path, caption string) error
	SendDocument(ctx context.Context, to ChatTarget, path string) error
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
	AnswerCallback(ctx context.Context, callbackID, text string) error

	// RegisterWebhook points the platform at url. Idempotent: re-invoking
	// with the same url is a no-op.
	RegisterWebhook(ctx context.Context, url string) error

	// IsMember reports whether the user belongs to the configured required
	// channel. Always true when no channel is configured.
	IsMember(ctx context.Context, userID int64) (bool, error)
}

// Decoder turns a raw webhook body into a typed Event. Decoding happens once
// at the boundary; malformed bodies yield ErrBadPayload.
type Decoder interface {
	Decode(body []byte) (Event, error)
}
