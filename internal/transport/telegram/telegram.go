package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v4"

	"clipbot/internal/transport"
)

type Config struct {
	Token string
	// Channel is the optional public channel (by @username) that users must
	// join before the bot fetches for them. Empty disables the gate.
	Channel string
}

// Adapter implements transport.Messenger and transport.Decoder on top of
// telebot. The bot is never started as a poller; updates arrive through the
// dispatcher's webhook endpoint and outbound calls go through the client.
type Adapter struct {
	cfg Config
	log zerolog.Logger
	bot *tele.Bot

	// hookHash avoids re-issuing setWebhook for an unchanged target URL.
	hookMu   sync.Mutex
	hookHash uint64

	chanMu  sync.Mutex
	chanRef *tele.Chat
}

func New(cfg Config, log zerolog.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

// Decode maps a raw update body to the closed event set. Anything that is not
// a user message or a callback press is a bad payload.
func (a *Adapter) Decode(body []byte) (transport.Event, error) {
	var u tele.Update
	if err := json.Unmarshal(body, &u); err != nil {
		return transport.Event{}, fmt.Errorf("%w: %v", transport.ErrBadPayload, err)
	}

	switch {
	case u.Callback != nil:
		cb := u.Callback
		if cb.Sender == nil || cb.Message == nil {
			return transport.Event{}, fmt.Errorf("%w: callback without sender or message", transport.ErrBadPayload)
		}
		return transport.Event{
			Kind: transport.EventButton,
			Button: &transport.Button{
				CallbackID: cb.ID,
				ChatID:     cb.Message.Chat.ID,
				FromID:     cb.Sender.ID,
				FromName:   cb.Sender.Username,
				MessageID:  cb.Message.ID,
				// telebot prefixes callback data with \f for its own routing.
				Data: strings.TrimPrefix(cb.Data, "\f"),
			},
		}, nil

	case u.Message != nil:
		m := u.Message
		if m.Sender == nil || m.Chat == nil {
			return transport.Event{}, fmt.Errorf("%w: message without sender or chat", transport.ErrBadPayload)
		}
		text := strings.TrimSpace(m.Text)
		if strings.HasPrefix(text, "/") {
			name, args := splitCommand(text)
			return transport.Event{
				Kind: transport.EventCommand,
				Command: &transport.Command{
					ChatID:   m.Chat.ID,
					FromID:   m.Sender.ID,
					FromName: m.Sender.Username,
					Name:     name,
					Args:     args,
				},
			}, nil
		}
		return transport.Event{
			Kind: transport.EventText,
			Text: &transport.Text{
				ChatID:   m.Chat.ID,
				FromID:   m.Sender.ID,
				FromName: m.Sender.Username,
				Body:     text,
			},
		}, nil
	}

	return transport.Event{}, fmt.Errorf("%w: no message or callback", transport.ErrBadPayload)
}

func splitCommand(text string) (name, args string) {
	name = text
	if i := strings.IndexAny(text, " \t"); i >= 0 {
		name, args = text[:i], strings.TrimSpace(text[i+1:])
	}
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name), args
}

func (a *Adapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	msg, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, text, sendOptions(opt))
	if err != nil {
		return transport.MessageRef{}, err
	}
	return transport.MessageRef{ChatID: to.ChatID, MessageID: msg.ID}, nil
}

func (a *Adapter) SendVideo(ctx context.Context, to transport.ChatTarget, path, caption string) error {
	v := &tele.Video{File: tele.FromDisk(path), Caption: caption}
	_, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, v)
	return err
}

func (a *Adapter) SendDocument(ctx context.Context, to transport.ChatTarget, path string) error {
	d := &tele.Document{File: tele.FromDisk(path)}
	_, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, d)
	return err
}

func (a *Adapter) EditText(ctx context.Context, ref transport.MessageRef, text string, opt *transport.SendOptions) error {
	m := &tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}}
	_, err := a.bot.Edit(m, text, sendOptions(opt))
	return err
}

func (a *Adapter) DeleteMessage(ctx context.Context, ref transport.MessageRef) error {
	return a.bot.Delete(&tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}})
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return a.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text})
}

// RegisterWebhook issues setWebhook once per distinct URL. Telegram treats
// the call itself as idempotent, the hash guard just skips the network
// round-trip on repeats.
func (a *Adapter) RegisterWebhook(ctx context.Context, url string) error {
	a.hookMu.Lock()
	defer a.hookMu.Unlock()

	h := fnv.New64a()
	h.Write([]byte(url))
	sum := h.Sum64()
	if sum == a.hookHash {
		return nil
	}

	params := map[string]string{
		"url":             url,
		"allowed_updates": `["message","callback_query"]`,
	}
	if _, err := a.bot.Raw("setWebhook", params); err != nil {
		return fmt.Errorf("setWebhook: %w", err)
	}
	a.hookHash = sum
	a.log.Info().Str("url", url).Msg("webhook registered")
	return nil
}

func (a *Adapter) IsMember(ctx context.Context, userID int64) (bool, error) {
	name := strings.TrimSpace(a.cfg.Channel)
	if name == "" {
		return true, nil
	}
	chat, err := a.channelChat(name)
	if err != nil {
		return false, err
	}
	m, err := a.bot.ChatMemberOf(chat, &tele.User{ID: userID})
	if err != nil {
		return false, err
	}
	switch m.Role {
	case tele.Creator, tele.Administrator, tele.Member:
		return true, nil
	}
	return false, nil
}

func (a *Adapter) channelChat(name string) (*tele.Chat, error) {
	a.chanMu.Lock()
	defer a.chanMu.Unlock()
	if a.chanRef != nil {
		return a.chanRef, nil
	}
	chat, err := a.bot.ChatByUsername(name)
	if err != nil {
		return nil, fmt.Errorf("resolve channel %s: %w", name, err)
	}
	a.chanRef = chat
	return chat, nil
}

func sendOptions(opt *transport.SendOptions) *tele.SendOptions {
	if opt == nil {
		return &tele.SendOptions{}
	}
	so := &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
	}
	if len(opt.Keyboard) > 0 {
		rm := &tele.ReplyMarkup{}
		rows := make([]tele.Row, 0, len(opt.Keyboard))
		for _, r := range opt.Keyboard {
			row := make(tele.Row, 0, len(r))
			for _, b := range r {
				row = append(row, rm.Data(b.Text, b.Data))
			}
			rows = append(rows, row)
		}
		rm.Inline(rows...)
		so.ReplyMarkup = rm
	}
	return so
}
