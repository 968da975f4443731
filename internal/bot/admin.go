package bot

import (
	"context"
	"fmt"

	"clipbot/internal/transport"
)

const (
	cbAdminStats     = "admin:stats"
	cbAdminBroadcast = "admin:broadcast"
)

func (d *Dispatcher) sendAdminPanel(ctx context.Context, chat transport.ChatTarget) {
	kb := transport.Keyboard{
		{{Text: "📊 Stats", Data: cbAdminStats}},
		{{Text: "📣 Broadcast", Data: cbAdminBroadcast}},
	}
	d.replyOpt(ctx, chat, replyAdminPanel, &transport.SendOptions{Keyboard: kb})
}

func (d *Dispatcher) handleButton(ctx context.Context, b *transport.Button) {
	// Answer every callback so the client drops its spinner, including ones
	// we then ignore.
	_ = d.msgr.AnswerCallback(ctx, b.CallbackID, "")

	if b.FromID != d.cfg.AdminID {
		return
	}
	chat := transport.ChatTarget{ChatID: b.ChatID}

	switch b.Data {
	case cbAdminStats:
		d.sendStats(ctx, chat)
	case cbAdminBroadcast:
		d.arm(b.FromID)
		d.reply(ctx, chat, replyBroadcastArmed)
	}
}

func (d *Dispatcher) arm(adminID int64) {
	d.armedMu.Lock()
	d.armed[adminID] = true
	d.armedMu.Unlock()
}

// disarm consumes the one-shot broadcast-armed flag.
func (d *Dispatcher) disarm(adminID int64) bool {
	if adminID != d.cfg.AdminID {
		return false
	}
	d.armedMu.Lock()
	defer d.armedMu.Unlock()
	if !d.armed[adminID] {
		return false
	}
	delete(d.armed, adminID)
	return true
}

func (d *Dispatcher) runBroadcast(ctx context.Context, chat transport.ChatTarget, text string) {
	ids, err := d.store.ListActiveUserIDs(ctx)
	if err != nil {
		d.log.Error().Err(err).Msg("listing broadcast recipients failed")
		d.reply(ctx, chat, replyBroadcastFailed)
		return
	}
	sum := d.bcast.Send(ctx, text, ids)
	d.reply(ctx, chat, fmt.Sprintf(replyBroadcastDone, sum.Sent, sum.Failed))
}
