package bot

import (
	"context"
	"fmt"
	"os"
	"time"

	"clipbot/internal/fetch"
	"clipbot/internal/transport"
)

// route evaluates one event through the fixed pipeline: identify the user,
// ban check, command routing, armed-broadcast consumption, link matching,
// admission, fetch handoff. Order matters: a banned user touches nothing
// past step two, and an armed broadcast payload is never parsed as a URL.
func (d *Dispatcher) route(ctx context.Context, ev transport.Event) {
	from := ev.FromID()
	if from == 0 {
		return
	}
	chat := transport.ChatTarget{ChatID: ev.ChatID()}

	if err := d.store.UpsertUser(ctx, from, ev.FromName()); err != nil {
		d.log.Error().Int64("user", from).Err(err).Msg("user upsert failed")
	}

	banned, err := d.store.IsBanned(ctx, from)
	if err != nil {
		// Fail open: a storage hiccup must not lock the whole user base out.
		d.log.Error().Int64("user", from).Err(err).Msg("ban lookup failed")
	}
	if banned {
		if ev.Kind == transport.EventButton {
			_ = d.msgr.AnswerCallback(ctx, ev.Button.CallbackID, replyBanned)
			return
		}
		d.reply(ctx, chat, replyBanned)
		return
	}

	switch ev.Kind {
	case transport.EventCommand:
		d.handleCommand(ctx, ev.Command)
	case transport.EventButton:
		d.handleButton(ctx, ev.Button)
	case transport.EventText:
		d.handleText(ctx, ev.Text)
	}
}

func (d *Dispatcher) handleText(ctx context.Context, t *transport.Text) {
	chat := transport.ChatTarget{ChatID: t.ChatID}

	// An armed admin's next message is the broadcast payload, whole. It is
	// consumed here even when it happens to contain a supported link.
	if d.disarm(t.FromID) {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.runBroadcast(ctx, chat, t.Body)
		}()
		return
	}

	url, ok := matchSupportedLink(t.Body)
	if !ok {
		d.reply(ctx, chat, replyUnsupported)
		return
	}

	member, err := d.msgr.IsMember(ctx, t.FromID)
	if err != nil {
		// Membership lookups depend on the platform; don't lock users out
		// over its hiccups.
		d.log.Warn().Int64("user", t.FromID).Err(err).Msg("membership check failed")
		member = true
	}
	if !member {
		d.reply(ctx, chat, replyJoinChannel)
		return
	}

	if ok, wait := d.limiter.Admit(t.FromID, time.Now()); !ok {
		secs := int(wait.Round(time.Second).Seconds())
		if secs < 1 {
			secs = 1
		}
		d.reply(ctx, chat, fmt.Sprintf(replyRateLimited, secs))
		return
	}

	progress, perr := d.msgr.SendText(ctx, chat, replyFetching, nil)
	hasProgress := perr == nil

	if err := d.fetcher.Submit(url, func(a *fetch.Artifact, ferr error) {
		d.finishFetch(ctx, chat, progress, hasProgress, a, ferr)
	}); err != nil {
		// The admission stays consumed: a full pool means overload, and
		// pacing is exactly what we want then.
		d.log.Warn().Int64("user", t.FromID).Err(err).Msg("fetch submit rejected")
		if hasProgress {
			_ = d.msgr.DeleteMessage(ctx, progress)
		}
		d.reply(ctx, chat, replyBusy)
	}
}

// finishFetch runs on a fetch worker goroutine. The artifact is deleted
// unconditionally once the relay attempt is over; the counter moves only
// after a successful relay.
func (d *Dispatcher) finishFetch(ctx context.Context, chat transport.ChatTarget, progress transport.MessageRef, hasProgress bool, a *fetch.Artifact, ferr error) {
	if hasProgress {
		_ = d.msgr.DeleteMessage(ctx, progress)
	}

	if ferr != nil {
		d.log.Warn().Str("kind", fetch.KindOf(ferr).String()).Err(ferr).Msg("fetch failed")
		d.reply(ctx, chat, replyFetchFailed)
		return
	}
	defer os.Remove(a.Path)

	var err error
	if a.Kind == fetch.KindVideo && !a.Large {
		err = d.msgr.SendVideo(ctx, chat, a.Path, "")
	} else {
		err = d.msgr.SendDocument(ctx, chat, a.Path)
	}
	if err != nil {
		d.log.Warn().Str("path", a.Path).Int64("size", a.Size).Err(err).Msg("artifact relay failed")
		d.reply(ctx, chat, replyFetchFailed)
		return
	}

	if err := d.store.IncrementDownloads(ctx); err != nil {
		d.log.Error().Err(err).Msg("download counter update failed")
	}
}
