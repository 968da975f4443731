package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"clipbot/internal/transport"
)

// Command handlers read persistence but never start a fetch.
func (d *Dispatcher) handleCommand(ctx context.Context, c *transport.Command) {
	chat := transport.ChatTarget{ChatID: c.ChatID}

	switch c.Name {
	case "/start":
		member, err := d.msgr.IsMember(ctx, c.FromID)
		if err != nil {
			d.log.Warn().Int64("user", c.FromID).Err(err).Msg("membership check failed")
			member = true
		}
		if !member {
			d.reply(ctx, chat, replyJoinChannel)
			return
		}
		d.reply(ctx, chat, replyWelcome)

	case "/help":
		d.reply(ctx, chat, replyHelp)

	case "/stats":
		d.sendStats(ctx, chat)

	case "/admin":
		// Non-admins get silence, not an error leak.
		if c.FromID != d.cfg.AdminID {
			return
		}
		d.sendAdminPanel(ctx, chat)

	case "/ban", "/unban":
		if c.FromID != d.cfg.AdminID {
			return
		}
		d.setBanFromArgs(ctx, chat, c.Args, c.Name == "/ban")

	default:
		d.reply(ctx, chat, replyUnknownCommand)
	}
}

func (d *Dispatcher) sendStats(ctx context.Context, chat transport.ChatTarget) {
	users, uerr := d.store.UserCount(ctx)
	downloads, derr := d.store.DownloadCount(ctx)
	if uerr != nil || derr != nil {
		d.log.Error().AnErr("users", uerr).AnErr("downloads", derr).Msg("stats read failed")
		d.reply(ctx, chat, replyStatsUnavailable)
		return
	}
	d.reply(ctx, chat, fmt.Sprintf(replyStats, users, downloads))
}

func (d *Dispatcher) setBanFromArgs(ctx context.Context, chat transport.ChatTarget, args string, banned bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		d.reply(ctx, chat, replyBanUsage)
		return
	}
	if err := d.store.SetBanned(ctx, id, banned); err != nil {
		// Persistence failures are reported to the admin, never silently
		// claimed as success.
		d.log.Error().Int64("target", id).Bool("banned", banned).Err(err).Msg("ban update failed")
		d.reply(ctx, chat, replyBanFailed)
		return
	}
	if banned {
		d.reply(ctx, chat, fmt.Sprintf(replyBanSet, id))
	} else {
		d.reply(ctx, chat, fmt.Sprintf(replyBanCleared, id))
	}
}
