package bot

// User-facing replies are fixed and terse; internal failure detail stays in
// the logs.
const (
	replyWelcome = "🔥 Send a TikTok or Instagram link and I'll fetch the video for you."
	replyHelp    = "Send a supported link (TikTok, Instagram) and the bot replies with the video.\n\n" +
		"/start - welcome message\n/stats - usage numbers"
	replyJoinChannel = "🚫 Join our channel first, then try again."
	replyBanned      = "⛔ You are banned from using this bot."
	replyUnsupported = "⚠️ That doesn't look like a supported link. Send a TikTok or Instagram URL."
	replyFetching    = "⏳ Fetching your video..."
	replyFetchFailed = "❌ Couldn't fetch that one. Try another link."
	replyBusy        = "😮‍💨 Too many downloads right now. Try again in a minute."
	replyRateLimited = "🕒 Easy there. Try again in %d seconds."

	replyStats            = "📊 Users: %d\n⬇️ Downloads served: %d"
	replyStatsUnavailable = "Stats are unavailable right now."
	replyUnknownCommand   = "Unknown command. Try /help."

	replyAdminPanel      = "🛠 Admin panel"
	replyBroadcastArmed  = "📣 Broadcast armed. The next message you send goes to every active user."
	replyBroadcastDone   = "Broadcast finished: %d delivered, %d failed."
	replyBroadcastFailed = "Broadcast could not start (storage error)."

	replyBanUsage   = "Usage: /ban <user_id> or /unban <user_id>"
	replyBanFailed  = "Could not persist the ban flag. Check logs."
	replyBanSet     = "User %d banned."
	replyBanCleared = "User %d unbanned."
)
