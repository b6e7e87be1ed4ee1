package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"groupwarden/internal/modules/audit"
	"groupwarden/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const mentionChunkLimit = 3800

var helpText = strings.Join([]string{
	"Stickers: /bansticker /allowsticker /liststickers",
	"Moderation: /warn /warnings /mute /unmute /kick /ban /unban /promote /demote",
	"Group: /all /pin /unpin /add /purge /lock /unlock /blacklist /info /modstats",
	"Settings: /setrules /rules /antilink /setwelcome /welcome",
}, "\n")

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		b.reply(msg, "Group Warden ready. Use /help for commands.")
	case "help":
		b.reply(msg, helpText)
	case "bansticker":
		b.cmdBanSticker(ctx, msg)
	case "allowsticker":
		b.cmdAllowSticker(ctx, msg)
	case "liststickers":
		b.cmdListStickers(ctx, msg)
	case "warn":
		b.cmdWarn(ctx, msg)
	case "warnings":
		b.cmdWarnings(ctx, msg)
	case "mute":
		b.cmdMute(ctx, msg, args)
	case "unmute":
		b.cmdUnmute(ctx, msg)
	case "kick":
		b.cmdKick(ctx, msg)
	case "ban":
		b.cmdBan(ctx, msg)
	case "unban":
		b.cmdUnban(ctx, msg, args)
	case "promote":
		b.cmdPromote(ctx, msg, true)
	case "demote":
		b.cmdPromote(ctx, msg, false)
	case "setrules":
		b.cmdSetSetting(ctx, msg, storage.KeyRules, msg.CommandArguments(), "Rules saved.", "Usage: /setrules <text>")
	case "rules":
		b.cmdRules(ctx, msg)
	case "antilink":
		b.cmdToggle(ctx, msg, args, storage.KeyAntilink, "Anti-link: %s", "Usage: /antilink on|off")
	case "setwelcome":
		b.cmdSetSetting(ctx, msg, storage.KeyWelcome, msg.CommandArguments(), "Welcome message saved.", "Usage: /setwelcome <text> (use {name})")
	case "welcome":
		b.cmdToggle(ctx, msg, args, storage.KeyWelcomeOn, "Welcome: %s", "Usage: /welcome on|off")
	case "blacklist":
		b.cmdBlacklist(ctx, msg, args)
	case "info":
		b.cmdInfo(ctx, msg, args)
	case "all":
		b.cmdAll(ctx, msg)
	case "pin":
		b.cmdPin(ctx, msg)
	case "unpin":
		b.cmdUnpin(ctx, msg)
	case "add":
		b.cmdInvite(ctx, msg)
	case "purge":
		b.cmdPurge(ctx, msg)
	case "lock":
		b.cmdLock(ctx, msg, true)
	case "unlock":
		b.cmdLock(ctx, msg, false)
	case "modstats":
		b.cmdModStats(ctx, msg, args)
	}
}

// requireAdmin gates admin commands. A failed status lookup counts as not
// admin; the command degrades to the generic notice.
func (b *Bot) requireAdmin(ctx context.Context, msg *tgbotapi.Message) bool {
	ok, err := b.IsAdmin(ctx, msg.Chat.ID, msg.From.ID)
	if err != nil {
		b.logger.Warn("admin lookup failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
	}
	if !ok {
		b.reply(msg, "Admins only.")
	}
	return ok
}

func replyTarget(msg *tgbotapi.Message) *tgbotapi.User {
	if msg.ReplyToMessage == nil {
		return nil
	}
	return msg.ReplyToMessage.From
}

func (b *Bot) cmdBanSticker(ctx context.Context, msg *tgbotapi.Message) {
	if !b.requireAdmin(ctx, msg) {
		return
	}
	if msg.ReplyToMessage == nil || msg.ReplyToMessage.Sticker == nil {
		b.reply(msg, "Reply to a sticker.")
		return
	}
	id := msg.ReplyToMessage.Sticker.FileUniqueID
	if err := b.store.BanSticker(ctx, id); err != nil {
		b.logger.Error("sticker ban failed", zap.Error(err))
		b.reply(msg, "Storage error.")
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, msg.Chat.ID, msg.From.ID, "sticker_ban", "banned sticker "+id)
	b.reply(msg, "Sticker banned.")
}

func (b *Bot) cmdAllowSticker(ctx context.Context, msg *tgbotapi.Message) {
	if !b.requireAdmin(ctx, msg) {
		return
	}
	if msg.ReplyToMessage == nil || msg.ReplyToMessage.Sticker == nil {
		b.reply(msg, "Reply to a sticker.")
		return
	}
	id := msg.ReplyToMessage.Sticker.FileUniqueID
	if err := b.store.UnbanSticker(ctx, id); err != nil {
		b.logger.Error("sticker unban failed", zap.Error(err))
		b.reply(msg, "Storage error.")
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, msg.Chat.ID, msg.From.ID, "sticker_unban", "unbanned sticker "+id)
	b.reply(msg, "Sticker unbanned.")
}

func (b *Bot) cmdListStickers(ctx context.Context, msg *tgbotapi.Message) {
	ids, err := b.store.ListBannedStickers(ctx)
	if err != nil {
		b.logger.Error("sticker list failed", zap.Error(err))
		b.reply(msg, "Storage error.")
		return
	}
	if len(ids) == 0 {
		b.reply(msg, "No banned stickers.")
		return
	}
	if limit := b.cfg.Thresholds.StickerListLimit; len(ids) > limit {
		ids = ids[:limit]
	}
	b.reply(msg, "Banned stickers:\n"+strings.Join(ids, "\n"))
}

func (b *Bot) cmdWarn(ctx context.Context, msg *tgbotapi.Message) {
	if !b.requireAdmin(ctx, msg) {
		return
	}
	target := replyTarget(msg)
	if target == nil {
		b.reply(msg, "Reply to a user.")
		return
	}
	count, _, err := b.engine.ApplyWarning(ctx, msg.Chat.ID, target.ID)
	if err != nil {
		b.logger.Error("warning failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		b.reply(msg, "Warning failed, not recorded.")
		return
	}
	b.reply(msg, fmt.Sprintf("Warned: total %d", count))
}

func (b *Bot) cmdWarnings(ctx context.Context, msg *tgbotapi.Message) {
	target := replyTarget(msg)
	if target == nil {
		b.reply(msg, "Reply to a user.")
		return
	}
	count, err := b.store.WarningCount(ctx, msg.Chat.ID, target.ID)
	if err != nil {
		b.logger.Error("warning count failed", zap.Error(err))
		b.reply(msg, "Storage error.")
		return
	}
	b.reply(msg, fmt.Sprintf("Warnings: %d", count))
}

func (b *Bot) cmdMute(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if !b.requireAdmin(ctx, msg) {
		return
	}
	target := replyTarget(msg)
	if target == nil {
		b.reply(msg, "Reply to a user.")
		return
	}
	mins := 10
	if len(args) > 0 {
		if parsed, err := strconv.Atoi(args[0]); err == nil && parsed > 0 {
			mins = parsed
		}
	}
	until := time.Now().Add(time.Duration(mins) * time.Minute)
	if err := b.RestrictMember(ctx, msg.Chat.ID, target.ID, until); err != nil {
		b.logger.Warn("mute failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		b.reply(msg, "Mute failed.")
		return
	}
	b.audit.Log(ctx, audit.LevelWarn, msg.Chat.ID, target.ID, "mute", fmt.Sprintf("muted %d min by admin", mins))
	b.reply(msg, fmt.Sprintf("Muted %d min.", mins))
}

func (b *Bot) cmdUnmute(ctx context.Context, msg *tgbotapi.Message) {
	if !b.requireAdmin(ctx, msg) {
		return
	}
	target := replyTarget(msg)
	if target == nil {
		b.reply(msg, "Reply to a user.")
		return
	}
	if err := b.UnrestrictMember(ctx, msg.Chat.ID, target.ID); err != nil {
		b.logger.Warn("unmute failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		b.reply(msg, "Unmute failed.")
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, msg.Chat.ID, target.ID, "unmute", "unmuted by admin")
	b.reply(msg, "Unmuted.")
}

func (b *Bot) cmdKick(ctx context.Context, msg *tgbotapi.Message) {
	if !b.requireAdmin(ctx, msg) {
		return
	}
	target := replyTarget(msg)
	if target == nil {
		b.reply(msg, "Reply to a user.")
		return
	}
	// Short ban plus unban: removes the user without a standing ban.
	_, err := b.api.Request(tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: msg.Chat.ID, UserID: target.ID},
		UntilDate:        time.Now().Add(5 * time.Second).Unix(),
	})
	if err != nil {
		b.reply(msg, "Kick failed.")
		return
	}
	_, _ = b.api.Request(tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: msg.Chat.ID, UserID: target.ID},
	})
	b.audit.Log(ctx, audit.LevelWarn, msg.Chat.ID, target.ID, "kick", "kicked by admin")
	b.reply(msg, "Kicked.")
}

func (b *Bot) cmdBan(ctx context.Context, msg *tgbotapi.Message) {
	if !b.requireAdmin(ctx, msg) {
		return
	}
	target := replyTarget(msg)
	if target == nil {
		b.reply(msg, "Reply to a user.")
		return
	}
	_, err := b.api.Request(tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: msg.Chat.ID, UserID: target.ID},
	})
	if err != nil {
		b.reply(msg, "Ban failed.")
		return
	}
	b.audit.Log(ctx, audit.LevelCrit, msg.Chat.ID, target.ID, "ban", "banned by admin")
	b.reply(msg, "Banned.")
}

func (b *Bot) cmdUnban(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if !b.requireAdmin(ctx, msg) {
		return
	}
	if len(args) == 0 {
		b.reply(msg, "Use /unban <user_id>")
		return
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.reply(msg, "Invalid id.")
		return
	}
	_, err = b.api.Request(tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: msg.Chat.ID, UserID: userID},
	})
	if err != nil {
		b.reply(msg, "Unban failed.")
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, msg.Chat.ID, userID, "unban", "unbanned by admin")
	b.reply(msg, "Unbanned.")
}

func (b *Bot) cmdPromote(ctx context.Context, msg *tgbotapi.Message, promote bool) {
	if !b.requireAdmin(ctx, msg) {
		return
	}
	target := replyTarget(msg)
	if target == nil {
		b.reply(msg, "Reply to a user.")
		return
	}
	_, err := b.api.Request(tgbotapi.PromoteChatMemberConfig{
		ChatMemberConfig:   tgbotapi.ChatMemberConfig{ChatID: msg.Chat.ID, UserID: target.ID},
		CanChangeInfo:      promote,
		CanDeleteMessages:  promote,
		CanInviteUsers:     promote,
		CanRestrictMembers: promote,
		CanPinMessages:     promote,
	})
	if err != nil {
		if promote {
			b.reply(msg, "Promote failed.")
		} else {
			b.reply(msg, "Demote failed.")
		}
		return
	}
	if promote {
		b.audit.Log(ctx, audit.LevelInfo, msg.Chat.ID, target.ID, "promote", "promoted by admin")
		b.reply(msg, "Promoted.")
	} else {
		b.audit.Log(ctx, audit.LevelInfo, msg.Chat.ID, target.ID, "demote", "demoted by admin")
		b.reply(msg, "Demoted.")
	}
}

func (b *Bot) cmdSetSetting(ctx context.Context, msg *tgbotapi.Message, key, value, done, usage string) {
	if !b.requireAdmin(ctx, msg) {
		return
	}
	value = strings.TrimSpace(value)
	if value == "" {
		b.reply(msg, usage)
		return
	}
	if err := b.store.SetSetting(ctx, msg.Chat.ID, key, value); err != nil {
		b.logger.Error("setting write failed", zap.String("key", key), zap.Error(err))
		b.reply(msg, "Storage error.")
		return
	}
	b.reply(msg, done)
}

func (b *Bot) cmdToggle(ctx context.Context, msg *tgbotapi.Message, args []string, key, format, usage string) {
	if !b.requireAdmin(ctx, msg) {
		return
	}
	arg := ""
	if len(args) > 0 {
		arg = strings.ToLower(args[0])
	}
	if arg != "on" && arg != "off" {
		b.reply(msg, usage)
		return
	}
	if err := b.store.SetSetting(ctx, msg.Chat.ID, key, arg); err != nil {
		b.logger.Error("setting write failed", zap.String("key", key), zap.Error(err))
		b.reply(msg, "Storage error.")
		return
	}
	b.reply(msg, fmt.Sprintf(format, arg))
}

func (b *Bot) cmdRules(ctx context.Context, msg *tgbotapi.Message) {
	rules, found, err := b.store.GetSetting(ctx, msg.Chat.ID, storage.KeyRules)
	if err != nil {
		b.logger.Error("rules load failed", zap.Error(err))
		b.reply(msg, "Storage error.")
		return
	}
	if !found {
		b.reply(msg, "No rules set.")
		return
	}
	b.reply(msg, rules)
}

func (b *Bot) cmdBlacklist(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if len(args) == 0 {
		b.reply(msg, "Usage: /blacklist add|remove|list <word>")
		return
	}
	switch strings.ToLower(args[0]) {
	case "add":
		if len(args) < 2 {
			b.reply(msg, "Usage: /blacklist add|remove|list <word>")
			return
		}
		if !b.requireAdmin(ctx, msg) {
			return
		}
		word := strings.ToLower(args[1])
		if err := b.store.AddBlacklistWord(ctx, msg.Chat.ID, word); err != nil {
			b.logger.Error("blacklist add failed", zap.Error(err))
			b.reply(msg, "Storage error.")
			return
		}
		b.reply(msg, "Added blacklisted word: "+word)
	case "remove":
		if len(args) < 2 {
			b.reply(msg, "Usage: /blacklist add|remove|list <word>")
			return
		}
		if !b.requireAdmin(ctx, msg) {
			return
		}
		word := strings.ToLower(args[1])
		if err := b.store.RemoveBlacklistWord(ctx, msg.Chat.ID, word); err != nil {
			b.logger.Error("blacklist remove failed", zap.Error(err))
			b.reply(msg, "Storage error.")
			return
		}
		b.reply(msg, "Removed blacklisted word: "+word)
	case "list":
		words, err := b.store.ListBlacklistWords(ctx, msg.Chat.ID)
		if err != nil {
			b.logger.Error("blacklist list failed", zap.Error(err))
			b.reply(msg, "Storage error.")
			return
		}
		if len(words) == 0 {
			b.reply(msg, "Blacklisted: none")
			return
		}
		b.reply(msg, "Blacklisted: "+strings.Join(words, ", "))
	default:
		b.reply(msg, "Usage: /blacklist add|remove|list <word>")
	}
}

func (b *Bot) cmdInfo(ctx context.Context, msg *tgbotapi.Message, args []string) {
	var targetID int64
	var name string
	var isBot bool

	if target := replyTarget(msg); target != nil {
		targetID = target.ID
		name = displayName(target)
		isBot = target.IsBot
	} else if len(args) > 0 {
		parsed, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			b.reply(msg, "Reply to a user or /info <id>")
			return
		}
		targetID = parsed
	} else {
		b.reply(msg, "Reply to a user or /info <id>")
		return
	}

	lines := []string{
		fmt.Sprintf("ID: %d", targetID),
		"Name: " + name,
		fmt.Sprintf("Bot: %t", isBot),
	}
	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: msg.Chat.ID, UserID: targetID},
	})
	if err == nil {
		lines = append(lines, "Status: "+member.Status)
	}
	b.reply(msg, strings.Join(lines, "\n"))
}

func (b *Bot) cmdAll(ctx context.Context, msg *tgbotapi.Message) {
	members, err := b.store.RecentMembers(ctx, msg.Chat.ID, b.cfg.Thresholds.RecentMembers)
	if err != nil {
		b.logger.Error("recent members failed", zap.Error(err))
		b.reply(msg, "Storage error.")
		return
	}
	if len(members) == 0 {
		b.reply(msg, "No members recorded yet.")
		return
	}

	parts := make([]string, 0, len(members))
	for _, member := range members {
		name := member.Name
		if name == "" {
			name = "user"
		}
		parts = append(parts, fmt.Sprintf("[%s](tg://user?id=%d)", truncateName(name, 30), member.UserID))
	}

	chunk := ""
	for _, part := range parts {
		if len(chunk)+len(part)+1 > mentionChunkLimit {
			b.replyMarkdown(msg, chunk)
			chunk = part
			continue
		}
		chunk = strings.TrimSpace(chunk + " " + part)
	}
	if chunk != "" {
		b.replyMarkdown(msg, chunk)
	}
}

func (b *Bot) cmdPin(ctx context.Context, msg *tgbotapi.Message) {
	if !b.requireAdmin(ctx, msg) {
		return
	}
	if msg.ReplyToMessage == nil {
		b.reply(msg, "Reply to a message to pin it.")
		return
	}
	_, err := b.api.Request(tgbotapi.PinChatMessageConfig{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ReplyToMessage.MessageID,
	})
	if err != nil {
		b.reply(msg, "Pin failed.")
		return
	}
	b.reply(msg, "Pinned.")
}

func (b *Bot) cmdUnpin(ctx context.Context, msg *tgbotapi.Message) {
	if !b.requireAdmin(ctx, msg) {
		return
	}
	var err error
	if msg.ReplyToMessage != nil {
		_, err = b.api.Request(tgbotapi.UnpinChatMessageConfig{
			ChatID:    msg.Chat.ID,
			MessageID: msg.ReplyToMessage.MessageID,
		})
	} else {
		_, err = b.api.Request(tgbotapi.UnpinAllChatMessagesConfig{ChatID: msg.Chat.ID})
	}
	if err != nil {
		b.reply(msg, "Unpin failed.")
		return
	}
	b.reply(msg, "Unpinned.")
}

func (b *Bot) cmdInvite(ctx context.Context, msg *tgbotapi.Message) {
	if !b.requireAdmin(ctx, msg) {
		return
	}
	link, err := b.api.GetInviteLink(tgbotapi.ChatInviteLinkConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: msg.Chat.ID},
	})
	if err != nil {
		b.reply(msg, "Invite failed.")
		return
	}
	b.reply(msg, "Invite: "+link)
}

func (b *Bot) cmdPurge(ctx context.Context, msg *tgbotapi.Message) {
	if !b.requireAdmin(ctx, msg) {
		return
	}
	if msg.ReplyToMessage == nil {
		b.reply(msg, "Reply to the oldest message to delete up to this command.")
		return
	}
	deleted := 0
	for id := msg.ReplyToMessage.MessageID; id <= msg.MessageID; id++ {
		if err := b.DeleteMessage(ctx, msg.Chat.ID, id); err == nil {
			deleted++
		}
	}
	b.audit.Log(ctx, audit.LevelWarn, msg.Chat.ID, msg.From.ID, "purge", fmt.Sprintf("deleted %d messages", deleted))
	b.Notify(ctx, msg.Chat.ID, fmt.Sprintf("Purge done. Deleted approx: %d", deleted))
}

func (b *Bot) cmdLock(ctx context.Context, msg *tgbotapi.Message, lock bool) {
	if !b.requireAdmin(ctx, msg) {
		return
	}
	open := !lock
	_, err := b.api.Request(tgbotapi.SetChatPermissionsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: msg.Chat.ID},
		Permissions: &tgbotapi.ChatPermissions{
			CanSendMessages:       open,
			CanSendMediaMessages:  open,
			CanSendOtherMessages:  open,
			CanAddWebPagePreviews: open,
		},
	})
	if err != nil {
		if lock {
			b.reply(msg, "Lock failed.")
		} else {
			b.reply(msg, "Unlock failed.")
		}
		return
	}
	if lock {
		b.audit.Log(ctx, audit.LevelWarn, msg.Chat.ID, msg.From.ID, "lock", "chat locked")
		b.reply(msg, "Group locked for non-admins.")
	} else {
		b.audit.Log(ctx, audit.LevelInfo, msg.Chat.ID, msg.From.ID, "unlock", "chat unlocked")
		b.reply(msg, "Group unlocked for all members.")
	}
}

func (b *Bot) cmdModStats(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if !b.requireAdmin(ctx, msg) {
		return
	}
	since := time.Now().Add(-24 * time.Hour)
	if len(args) > 0 && strings.ToLower(args[0]) == "week" {
		since = time.Now().Add(-7 * 24 * time.Hour)
	}
	report, err := b.analytics.Report(ctx, msg.Chat.ID, since)
	if err != nil {
		b.logger.Error("report failed", zap.Error(err))
		b.reply(msg, "Storage error.")
		return
	}
	b.reply(msg, fmt.Sprintf(
		"Moderation events: %d\nINFO: %d\nWARN: %d\nCRIT: %d",
		report.Total,
		report.ByLevel[audit.LevelInfo],
		report.ByLevel[audit.LevelWarn],
		report.ByLevel[audit.LevelCrit],
	))
}
