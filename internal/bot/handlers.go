package bot

import (
	"context"
	"strings"

	"groupwarden/internal/moderation"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}

	ctx := context.Background()

	if len(msg.NewChatMembers) > 0 {
		b.handleJoin(ctx, msg)
		return
	}
	if msg.From == nil {
		return
	}
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	b.engine.HandleMessage(ctx, messageEvent(msg))
}

func (b *Bot) handleJoin(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	settings, err := b.store.GetChatSettings(ctx, chatID)
	if err != nil {
		b.logger.Error("settings load failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}

	for _, member := range msg.NewChatMembers {
		if member.IsBot {
			continue
		}
		name := displayName(&member)
		if err := b.store.TouchMember(ctx, chatID, member.ID, name); err != nil {
			b.logger.Error("member touch failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
		if !settings.WelcomeEnabled {
			continue
		}
		tpl := settings.Welcome
		if tpl == "" {
			tpl = "Welcome {name}!"
		}
		b.reply(msg, strings.ReplaceAll(tpl, "{name}", name))
	}
}

func messageEvent(msg *tgbotapi.Message) moderation.Message {
	event := moderation.Message{
		ChatID:      msg.Chat.ID,
		MessageID:   msg.MessageID,
		UserID:      msg.From.ID,
		SenderName:  displayName(msg.From),
		SenderIsBot: msg.From.IsBot,
		Text:        msg.Text,
		SentAt:      msg.Time(),
	}
	if msg.Sticker != nil {
		event.StickerUniqueID = msg.Sticker.FileUniqueID
	}
	return event
}
