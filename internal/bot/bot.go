package bot

import (
	"context"
	"fmt"
	"time"

	"groupwarden/internal/analytics"
	"groupwarden/internal/config"
	"groupwarden/internal/flood"
	"groupwarden/internal/moderation"
	"groupwarden/internal/modules/audit"
	"groupwarden/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	audit     *audit.Logger
	analytics *analytics.Service
	engine    *moderation.Engine
	api       *tgbotapi.BotAPI
	done      chan struct{}
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, tracker *flood.Tracker, auditLogger *audit.Logger, analyticsSvc *analytics.Service) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		audit:     auditLogger,
		analytics: analyticsSvc,
		api:       api,
		done:      make(chan struct{}),
	}
	b.engine = moderation.NewEngine(cfg.Thresholds, store, tracker, b, auditLogger, logger)
	b.audit.SetNotifier(func(ctx context.Context, entry storage.AuditLog) {
		if b.cfg.LogChatID == 0 || entry.Level != audit.LevelCrit {
			return
		}
		b.Notify(ctx, b.cfg.LogChatID, fmt.Sprintf("%s %s: %s (chat %d, user %d)",
			entry.Level, entry.Event, entry.Details, entry.ChatID, entry.UserID))
	})
	return b, nil
}

func (b *Bot) Start() error {
	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := b.api.GetUpdatesChan(updateCfg)

	b.logger.Info("telegram ready", zap.String("user", b.api.Self.UserName))

	go func() {
		defer close(b.done)
		for update := range updates {
			b.handleUpdate(update)
		}
	}()
	b.startRetentionSweep()
	return nil
}

func (b *Bot) startRetentionSweep() {
	if b.cfg.RetentionDays <= 0 {
		return
	}
	go func() {
		b.sweepAuditLogs()
		ticker := time.NewTicker(12 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-b.done:
				return
			case <-ticker.C:
				b.sweepAuditLogs()
			}
		}
	}()
}

func (b *Bot) sweepAuditLogs() {
	if err := b.store.CleanupAuditLogs(context.Background(), b.cfg.RetentionDays); err != nil {
		b.logger.Warn("audit cleanup failed", zap.Error(err))
	}
}

func (b *Bot) Close(ctx context.Context) {
	b.api.StopReceivingUpdates()
	select {
	case <-b.done:
	case <-ctx.Done():
	}
}

// Platform implementation. The Telegram client carries no context; ctx is
// accepted to satisfy the engine contract and honored only for cancellation
// checks the client cannot do itself.

func (b *Bot) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	_ = ctx
	_, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

func (b *Bot) RestrictMember(ctx context.Context, chatID, userID int64, until time.Time) error {
	_ = ctx
	_, err := b.api.Request(tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		UntilDate:        until.Unix(),
		Permissions:      &tgbotapi.ChatPermissions{CanSendMessages: false},
	})
	return err
}

func (b *Bot) UnrestrictMember(ctx context.Context, chatID, userID int64) error {
	_ = ctx
	_, err := b.api.Request(tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		Permissions: &tgbotapi.ChatPermissions{
			CanSendMessages:       true,
			CanSendMediaMessages:  true,
			CanSendOtherMessages:  true,
			CanAddWebPagePreviews: true,
		},
	})
	return err
}

func (b *Bot) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	_ = ctx
	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return false, err
	}
	return member.Status == "administrator" || member.Status == "creator", nil
}

func (b *Bot) Notify(ctx context.Context, chatID int64, text string) {
	_ = ctx
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Warn("notify failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID
	if _, err := b.api.Send(out); err != nil {
		b.logger.Warn("reply failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
	}
}

func (b *Bot) replyMarkdown(msg *tgbotapi.Message, text string) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(out); err != nil {
		b.logger.Warn("reply failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
	}
}

// truncateName cuts on rune boundaries so multibyte names stay valid UTF-8
// inside mention markup.
func truncateName(name string, max int) string {
	runes := []rune(name)
	if len(runes) <= max {
		return name
	}
	return string(runes[:max])
}

func displayName(user *tgbotapi.User) string {
	if user == nil {
		return ""
	}
	name := user.FirstName
	if user.LastName != "" {
		name += " " + user.LastName
	}
	if name == "" {
		name = user.UserName
	}
	return name
}
