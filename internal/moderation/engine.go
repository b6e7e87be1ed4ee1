package moderation

import (
	"context"
	"time"

	"groupwarden/internal/config"
	"groupwarden/internal/flood"
	"groupwarden/internal/modules/audit"
	"groupwarden/internal/storage"
	"groupwarden/internal/textfilter"

	"go.uber.org/zap"
)

// Platform is the messaging-platform surface the engine enforces through.
// Implementations swallow transient API failures; the engine never retries.
type Platform interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	RestrictMember(ctx context.Context, chatID, userID int64, until time.Time) error
	IsAdmin(ctx context.Context, chatID, userID int64) (bool, error)
	Notify(ctx context.Context, chatID int64, text string)
}

// Message is one inbound chat message, already stripped of platform framing.
type Message struct {
	ChatID          int64
	MessageID       int
	UserID          int64
	SenderName      string
	SenderIsBot     bool
	Text            string
	StickerUniqueID string
	SentAt          time.Time
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Engine struct {
	cfg      config.Thresholds
	store    *storage.Store
	flood    *flood.Tracker
	platform Platform
	audit    *audit.Logger
	logger   *zap.Logger
	clock    Clock
}

func NewEngine(cfg config.Thresholds, store *storage.Store, tracker *flood.Tracker, platform Platform, auditLogger *audit.Logger, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		store:    store,
		flood:    tracker,
		platform: platform,
		audit:    auditLogger,
		logger:   logger,
		clock:    realClock{},
	}
}

func (e *Engine) WithClock(clock Clock) {
	e.clock = clock
}

// HandleMessage runs the moderation pipeline for one non-command message.
// Checks run in a fixed order and the first enforcement wins: banned sticker,
// blacklisted word, link (when antilink is on), flood. Admins are exempt from
// everything except the sticker check.
func (e *Engine) HandleMessage(ctx context.Context, msg Message) {
	if msg.SenderIsBot {
		return
	}

	if err := e.store.TouchMember(ctx, msg.ChatID, msg.UserID, msg.SenderName); err != nil {
		e.logger.Error("member touch failed", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
	}

	if msg.StickerUniqueID != "" {
		if e.handleSticker(ctx, msg) {
			return
		}
	}

	if msg.Text != "" {
		if e.handleBlacklist(ctx, msg) {
			return
		}
		if e.handleAntilink(ctx, msg) {
			return
		}
	}

	e.handleFlood(ctx, msg)
}

// ApplyWarning is the explicit /warn path: it bumps the durable counter and
// issues a timed mute when the count reaches the threshold. A ledger failure
// blocks the whole decision; the engine never escalates on a guessed count.
func (e *Engine) ApplyWarning(ctx context.Context, chatID, userID int64) (int, bool, error) {
	count, err := e.store.IncrementWarning(ctx, chatID, userID)
	if err != nil {
		return 0, false, err
	}

	e.audit.Log(ctx, audit.LevelWarn, chatID, userID, "warning", "warning recorded")
	if count < e.cfg.WarnThreshold {
		return count, false, nil
	}

	until := e.clock.Now().Add(time.Duration(e.cfg.WarnMuteSeconds) * time.Second)
	if err := e.platform.RestrictMember(ctx, chatID, userID, until); err != nil {
		e.logger.Warn("warn mute failed", zap.Int64("chat_id", chatID), zap.Int64("user_id", userID), zap.Error(err))
	}
	e.platform.Notify(ctx, chatID, "Auto-muted for warnings.")
	e.audit.Log(ctx, audit.LevelCrit, chatID, userID, "warn_mute", "warning threshold reached")
	return count, true, nil
}

func (e *Engine) handleSticker(ctx context.Context, msg Message) bool {
	banned, err := e.store.IsStickerBanned(ctx, msg.StickerUniqueID)
	if err != nil {
		e.logger.Error("sticker lookup failed", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
		return false
	}
	if !banned {
		return false
	}

	// No admin exemption here: a banned sticker is deleted no matter who
	// sent it, and no warning is recorded.
	if err := e.platform.DeleteMessage(ctx, msg.ChatID, msg.MessageID); err != nil {
		e.logger.Warn("sticker delete failed", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
	}
	e.audit.Log(ctx, audit.LevelWarn, msg.ChatID, msg.UserID, "sticker_blocked", "banned sticker "+msg.StickerUniqueID)
	return true
}

func (e *Engine) handleBlacklist(ctx context.Context, msg Message) bool {
	words, err := e.store.ListBlacklistWords(ctx, msg.ChatID)
	if err != nil {
		e.logger.Error("blacklist load failed", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
		return false
	}

	word, found := textfilter.MatchBlacklisted(msg.Text, words)
	if !found || e.isAdmin(ctx, msg.ChatID, msg.UserID) {
		return false
	}

	if err := e.platform.DeleteMessage(ctx, msg.ChatID, msg.MessageID); err != nil {
		e.logger.Warn("blacklist delete failed", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
	}
	if _, err := e.store.IncrementWarning(ctx, msg.ChatID, msg.UserID); err != nil {
		e.logger.Error("warning write failed", zap.Int64("chat_id", msg.ChatID), zap.Int64("user_id", msg.UserID), zap.Error(err))
	}
	e.platform.Notify(ctx, msg.ChatID, "Deleted blacklisted word: "+word)
	e.audit.Log(ctx, audit.LevelWarn, msg.ChatID, msg.UserID, "blacklist", "deleted word "+word)
	return true
}

func (e *Engine) handleAntilink(ctx context.Context, msg Message) bool {
	settings, err := e.store.GetChatSettings(ctx, msg.ChatID)
	if err != nil {
		e.logger.Error("settings load failed", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
		return false
	}
	if !settings.Antilink || !textfilter.ContainsLink(msg.Text) {
		return false
	}
	if e.isAdmin(ctx, msg.ChatID, msg.UserID) {
		return false
	}

	if err := e.platform.DeleteMessage(ctx, msg.ChatID, msg.MessageID); err != nil {
		e.logger.Warn("link delete failed", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
	}
	e.platform.Notify(ctx, msg.ChatID, "Links not allowed.")
	e.audit.Log(ctx, audit.LevelWarn, msg.ChatID, msg.UserID, "antilink", "deleted link message")
	return true
}

func (e *Engine) handleFlood(ctx context.Context, msg Message) {
	now := msg.SentAt
	if now.IsZero() {
		now = e.clock.Now()
	}

	if !e.flood.RecordAndCheck(msg.ChatID, msg.UserID, now) {
		return
	}
	if e.isAdmin(ctx, msg.ChatID, msg.UserID) {
		return
	}

	e.flood.Reset(msg.ChatID, msg.UserID)
	until := e.clock.Now().Add(time.Duration(e.cfg.FloodMuteSeconds) * time.Second)
	if err := e.platform.RestrictMember(ctx, msg.ChatID, msg.UserID, until); err != nil {
		e.logger.Warn("flood mute failed", zap.Int64("chat_id", msg.ChatID), zap.Int64("user_id", msg.UserID), zap.Error(err))
	}
	e.platform.Notify(ctx, msg.ChatID, "Muted for flooding.")
	e.audit.Log(ctx, audit.LevelCrit, msg.ChatID, msg.UserID, "flood_mute", "message burst detected")
}

// isAdmin queries live admin status; a failed lookup counts as not admin so
// enforcement stays best-effort rather than silently disabled.
func (e *Engine) isAdmin(ctx context.Context, chatID, userID int64) bool {
	ok, err := e.platform.IsAdmin(ctx, chatID, userID)
	if err != nil {
		e.logger.Warn("admin lookup failed", zap.Int64("chat_id", chatID), zap.Int64("user_id", userID), zap.Error(err))
		return false
	}
	return ok
}
