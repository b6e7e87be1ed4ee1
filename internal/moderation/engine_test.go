package moderation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"groupwarden/internal/config"
	"groupwarden/internal/flood"
	"groupwarden/internal/modules/audit"
	"groupwarden/internal/storage"

	"go.uber.org/zap"
)

type fakePlatform struct {
	admin     bool
	deletes   []int
	restricts []time.Time
	notices   []string
}

func (p *fakePlatform) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	p.deletes = append(p.deletes, messageID)
	return nil
}

func (p *fakePlatform) RestrictMember(ctx context.Context, chatID, userID int64, until time.Time) error {
	p.restricts = append(p.restricts, until)
	return nil
}

func (p *fakePlatform) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	return p.admin, nil
}

func (p *fakePlatform) Notify(ctx context.Context, chatID int64, text string) {
	p.notices = append(p.notices, text)
}

type fakeClock struct {
	now time.Time
}

func (c fakeClock) Now() time.Time { return c.now }

func testThresholds() config.Thresholds {
	return config.DefaultConfig().Thresholds
}

func newTestEngine(t *testing.T, platform *fakePlatform) (*Engine, *storage.Store) {
	t.Helper()
	store, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := testThresholds()
	tracker := flood.NewTracker(cfg.FloodMessages, time.Duration(cfg.FloodWindowSeconds)*time.Second)
	auditLogger := audit.NewLogger(store, zap.NewNop())
	engine := NewEngine(cfg, store, tracker, platform, auditLogger, zap.NewNop())
	engine.WithClock(fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)})
	return engine, store
}

func TestBotMessagesIgnored(t *testing.T) {
	platform := &fakePlatform{}
	engine, store := newTestEngine(t, platform)
	ctx := context.Background()

	engine.HandleMessage(ctx, Message{ChatID: 1, MessageID: 1, UserID: 2, SenderName: "bot", SenderIsBot: true, Text: "https://spam.example"})

	if len(platform.deletes) != 0 || len(platform.restricts) != 0 {
		t.Fatalf("bot message must not be enforced")
	}
	members, _ := store.RecentMembers(ctx, 1, 10)
	if len(members) != 0 {
		t.Fatalf("bot message must not touch the directory")
	}
}

func TestDirectoryTouchedForHumanMessages(t *testing.T) {
	platform := &fakePlatform{}
	engine, store := newTestEngine(t, platform)
	ctx := context.Background()

	engine.HandleMessage(ctx, Message{ChatID: 1, MessageID: 1, UserID: 2, SenderName: "Alice", Text: "hello"})

	members, err := store.RecentMembers(ctx, 1, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(members) != 1 || members[0].Name != "Alice" {
		t.Fatalf("expected Alice recorded, got %v", members)
	}
}

func TestBannedStickerDeleted(t *testing.T) {
	platform := &fakePlatform{}
	engine, store := newTestEngine(t, platform)
	ctx := context.Background()

	if err := store.BanSticker(ctx, "st1"); err != nil {
		t.Fatalf("ban sticker: %v", err)
	}

	engine.HandleMessage(ctx, Message{ChatID: 1, MessageID: 7, UserID: 2, StickerUniqueID: "st1"})

	if len(platform.deletes) != 1 || platform.deletes[0] != 7 {
		t.Fatalf("expected sticker message deleted, got %v", platform.deletes)
	}
	// Banned stickers delete silently: no warning recorded.
	if count, _ := store.WarningCount(ctx, 1, 2); count != 0 {
		t.Fatalf("expected no warning, got %d", count)
	}
}

func TestBannedStickerNotAdminExempt(t *testing.T) {
	platform := &fakePlatform{admin: true}
	engine, store := newTestEngine(t, platform)
	ctx := context.Background()

	_ = store.BanSticker(ctx, "st1")
	engine.HandleMessage(ctx, Message{ChatID: 1, MessageID: 7, UserID: 2, StickerUniqueID: "st1"})

	if len(platform.deletes) != 1 {
		t.Fatalf("sticker check must fire for admins too")
	}
}

func TestUnbannedStickerPasses(t *testing.T) {
	platform := &fakePlatform{}
	engine, _ := newTestEngine(t, platform)

	engine.HandleMessage(context.Background(), Message{ChatID: 1, MessageID: 7, UserID: 2, StickerUniqueID: "st2"})

	if len(platform.deletes) != 0 {
		t.Fatalf("unbanned sticker must pass")
	}
}

func TestBlacklistDeleteAndWarn(t *testing.T) {
	platform := &fakePlatform{}
	engine, store := newTestEngine(t, platform)
	ctx := context.Background()

	_ = store.AddBlacklistWord(ctx, 1, "spam")
	engine.HandleMessage(ctx, Message{ChatID: 1, MessageID: 3, UserID: 2, Text: "SPAM now"})

	if len(platform.deletes) != 1 || platform.deletes[0] != 3 {
		t.Fatalf("expected deletion, got %v", platform.deletes)
	}
	if count, _ := store.WarningCount(ctx, 1, 2); count != 1 {
		t.Fatalf("expected one warning, got %d", count)
	}
	if len(platform.notices) != 1 || platform.notices[0] != "Deleted blacklisted word: spam" {
		t.Fatalf("unexpected notices %v", platform.notices)
	}
}

func TestBlacklistSubstringPasses(t *testing.T) {
	platform := &fakePlatform{}
	engine, store := newTestEngine(t, platform)
	ctx := context.Background()

	_ = store.AddBlacklistWord(ctx, 1, "spam")
	engine.HandleMessage(ctx, Message{ChatID: 1, MessageID: 3, UserID: 2, Text: "spammer convention"})

	if len(platform.deletes) != 0 {
		t.Fatalf("substring must not trigger deletion")
	}
}

func TestAntilinkScenario(t *testing.T) {
	platform := &fakePlatform{}
	engine, store := newTestEngine(t, platform)
	ctx := context.Background()

	_ = store.SetSetting(ctx, 1, storage.KeyAntilink, "on")
	engine.HandleMessage(ctx, Message{ChatID: 1, MessageID: 4, UserID: 2, Text: "Check out https://evil.example"})

	if len(platform.deletes) != 1 || platform.deletes[0] != 4 {
		t.Fatalf("expected link message deleted, got %v", platform.deletes)
	}
	if len(platform.notices) != 1 || platform.notices[0] != "Links not allowed." {
		t.Fatalf("unexpected notices %v", platform.notices)
	}
	// The link path deletes without warning.
	if count, _ := store.WarningCount(ctx, 1, 2); count != 0 {
		t.Fatalf("expected no warning, got %d", count)
	}
}

func TestAntilinkOffPasses(t *testing.T) {
	platform := &fakePlatform{}
	engine, _ := newTestEngine(t, platform)

	engine.HandleMessage(context.Background(), Message{ChatID: 1, MessageID: 4, UserID: 2, Text: "see https://example.com"})

	if len(platform.deletes) != 0 {
		t.Fatalf("antilink off must pass links")
	}
}

func TestAdminExemption(t *testing.T) {
	platform := &fakePlatform{admin: true}
	engine, store := newTestEngine(t, platform)
	ctx := context.Background()

	_ = store.AddBlacklistWord(ctx, 1, "spam")
	_ = store.SetSetting(ctx, 1, storage.KeyAntilink, "on")

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	engine.HandleMessage(ctx, Message{ChatID: 1, MessageID: 1, UserID: 2, Text: "spam", SentAt: base})
	engine.HandleMessage(ctx, Message{ChatID: 1, MessageID: 2, UserID: 2, Text: "https://example.com", SentAt: base})
	for i := 0; i < 8; i++ {
		engine.HandleMessage(ctx, Message{ChatID: 1, MessageID: 3 + i, UserID: 2, Text: "hi", SentAt: base.Add(time.Duration(i) * time.Second)})
	}

	if len(platform.deletes) != 0 || len(platform.restricts) != 0 || len(platform.notices) != 0 {
		t.Fatalf("admin must be exempt, got deletes=%v restricts=%v notices=%v", platform.deletes, platform.restricts, platform.notices)
	}
	if count, _ := store.WarningCount(ctx, 1, 2); count != 0 {
		t.Fatalf("expected no warnings for admin, got %d", count)
	}
}

func TestFloodMutesOnceAndResets(t *testing.T) {
	platform := &fakePlatform{}
	engine, _ := newTestEngine(t, platform)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		engine.HandleMessage(ctx, Message{ChatID: 1, MessageID: i + 1, UserID: 2, Text: "hi", SentAt: base.Add(time.Duration(i) * time.Second)})
	}

	if len(platform.restricts) != 1 {
		t.Fatalf("expected exactly one mute, got %d", len(platform.restricts))
	}
	if len(platform.notices) != 1 || platform.notices[0] != "Muted for flooding." {
		t.Fatalf("unexpected notices %v", platform.notices)
	}

	// After the window fully elapses the next message must not re-trigger.
	engine.HandleMessage(ctx, Message{ChatID: 1, MessageID: 7, UserID: 2, Text: "hi", SentAt: base.Add(30 * time.Second)})
	if len(platform.restricts) != 1 {
		t.Fatalf("expected no re-trigger, got %d mutes", len(platform.restricts))
	}
}

func TestApplyWarningEscalation(t *testing.T) {
	platform := &fakePlatform{}
	engine, _ := newTestEngine(t, platform)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		count, muted, err := engine.ApplyWarning(ctx, 1, 2)
		if err != nil {
			t.Fatalf("warning %d: %v", i, err)
		}
		if count != i || muted {
			t.Fatalf("warning %d: count=%d muted=%t", i, count, muted)
		}
	}

	count, muted, err := engine.ApplyWarning(ctx, 1, 2)
	if err != nil {
		t.Fatalf("third warning: %v", err)
	}
	if count != 3 || !muted {
		t.Fatalf("expected mute on third warning, count=%d muted=%t", count, muted)
	}
	if len(platform.restricts) != 1 {
		t.Fatalf("expected one restrict, got %d", len(platform.restricts))
	}

	wantUntil := time.Date(2025, 3, 1, 12, 10, 0, 0, time.UTC)
	if !platform.restricts[0].Equal(wantUntil) {
		t.Fatalf("expected mute until %v, got %v", wantUntil, platform.restricts[0])
	}
}
