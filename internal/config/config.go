package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	TelegramToken string       `yaml:"telegram_token"`
	DatabasePath  string       `yaml:"database_path"`
	LogLevel      string       `yaml:"log_level"`
	LogChatID     int64        `yaml:"log_chat_id"`
	RetentionDays int          `yaml:"retention_days"`
	Health        HealthConfig `yaml:"health"`
	Thresholds    Thresholds   `yaml:"thresholds"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type Thresholds struct {
	FloodMessages      int `yaml:"flood_messages"`
	FloodWindowSeconds int `yaml:"flood_window_seconds"`
	FloodMuteSeconds   int `yaml:"flood_mute_seconds"`
	WarnThreshold      int `yaml:"warn_threshold"`
	WarnMuteSeconds    int `yaml:"warn_mute_seconds"`
	RecentMembers      int `yaml:"recent_members"`
	StickerListLimit   int `yaml:"sticker_list_limit"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:  "warden.db",
		LogLevel:      "info",
		RetentionDays: 14,
		Health:        HealthConfig{Enabled: false, Addr: ":8080"},
		Thresholds: Thresholds{
			FloodMessages:      6,
			FloodWindowSeconds: 6,
			FloodMuteSeconds:   60,
			WarnThreshold:      3,
			WarnMuteSeconds:    600,
			RecentMembers:      100,
			StickerListLimit:   200,
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.TelegramToken == "" {
		return Config{}, errors.New("TELEGRAM_BOT_TOKEN is required")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.TelegramToken = envString("TELEGRAM_BOT_TOKEN", cfg.TelegramToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogChatID = envInt64("LOG_CHAT_ID", cfg.LogChatID)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Thresholds.FloodMessages = envInt("FLOOD_MESSAGES", cfg.Thresholds.FloodMessages)
	cfg.Thresholds.FloodWindowSeconds = envInt("FLOOD_WINDOW_SECONDS", cfg.Thresholds.FloodWindowSeconds)
	cfg.Thresholds.FloodMuteSeconds = envInt("FLOOD_MUTE_SECONDS", cfg.Thresholds.FloodMuteSeconds)
	cfg.Thresholds.WarnThreshold = envInt("WARN_THRESHOLD", cfg.Thresholds.WarnThreshold)
	cfg.Thresholds.WarnMuteSeconds = envInt("WARN_MUTE_SECONDS", cfg.Thresholds.WarnMuteSeconds)
	cfg.Thresholds.RecentMembers = envInt("RECENT_MEMBERS", cfg.Thresholds.RecentMembers)
	cfg.Thresholds.StickerListLimit = envInt("STICKER_LIST_LIMIT", cfg.Thresholds.StickerListLimit)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
