package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type AppConfig struct {
	IrisBaseURL string `env:"IRIS_BASE_URL"`
	IrisWSURL   string `env:"IRIS_WS_URL"`

	BotPrefix string `env:"BOT_PREFIX"`

	XUserID    string `env:"X_USER_ID"`
	XUserEmail string `env:"X_USER_EMAIL"`
	XSessionID string `env:"X_SESSION_ID"`

	RedisURL    string `env:"REDIS_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	AllowedRooms []string `env:"ALLOWED_ROOMS" envSeparator:","`

	// egress transport: "http" (default), "ws" or "auto"
	EgressMode  string `env:"IRIS_EGRESS_MODE" envDefault:"http"`
	TemplateDir string `env:"MSG_TEMPLATE_DIR"`

	MaxSessions    int           `env:"XQ_MAX_SESSIONS" envDefault:"200"`
	WaitingTTL     time.Duration `env:"XQ_WAITING_TTL" envDefault:"10m"`
	DisconnectTTL  time.Duration `env:"XQ_DISCONNECT_TTL" envDefault:"90s"`
	EndedRetention time.Duration `env:"XQ_ENDED_RETENTION" envDefault:"30m"`
	ReplayTTL      time.Duration `env:"XQ_REPLAY_TTL" envDefault:"24h"`
	SnapshotEvery  int           `env:"XQ_SNAPSHOT_EVERY" envDefault:"10"`
	RulesFile      string        `env:"XQ_RULES_FILE"`

	Log LogConfig
}

// LogConfig feeds obslog.Init.
type LogConfig struct {
	Level   string `env:"LOG_LEVEL" envDefault:"info"`
	Console bool   `env:"LOG_TO_CONSOLE" envDefault:"true"`
	ToFile  bool   `env:"LOG_TO_FILE" envDefault:"true"`
	Caller  bool   `env:"LOG_CALLER" envDefault:"false"`
	Format  string `env:"LOG_FORMAT" envDefault:"legacy"`
	File    string `env:"LOG_FILE" envDefault:"logs/xiangqi-bot.log"`
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.IrisBaseURL = strings.TrimSpace(cfg.IrisBaseURL)
	cfg.IrisWSURL = strings.TrimSpace(cfg.IrisWSURL)
	cfg.BotPrefix = strings.TrimSpace(cfg.BotPrefix)
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.EgressMode = strings.ToLower(strings.TrimSpace(cfg.EgressMode))

	rooms := cfg.AllowedRooms[:0]
	for _, r := range cfg.AllowedRooms {
		if s := strings.TrimSpace(r); s != "" {
			rooms = append(rooms, s)
		}
	}
	cfg.AllowedRooms = rooms

	if cfg.IrisBaseURL == "" {
		return nil, errors.New("IRIS_BASE_URL is required")
	}
	if cfg.IrisWSURL == "" {
		return nil, errors.New("IRIS_WS_URL is required")
	}
	if cfg.BotPrefix == "" {
		return nil, errors.New("BOT_PREFIX is required")
	}
	switch cfg.EgressMode {
	case "http", "ws", "auto":
	default:
		return nil, fmt.Errorf("IRIS_EGRESS_MODE must be http, ws or auto, got %q", cfg.EgressMode)
	}
	if cfg.MaxSessions < 0 || cfg.SnapshotEvery < 0 {
		return nil, errors.New("XQ_MAX_SESSIONS and XQ_SNAPSHOT_EVERY must not be negative")
	}
	if cfg.WaitingTTL <= 0 || cfg.DisconnectTTL <= 0 {
		return nil, errors.New("XQ_WAITING_TTL and XQ_DISCONNECT_TTL must be positive")
	}

	return cfg, nil
}

// RoomAllowed reports whether room may use the bot. An empty allow list admits every room.
func (c *AppConfig) RoomAllowed(room string) bool {
	if len(c.AllowedRooms) == 0 {
		return true
	}
	for _, r := range c.AllowedRooms {
		if r == room {
			return true
		}
	}
	return false
}
