package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("IRIS_BASE_URL", "http://iris.local:3000")
	t.Setenv("IRIS_WS_URL", "ws://iris.local:3000/ws")
	t.Setenv("BOT_PREFIX", "!")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WaitingTTL != 10*time.Minute || cfg.DisconnectTTL != 90*time.Second {
		t.Fatalf("ttls: %v %v", cfg.WaitingTTL, cfg.DisconnectTTL)
	}
	if cfg.MaxSessions != 200 || cfg.SnapshotEvery != 10 || cfg.EgressMode != "http" {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.Log.Level != "info" || !cfg.Log.Console || cfg.Log.Format != "legacy" {
		t.Fatalf("log defaults: %+v", cfg.Log)
	}
	if !cfg.RoomAllowed("any") {
		t.Fatalf("empty allow list must admit every room")
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ALLOWED_ROOMS", " 101, ,202 ")
	t.Setenv("XQ_DISCONNECT_TTL", "2m")
	t.Setenv("IRIS_EGRESS_MODE", " WS ")
	t.Setenv("LOG_TO_FILE", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.AllowedRooms) != 2 || !cfg.RoomAllowed("202") || cfg.RoomAllowed("303") {
		t.Fatalf("rooms: %v", cfg.AllowedRooms)
	}
	if cfg.DisconnectTTL != 2*time.Minute || cfg.EgressMode != "ws" || cfg.Log.ToFile {
		t.Fatalf("overrides: %+v", cfg)
	}
}

func TestLoad_Required(t *testing.T) {
	setRequired(t)
	t.Setenv("BOT_PREFIX", "  ")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "BOT_PREFIX") {
		t.Fatalf("err=%v", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	setRequired(t)
	t.Setenv("XQ_WAITING_TTL", "soon")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("err=%v", err)
	}

	t.Setenv("XQ_WAITING_TTL", "1m")
	t.Setenv("IRIS_EGRESS_MODE", "carrier-pigeon")
	if _, err := Load(); err == nil {
		t.Fatalf("bad egress mode accepted")
	}
}
