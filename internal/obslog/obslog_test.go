package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"loud":    zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestInit_WritesJSONFile(t *testing.T) {
	t.Cleanup(func() { Set(nil) })
	path := filepath.Join(t.TempDir(), "nested", "xq.log")
	if err := Init(Options{Level: "info", ToFile: true, Format: "json", File: path}); err != nil {
		t.Fatalf("init: %v", err)
	}
	L().Info("xq_test_event", zap.String("session_id", "XQ-1"))
	L().Debug("xq_hidden")
	Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := string(raw)
	if !strings.Contains(out, `"msg":"xq_test_event"`) || !strings.Contains(out, `"session_id":"XQ-1"`) {
		t.Fatalf("log line missing: %s", out)
	}
	if strings.Contains(out, "xq_hidden") {
		t.Fatalf("debug line written at info level")
	}
}
