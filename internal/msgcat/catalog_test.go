package msgcat

import (
    "os"
    "path/filepath"
    "strings"
    "testing"
)

func TestNew_EmbeddedDefaults(t *testing.T) {
    c, err := New("")
    if err != nil { t.Fatalf("new: %v", err) }
    for _, key := range []string{"help", "session.created", "error.not_your_turn", "reason.disconnect_ttl", "side.red"} {
        if !c.Has(key) { t.Fatalf("missing key %s", key) }
    }
    out, err := c.Render("session.created", map[string]any{"ID": "XQ-1", "Host": "앨리스", "Private": true, "P": "!"})
    if err != nil { t.Fatalf("render: %v", err) }
    if !strings.Contains(out, "XQ-1") || !strings.Contains(out, "(비공개)") || !strings.Contains(out, "!샹치 참가 XQ-1") { t.Fatalf("out=%q", out) }
}

func TestRender_Errors(t *testing.T) {
    c, _ := New("")
    if _, err := c.Render("nope", nil); err == nil { t.Fatalf("unknown key rendered") }
    if _, err := c.Render("session.created", map[string]any{"ID": "x"}); err == nil { t.Fatalf("missing field accepted") }
    if got := c.Text("nope", nil); got != "nope" { t.Fatalf("fallback=%q", got) }
}

func TestNew_OverrideDir(t *testing.T) {
    dir := t.TempDir()
    write := func(name, body string) {
        if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil { t.Fatalf("write: %v", err) }
    }
    write("a.yaml", "side:\n  red: RED\n")
    write("ignored.txt", "side: {red: nope}")
    c, err := New(dir)
    if err != nil { t.Fatalf("new: %v", err) }
    if got := c.Text("side.red", nil); got != "RED" { t.Fatalf("override=%q", got) }
    if got := c.Text("side.black", nil); got != "흑" { t.Fatalf("default lost: %q", got) }

    write("b.yml", "side:\n  red: again\n")
    if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "duplicate key") { t.Fatalf("err=%v", err) }

    bad := t.TempDir()
    if err := os.WriteFile(filepath.Join(bad, "x.yaml"), []byte("count: 3\n"), 0o644); err != nil { t.Fatalf("write: %v", err) }
    if _, err := New(bad); err == nil { t.Fatalf("non-string leaf accepted") }
}
