package msgcat

import (
    "embed"
    "errors"
    "fmt"
    "io/fs"
    "os"
    "path"
    "sort"
    "strings"
    "sync"
    "text/template"

    "go.uber.org/zap"
    yaml "gopkg.in/yaml.v3"

    "github.com/park285/Cheese-Xiangqi-bot/internal/obslog"
)

//go:embed messages.ko.yaml
var defaultFiles embed.FS

// Catalog holds reply templates keyed by dotted path ("session.created").
// Embedded defaults load first; an override directory may replace individual keys.
type Catalog struct {
    mu    sync.RWMutex
    text  map[string]string
    cache map[string]*template.Template
}

func New(overrideDir string) (*Catalog, error) {
    c := &Catalog{text: make(map[string]string), cache: make(map[string]*template.Template)}
    if err := c.applyFS(defaultFiles, false); err != nil {
        return nil, fmt.Errorf("embedded messages: %w", err)
    }
    if dir := strings.TrimSpace(overrideDir); dir != "" {
        if err := c.applyFS(os.DirFS(dir), true); err != nil {
            return nil, fmt.Errorf("override messages %s: %w", dir, err)
        }
    }
    return c, nil
}

// applyFS merges every *.yaml/*.yml at the root of fsys in name order. With strict set a key
// defined by two files is an error.
func (c *Catalog) applyFS(fsys fs.FS, strict bool) error {
    entries, err := fs.ReadDir(fsys, ".")
    if err != nil { return err }
    var files []string
    for _, e := range entries {
        if e.IsDir() { continue }
        switch strings.ToLower(path.Ext(e.Name())) {
        case ".yaml", ".yml":
            files = append(files, e.Name())
        }
    }
    sort.Strings(files)

    owner := make(map[string]string)
    merged := make(map[string]string)
    for _, name := range files {
        raw, err := fs.ReadFile(fsys, name)
        if err != nil { return fmt.Errorf("read %s: %w", name, err) }
        flat, err := parseFlat(raw)
        if err != nil { return fmt.Errorf("parse %s: %w", name, err) }
        for k, v := range flat {
            if prev, dup := owner[k]; dup && strict {
                return fmt.Errorf("duplicate key %q in %s and %s", k, prev, name)
            }
            owner[k] = name
            merged[k] = v
        }
    }

    c.mu.Lock()
    defer c.mu.Unlock()
    for k, v := range merged {
        c.text[k] = v
        delete(c.cache, k)
    }
    return nil
}

func parseFlat(b []byte) (map[string]string, error) {
    var root map[string]any
    if err := yaml.Unmarshal(b, &root); err != nil { return nil, err }
    out := make(map[string]string)
    if err := flatten(root, "", out); err != nil { return nil, err }
    return out, nil
}

func flatten(src any, prefix string, out map[string]string) error {
    switch v := src.(type) {
    case map[string]any:
        for k, child := range v {
            key := k
            if prefix != "" { key = prefix + "." + k }
            if err := flatten(child, key, out); err != nil { return err }
        }
    case string:
        if prefix == "" { return errors.New("string value without key") }
        out[prefix] = v
    case nil:
    default:
        return fmt.Errorf("unsupported value at %s: %T", prefix, v)
    }
    return nil
}

func (c *Catalog) Has(key string) bool {
    c.mu.RLock()
    defer c.mu.RUnlock()
    _, ok := c.text[strings.TrimSpace(key)]
    return ok
}

// Render executes the template at key. Missing keys and missing data fields are errors.
func (c *Catalog) Render(key string, data any) (string, error) {
    key = strings.TrimSpace(key)
    tpl, err := c.template(key)
    if err != nil { return "", err }
    var b strings.Builder
    if err := tpl.Execute(&b, data); err != nil { return "", err }
    return b.String(), nil
}

// Text is Render for reply paths: a broken template is logged and the key itself is returned.
func (c *Catalog) Text(key string, data any) string {
    s, err := c.Render(key, data)
    if err != nil {
        obslog.L().Warn("msgcat_render_error", zap.String("key", key), zap.Error(err))
        return key
    }
    return s
}

func (c *Catalog) template(key string) (*template.Template, error) {
    c.mu.RLock()
    tpl, ok := c.cache[key]
    src, known := c.text[key]
    c.mu.RUnlock()
    if ok { return tpl, nil }
    if !known || strings.TrimSpace(src) == "" { return nil, fmt.Errorf("template not found: %s", key) }

    tpl, err := template.New(key).Option("missingkey=error").Parse(src)
    if err != nil { return nil, fmt.Errorf("template %s: %w", key, err) }
    c.mu.Lock()
    c.cache[key] = tpl
    c.mu.Unlock()
    return tpl, nil
}
