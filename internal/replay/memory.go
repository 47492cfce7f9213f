package replay

import (
    "context"
    "sync"
    "time"
)

// MemoryStore is the in-process Store used when no Redis is configured.
type MemoryStore struct {
    mu   sync.RWMutex
    logs map[string]*Log
}

func NewMemoryStore() *MemoryStore {
    return &MemoryStore{logs: make(map[string]*Log)}
}

func (m *MemoryStore) Begin(ctx context.Context, meta Meta) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if _, ok := m.logs[meta.SessionID]; ok { return ErrExists }
    meta.Sealed = false
    m.logs[meta.SessionID] = &Log{Meta: meta, Moves: []Move{}}
    return nil
}

func (m *MemoryStore) Append(ctx context.Context, sessionID string, mv Move) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    l, ok := m.logs[sessionID]
    if !ok { return ErrNotFound }
    if l.Meta.Sealed { return ErrSealed }
    if mv.Index != len(l.Moves) { return ErrOutOfOrder }
    l.Moves = append(l.Moves, mv)
    return nil
}

func (m *MemoryStore) Snapshot(ctx context.Context, sessionID string, snap Snapshot) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    l, ok := m.logs[sessionID]
    if !ok { return ErrNotFound }
    if l.Meta.Sealed { return ErrSealed }
    l.Snapshots = append(l.Snapshots, snap)
    return nil
}

func (m *MemoryStore) Seal(ctx context.Context, sessionID, result, reason string, at time.Time) (*Log, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    l, ok := m.logs[sessionID]
    if !ok { return nil, ErrNotFound }
    if l.Meta.Sealed { return nil, ErrSealed }
    l.Meta.Sealed = true
    l.Meta.Result = result
    l.Meta.Reason = reason
    l.Meta.EndedAt = at
    return cloneLog(l), nil
}

func (m *MemoryStore) Load(ctx context.Context, sessionID string) (*Log, error) {
    m.mu.RLock()
    defer m.mu.RUnlock()
    l, ok := m.logs[sessionID]
    if !ok { return nil, ErrNotFound }
    return cloneLog(l), nil
}

// Drop forgets a log; the registry calls it once an ended session leaves retention and
// its sealed log is archived.
func (m *MemoryStore) Drop(sessionID string) {
    m.mu.Lock()
    delete(m.logs, sessionID)
    m.mu.Unlock()
}

func cloneLog(l *Log) *Log {
    c := &Log{Meta: l.Meta}
    c.Moves = append([]Move{}, l.Moves...)
    if len(l.Snapshots) > 0 {
        c.Snapshots = append([]Snapshot(nil), l.Snapshots...)
    }
    return c
}
