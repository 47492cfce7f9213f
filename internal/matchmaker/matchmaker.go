package matchmaker

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "sync"
    "sync/atomic"
    "time"
)

var (
    ErrInvalidArgs   = errors.New("invalid arguments")
    ErrAlreadyQueued = errors.New("player already queued for a match")
    ErrCancelled     = errors.New("match request cancelled")
)

const DefaultMode = "standard"

// Entry is one player asking for an opponent.
type Entry struct {
    PlayerID string
    Name     string
    Room     string
    Mode     string
}

// Ticket tracks a queued entry until it is paired or cancelled.
type Ticket struct {
    ID       string
    Entry    Entry
    QueuedAt time.Time

    once      sync.Once
    done      chan struct{}
    sessionID string
    err       error
}

func (t *Ticket) Done() <-chan struct{} { return t.done }

// Resolve completes the ticket with a session id. Only the first completion counts.
func (t *Ticket) Resolve(sessionID string) {
    t.once.Do(func() { t.sessionID = sessionID; close(t.done) })
}

func (t *Ticket) Fail(err error) {
    t.once.Do(func() { t.err = err; close(t.done) })
}

// Wait blocks until the ticket is paired, cancelled, or ctx ends.
func (t *Ticket) Wait(ctx context.Context) (string, error) {
    select {
    case <-t.done:
        return t.sessionID, t.err
    case <-ctx.Done():
        return "", ctx.Err()
    }
}

// Result returns the outcome without blocking; ok is false while still queued.
func (t *Ticket) Result() (string, bool, error) {
    select {
    case <-t.done:
        return t.sessionID, true, t.err
    default:
        return "", false, nil
    }
}

type pool struct {
    mu    sync.Mutex
    queue []*Ticket
}

// Matchmaker keeps one FIFO pool per mode. The pool map and the player index share one
// lock; each pool has its own, so modes never contend.
type Matchmaker struct {
    mu       sync.Mutex
    pools    map[string]*pool
    byPlayer map[string]*Ticket
    seq      uint64
    now      func() time.Time
}

func New() *Matchmaker {
    return &Matchmaker{pools: make(map[string]*pool), byPlayer: make(map[string]*Ticket), now: time.Now}
}

func NormalizeMode(mode string) string {
    mode = strings.ToLower(strings.TrimSpace(mode))
    if mode == "" { return DefaultMode }
    return mode
}

// Enqueue adds e to its mode pool. When the pool then holds two entries the two oldest
// are removed and returned as pair; the caller builds the session and resolves both.
func (m *Matchmaker) Enqueue(e Entry) (*Ticket, []*Ticket, error) {
    if strings.TrimSpace(e.PlayerID) == "" { return nil, nil, ErrInvalidArgs }
    e.Mode = NormalizeMode(e.Mode)

    m.mu.Lock()
    if _, ok := m.byPlayer[e.PlayerID]; ok {
        m.mu.Unlock()
        return nil, nil, ErrAlreadyQueued
    }
    t := &Ticket{ID: m.nextID(), Entry: e, QueuedAt: m.now(), done: make(chan struct{})}
    m.byPlayer[e.PlayerID] = t
    p := m.poolLocked(e.Mode)
    m.mu.Unlock()

    return t, m.push(p, t, false), nil
}

// Requeue puts an open ticket back at the head of its pool, keeping its seniority. It is
// used when a pairing fell through because of the other player.
func (m *Matchmaker) Requeue(t *Ticket) ([]*Ticket, error) {
    if t == nil { return nil, ErrInvalidArgs }
    if _, done, _ := t.Result(); done { return nil, ErrCancelled }
    m.mu.Lock()
    if _, ok := m.byPlayer[t.Entry.PlayerID]; ok {
        m.mu.Unlock()
        return nil, ErrAlreadyQueued
    }
    m.byPlayer[t.Entry.PlayerID] = t
    p := m.poolLocked(t.Entry.Mode)
    m.mu.Unlock()

    return m.push(p, t, true), nil
}

func (m *Matchmaker) poolLocked(mode string) *pool {
    p := m.pools[mode]
    if p == nil {
        p = &pool{}
        m.pools[mode] = p
    }
    return p
}

// push adds t and, once two entries wait, pops the two oldest as a pair.
func (m *Matchmaker) push(p *pool, t *Ticket, front bool) []*Ticket {
    p.mu.Lock()
    if front {
        p.queue = append([]*Ticket{t}, p.queue...)
    } else {
        p.queue = append(p.queue, t)
    }
    var pair []*Ticket
    if len(p.queue) >= 2 {
        pair = []*Ticket{p.queue[0], p.queue[1]}
        p.queue = append([]*Ticket(nil), p.queue[2:]...)
    }
    p.mu.Unlock()

    if pair != nil {
        m.mu.Lock()
        for _, pt := range pair {
            if m.byPlayer[pt.Entry.PlayerID] == pt { delete(m.byPlayer, pt.Entry.PlayerID) }
        }
        m.mu.Unlock()
    }
    return pair
}

// Cancel removes playerID's queued ticket and fails it. It reports false when the player
// had no ticket or was already paired.
func (m *Matchmaker) Cancel(playerID string) (*Ticket, bool) { return m.cancel(playerID, nil) }

// CancelTicket cancels t only if it is still the player's queued ticket.
func (m *Matchmaker) CancelTicket(t *Ticket) bool {
    if t == nil { return false }
    _, ok := m.cancel(t.Entry.PlayerID, t)
    return ok
}

func (m *Matchmaker) cancel(playerID string, want *Ticket) (*Ticket, bool) {
    m.mu.Lock()
    t, ok := m.byPlayer[playerID]
    if ok && want != nil && t != want { ok = false }
    var p *pool
    if ok { p = m.pools[t.Entry.Mode] }
    m.mu.Unlock()
    if !ok || p == nil { return nil, false }

    removed := false
    p.mu.Lock()
    for i, q := range p.queue {
        if q == t {
            p.queue = append(p.queue[:i:i], p.queue[i+1:]...)
            removed = true
            break
        }
    }
    p.mu.Unlock()
    if !removed { return nil, false }

    m.mu.Lock()
    if m.byPlayer[playerID] == t { delete(m.byPlayer, playerID) }
    m.mu.Unlock()
    t.Fail(ErrCancelled)
    return t, true
}

func (m *Matchmaker) IsQueued(playerID string) bool {
    m.mu.Lock()
    defer m.mu.Unlock()
    _, ok := m.byPlayer[playerID]
    return ok
}

func (m *Matchmaker) nextID() string {
    n := atomic.AddUint64(&m.seq, 1)
    return fmt.Sprintf("mm-%d-%d", m.now().UnixNano(), n)
}
