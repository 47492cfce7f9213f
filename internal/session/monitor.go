package session

import (
    "sync"
    "time"
)

type monitorKey struct{ session, player string }

type liveness struct {
    connected bool
    lastSeen  time.Time
    gen       uint64
}

// DisconnectMonitor tracks per-player liveness in active sessions and arms one bounded
// timer per disconnected player. Every disconnect or reconnect bumps a generation, so a
// timer armed by an earlier disconnect can never resolve a later one.
type DisconnectMonitor struct {
    mu      sync.Mutex
    ttl     time.Duration
    sched   Scheduler
    now     func() time.Time
    players map[monitorKey]*liveness
}

func NewDisconnectMonitor(ttl time.Duration, sched Scheduler, now func() time.Time) *DisconnectMonitor {
    if now == nil { now = time.Now }
    return &DisconnectMonitor{ttl: ttl, sched: sched, now: now, players: make(map[monitorKey]*liveness)}
}

func disconnectTaskKey(sessionID, playerID string) string { return "disconnect:" + sessionID + ":" + playerID }

// Track starts monitoring a connected player.
func (m *DisconnectMonitor) Track(sessionID, playerID string) {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.players[monitorKey{sessionID, playerID}] = &liveness{connected: true, lastSeen: m.now()}
}

// Seen records a heartbeat. It does not reconnect a disconnected player.
func (m *DisconnectMonitor) Seen(sessionID, playerID string) bool {
    m.mu.Lock()
    defer m.mu.Unlock()
    l, ok := m.players[monitorKey{sessionID, playerID}]
    if !ok || !l.connected { return false }
    l.lastSeen = m.now()
    return true
}

// Disconnect marks the player gone and arms the expiry timer. onExpire receives the
// generation it was armed with. It returns false if the player is untracked or already
// disconnected; the pending timer is then left as it was.
func (m *DisconnectMonitor) Disconnect(sessionID, playerID string, onExpire func(gen uint64)) bool {
    m.mu.Lock()
    defer m.mu.Unlock()
    l, ok := m.players[monitorKey{sessionID, playerID}]
    if !ok || !l.connected { return false }
    l.connected = false
    l.gen++
    gen := l.gen
    m.sched.Schedule(disconnectTaskKey(sessionID, playerID), m.ttl, func() { onExpire(gen) })
    return true
}

// Reconnect restores a disconnected player and cancels its timer.
func (m *DisconnectMonitor) Reconnect(sessionID, playerID string) bool {
    m.mu.Lock()
    defer m.mu.Unlock()
    l, ok := m.players[monitorKey{sessionID, playerID}]
    if !ok || l.connected { return false }
    l.connected = true
    l.gen++
    l.lastSeen = m.now()
    m.sched.Cancel(disconnectTaskKey(sessionID, playerID))
    return true
}

// Expire consumes an expiry: it holds only if the player is still disconnected under gen.
func (m *DisconnectMonitor) Expire(sessionID, playerID string, gen uint64) bool {
    m.mu.Lock()
    defer m.mu.Unlock()
    l, ok := m.players[monitorKey{sessionID, playerID}]
    if !ok || l.connected || l.gen != gen { return false }
    l.gen++
    return true
}

// Forget stops monitoring the given players of a session and cancels their timers.
func (m *DisconnectMonitor) Forget(sessionID string, playerIDs ...string) {
    m.mu.Lock()
    defer m.mu.Unlock()
    for _, p := range playerIDs {
        delete(m.players, monitorKey{sessionID, p})
        m.sched.Cancel(disconnectTaskKey(sessionID, p))
    }
}

// Status reports liveness; untracked players count as connected.
func (m *DisconnectMonitor) Status(sessionID, playerID string) (bool, time.Time) {
    m.mu.Lock()
    defer m.mu.Unlock()
    l, ok := m.players[monitorKey{sessionID, playerID}]
    if !ok { return true, time.Time{} }
    return l.connected, l.lastSeen
}
