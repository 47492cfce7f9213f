package session

import (
    "context"
    "errors"
    "fmt"
    "math/rand"
    "sort"
    "strings"
    "sync"
    "time"

    "github.com/google/uuid"
    "go.uber.org/zap"

    "github.com/park285/Cheese-Xiangqi-bot/internal/matchmaker"
    "github.com/park285/Cheese-Xiangqi-bot/internal/metrics"
    "github.com/park285/Cheese-Xiangqi-bot/internal/obslog"
    "github.com/park285/Cheese-Xiangqi-bot/internal/replay"
    "github.com/park285/Cheese-Xiangqi-bot/internal/xiangqi"
    "github.com/park285/Cheese-Xiangqi-bot/internal/xiangqi/rules"
)

const (
    DefaultWaitingTTL     = 10 * time.Minute
    DefaultDisconnectTTL  = 90 * time.Second
    DefaultEndedRetention = 30 * time.Minute
    DefaultSnapshotEvery  = 10

    callbackTimeout = 5 * time.Second
)

// Archiver keeps sealed logs after the live replay store lets them go.
type Archiver interface {
    Save(ctx context.Context, l *replay.Log) error
    Load(ctx context.Context, sessionID string) (*replay.Log, error)
}

type Options struct {
    WaitingTTL     time.Duration
    DisconnectTTL  time.Duration
    EndedRetention time.Duration
    SnapshotEvery  int
    // MaxSessions caps waiting plus active sessions; 0 means no cap.
    MaxSessions int

    Catalog   *rules.Catalog
    Store     replay.Store
    Archive   Archiver
    Counters  *metrics.Counters
    Scheduler Scheduler

    Now   func() time.Time
    Coin  func() bool
    NewID func() string
}

func (o *Options) defaults() {
    if o.WaitingTTL <= 0 { o.WaitingTTL = DefaultWaitingTTL }
    if o.DisconnectTTL <= 0 { o.DisconnectTTL = DefaultDisconnectTTL }
    if o.EndedRetention <= 0 { o.EndedRetention = DefaultEndedRetention }
    if o.SnapshotEvery < 0 { o.SnapshotEvery = 0 }
    if o.Catalog == nil { o.Catalog = rules.DefaultCatalog() }
    if o.Store == nil { o.Store = replay.NewMemoryStore() }
    if o.Counters == nil { o.Counters = metrics.NewCounters() }
    if o.Scheduler == nil { o.Scheduler = NewTimerScheduler() }
    if o.Now == nil { o.Now = time.Now }
    if o.Coin == nil { o.Coin = func() bool { return rand.Intn(2) == 0 } }
    if o.NewID == nil {
        o.NewID = func() string { return "XQ-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6]) }
    }
}

// Registry owns every live session. Its lock guards only the maps below; per-session
// state is guarded by each session's own lock and the two are never held together.
type Registry struct {
    opts    Options
    mm      *matchmaker.Matchmaker
    monitor *DisconnectMonitor

    mu       sync.RWMutex
    sessions map[string]*Session
    byPlayer map[string]string
    live     map[string]struct{}
    closed   bool

    subMu  sync.RWMutex
    subs   map[int]func(Event)
    subSeq int
}

func NewRegistry(opts Options) *Registry {
    opts.defaults()
    return &Registry{
        opts:     opts,
        mm:       matchmaker.New(),
        monitor:  NewDisconnectMonitor(opts.DisconnectTTL, opts.Scheduler, opts.Now),
        sessions: make(map[string]*Session),
        byPlayer: make(map[string]string),
        live:     make(map[string]struct{}),
        subs:     make(map[int]func(Event)),
    }
}

// Subscribe registers fn for every committed event and returns its cancel func.
func (r *Registry) Subscribe(fn func(Event)) func() {
    r.subMu.Lock()
    r.subSeq++
    id := r.subSeq
    r.subs[id] = fn
    r.subMu.Unlock()
    return func() {
        r.subMu.Lock()
        delete(r.subs, id)
        r.subMu.Unlock()
    }
}

func (r *Registry) emit(t EventType, playerID string, v View) {
    r.subMu.RLock()
    fns := make([]func(Event), 0, len(r.subs))
    for _, fn := range r.subs { fns = append(fns, fn) }
    r.subMu.RUnlock()
    e := Event{Type: t, PlayerID: playerID, View: v, At: r.opts.Now()}
    for _, fn := range fns { fn(e) }
}

func (r *Registry) Counters() metrics.Snapshot { return r.opts.Counters.Snapshot() }

func (r *Registry) Catalog() *rules.Catalog { return r.opts.Catalog }

func (r *Registry) get(id string) (*Session, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    s, ok := r.sessions[strings.TrimSpace(id)]
    if !ok { return nil, ErrNotFound }
    return s, nil
}

func (r *Registry) viewOf(s *Session) View { return s.view(r.monitor.Status) }

// reserve binds playerID to sessionID unless it is bound elsewhere. fresh reports whether
// this call created the binding.
func (r *Registry) reserve(playerID, sessionID string) (fresh bool, err error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    if r.closed { return false, ErrClosed }
    if cur, ok := r.byPlayer[playerID]; ok {
        if cur == sessionID { return false, nil }
        return false, ErrPlayerBusy
    }
    if r.mm.IsQueued(playerID) { return false, ErrAlreadyQueued }
    r.byPlayer[playerID] = sessionID
    return true, nil
}

func (r *Registry) release(playerID, sessionID string) {
    r.mu.Lock()
    if r.byPlayer[playerID] == sessionID { delete(r.byPlayer, playerID) }
    r.mu.Unlock()
}

func waitingTaskKey(id string) string        { return "waiting:" + id }
func retentionTaskKey(id string) string      { return "retain:" + id }
func queueTaskKey(t *matchmaker.Ticket) string { return "queue:" + t.Entry.PlayerID + ":" + t.ID }

// Create opens a waiting room hosted by host.
func (r *Registry) Create(ctx context.Context, host Identity, pref SidePref, password string) (View, error) {
    if strings.TrimSpace(host.ID) == "" { return View{}, ErrInvalidArgs }
    r.mu.Lock()
    if r.closed {
        r.mu.Unlock()
        return View{}, ErrClosed
    }
    if _, busy := r.byPlayer[host.ID]; busy {
        r.mu.Unlock()
        return View{}, ErrPlayerBusy
    }
    if r.mm.IsQueued(host.ID) {
        r.mu.Unlock()
        return View{}, ErrAlreadyQueued
    }
    if r.opts.MaxSessions > 0 && len(r.live) >= r.opts.MaxSessions {
        r.mu.Unlock()
        return View{}, ErrCapacity
    }
    id := r.allocID()
    s := newSession(id, matchmaker.DefaultMode, host, pref, strings.TrimSpace(password), r.opts.Catalog.Base.Clone(), r.opts.Now())
    r.opts.Scheduler.Schedule(waitingTaskKey(id), r.opts.WaitingTTL, func() { r.expireWaiting(id) })
    r.sessions[id] = s
    r.byPlayer[host.ID] = id
    r.live[id] = struct{}{}
    r.mu.Unlock()

    s.mu.Lock()
    v := r.viewOf(s)
    s.mu.Unlock()
    obslog.L().Info("xq_session_create", zap.String("session_id", id), zap.String("host_id", host.ID), zap.String("room", host.Room), zap.String("pref", string(pref)), zap.Bool("private", v.Private))
    r.emit(EventCreated, host.ID, v)
    return v, nil
}

// allocID must be called with r.mu held.
func (r *Registry) allocID() string {
    for i := 0; i < 8; i++ {
        id := r.opts.NewID()
        _, taken := r.sessions[id]
        _, pending := r.live[id]
        if !taken && !pending { return id }
    }
    return "XQ-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// Join seats player in a waiting room and starts the match. A participant re-joining an
// active session is treated as a reconnect.
func (r *Registry) Join(ctx context.Context, id string, player Identity, password string) (View, error) {
    if strings.TrimSpace(player.ID) == "" { return View{}, ErrInvalidArgs }
    s, err := r.get(id)
    if err != nil { return View{}, err }
    fresh, err := r.reserve(player.ID, s.id)
    if err != nil { return View{}, err }
    undo := func() {
        if fresh { r.release(player.ID, s.id) }
    }

    s.mu.Lock()
    switch s.state {
    case StateEnded:
        s.mu.Unlock()
        undo()
        return View{}, ErrAlreadyEnded
    case StateActive:
        if s.seatOf(player.ID) == nil {
            s.mu.Unlock()
            undo()
            return View{}, ErrAlreadyFull
        }
        back := r.monitor.Reconnect(s.id, player.ID)
        v := r.viewOf(s)
        s.mu.Unlock()
        if back {
            obslog.L().Info("xq_reconnect", zap.String("session_id", s.id), zap.String("player_id", player.ID))
            r.emit(EventReconnected, player.ID, v)
        }
        return v, nil
    }
    if player.ID == s.host.ID {
        v := r.viewOf(s)
        s.mu.Unlock()
        return v, nil
    }
    if s.password != "" && s.password != strings.TrimSpace(password) {
        s.mu.Unlock()
        undo()
        return View{}, ErrWrongPassword
    }
    if len(s.seats) >= 2 {
        s.mu.Unlock()
        undo()
        return View{}, ErrAlreadyFull
    }
    if err := r.activateLocked(ctx, s, player); err != nil {
        s.mu.Unlock()
        undo()
        return View{}, err
    }
    v := r.viewOf(s)
    s.mu.Unlock()
    obslog.L().Info("xq_session_join", zap.String("session_id", s.id), zap.String("player_id", player.ID), zap.String("red_id", redOf(v)), zap.String("rules", v.Rules))
    r.emit(EventJoined, player.ID, v)
    return v, nil
}

// activateLocked seats joiner, disarms the waiting timer, opens the replay log, and starts
// liveness tracking. On error the session is left untouched.
func (r *Registry) activateLocked(ctx context.Context, s *Session, joiner Identity) error {
    if err := s.board.CheckInvariants(); err != nil { return err }
    prevSeats, prevPref := len(s.seats), s.pref
    s.start(joiner, r.opts.Coin(), r.opts.Now())
    if err := r.opts.Store.Begin(ctx, s.replayMeta()); err != nil {
        s.seats = s.seats[:prevSeats]
        s.seats[0].side = ""
        s.pref = prevPref
        s.state = StateWaiting
        s.startedAt, s.turnStartedAt = time.Time{}, time.Time{}
        return fmt.Errorf("open replay log: %w", err)
    }
    r.opts.Scheduler.Cancel(waitingTaskKey(s.id))
    for _, pid := range s.playerIDs() { r.monitor.Track(s.id, pid) }
    if r.opts.SnapshotEvery > 0 {
        snap := replay.Snapshot{AfterIndex: -1, FEN: s.board.FEN(s.turn), At: s.startedAt}
        if err := r.opts.Store.Snapshot(ctx, s.id, snap); err != nil {
            obslog.L().Warn("xq_replay_snapshot_error", zap.String("session_id", s.id), zap.Error(err))
        }
    }
    return nil
}

func redOf(v View) string {
    if p, ok := v.SideOf(xiangqi.Red); ok { return p.ID }
    return ""
}

// Match queues player in mode's pool. When an opponent is already waiting the two are
// seated in a new active session and both tickets resolve to its id.
func (r *Registry) Match(ctx context.Context, mode string, player Identity) (*matchmaker.Ticket, error) {
    if strings.TrimSpace(player.ID) == "" { return nil, ErrInvalidArgs }
    r.mu.RLock()
    closed := r.closed
    _, busy := r.byPlayer[player.ID]
    r.mu.RUnlock()
    if closed { return nil, ErrClosed }
    if busy { return nil, ErrPlayerBusy }

    t, pair, err := r.mm.Enqueue(matchmaker.Entry{PlayerID: player.ID, Name: player.Name, Room: player.Room, Mode: mode})
    if errors.Is(err, matchmaker.ErrAlreadyQueued) { return nil, ErrAlreadyQueued }
    if err != nil { return nil, err }
    obslog.L().Info("xq_match_enqueue", zap.String("player_id", player.ID), zap.String("mode", t.Entry.Mode), zap.String("ticket", t.ID))
    if pair == nil {
        r.opts.Scheduler.Schedule(queueTaskKey(t), r.opts.WaitingTTL, func() { r.expireTicket(t) })
        return t, nil
    }
    r.startPaired(ctx, pair)
    return t, nil
}

func (r *Registry) startPaired(ctx context.Context, pair []*matchmaker.Ticket) {
    for _, t := range pair { r.opts.Scheduler.Cancel(queueTaskKey(t)) }
    fail := func(err error) {
        for _, t := range pair { t.Fail(err) }
        obslog.L().Warn("xq_match_pair_error", zap.String("a", pair[0].Entry.PlayerID), zap.String("b", pair[1].Entry.PlayerID), zap.Error(err))
    }
    a, b := pair[0].Entry, pair[1].Entry
    hostID := Identity{ID: a.PlayerID, Name: a.Name, Room: a.Room}
    joiner := Identity{ID: b.PlayerID, Name: b.Name, Room: b.Room}

    r.mu.Lock()
    if r.closed {
        r.mu.Unlock()
        fail(ErrClosed)
        return
    }
    if r.opts.MaxSessions > 0 && len(r.live) >= r.opts.MaxSessions {
        r.mu.Unlock()
        fail(ErrCapacity)
        return
    }
    var busy, free []*matchmaker.Ticket
    for _, t := range pair {
        if _, ok := r.byPlayer[t.Entry.PlayerID]; ok {
            busy = append(busy, t)
        } else {
            free = append(free, t)
        }
    }
    if len(busy) > 0 {
        r.mu.Unlock()
        for _, t := range busy { t.Fail(ErrPlayerBusy) }
        for _, t := range free { r.requeue(ctx, t) }
        obslog.L().Warn("xq_match_pair_busy", zap.String("a", a.PlayerID), zap.String("b", b.PlayerID), zap.Int("requeued", len(free)))
        return
    }
    id := r.allocID()
    // both players are bound before the session becomes visible
    r.byPlayer[a.PlayerID] = id
    r.byPlayer[b.PlayerID] = id
    r.live[id] = struct{}{}
    r.mu.Unlock()

    s := newSession(id, a.Mode, hostID, PrefRandom, "", r.opts.Catalog.Base.Clone(), r.opts.Now())
    s.mu.Lock()
    if err := r.activateLocked(ctx, s, joiner); err != nil {
        s.mu.Unlock()
        r.remove(id, []string{a.PlayerID, b.PlayerID})
        fail(err)
        return
    }
    v := r.viewOf(s)
    s.mu.Unlock()

    r.mu.Lock()
    r.sessions[id] = s
    r.mu.Unlock()

    for _, t := range pair { t.Resolve(id) }
    obslog.L().Info("xq_match_paired", zap.String("session_id", id), zap.String("mode", a.Mode), zap.String("red_id", redOf(v)))
    r.emit(EventPaired, "", v)
}

// requeue returns t to its pool after its partner could not be seated.
func (r *Registry) requeue(ctx context.Context, t *matchmaker.Ticket) {
    pair, err := r.mm.Requeue(t)
    if err != nil {
        t.Fail(err)
        return
    }
    if pair != nil {
        r.startPaired(ctx, pair)
        return
    }
    r.opts.Scheduler.Schedule(queueTaskKey(t), r.opts.WaitingTTL, func() { r.expireTicket(t) })
}

func (r *Registry) expireTicket(t *matchmaker.Ticket) {
    if !r.mm.CancelTicket(t) { return }
    r.opts.Counters.IncWaitingRoomsCleaned()
    obslog.L().Info("xq_queue_ttl", zap.String("player_id", t.Entry.PlayerID), zap.String("mode", t.Entry.Mode), zap.String("ticket", t.ID))
    r.emit(EventQueueExpired, t.Entry.PlayerID, View{Mode: t.Entry.Mode, Players: []PlayerView{{Identity: Identity{ID: t.Entry.PlayerID, Name: t.Entry.Name, Room: t.Entry.Room}}}})
}

// CancelMatch withdraws playerID from matchmaking.
func (r *Registry) CancelMatch(playerID string) bool {
    t, ok := r.mm.Cancel(playerID)
    if ok {
        r.opts.Scheduler.Cancel(queueTaskKey(t))
        obslog.L().Info("xq_match_cancel", zap.String("player_id", playerID), zap.String("ticket", t.ID))
    }
    return ok
}

// Cancel closes a waiting room. Only its host may do so.
func (r *Registry) Cancel(ctx context.Context, id, playerID string) (View, error) {
    s, err := r.get(id)
    if err != nil { return View{}, err }
    s.mu.Lock()
    switch {
    case s.state == StateEnded:
        s.mu.Unlock()
        return View{}, ErrAlreadyEnded
    case s.state == StateActive:
        s.mu.Unlock()
        return View{}, ErrAlreadyStarted
    case s.host.ID != playerID:
        s.mu.Unlock()
        return View{}, ErrNotHost
    }
    v, players := r.cancelLocked(s)
    s.mu.Unlock()
    r.retire(s.id, players)
    r.emit(EventEnded, playerID, v)
    return v, nil
}

func (r *Registry) cancelLocked(s *Session) (View, []string) {
    r.opts.Scheduler.Cancel(waitingTaskKey(s.id))
    s.end(ResultCancelled, ReasonCancel, r.opts.Now())
    obslog.L().Info("xq_session_cancel", zap.String("session_id", s.id), zap.String("host_id", s.host.ID))
    return r.viewOf(s), s.playerIDs()
}

// Leave is idempotent. In a waiting room it cancels (host only); in an active match it is
// a disconnect that the player can still recover from; after the end it does nothing.
func (r *Registry) Leave(ctx context.Context, id, playerID string) (View, error) {
    s, err := r.get(id)
    if err != nil { return View{}, err }
    s.mu.Lock()
    switch s.state {
    case StateEnded:
        v := r.viewOf(s)
        s.mu.Unlock()
        return v, nil
    case StateWaiting:
        if s.host.ID != playerID {
            s.mu.Unlock()
            return View{}, ErrNotParticipant
        }
        v, players := r.cancelLocked(s)
        s.mu.Unlock()
        r.retire(s.id, players)
        r.emit(EventEnded, playerID, v)
        return v, nil
    }
    if s.seatOf(playerID) == nil {
        s.mu.Unlock()
        return View{}, ErrNotParticipant
    }
    sid := s.id
    gone := r.monitor.Disconnect(sid, playerID, func(gen uint64) { r.resolveDisconnect(sid, playerID, gen) })
    v := r.viewOf(s)
    s.mu.Unlock()
    if gone {
        obslog.L().Info("xq_disconnect", zap.String("session_id", sid), zap.String("player_id", playerID), zap.Duration("ttl", r.opts.DisconnectTTL))
        r.emit(EventDisconnected, playerID, v)
    }
    return v, nil
}

// Reconnect restores a disconnected participant before its timer fires.
func (r *Registry) Reconnect(ctx context.Context, id, playerID string) (View, error) {
    s, err := r.get(id)
    if err != nil { return View{}, err }
    s.mu.Lock()
    if s.state == StateEnded {
        s.mu.Unlock()
        return View{}, ErrAlreadyEnded
    }
    if s.seatOf(playerID) == nil {
        s.mu.Unlock()
        return View{}, ErrNotParticipant
    }
    back := s.state == StateActive && r.monitor.Reconnect(s.id, playerID)
    v := r.viewOf(s)
    s.mu.Unlock()
    if back {
        obslog.L().Info("xq_reconnect", zap.String("session_id", s.id), zap.String("player_id", playerID))
        r.emit(EventReconnected, playerID, v)
    }
    return v, nil
}

// Heartbeat records liveness for a participant. A participant marked disconnected is
// back once it is heard from again, so its pending timer is cancelled.
func (r *Registry) Heartbeat(id, playerID string) error {
    s, err := r.get(id)
    if err != nil { return err }
    return r.touch(s, playerID)
}

func (r *Registry) touch(s *Session, playerID string) error {
    s.mu.Lock()
    if s.seatOf(playerID) == nil {
        s.mu.Unlock()
        return ErrNotParticipant
    }
    back := s.state == StateActive && !r.monitor.Seen(s.id, playerID) && r.monitor.Reconnect(s.id, playerID)
    var v View
    if back { v = r.viewOf(s) }
    s.mu.Unlock()
    if back {
        obslog.L().Info("xq_reconnect", zap.String("session_id", s.id), zap.String("player_id", playerID), zap.String("via", "activity"))
        r.emit(EventReconnected, playerID, v)
    }
    return nil
}

func (r *Registry) resolveDisconnect(id, playerID string, gen uint64) {
    s, err := r.get(id)
    if err != nil { return }
    ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
    defer cancel()
    s.mu.Lock()
    if s.state != StateActive || !r.monitor.Expire(id, playerID, gen) {
        s.mu.Unlock()
        return
    }
    r.finishLocked(ctx, s, ResultDraw, ReasonDisconnectTTL)
    r.opts.Counters.IncDisconnectDraws()
    v, players := r.viewOf(s), s.playerIDs()
    s.mu.Unlock()
    r.retire(id, players)
    obslog.L().Info("xq_disconnect_draw", zap.String("session_id", id), zap.String("player_id", playerID), zap.Int("moves", v.MoveCount))
    r.emit(EventEnded, playerID, v)
}

func (r *Registry) expireWaiting(id string) {
    s, err := r.get(id)
    if err != nil { return }
    s.mu.Lock()
    if s.state != StateWaiting {
        s.mu.Unlock()
        return
    }
    s.end(ResultCancelled, ReasonWaitingTTL, r.opts.Now())
    v, players := r.viewOf(s), s.playerIDs()
    s.mu.Unlock()
    r.remove(id, players)
    r.opts.Counters.IncWaitingRoomsCleaned()
    obslog.L().Info("xq_waiting_ttl", zap.String("session_id", id), zap.String("host_id", v.Host), zap.Duration("ttl", r.opts.WaitingTTL))
    r.emit(EventRemoved, v.Host, v)
}

// finishLocked ends an active session, stops its timers, and seals and archives its log.
// Storage failures are logged; the match result stands regardless.
func (r *Registry) finishLocked(ctx context.Context, s *Session, result Result, reason EndReason) {
    now := r.opts.Now()
    s.end(result, reason, now)
    r.monitor.Forget(s.id, s.playerIDs()...)
    l, err := r.opts.Store.Seal(ctx, s.id, string(result), string(reason), now)
    if err != nil {
        obslog.L().Warn("xq_replay_seal_error", zap.String("session_id", s.id), zap.Error(err))
        return
    }
    if r.opts.Archive != nil {
        if err := r.opts.Archive.Save(ctx, l); err != nil {
            obslog.L().Warn("xq_archive_error", zap.String("session_id", s.id), zap.Error(err))
        }
    }
    obslog.L().Info("xq_session_end", zap.String("session_id", s.id), zap.String("result", string(result)), zap.String("reason", string(reason)), zap.Int("moves", len(s.moves)))
}

// retire releases the players of an ended session and keeps the session readable until
// the retention timer drops it.
func (r *Registry) retire(id string, players []string) {
    r.mu.Lock()
    for _, p := range players {
        if r.byPlayer[p] == id { delete(r.byPlayer, p) }
    }
    delete(r.live, id)
    closed := r.closed
    r.mu.Unlock()
    if closed { return }
    r.opts.Scheduler.Schedule(retentionTaskKey(id), r.opts.EndedRetention, func() {
        r.remove(id, players)
        // an in-memory log is the only copy unless an archive holds it
        if r.opts.Archive == nil { return }
        if d, ok := r.opts.Store.(interface{ Drop(string) }); ok { d.Drop(id) }
    })
}

func (r *Registry) remove(id string, players []string) {
    r.mu.Lock()
    delete(r.sessions, id)
    for _, p := range players {
        if r.byPlayer[p] == id { delete(r.byPlayer, p) }
    }
    delete(r.live, id)
    r.mu.Unlock()
}

// Resign ends the match in the opponent's favour.
func (r *Registry) Resign(ctx context.Context, id, playerID string) (View, error) {
    s, err := r.get(id)
    if err != nil { return View{}, err }
    s.mu.Lock()
    if err := guardActive(s, playerID); err != nil {
        s.mu.Unlock()
        return View{}, err
    }
    st := s.seatOf(playerID)
    r.finishLocked(ctx, s, resultFor(st.side.Opponent()), ReasonResign)
    v, players := r.viewOf(s), s.playerIDs()
    s.mu.Unlock()
    r.retire(id, players)
    r.emit(EventEnded, playerID, v)
    return v, nil
}

func guardActive(s *Session, playerID string) error {
    switch s.state {
    case StateEnded:
        return ErrAlreadyEnded
    case StateWaiting:
        return xiangqi.ErrSessionNotActive
    }
    if s.seatOf(playerID) == nil { return ErrNotParticipant }
    return nil
}

// Move runs the per-move pipeline. A rejected move changes nothing.
func (r *Registry) Move(ctx context.Context, id, playerID string, from, to xiangqi.Pos) (View, error) {
    s, err := r.get(id)
    if err != nil { return View{}, err }
    _ = r.touch(s, playerID)
    s.mu.Lock()
    if err := guardActive(s, playerID); err != nil {
        s.mu.Unlock()
        return View{}, err
    }
    st := s.seatOf(playerID)
    if st.side != s.turn {
        s.mu.Unlock()
        return View{}, xiangqi.ErrNotYourTurn
    }
    applied, err := rules.ValidateMove(s.board, st.side, s.rules, from, to)
    if err != nil {
        s.mu.Unlock()
        obslog.L().Debug("xq_move_rejected", zap.String("session_id", id), zap.String("player_id", playerID), zap.String("move", from.String()+to.String()), zap.Error(err))
        return View{}, err
    }
    now := r.opts.Now()
    mv := replay.Move{Index: len(s.moves), Side: st.side, Piece: applied.Piece.Type, From: from, To: to, At: now}
    if applied.Captured != nil { mv.Captured = applied.Captured.Type }
    if err := r.opts.Store.Append(ctx, id, mv); err != nil {
        s.mu.Unlock()
        return View{}, fmt.Errorf("append replay: %w", err)
    }
    if _, err := s.board.Move(from, to); err != nil {
        s.mu.Unlock()
        return View{}, err
    }
    s.moves = append(s.moves, mv)
    s.turn = s.turn.Opponent()
    s.turnStartedAt = now
    r.opts.Counters.IncMovesApplied()
    r.monitor.Seen(id, playerID)
    if n := r.opts.SnapshotEvery; n > 0 && len(s.moves)%n == 0 {
        snap := replay.Snapshot{AfterIndex: mv.Index, FEN: s.board.FEN(s.turn), At: now}
        if err := r.opts.Store.Snapshot(ctx, id, snap); err != nil {
            obslog.L().Warn("xq_replay_snapshot_error", zap.String("session_id", id), zap.Error(err))
        }
    }
    verdict := rules.Outcome(s.board, s.turn, s.rules)
    if verdict.Over {
        r.finishLocked(ctx, s, resultFor(verdict.Winner), EndReason(verdict.Reason))
    }
    v, players := r.viewOf(s), s.playerIDs()
    s.mu.Unlock()

    obslog.L().Info("xq_move", zap.String("session_id", id), zap.String("player_id", playerID), zap.Int("index", mv.Index), zap.String("move", mv.ICCS()), zap.String("captured", string(mv.Captured)))
    r.emit(EventMoved, playerID, v)
    if verdict.Over {
        r.retire(id, players)
        r.emit(EventEnded, playerID, v)
    }
    return v, nil
}

// Snapshot returns the full current state; it is safe to poll.
func (r *Registry) Snapshot(ctx context.Context, id string) (View, error) {
    s, err := r.get(id)
    if err != nil { return View{}, err }
    s.mu.Lock()
    defer s.mu.Unlock()
    return r.viewOf(s), nil
}

// SessionOf returns the live session playerID is seated in.
func (r *Registry) SessionOf(playerID string) (View, bool) {
    r.mu.RLock()
    id, ok := r.byPlayer[playerID]
    s := r.sessions[id]
    r.mu.RUnlock()
    if !ok || s == nil { return View{}, false }
    s.mu.Lock()
    defer s.mu.Unlock()
    return r.viewOf(s), true
}

func guardHostWaiting(s *Session, playerID string) error {
    switch s.state {
    case StateEnded:
        return ErrAlreadyEnded
    case StateActive:
        return ErrAlreadyStarted
    }
    if s.host.ID != playerID { return ErrNotHost }
    return nil
}

// SetRules replaces the rule set of a waiting room. Host only.
func (r *Registry) SetRules(ctx context.Context, id, playerID string, v rules.Variant) (View, error) {
    s, err := r.get(id)
    if err != nil { return View{}, err }
    rs, err := r.opts.Catalog.Build(v)
    if err != nil { return View{}, &Error{Code: ErrInvalidArgs.Code, Message: err.Error()} }
    s.mu.Lock()
    if err := guardHostWaiting(s, playerID); err != nil {
        s.mu.Unlock()
        return View{}, err
    }
    if s.seed != nil {
        if err := checkSeed(s.board, s.turn, rs); err != nil {
            s.mu.Unlock()
            return View{}, err
        }
    }
    s.rules, s.variant = rs, v
    view := r.viewOf(s)
    s.mu.Unlock()
    obslog.L().Info("xq_rules_set", zap.String("session_id", id), zap.String("rules", rs.Name), zap.Int("rule_count", len(rs.Rules)))
    r.emit(EventRulesChanged, playerID, view)
    return view, nil
}

// GetRules returns a copy of the active rule set. Reads are open to anyone who knows the id.
func (r *Registry) GetRules(ctx context.Context, id string) (rules.RuleSet, rules.Variant, error) {
    s, err := r.get(id)
    if err != nil { return rules.RuleSet{}, rules.Variant{}, err }
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.rules.Clone(), s.variant, nil
}

// SetReplay seeds a waiting room with a custom starting position. Host only.
func (r *Registry) SetReplay(ctx context.Context, id, playerID string, seed Seed) (View, error) {
    s, err := r.get(id)
    if err != nil { return View{}, err }
    b, err := xiangqi.BoardFromPlacements(seed.Pieces)
    if err != nil { return View{}, err }
    if seed.Turn == "" { seed.Turn = xiangqi.Red }
    if !seed.Turn.Valid() { return View{}, ErrInvalidArgs }
    s.mu.Lock()
    if err := guardHostWaiting(s, playerID); err != nil {
        s.mu.Unlock()
        return View{}, err
    }
    if err := b.CheckInvariants(); err != nil {
        s.mu.Unlock()
        return View{}, err
    }
    if err := checkSeed(b, seed.Turn, s.rules); err != nil {
        s.mu.Unlock()
        return View{}, err
    }
    seed.Pieces = xiangqi.PlacementsOf(b.Pieces())
    s.seed, s.board, s.turn = &seed, b, seed.Turn
    v := r.viewOf(s)
    s.mu.Unlock()
    obslog.L().Info("xq_seed_set", zap.String("session_id", id), zap.Int("pieces", len(seed.Pieces)), zap.String("turn", string(seed.Turn)))
    r.emit(EventRulesChanged, playerID, v)
    return v, nil
}

// Seed positions must be playable: the side not to move may not be capturable already,
// and the side to move needs at least one legal move.
func checkSeed(b *xiangqi.Board, turn xiangqi.Side, rs rules.RuleSet) error {
    if rules.Exposed(b, turn.Opponent(), rs) {
        return &xiangqi.SetupError{Errors: []xiangqi.ValidationItem{{Code: "opponent_in_check", Message: fmt.Sprintf("%s general can be captured immediately", turn.Opponent())}}}
    }
    if !rules.HasLegalMove(b, turn, rs) {
        return &xiangqi.SetupError{Errors: []xiangqi.ValidationItem{{Code: "no_legal_moves", Message: fmt.Sprintf("%s has no legal move", turn)}}}
    }
    return nil
}

// GetReplay returns the seed of a waiting room or the move log of a started match. Logs
// of sessions no longer held in memory are read from the store and then the archive.
func (r *Registry) GetReplay(ctx context.Context, id string) (*ReplayView, error) {
    id = strings.TrimSpace(id)
    s, err := r.get(id)
    if err == nil {
        s.mu.Lock()
        if s.state == StateWaiting {
            seed := Seed{Pieces: xiangqi.PlacementsOf(s.board.Pieces()), Turn: s.turn}
            s.mu.Unlock()
            return &ReplayView{SessionID: id, Seed: &seed}, nil
        }
        s.mu.Unlock()
    }
    l, lerr := r.opts.Store.Load(ctx, id)
    if lerr == nil { return &ReplayView{SessionID: id, Log: l}, nil }
    if !errors.Is(lerr, replay.ErrNotFound) { return nil, lerr }
    if r.opts.Archive != nil {
        l, aerr := r.opts.Archive.Load(ctx, id)
        if aerr == nil { return &ReplayView{SessionID: id, Log: l}, nil }
        if !errors.Is(aerr, replay.ErrNotFound) { return nil, aerr }
    }
    return nil, ErrNotFound
}

// Spectate adds viewer to the audience of a waiting or active session.
func (r *Registry) Spectate(ctx context.Context, id string, viewer Identity) (View, error) {
    if strings.TrimSpace(viewer.ID) == "" { return View{}, ErrInvalidArgs }
    s, err := r.get(id)
    if err != nil { return View{}, err }
    s.mu.Lock()
    if s.state == StateEnded {
        s.mu.Unlock()
        return View{}, ErrAlreadyEnded
    }
    added := false
    if s.seatOf(viewer.ID) == nil {
        if !containsIdentity(s.spectators, viewer.ID) {
            s.spectators = append(s.spectators, viewer)
            added = true
        }
    }
    v := r.viewOf(s)
    s.mu.Unlock()
    if added { r.emit(EventSpectating, viewer.ID, v) }
    return v, nil
}

// Lobby lists the public waiting rooms, oldest first.
func (r *Registry) Lobby() []View {
    r.mu.RLock()
    list := make([]*Session, 0, len(r.sessions))
    for _, s := range r.sessions { list = append(list, s) }
    r.mu.RUnlock()

    var out []View
    for _, s := range list {
        s.mu.Lock()
        if s.state == StateWaiting && s.password == "" { out = append(out, r.viewOf(s)) }
        s.mu.Unlock()
    }
    sort.Slice(out, func(i, j int) bool {
        if out[i].CreatedAt.Equal(out[j].CreatedAt) { return out[i].ID < out[j].ID }
        return out[i].CreatedAt.Before(out[j].CreatedAt)
    })
    return out
}

// Close stops every timer. Sessions stay readable; new sessions are refused.
func (r *Registry) Close() {
    r.mu.Lock()
    if r.closed {
        r.mu.Unlock()
        return
    }
    r.closed = true
    r.mu.Unlock()
    r.opts.Scheduler.Stop()
}

func containsIdentity(ids []Identity, id string) bool {
    for _, x := range ids {
        if x.ID == id { return true }
    }
    return false
}
