package session

import (
    "sync"
    "time"

    "github.com/park285/Cheese-Xiangqi-bot/internal/replay"
    "github.com/park285/Cheese-Xiangqi-bot/internal/xiangqi"
    "github.com/park285/Cheese-Xiangqi-bot/internal/xiangqi/rules"
)

type seat struct {
    Identity
    side xiangqi.Side
}

// Session is one match. Every field is guarded by mu; the registry never holds its own
// lock while holding mu.
type Session struct {
    mu sync.Mutex

    id       string
    mode     string
    password string
    host     Identity
    pref     SidePref

    seats      []*seat
    spectators []Identity

    state   State
    board   *xiangqi.Board
    rules   rules.RuleSet
    variant rules.Variant
    seed    *Seed
    turn    xiangqi.Side
    moves   []replay.Move

    result Result
    reason EndReason

    createdAt     time.Time
    startedAt     time.Time
    endedAt       time.Time
    turnStartedAt time.Time
}

func newSession(id, mode string, host Identity, pref SidePref, password string, rs rules.RuleSet, now time.Time) *Session {
    return &Session{
        id:        id,
        mode:      mode,
        password:  password,
        host:      host,
        pref:      pref,
        seats:     []*seat{{Identity: host}},
        state:     StateWaiting,
        board:     xiangqi.NewStandardBoard(),
        rules:     rs,
        turn:      xiangqi.Red,
        createdAt: now,
    }
}

func (s *Session) ID() string { return s.id }

func (s *Session) seatOf(playerID string) *seat {
    for _, st := range s.seats {
        if st.ID == playerID { return st }
    }
    return nil
}

func (s *Session) playerIDs() []string {
    out := make([]string, 0, len(s.seats))
    for _, st := range s.seats { out = append(out, st.ID) }
    return out
}

// start seats the second player and moves the session to active. hostRed decides sides
// when the host asked for a random side.
func (s *Session) start(joiner Identity, hostRed bool, now time.Time) {
    switch s.pref {
    case PrefRed:
        hostRed = true
    case PrefBlack:
        hostRed = false
    }
    hostSide := xiangqi.Black
    if hostRed { hostSide = xiangqi.Red }
    s.seats[0].side = hostSide
    s.seats = append(s.seats, &seat{Identity: joiner, side: hostSide.Opponent()})
    s.state = StateActive
    s.startedAt = now
    s.turnStartedAt = now
}

func (s *Session) end(result Result, reason EndReason, now time.Time) {
    s.state = StateEnded
    s.result = result
    s.reason = reason
    s.endedAt = now
}

func (s *Session) replayMeta() replay.Meta {
    m := replay.Meta{
        SessionID:  s.id,
        Mode:       s.mode,
        Rules:      s.rules.Name,
        InitialFEN: s.board.FEN(s.turn),
        FirstTurn:  s.turn,
        StartedAt:  s.startedAt,
    }
    for _, st := range s.seats {
        if st.side == xiangqi.Red {
            m.RedID, m.RedName = st.ID, st.Name
        } else {
            m.BlackID, m.BlackName = st.ID, st.Name
        }
    }
    return m
}

// view copies the session; connected reports monitor liveness for active players.
func (s *Session) view(connected func(sessionID, playerID string) (bool, time.Time)) View {
    v := View{
        ID:            s.id,
        Mode:          s.mode,
        State:         s.state,
        Host:          s.host.ID,
        Private:       s.password != "",
        FEN:           s.board.FEN(s.turn),
        Pieces:        s.board.Pieces(),
        Rules:         s.rules.Name,
        Seeded:        s.seed != nil,
        MoveCount:     len(s.moves),
        Result:        s.result,
        Reason:        s.reason,
        CreatedAt:     s.createdAt,
        StartedAt:     s.startedAt,
        EndedAt:       s.endedAt,
        TurnStartedAt: s.turnStartedAt,
    }
    if s.state != StateWaiting { v.Turn = s.turn }
    if s.state == StateActive { v.InCheck = rules.InCheck(s.board, s.turn, s.rules) }
    for _, st := range s.seats {
        pv := PlayerView{Identity: st.Identity, Side: st.side, Connected: true}
        if s.state == StateActive && connected != nil {
            pv.Connected, pv.LastSeen = connected(s.id, st.ID)
        }
        v.Players = append(v.Players, pv)
    }
    v.Spectators = append([]Identity(nil), s.spectators...)
    if n := len(s.moves); n > 0 {
        last := s.moves[n-1]
        v.LastMove = &last
    }
    return v
}
