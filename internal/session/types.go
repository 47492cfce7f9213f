package session

import (
    "time"

    "github.com/park285/Cheese-Xiangqi-bot/internal/replay"
    "github.com/park285/Cheese-Xiangqi-bot/internal/xiangqi"
)

// State is the lifecycle phase of a session.
type State string

const (
    StateWaiting State = "waiting"
    StateActive  State = "active"
    StateEnded   State = "ended"
)

type Result string

const (
    ResultNone      Result = ""
    ResultRed       Result = "red"
    ResultBlack     Result = "black"
    ResultDraw      Result = "draw"
    ResultCancelled Result = "cancelled"
)

func resultFor(winner xiangqi.Side) Result {
    if winner == xiangqi.Red { return ResultRed }
    return ResultBlack
}

type EndReason string

const (
    ReasonResign         EndReason = "resign"
    ReasonCheckmate      EndReason = "checkmate"
    ReasonStalemate      EndReason = "stalemate"
    ReasonGeneralMissing EndReason = "general_missing"
    ReasonDisconnectTTL  EndReason = "disconnect_ttl"
    ReasonCancel         EndReason = "cancel"
    ReasonWaitingTTL     EndReason = "waiting_ttl"
)

// SidePref is the host's side request at creation.
type SidePref string

const (
    PrefRed    SidePref = "red"
    PrefBlack  SidePref = "black"
    PrefRandom SidePref = "random"
)

// Identity names a player and the chat room it plays from.
type Identity struct {
    ID   string `json:"id"`
    Name string `json:"name,omitempty"`
    Room string `json:"room,omitempty"`
}

type PlayerView struct {
    Identity
    Side      xiangqi.Side `json:"side,omitempty"`
    Connected bool         `json:"connected"`
    LastSeen  time.Time    `json:"last_seen,omitempty"`
}

// Seed is a custom starting position chosen by the host.
type Seed struct {
    Pieces []xiangqi.Placement `json:"pieces"`
    Turn   xiangqi.Side        `json:"turn"`
}

// View is a consistent, read-only copy of a session.
type View struct {
    ID            string        `json:"id"`
    Mode          string        `json:"mode,omitempty"`
    State         State         `json:"state"`
    Host          string        `json:"host"`
    Private       bool          `json:"private"`
    Players       []PlayerView  `json:"players"`
    Spectators    []Identity    `json:"spectators,omitempty"`
    Turn          xiangqi.Side  `json:"turn,omitempty"`
    TurnStartedAt time.Time     `json:"turn_started_at,omitempty"`
    InCheck       bool          `json:"in_check"`
    FEN           string        `json:"fen"`
    Pieces        []xiangqi.Piece `json:"pieces"`
    Rules         string        `json:"rules"`
    Seeded        bool          `json:"seeded"`
    MoveCount     int           `json:"move_count"`
    LastMove      *replay.Move  `json:"last_move,omitempty"`
    Result        Result        `json:"result,omitempty"`
    Reason        EndReason     `json:"reason,omitempty"`
    CreatedAt     time.Time     `json:"created_at"`
    StartedAt     time.Time     `json:"started_at,omitempty"`
    EndedAt       time.Time     `json:"ended_at,omitempty"`
}

// Player returns the view of id, if seated.
func (v View) Player(id string) (PlayerView, bool) {
    for _, p := range v.Players {
        if p.ID == id { return p, true }
    }
    return PlayerView{}, false
}

// SideOf returns the participant seated on side.
func (v View) SideOf(side xiangqi.Side) (PlayerView, bool) {
    for _, p := range v.Players {
        if p.Side == side { return p, true }
    }
    return PlayerView{}, false
}

// Rooms lists every distinct room of players and spectators.
func (v View) Rooms() []string {
    seen := map[string]bool{}
    var out []string
    add := func(r string) {
        if r != "" && !seen[r] { seen[r] = true; out = append(out, r) }
    }
    for _, p := range v.Players { add(p.Room) }
    for _, s := range v.Spectators { add(s.Room) }
    return out
}

// ReplayView is what getReplay returns: the seed before the match, the log after it starts.
type ReplayView struct {
    SessionID string      `json:"session_id"`
    Seed      *Seed       `json:"seed,omitempty"`
    Log       *replay.Log `json:"log,omitempty"`
}

type EventType string

const (
    EventCreated      EventType = "created"
    EventJoined       EventType = "joined"
    EventPaired       EventType = "paired"
    EventMoved        EventType = "moved"
    EventEnded        EventType = "ended"
    EventRemoved      EventType = "removed"
    EventDisconnected EventType = "disconnected"
    EventReconnected  EventType = "reconnected"
    EventRulesChanged EventType = "rules_changed"
    EventSpectating   EventType = "spectating"
    EventQueueExpired EventType = "queue_expired"
)

// Event is published after the state change it describes has been committed.
type Event struct {
    Type     EventType `json:"type"`
    PlayerID string    `json:"player_id,omitempty"`
    View     View      `json:"view"`
    At       time.Time `json:"at"`
}
