package replay

import (
    "context"
    "time"

    "github.com/park285/Cheese-Xiangqi-bot/internal/xiangqi"
)

// Move is one committed move. Entries are never rewritten once appended.
type Move struct {
    Index    int               `json:"index"`
    Side     xiangqi.Side      `json:"side"`
    Piece    xiangqi.PieceType `json:"piece"`
    From     xiangqi.Pos       `json:"from"`
    To       xiangqi.Pos       `json:"to"`
    Captured xiangqi.PieceType `json:"captured,omitempty"`
    At       time.Time         `json:"at"`
}

// ICCS renders the move as "h2e2".
func (m Move) ICCS() string { return m.From.String() + m.To.String() }

// Snapshot is a full board taken after move AfterIndex (-1 = initial position).
type Snapshot struct {
    AfterIndex int       `json:"after_index"`
    FEN        string    `json:"fen"`
    At         time.Time `json:"at"`
}

type Meta struct {
    SessionID  string       `json:"session_id"`
    Mode       string       `json:"mode,omitempty"`
    Rules      string       `json:"rules"`
    InitialFEN string       `json:"initial_fen"`
    FirstTurn  xiangqi.Side `json:"first_turn"`
    RedID      string       `json:"red_id"`
    RedName    string       `json:"red_name,omitempty"`
    BlackID    string       `json:"black_id"`
    BlackName  string       `json:"black_name,omitempty"`
    StartedAt  time.Time    `json:"started_at"`
    EndedAt    time.Time    `json:"ended_at,omitempty"`
    Result     string       `json:"result,omitempty"`
    Reason     string       `json:"reason,omitempty"`
    Sealed     bool         `json:"sealed"`
}

// Log is the ordered record of one match.
type Log struct {
    Meta      Meta       `json:"meta"`
    Moves     []Move     `json:"moves"`
    Snapshots []Snapshot `json:"snapshots,omitempty"`
}

// Store keeps replay logs while a match runs and for a while after it ends.
type Store interface {
    Begin(ctx context.Context, meta Meta) error
    // Append requires mv.Index to equal the number of moves already stored.
    Append(ctx context.Context, sessionID string, mv Move) error
    Snapshot(ctx context.Context, sessionID string, snap Snapshot) error
    // Seal freezes the log and returns its final form.
    Seal(ctx context.Context, sessionID, result, reason string, at time.Time) (*Log, error)
    Load(ctx context.Context, sessionID string) (*Log, error)
}

var (
    ErrNotFound   = errf("replay log not found")
    ErrSealed     = errf("replay log is sealed")
    ErrOutOfOrder = errf("replay move index out of order")
    ErrExists     = errf("replay log already exists")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
