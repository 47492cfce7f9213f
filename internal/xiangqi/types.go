package xiangqi

import (
	"fmt"
	"strings"
)

const (
	Cols = 9
	Rows = 10

	// RiverY is the first row of red's half; rows below it belong to black.
	RiverY = 5
)

// Side identifies a xiangqi side.
type Side string

const (
	Red   Side = "red"
	Black Side = "black"
)

func (s Side) Valid() bool { return s == Red || s == Black }

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == Red {
		return Black
	}
	return Red
}

// Forward is the row delta of one step toward the opponent.
func (s Side) Forward() int {
	if s == Red {
		return -1
	}
	return 1
}

func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red", "r", "w":
		return Red, nil
	case "black", "b":
		return Black, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// PieceType is the kind of a piece.
type PieceType string

const (
	General  PieceType = "general"
	Advisor  PieceType = "advisor"
	Elephant PieceType = "elephant"
	Horse    PieceType = "horse"
	Rook     PieceType = "rook"
	Cannon   PieceType = "cannon"
	Soldier  PieceType = "soldier"
)

var pieceTypes = []PieceType{General, Advisor, Elephant, Horse, Rook, Cannon, Soldier}

func (t PieceType) Valid() bool {
	for _, pt := range pieceTypes {
		if pt == t {
			return true
		}
	}
	return false
}

func ParsePieceType(s string) (PieceType, error) {
	t := PieceType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case "king":
		return General, nil
	case "bishop", "minister":
		return Elephant, nil
	case "knight":
		return Horse, nil
	case "chariot":
		return Rook, nil
	case "pawn":
		return Soldier, nil
	}
	if !t.Valid() {
		return "", fmt.Errorf("unknown piece type %q", s)
	}
	return t, nil
}

// Pos is a zero-based board coordinate; y grows from black's back row toward red's.
type Pos struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

func (p Pos) InBounds() bool { return p.X >= 0 && p.X < Cols && p.Y >= 0 && p.Y < Rows }

func (p Pos) index() int { return p.Y*Cols + p.X }

func (p Pos) Add(dx, dy int) Pos { return Pos{X: p.X + dx, Y: p.Y + dy} }

// String renders ICCS notation: file a-i, rank 0 at red's back row.
func (p Pos) String() string {
	if !p.InBounds() {
		return fmt.Sprintf("(%d,%d)", p.X, p.Y)
	}
	return fmt.Sprintf("%c%d", 'a'+p.X, Rows-1-p.Y)
}

func ParsePos(s string) (Pos, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'i' || s[1] < '0' || s[1] > '9' {
		return Pos{}, fmt.Errorf("invalid square %q", s)
	}
	return Pos{X: int(s[0] - 'a'), Y: Rows - 1 - int(s[1]-'0')}, nil
}

// ParseMove splits an ICCS move like "h2e2" or "h2-e2".
func ParseMove(s string) (Pos, Pos, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "-", "")
	if len(s) != 4 {
		return Pos{}, Pos{}, fmt.Errorf("invalid move %q", s)
	}
	from, err := ParsePos(s[:2])
	if err != nil {
		return Pos{}, Pos{}, err
	}
	to, err := ParsePos(s[2:])
	if err != nil {
		return Pos{}, Pos{}, err
	}
	return from, to, nil
}

// CrossedRiver reports whether pos lies in the opponent's half for side.
func CrossedRiver(side Side, pos Pos) bool {
	if side == Red {
		return pos.Y < RiverY
	}
	return pos.Y >= RiverY
}

// InPalace reports whether pos lies in side's 3x3 palace.
func InPalace(side Side, pos Pos) bool {
	if pos.X < 3 || pos.X > 5 {
		return false
	}
	if side == Red {
		return pos.Y >= 7 && pos.Y <= 9
	}
	return pos.Y >= 0 && pos.Y <= 2
}

// Piece is a typed, sided piece at a position. The zero value is an empty square.
type Piece struct {
	Type PieceType `json:"type" yaml:"type"`
	Side Side      `json:"side" yaml:"side"`
	Pos  Pos       `json:"pos" yaml:"pos"`
}

func (p Piece) Empty() bool { return p.Type == "" }

func (p Piece) String() string {
	if p.Empty() {
		return "empty"
	}
	return fmt.Sprintf("%s %s@%s", p.Side, p.Type, p.Pos)
}
