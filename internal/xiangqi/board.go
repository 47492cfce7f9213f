package xiangqi

import (
	"fmt"
)

// Board is the 9x10 grid. It is a value container: Clone is a plain copy and
// no piece is shared between boards.
type Board struct {
	squares [Cols * Rows]Piece
}

func NewBoard() *Board { return &Board{} }

// NewStandardBoard returns the standard opening position.
func NewStandardBoard() *Board {
	b := NewBoard()
	for _, p := range StandardLayout() {
		_ = b.Place(p)
	}
	return b
}

// Place puts p on its square. The square must be on the board and empty.
func (b *Board) Place(p Piece) error {
	if !p.Pos.InBounds() {
		return fmt.Errorf("place %s: out of bounds", p.Pos)
	}
	if !p.Type.Valid() || !p.Side.Valid() {
		return fmt.Errorf("place: invalid piece %s/%s", p.Side, p.Type)
	}
	if cur := b.squares[p.Pos.index()]; !cur.Empty() {
		return fmt.Errorf("place %s: occupied by %s", p.Pos, cur)
	}
	b.squares[p.Pos.index()] = p
	return nil
}

// Remove clears pos and returns what was there.
func (b *Board) Remove(pos Pos) (Piece, bool) {
	if !pos.InBounds() {
		return Piece{}, false
	}
	p := b.squares[pos.index()]
	if p.Empty() {
		return Piece{}, false
	}
	b.squares[pos.index()] = Piece{}
	return p, true
}

func (b *Board) PieceAt(pos Pos) (Piece, bool) {
	if !pos.InBounds() {
		return Piece{}, false
	}
	p := b.squares[pos.index()]
	return p, !p.Empty()
}

func (b *Board) Occupied(pos Pos) bool {
	_, ok := b.PieceAt(pos)
	return ok
}

// Move relocates the piece at from to to and returns the captured piece, if any.
// It only guards the board invariant; legality is MoveGenerator's job.
func (b *Board) Move(from, to Pos) (*Piece, error) {
	if !from.InBounds() || !to.InBounds() || from == to {
		return nil, fmt.Errorf("move %s%s: %w", from, to, ErrOccupiedInvariant)
	}
	mover, ok := b.PieceAt(from)
	if !ok {
		return nil, fmt.Errorf("move %s%s: empty source: %w", from, to, ErrOccupiedInvariant)
	}
	var captured *Piece
	if target, ok := b.PieceAt(to); ok {
		if target.Side == mover.Side {
			return nil, fmt.Errorf("move %s%s: %w", from, to, ErrOccupiedInvariant)
		}
		captured = &target
	}
	b.squares[from.index()] = Piece{}
	mover.Pos = to
	b.squares[to.index()] = mover
	return captured, nil
}

// Pieces returns every piece in row-major order (black back row first).
func (b *Board) Pieces() []Piece {
	out := make([]Piece, 0, 32)
	for _, p := range b.squares {
		if !p.Empty() {
			out = append(out, p)
		}
	}
	return out
}

func (b *Board) PiecesOf(side Side) []Piece {
	out := make([]Piece, 0, 16)
	for _, p := range b.squares {
		if !p.Empty() && p.Side == side {
			out = append(out, p)
		}
	}
	return out
}

// General returns side's general; ok is false when it is missing.
func (b *Board) General(side Side) (Piece, bool) {
	for _, p := range b.squares {
		if p.Type == General && p.Side == side {
			return p, true
		}
	}
	return Piece{}, false
}

func (b *Board) Clone() *Board {
	c := *b
	return &c
}

func (b *Board) Equal(o *Board) bool {
	if b == nil || o == nil {
		return b == o
	}
	return b.squares == o.squares
}

// Between counts pieces strictly between a and b on a shared row or column.
// It returns -1 when a and b are not aligned.
func (b *Board) Between(a, c Pos) int {
	if a.X != c.X && a.Y != c.Y {
		return -1
	}
	dx, dy := sign(c.X-a.X), sign(c.Y-a.Y)
	n := 0
	for p := a.Add(dx, dy); p != c; p = p.Add(dx, dy) {
		if b.Occupied(p) {
			n++
		}
	}
	return n
}

// GeneralsFacing reports whether both generals share a column with nothing between them.
func (b *Board) GeneralsFacing() bool {
	r, ok := b.General(Red)
	if !ok {
		return false
	}
	k, ok := b.General(Black)
	if !ok {
		return false
	}
	return r.Pos.X == k.Pos.X && b.Between(r.Pos, k.Pos) == 0
}

// CheckInvariants verifies what an active match requires: one general per side.
func (b *Board) CheckInvariants() error {
	counts := map[Side]int{}
	for _, p := range b.squares {
		if p.Type == General {
			counts[p.Side]++
		}
	}
	var items []ValidationItem
	if counts[Red] != 1 {
		items = append(items, ValidationItem{Code: CodeGeneralCountRed,
			Message: fmt.Sprintf("red needs exactly one general, found %d", counts[Red])})
	}
	if counts[Black] != 1 {
		items = append(items, ValidationItem{Code: CodeGeneralCountBlack,
			Message: fmt.Sprintf("black needs exactly one general, found %d", counts[Black])})
	}
	if len(items) > 0 {
		return &SetupError{Errors: items}
	}
	return nil
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
