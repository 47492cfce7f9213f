package xiangqi

import (
	"fmt"
	"strings"
)

var backRank = []PieceType{Rook, Horse, Elephant, Advisor, General, Advisor, Elephant, Horse, Rook}

// StandardLayout returns the 32 pieces of the opening position.
func StandardLayout() []Piece {
	out := make([]Piece, 0, 32)
	for x, t := range backRank {
		out = append(out,
			Piece{Type: t, Side: Black, Pos: Pos{X: x, Y: 0}},
			Piece{Type: t, Side: Red, Pos: Pos{X: x, Y: 9}},
		)
	}
	for _, x := range []int{1, 7} {
		out = append(out,
			Piece{Type: Cannon, Side: Black, Pos: Pos{X: x, Y: 2}},
			Piece{Type: Cannon, Side: Red, Pos: Pos{X: x, Y: 7}},
		)
	}
	for x := 0; x < Cols; x += 2 {
		out = append(out,
			Piece{Type: Soldier, Side: Black, Pos: Pos{X: x, Y: 3}},
			Piece{Type: Soldier, Side: Red, Pos: Pos{X: x, Y: 6}},
		)
	}
	return out
}

var fenLetters = map[PieceType]byte{
	General:  'k',
	Advisor:  'a',
	Elephant: 'b',
	Horse:    'n',
	Rook:     'r',
	Cannon:   'c',
	Soldier:  'p',
}

func fenPiece(c byte) (PieceType, Side, bool) {
	side := Black
	if c >= 'A' && c <= 'Z' {
		side = Red
		c += 'a' - 'A'
	}
	switch c {
	case 'e':
		return Elephant, side, true
	case 'h':
		return Horse, side, true
	}
	for t, l := range fenLetters {
		if l == c {
			return t, side, true
		}
	}
	return "", "", false
}

// FEN encodes the board in Xiangqi FEN with turn as the side to move.
func (b *Board) FEN(turn Side) string {
	var sb strings.Builder
	for y := 0; y < Rows; y++ {
		if y > 0 {
			sb.WriteByte('/')
		}
		empty := 0
		for x := 0; x < Cols; x++ {
			p, ok := b.PieceAt(Pos{X: x, Y: y})
			if !ok {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			c := fenLetters[p.Type]
			if p.Side == Red {
				c -= 'a' - 'A'
			}
			sb.WriteByte(c)
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
	}
	if turn == Black {
		sb.WriteString(" b")
	} else {
		sb.WriteString(" w")
	}
	return sb.String()
}

// ParseFEN decodes a Xiangqi FEN. Trailing castling/clock fields are ignored.
func ParseFEN(fen string) (*Board, Side, error) {
	fields := strings.Fields(fen)
	if len(fields) == 0 {
		return nil, "", fmt.Errorf("empty fen")
	}
	rows := strings.Split(fields[0], "/")
	if len(rows) != Rows {
		return nil, "", fmt.Errorf("fen: expected %d rows, got %d", Rows, len(rows))
	}
	b := NewBoard()
	for y, row := range rows {
		x := 0
		for i := 0; i < len(row); i++ {
			c := row[i]
			if c >= '1' && c <= '9' {
				x += int(c - '0')
				continue
			}
			t, side, ok := fenPiece(c)
			if !ok {
				return nil, "", fmt.Errorf("fen: unknown piece %q", c)
			}
			if err := b.Place(Piece{Type: t, Side: side, Pos: Pos{X: x, Y: y}}); err != nil {
				return nil, "", fmt.Errorf("fen: %w", err)
			}
			x++
		}
		if x != Cols {
			return nil, "", fmt.Errorf("fen: row %d has %d files", y, x)
		}
	}
	turn := Red
	if len(fields) > 1 && (fields[1] == "b" || fields[1] == "black") {
		turn = Black
	}
	return b, turn, nil
}
