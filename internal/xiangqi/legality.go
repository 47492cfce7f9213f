package xiangqi

import (
	"fmt"
	"sort"
	"strings"
)

// Stable validation codes.
const (
	CodeOutOfBounds       = "out_of_bounds"
	CodeOverlap           = "overlap"
	CodeExceedCount       = "exceed_count"
	CodeElephantSquare    = "elephant_square"
	CodeSoldierPosition   = "soldier_position"
	CodeGeneralCountRed   = "general_count_red"
	CodeGeneralCountBlack = "general_count_black"
	CodeKingFacing        = "king_facing"
)

const unknownTypeCap = 99

var countCaps = map[PieceType]int{
	General:  1,
	Advisor:  2,
	Elephant: 2,
	Horse:    2,
	Rook:     2,
	Cannon:   2,
	Soldier:  5,
}

// Placement is one submitted piece of a custom layout. Type and Side stay raw
// strings so malformed input is reported instead of rejected at decode time.
type Placement struct {
	Type string `json:"type"`
	Side string `json:"side"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// ValidationItem is a single violated placement rule.
type ValidationItem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	X       *int   `json:"x,omitempty"`
	Y       *int   `json:"y,omitempty"`
}

type ValidationResult struct {
	Valid  bool             `json:"valid"`
	Errors []ValidationItem `json:"errors"`
}

// Codes lists the codes of every item, in report order.
func (r ValidationResult) Codes() []string {
	out := make([]string, 0, len(r.Errors))
	for _, it := range r.Errors {
		out = append(out, it.Code)
	}
	return out
}

// Has reports whether an item with code exists at (x,y); x or y < 0 matches any.
func (r ValidationResult) Has(code string, x, y int) bool {
	for _, it := range r.Errors {
		if it.Code != code {
			continue
		}
		if x >= 0 && (it.X == nil || *it.X != x) {
			continue
		}
		if y >= 0 && (it.Y == nil || *it.Y != y) {
			continue
		}
		return true
	}
	return false
}

// SetupError carries every violation of a rejected layout.
type SetupError struct {
	Errors []ValidationItem
}

func (e *SetupError) Error() string {
	codes := make([]string, 0, len(e.Errors))
	for _, it := range e.Errors {
		codes = append(codes, it.Code)
	}
	return fmt.Sprintf("invalid board layout: %d violation(s) [%s]", len(e.Errors), strings.Join(codes, ","))
}

func at(code, msg string, x, y int) ValidationItem {
	return ValidationItem{Code: code, Message: msg, X: &x, Y: &y}
}

// Validate checks a static layout. Every rule runs; nothing short-circuits.
// An empty layout has nothing to check and is valid.
func Validate(pieces []Placement) ValidationResult {
	items := make([]ValidationItem, 0)
	if len(pieces) == 0 {
		return ValidationResult{Valid: true, Errors: items}
	}

	inBounds := make([]Placement, 0, len(pieces))
	for _, p := range pieces {
		if !(Pos{X: p.X, Y: p.Y}).InBounds() {
			items = append(items, at(CodeOutOfBounds,
				fmt.Sprintf("%s %s at (%d,%d) is outside the 9x10 board", p.Side, p.Type, p.X, p.Y), p.X, p.Y))
			continue
		}
		inBounds = append(inBounds, p)
	}

	seen := make(map[Pos]Placement, len(inBounds))
	for _, p := range inBounds {
		pos := Pos{X: p.X, Y: p.Y}
		if prev, ok := seen[pos]; ok {
			items = append(items, at(CodeOverlap,
				fmt.Sprintf("%s %s overlaps %s %s at (%d,%d)", p.Side, p.Type, prev.Side, prev.Type, p.X, p.Y), p.X, p.Y))
			continue
		}
		seen[pos] = p
	}

	type key struct{ side, typ string }
	counts := map[key]int{}
	order := []key{}
	for _, p := range inBounds {
		k := key{side: normalize(p.Side), typ: normalize(p.Type)}
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}
	for _, k := range order {
		limit, ok := countCaps[PieceType(k.typ)]
		if !ok {
			limit = unknownTypeCap
		}
		if counts[k] > limit {
			items = append(items, ValidationItem{Code: CodeExceedCount,
				Message: fmt.Sprintf("%s %s count %d exceeds %d", k.side, k.typ, counts[k], limit)})
		}
	}

	for _, p := range inBounds {
		side, typ := Side(normalize(p.Side)), PieceType(normalize(p.Type))
		switch typ {
		case Elephant:
			if !elephantSquare(side, p.X, p.Y) {
				items = append(items, at(CodeElephantSquare,
					fmt.Sprintf("%s elephant cannot stand on (%d,%d)", side, p.X, p.Y), p.X, p.Y))
			}
		case Soldier:
			if (side == Red && p.Y > 6) || (side == Black && p.Y < 3) {
				items = append(items, at(CodeSoldierPosition,
					fmt.Sprintf("%s soldier cannot stand on (%d,%d)", side, p.X, p.Y), p.X, p.Y))
			}
		}
	}

	generals := map[Side][]Pos{}
	for _, p := range inBounds {
		if PieceType(normalize(p.Type)) == General {
			side := Side(normalize(p.Side))
			generals[side] = append(generals[side], Pos{X: p.X, Y: p.Y})
		}
	}
	if n := len(generals[Red]); n != 1 {
		items = append(items, ValidationItem{Code: CodeGeneralCountRed,
			Message: fmt.Sprintf("red needs exactly one general, found %d", n)})
	}
	if n := len(generals[Black]); n != 1 {
		items = append(items, ValidationItem{Code: CodeGeneralCountBlack,
			Message: fmt.Sprintf("black needs exactly one general, found %d", n)})
	}

	for _, r := range generals[Red] {
		for _, k := range generals[Black] {
			if r.X != k.X || r == k {
				continue
			}
			if blockersBetween(seen, r, k) == 0 {
				items = append(items, at(CodeKingFacing,
					fmt.Sprintf("generals face each other on file %d", r.X), r.X, r.Y))
			}
		}
	}

	return ValidationResult{Valid: len(items) == 0, Errors: items}
}

// AssertValidEndgame is the hard-failure form of Validate.
func AssertValidEndgame(pieces []Placement) error {
	res := Validate(pieces)
	if res.Valid {
		return nil
	}
	return &SetupError{Errors: res.Errors}
}

// BoardFromPlacements validates pieces and builds a board from them.
func BoardFromPlacements(pieces []Placement) (*Board, error) {
	if err := AssertValidEndgame(pieces); err != nil {
		return nil, err
	}
	b := NewBoard()
	for _, p := range pieces {
		t, err := ParsePieceType(p.Type)
		if err != nil {
			return nil, err
		}
		s, err := ParseSide(p.Side)
		if err != nil {
			return nil, err
		}
		if err := b.Place(Piece{Type: t, Side: s, Pos: Pos{X: p.X, Y: p.Y}}); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// PlacementsOf converts board pieces into the submission form, sorted by square.
func PlacementsOf(pieces []Piece) []Placement {
	out := make([]Placement, 0, len(pieces))
	for _, p := range pieces {
		out = append(out, Placement{Type: string(p.Type), Side: string(p.Side), X: p.Pos.X, Y: p.Pos.Y})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

func elephantSquare(side Side, x, y int) bool {
	if x%2 != 0 {
		return false
	}
	switch side {
	case Red:
		return y%2 == 1 && y >= RiverY
	case Black:
		return y%2 == 0 && y < RiverY
	}
	return true
}

func blockersBetween(occupied map[Pos]Placement, a, b Pos) int {
	lo, hi := a.Y, b.Y
	if lo > hi {
		lo, hi = hi, lo
	}
	n := 0
	for y := lo + 1; y < hi; y++ {
		if _, ok := occupied[Pos{X: a.X, Y: y}]; ok {
			n++
		}
	}
	return n
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
