package rules

import "github.com/park285/Cheese-Xiangqi-bot/internal/xiangqi"

type delta struct{ dx, dy int }

var (
	orthogonalDeltas = []delta{{0, -1}, {0, 1}, {-1, 0}, {1, 0}}
	diagonalDeltas   = []delta{{-1, -1}, {1, -1}, {-1, 1}, {1, 1}}
)

// horse legs: the orthogonal square that must be empty, then the two landing squares.
var horseLegs = []struct {
	leg   delta
	lands []delta
}{
	{delta{0, -1}, []delta{{-1, -2}, {1, -2}}},
	{delta{0, 1}, []delta{{-1, 2}, {1, 2}}},
	{delta{-1, 0}, []delta{{-2, -1}, {-2, 1}}},
	{delta{1, 0}, []delta{{2, -1}, {2, 1}}},
}

func deltasFor(side xiangqi.Side, dirs []Direction, fallback []delta) []delta {
	if len(dirs) == 0 {
		return fallback
	}
	fwd := side.Forward()
	seen := map[delta]bool{}
	out := make([]delta, 0, 8)
	add := func(ds ...delta) {
		for _, d := range ds {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	for _, d := range dirs {
		switch d {
		case DirForward:
			add(delta{0, fwd})
		case DirBackward:
			add(delta{0, -fwd})
		case DirLateral:
			add(delta{-1, 0}, delta{1, 0})
		case DirOrthogonal:
			add(orthogonalDeltas...)
		case DirDiagonal:
			add(diagonalDeltas...)
		}
	}
	return out
}

func (g Generator) allows(side xiangqi.Side, to xiangqi.Pos) bool {
	if !to.InBounds() {
		return false
	}
	switch g.Confine {
	case ConfinePalace:
		return xiangqi.InPalace(side, to)
	case ConfineOwnHalf:
		return !xiangqi.CrossedRiver(side, to)
	}
	return true
}

// Destinations returns every square pc may move to or capture on under this primitive.
// Squares holding a piece of pc's own side are never returned.
func (g Generator) Destinations(b *xiangqi.Board, pc xiangqi.Piece) []xiangqi.Pos {
	switch g.Kind {
	case MoveStep:
		r := g.Range
		if r == 0 {
			r = 1
		}
		return g.walk(b, pc, deltasFor(pc.Side, g.Directions, orthogonalDeltas), r)
	case MoveSlide:
		return g.walk(b, pc, deltasFor(pc.Side, g.Directions, orthogonalDeltas), g.Range)
	case MoveCannon:
		return g.cannon(b, pc, deltasFor(pc.Side, g.Directions, orthogonalDeltas))
	case MoveHorse:
		return g.horse(b, pc)
	case MoveElephant:
		return g.elephant(b, pc)
	}
	return nil
}

// walk moves up to limit squares per direction (0 = unbounded), stopping at the first piece.
func (g Generator) walk(b *xiangqi.Board, pc xiangqi.Piece, ds []delta, limit int) []xiangqi.Pos {
	var out []xiangqi.Pos
	for _, d := range ds {
		to := pc.Pos
		for n := 1; limit == 0 || n <= limit; n++ {
			to = to.Add(d.dx, d.dy)
			if !g.allows(pc.Side, to) {
				break
			}
			if occ, ok := b.PieceAt(to); ok {
				if occ.Side != pc.Side {
					out = append(out, to)
				}
				break
			}
			out = append(out, to)
		}
	}
	return out
}

// cannon slides onto empty squares and captures by jumping exactly one screen.
func (g Generator) cannon(b *xiangqi.Board, pc xiangqi.Piece, ds []delta) []xiangqi.Pos {
	var out []xiangqi.Pos
	for _, d := range ds {
		to := pc.Pos
		screened := false
		for n := 1; g.Range == 0 || n <= g.Range; n++ {
			to = to.Add(d.dx, d.dy)
			if !g.allows(pc.Side, to) {
				break
			}
			occ, ok := b.PieceAt(to)
			if !screened {
				if ok {
					screened = true
					continue
				}
				out = append(out, to)
				continue
			}
			if ok {
				if occ.Side != pc.Side {
					out = append(out, to)
				}
				break
			}
		}
	}
	return out
}

func (g Generator) horse(b *xiangqi.Board, pc xiangqi.Piece) []xiangqi.Pos {
	var out []xiangqi.Pos
	for _, h := range horseLegs {
		leg := pc.Pos.Add(h.leg.dx, h.leg.dy)
		if !leg.InBounds() || b.Occupied(leg) {
			continue
		}
		for _, l := range h.lands {
			to := pc.Pos.Add(l.dx, l.dy)
			if !g.allows(pc.Side, to) {
				continue
			}
			if occ, ok := b.PieceAt(to); ok && occ.Side == pc.Side {
				continue
			}
			out = append(out, to)
		}
	}
	return out
}

func (g Generator) elephant(b *xiangqi.Board, pc xiangqi.Piece) []xiangqi.Pos {
	var out []xiangqi.Pos
	for _, d := range diagonalDeltas {
		eye := pc.Pos.Add(d.dx, d.dy)
		to := pc.Pos.Add(2*d.dx, 2*d.dy)
		if !g.allows(pc.Side, to) || b.Occupied(eye) {
			continue
		}
		if occ, ok := b.PieceAt(to); ok && occ.Side == pc.Side {
			continue
		}
		out = append(out, to)
	}
	return out
}
