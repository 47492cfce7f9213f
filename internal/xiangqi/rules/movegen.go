package rules

import (
	"github.com/park285/Cheese-Xiangqi-bot/internal/xiangqi"
)

// AppliedMove is a validated move that has not been committed to any board.
type AppliedMove struct {
	Piece    xiangqi.Piece  `json:"piece"`
	From     xiangqi.Pos    `json:"from"`
	To       xiangqi.Pos    `json:"to"`
	Captured *xiangqi.Piece `json:"captured,omitempty"`
}

// ValidateMove runs the move pipeline without touching b:
// source ownership, destination bounds and occupancy, rule-set reachability, own-general exposure.
func ValidateMove(b *xiangqi.Board, side xiangqi.Side, rs RuleSet, from, to xiangqi.Pos) (AppliedMove, error) {
	pc, ok := b.PieceAt(from)
	if !ok || pc.Side != side {
		return AppliedMove{}, xiangqi.ErrNoPieceAtSource.Detail("no %s piece at %s", side, from)
	}
	if !to.InBounds() {
		return AppliedMove{}, xiangqi.ErrNotAllowedByRuleSet.Detail("destination %s is off the board", to)
	}
	var captured *xiangqi.Piece
	if occ, ok := b.PieceAt(to); ok {
		if occ.Side == side {
			return AppliedMove{}, xiangqi.ErrOccupiedBySameSide.Detail("%s is occupied by own %s", to, occ.Type)
		}
		captured = &occ
	}
	if !containsPos(MovesFor(b, pc, rs), to) {
		return AppliedMove{}, xiangqi.ErrNotAllowedByRuleSet.Detail("%s cannot move %s%s under %s", pc.Type, from, to, rs.Name)
	}
	if exposedAfter(b, side, rs, from, to) {
		return AppliedMove{}, xiangqi.ErrLeavesGeneralExposed.Detail("%s%s leaves the %s general exposed", from, to, side)
	}
	return AppliedMove{Piece: pc, From: from, To: to, Captured: captured}, nil
}

// LegalMovesForSide maps each movable piece of side to its legal destinations.
func LegalMovesForSide(b *xiangqi.Board, side xiangqi.Side, rs RuleSet) map[xiangqi.Pos][]xiangqi.Pos {
	out := map[xiangqi.Pos][]xiangqi.Pos{}
	for _, pc := range b.PiecesOf(side) {
		var legal []xiangqi.Pos
		for _, to := range MovesFor(b, pc, rs) {
			if !exposedAfter(b, side, rs, pc.Pos, to) {
				legal = append(legal, to)
			}
		}
		if len(legal) > 0 {
			out[pc.Pos] = legal
		}
	}
	return out
}

// HasLegalMove is LegalMovesForSide that stops at the first hit.
func HasLegalMove(b *xiangqi.Board, side xiangqi.Side, rs RuleSet) bool {
	for _, pc := range b.PiecesOf(side) {
		for _, to := range MovesFor(b, pc, rs) {
			if !exposedAfter(b, side, rs, pc.Pos, to) {
				return true
			}
		}
	}
	return false
}

func exposedAfter(b *xiangqi.Board, side xiangqi.Side, rs RuleSet, from, to xiangqi.Pos) bool {
	next := b.Clone()
	if _, err := next.Move(from, to); err != nil {
		return true
	}
	return Exposed(next, side, rs)
}

// InCheck reports whether any opposing piece can reach side's general under rs.
func InCheck(b *xiangqi.Board, side xiangqi.Side, rs RuleSet) bool {
	g, ok := b.General(side)
	if !ok {
		return false
	}
	for _, pc := range b.PiecesOf(side.Opponent()) {
		if containsPos(MovesFor(b, pc, rs), g.Pos) {
			return true
		}
	}
	return false
}

// Exposed is InCheck plus the face-off prohibition unless rs lifts it.
func Exposed(b *xiangqi.Board, side xiangqi.Side, rs RuleSet) bool {
	if !rs.Flag(FlagAllowFacingGenerals) && b.GeneralsFacing() {
		return true
	}
	return InCheck(b, side, rs)
}

type Reason string

const (
	ReasonCheckmate      Reason = "checkmate"
	ReasonStalemate      Reason = "stalemate"
	ReasonGeneralMissing Reason = "general_missing"
)

// Verdict is the end-of-game evaluation for the side about to move.
type Verdict struct {
	Over   bool
	Winner xiangqi.Side
	Reason Reason
}

// Outcome evaluates the position for toMove. A side without legal moves loses whether or
// not it is in check; a side whose general was captured loses immediately.
func Outcome(b *xiangqi.Board, toMove xiangqi.Side, rs RuleSet) Verdict {
	if _, ok := b.General(toMove); !ok {
		return Verdict{Over: true, Winner: toMove.Opponent(), Reason: ReasonGeneralMissing}
	}
	if HasLegalMove(b, toMove, rs) {
		return Verdict{}
	}
	if InCheck(b, toMove, rs) || (!rs.Flag(FlagAllowFacingGenerals) && b.GeneralsFacing()) {
		return Verdict{Over: true, Winner: toMove.Opponent(), Reason: ReasonCheckmate}
	}
	return Verdict{Over: true, Winner: toMove.Opponent(), Reason: ReasonStalemate}
}
