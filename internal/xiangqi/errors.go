package xiangqi

import (
	"errors"
	"fmt"
)

// ErrOccupiedInvariant is returned by Board.Move when it is called with an unvalidated move.
var ErrOccupiedInvariant = errors.New("board invariant violated: move not pre-validated")

// MoveError is a rejected move. Errors compare equal by Code so callers can use errors.Is
// against the exported sentinels regardless of the message detail.
type MoveError struct {
	Code    string
	Message string
}

func (e *MoveError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *MoveError) Is(target error) bool {
	t, ok := target.(*MoveError)
	return ok && t.Code == e.Code
}

var (
	ErrNoPieceAtSource      = &MoveError{Code: "no_piece_at_source", Message: "no piece of the moving side at source"}
	ErrOccupiedBySameSide   = &MoveError{Code: "occupied_by_same_side", Message: "destination holds a piece of the same side"}
	ErrNotAllowedByRuleSet  = &MoveError{Code: "not_allowed_by_ruleset", Message: "move not allowed by the active rule set"}
	ErrLeavesGeneralExposed = &MoveError{Code: "leaves_general_exposed", Message: "move leaves the general exposed"}
	ErrNotYourTurn          = &MoveError{Code: "not_your_turn", Message: "not your turn"}
	ErrSessionNotActive     = &MoveError{Code: "session_not_active", Message: "session is not active"}
)

// Detail returns a copy of base carrying a more specific message.
func (e *MoveError) Detail(format string, args ...any) *MoveError {
	return &MoveError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}
