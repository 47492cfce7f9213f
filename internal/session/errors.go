package session

// Error is a rejected lifecycle operation. Errors compare by Code under errors.Is.
type Error struct {
    Code    string
    Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Is(target error) bool {
    t, ok := target.(*Error)
    return ok && t.Code == e.Code
}

var (
    ErrInvalidArgs    = &Error{Code: "invalid_arguments", Message: "invalid arguments"}
    ErrNotFound       = &Error{Code: "session_not_found", Message: "session not found"}
    ErrAlreadyFull    = &Error{Code: "already_full", Message: "session already has two players"}
    ErrAlreadyEnded   = &Error{Code: "already_ended", Message: "session already ended"}
    ErrNotHost        = &Error{Code: "not_host", Message: "only the host may do this"}
    ErrAlreadyStarted = &Error{Code: "already_started", Message: "session already started"}
    ErrWrongPassword  = &Error{Code: "wrong_password", Message: "wrong password"}
    ErrNotParticipant = &Error{Code: "not_participant", Message: "not a participant of this session"}
    ErrAlreadyQueued  = &Error{Code: "already_queued", Message: "already waiting for a match"}
    ErrCapacity       = &Error{Code: "capacity_reached", Message: "too many live sessions"}
    ErrPlayerBusy     = &Error{Code: "player_busy", Message: "player already has a live session"}
    ErrClosed         = &Error{Code: "registry_closed", Message: "session registry is closed"}
)
