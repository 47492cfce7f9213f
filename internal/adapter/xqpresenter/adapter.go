package xqpresenter

import (
    "errors"
    "sort"

    "github.com/park285/Cheese-Xiangqi-bot/internal/replay"
    "github.com/park285/Cheese-Xiangqi-bot/internal/session"
    "github.com/park285/Cheese-Xiangqi-bot/internal/xiangqi"
    "github.com/park285/Cheese-Xiangqi-bot/internal/xiangqi/rules"
    "github.com/park285/Cheese-Xiangqi-bot/pkg/xqdto"
)

func ToDTOState(v session.View) *xqdto.SessionState {
    out := &xqdto.SessionState{
        ID:         v.ID,
        Mode:       v.Mode,
        State:      string(v.State),
        Host:       v.Host,
        Private:    v.Private,
        Spectators: len(v.Spectators),
        Turn:       string(v.Turn),
        InCheck:    v.InCheck,
        FEN:        v.FEN,
        Rules:      v.Rules,
        Seeded:     v.Seeded,
        MoveCount:  v.MoveCount,
        Result:     string(v.Result),
        Reason:     string(v.Reason),
        StartedAt:  v.StartedAt,
        EndedAt:    v.EndedAt,
    }
    for _, p := range v.Players {
        out.Players = append(out.Players, xqdto.Player{ID: p.ID, Name: p.Name, Room: p.Room, Side: string(p.Side), Connected: p.Connected})
    }
    if v.LastMove != nil {
        mv := ToDTOMove(*v.LastMove)
        out.LastMove = &mv
    }
    return out
}

func ToDTOMove(m replay.Move) xqdto.MoveRecord {
    return xqdto.MoveRecord{
        Index:    m.Index,
        Side:     string(m.Side),
        Piece:    string(m.Piece),
        ICCS:     m.ICCS(),
        Captured: string(m.Captured),
        At:       m.At,
    }
}

func ToDTOItems(items []xiangqi.ValidationItem) []xqdto.ValidationItem {
    out := make([]xqdto.ValidationItem, 0, len(items))
    for _, it := range items {
        out = append(out, xqdto.ValidationItem{Code: it.Code, Message: it.Message, X: it.X, Y: it.Y})
    }
    return out
}

func ToDTOValidation(r xiangqi.ValidationResult) xqdto.ValidationResult {
    return xqdto.ValidationResult{Valid: r.Valid, Errors: ToDTOItems(r.Errors)}
}

func ToDTORules(rs rules.RuleSet, v rules.Variant, available []string) xqdto.RulesInfo {
    info := xqdto.RulesInfo{
        Name:      rs.Name,
        Overlays:  append([]string(nil), v.Overlays...),
        RuleCount: len(rs.Rules),
        Available: append([]string(nil), available...),
    }
    for name, on := range rs.Flags {
        if on { info.Flags = append(info.Flags, name) }
    }
    sort.Strings(info.Flags)
    return info
}

func ToDTOReplay(rv *session.ReplayView) *xqdto.ReplayInfo {
    if rv == nil { return nil }
    out := &xqdto.ReplayInfo{SessionID: rv.SessionID}
    if rv.Seed != nil {
        if b, err := xiangqi.BoardFromPlacements(rv.Seed.Pieces); err == nil {
            out.FEN = b.FEN(rv.Seed.Turn)
        }
        return out
    }
    if rv.Log == nil { return out }
    out.Started = true
    out.FEN = rv.Log.Meta.InitialFEN
    out.Result = rv.Log.Meta.Result
    out.Reason = rv.Log.Meta.Reason
    for _, m := range rv.Log.Moves { out.Moves = append(out.Moves, ToDTOMove(m)) }
    out.Transcript = replay.Transcript(rv.Log)
    return out
}

// ToDomainError maps any error raised below the surface to its stable code.
func ToDomainError(err error) xqdto.DomainError {
    var (
        se  *session.Error
        me  *xiangqi.MoveError
        su  *xiangqi.SetupError
        dto xqdto.DomainError
    )
    switch {
    case err == nil:
        return xqdto.DomainError{}
    case errors.As(err, &dto):
        return dto
    case errors.As(err, &se):
        return xqdto.DomainError{Code: se.Code, Message: se.Message}
    case errors.As(err, &me):
        return xqdto.DomainError{Code: me.Code, Message: me.Message}
    case errors.As(err, &su):
        return xqdto.DomainError{Code: "invalid_setup", Message: su.Error(), Details: ToDTOItems(su.Errors)}
    case errors.Is(err, replay.ErrNotFound):
        return xqdto.DomainError{Code: "replay_not_found", Message: err.Error()}
    default:
        return xqdto.DomainError{Code: "internal", Message: err.Error(), Retryable: true}
    }
}
