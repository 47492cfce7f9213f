package replay

import (
    "fmt"
    "strings"

    "github.com/park285/Cheese-Xiangqi-bot/internal/xiangqi"
)

// Rebuild replays l over its initial position and returns the final board and side to move.
// Every move must match the piece recorded for it; a mismatch means the log is corrupt.
func Rebuild(l *Log) (*xiangqi.Board, xiangqi.Side, error) {
    if l == nil { return nil, "", ErrNotFound }
    b, turn, err := xiangqi.ParseFEN(l.Meta.InitialFEN)
    if err != nil { return nil, "", fmt.Errorf("replay %s: initial position: %w", l.Meta.SessionID, err) }
    if l.Meta.FirstTurn.Valid() { turn = l.Meta.FirstTurn }
    for i, mv := range l.Moves {
        if mv.Index != i { return nil, "", fmt.Errorf("replay %s: move %d has index %d: %w", l.Meta.SessionID, i, mv.Index, ErrOutOfOrder) }
        pc, ok := b.PieceAt(mv.From)
        if !ok || pc.Side != mv.Side || pc.Type != mv.Piece || mv.Side != turn {
            return nil, "", fmt.Errorf("replay %s: move %d %s does not match board", l.Meta.SessionID, i, mv.ICCS())
        }
        captured, err := b.Move(mv.From, mv.To)
        if err != nil { return nil, "", fmt.Errorf("replay %s: move %d: %w", l.Meta.SessionID, i, err) }
        if (captured == nil) != (mv.Captured == "") || (captured != nil && captured.Type != mv.Captured) {
            return nil, "", fmt.Errorf("replay %s: move %d capture mismatch", l.Meta.SessionID, i)
        }
        turn = turn.Opponent()
    }
    return b, turn, nil
}

// BoardAt rebuilds the position after move index n (-1 = initial), starting from the
// latest snapshot at or before n when one exists.
func BoardAt(l *Log, n int) (*xiangqi.Board, error) {
    if l == nil { return nil, ErrNotFound }
    if n >= len(l.Moves) { n = len(l.Moves) - 1 }
    b, _, err := xiangqi.ParseFEN(l.Meta.InitialFEN)
    if err != nil { return nil, err }
    start := 0
    for _, sn := range l.Snapshots {
        if sn.AfterIndex <= n && sn.AfterIndex+1 > start {
            sb, _, err := xiangqi.ParseFEN(sn.FEN)
            if err != nil { return nil, err }
            b, start = sb, sn.AfterIndex+1
        }
    }
    for i := start; i <= n; i++ {
        if _, err := b.Move(l.Moves[i].From, l.Moves[i].To); err != nil { return nil, err }
    }
    return b, nil
}

// Transcript renders the log as numbered ICCS move pairs with a header.
func Transcript(l *Log) string {
    if l == nil { return "" }
    var b strings.Builder
    m := l.Meta
    b.WriteString(fmt.Sprintf("[Game \"Chinese Chess\"]\n[Red \"%s\"]\n[Black \"%s\"]\n", sanitize(nameOr(m.RedName, m.RedID)), sanitize(nameOr(m.BlackName, m.BlackID))))
    if m.Rules != "" { b.WriteString(fmt.Sprintf("[Variant \"%s\"]\n", sanitize(m.Rules))) }
    if m.Reason != "" { b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitize(m.Reason))) }
    b.WriteString(fmt.Sprintf("[FEN \"%s\"]\n[Result \"%s\"]\n\n", m.InitialFEN, resultToken(m.Result)))

    n := 1
    i := 0
    if m.FirstTurn == xiangqi.Black && len(l.Moves) > 0 {
        b.WriteString(fmt.Sprintf("%d. ... %s ", n, l.Moves[0].ICCS()))
        n, i = 2, 1
    }
    for ; i < len(l.Moves); i += 2 {
        b.WriteString(fmt.Sprintf("%d. %s", n, l.Moves[i].ICCS()))
        if i+1 < len(l.Moves) {
            b.WriteString(" " + l.Moves[i+1].ICCS())
        }
        b.WriteString(" ")
        n++
    }
    b.WriteString(resultToken(m.Result))
    return b.String()
}

func resultToken(result string) string {
    switch strings.ToLower(strings.TrimSpace(result)) {
    case "red":
        return "1-0"
    case "black":
        return "0-1"
    case "draw":
        return "1/2-1/2"
    default:
        return "*"
    }
}

func nameOr(name, id string) string {
    if strings.TrimSpace(name) != "" { return name }
    return id
}

func sanitize(s string) string {
    s = strings.ReplaceAll(s, "\\", " ")
    s = strings.ReplaceAll(s, "\"", "'")
    return strings.TrimSpace(s)
}
