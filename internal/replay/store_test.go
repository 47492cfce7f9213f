package replay

import (
    "context"
    "errors"
    "strings"
    "testing"
    "time"

    miniredis "github.com/alicebob/miniredis/v2"
    "github.com/redis/go-redis/v9"

    "github.com/park285/Cheese-Xiangqi-bot/internal/xiangqi"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
    t.Helper()
    mr, err := miniredis.Run()
    if err != nil { t.Fatalf("miniredis: %v", err) }
    t.Cleanup(func() { mr.Close() })
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    t.Cleanup(func() { _ = rdb.Close() })
    return NewRedisStore(rdb, time.Hour), mr
}

func mv(i int, side xiangqi.Side, p xiangqi.PieceType, from, to string, captured xiangqi.PieceType) Move {
    f, _ := xiangqi.ParsePos(from)
    d, _ := xiangqi.ParsePos(to)
    return Move{Index: i, Side: side, Piece: p, From: f, To: d, Captured: captured, At: time.Unix(int64(1700000000+i), 0).UTC()}
}

// openingLine is a short legal line: central cannon, horse, cannon takes soldier.
func openingLine() []Move {
    return []Move{
        mv(0, xiangqi.Red, xiangqi.Cannon, "h2", "e2", ""),
        mv(1, xiangqi.Black, xiangqi.Horse, "h9", "g7", ""),
        mv(2, xiangqi.Red, xiangqi.Cannon, "e2", "e6", xiangqi.Soldier),
    }
}

func standardMeta(id string) Meta {
    return Meta{
        SessionID:  id,
        Rules:      "standard",
        InitialFEN: xiangqi.NewStandardBoard().FEN(xiangqi.Red),
        FirstTurn:  xiangqi.Red,
        RedID:      "u1",
        BlackID:    "u2",
        StartedAt:  time.Unix(1700000000, 0).UTC(),
    }
}

func exerciseStore(t *testing.T, s Store) {
    ctx := context.Background()
    if err := s.Begin(ctx, standardMeta("g1")); err != nil { t.Fatalf("Begin: %v", err) }
    if err := s.Begin(ctx, standardMeta("g1")); !errors.Is(err, ErrExists) { t.Fatalf("second Begin err=%v", err) }
    if err := s.Append(ctx, "nope", openingLine()[0]); !errors.Is(err, ErrNotFound) { t.Fatalf("missing log err=%v", err) }

    line := openingLine()
    if err := s.Append(ctx, "g1", line[1]); !errors.Is(err, ErrOutOfOrder) { t.Fatalf("gap err=%v", err) }
    for _, m := range line {
        if err := s.Append(ctx, "g1", m); err != nil { t.Fatalf("Append %d: %v", m.Index, err) }
    }
    if err := s.Append(ctx, "g1", line[0]); !errors.Is(err, ErrOutOfOrder) { t.Fatalf("duplicate index err=%v", err) }

    b, _, _ := xiangqi.ParseFEN(standardMeta("g1").InitialFEN)
    for _, m := range line[:2] { _, _ = b.Move(m.From, m.To) }
    if err := s.Snapshot(ctx, "g1", Snapshot{AfterIndex: 1, FEN: b.FEN(xiangqi.Red)}); err != nil { t.Fatalf("Snapshot: %v", err) }

    l, err := s.Seal(ctx, "g1", "red", "resign", time.Unix(1700000100, 0).UTC())
    if err != nil { t.Fatalf("Seal: %v", err) }
    if !l.Meta.Sealed || l.Meta.Result != "red" || len(l.Moves) != 3 || len(l.Snapshots) != 1 { t.Fatalf("sealed log=%+v", l.Meta) }
    if _, err := s.Seal(ctx, "g1", "draw", "x", time.Now()); !errors.Is(err, ErrSealed) { t.Fatalf("double seal err=%v", err) }
    if err := s.Append(ctx, "g1", mv(3, xiangqi.Black, xiangqi.Horse, "b9", "c7", "")); !errors.Is(err, ErrSealed) { t.Fatalf("append after seal err=%v", err) }

    back, err := s.Load(ctx, "g1")
    if err != nil { t.Fatalf("Load: %v", err) }
    if len(back.Moves) != 3 || back.Moves[2].Captured != xiangqi.Soldier { t.Fatalf("loaded moves=%+v", back.Moves) }
}

func TestMemoryStore(t *testing.T) { exerciseStore(t, NewMemoryStore()) }

func TestRedisStore(t *testing.T) {
    s, mr := newRedisStore(t)
    exerciseStore(t, s)
    if ttl := mr.TTL("xq:replay:g1:moves"); ttl <= 0 { t.Fatalf("moves list has no ttl: %v", ttl) }
}

func TestRebuild_RoundTrip(t *testing.T) {
    l := &Log{Meta: standardMeta("g1"), Moves: openingLine()}
    b, turn, err := Rebuild(l)
    if err != nil { t.Fatalf("Rebuild: %v", err) }
    if turn != xiangqi.Black { t.Fatalf("turn=%s", turn) }

    want := xiangqi.NewStandardBoard()
    for _, m := range l.Moves { _, _ = want.Move(m.From, m.To) }
    if !b.Equal(want) { t.Fatalf("rebuilt board differs:\n%s\n%s", b.FEN(turn), want.FEN(turn)) }

    after0 := xiangqi.NewStandardBoard()
    _, _ = after0.Move(l.Moves[0].From, l.Moves[0].To)
    snapped := &Log{Meta: l.Meta, Moves: l.Moves, Snapshots: []Snapshot{{AfterIndex: 0, FEN: after0.FEN(xiangqi.Black)}}}
    end, err := BoardAt(snapped, 2)
    if err != nil { t.Fatalf("BoardAt: %v", err) }
    if !end.Equal(want) { t.Fatalf("BoardAt via snapshot differs") }
    first, err := BoardAt(snapped, 0)
    if err != nil || !first.Equal(after0) { t.Fatalf("BoardAt(0) err=%v", err) }
}

func TestRebuild_RejectsCorruptLog(t *testing.T) {
    moves := openingLine()
    moves[1].Side = xiangqi.Red
    if _, _, err := Rebuild(&Log{Meta: standardMeta("g1"), Moves: moves}); err == nil { t.Fatalf("expected mismatch error") }
    moves = openingLine()
    moves[2].Captured = ""
    if _, _, err := Rebuild(&Log{Meta: standardMeta("g1"), Moves: moves}); err == nil { t.Fatalf("expected capture mismatch") }
}

func TestTranscript(t *testing.T) {
    l := &Log{Meta: standardMeta("g1"), Moves: openingLine()}
    l.Meta.Result, l.Meta.Reason = "red", "resign"
    out := Transcript(l)
    if !strings.Contains(out, "1. h2e2 h9g7 2. e2e6 1-0") { t.Fatalf("transcript=%q", out) }
    if !strings.Contains(out, "[Termination \"resign\"]") { t.Fatalf("missing termination: %q", out) }

    rec, err := RecordOf(l)
    if err != nil { t.Fatalf("RecordOf: %v", err) }
    if len(rec.MovesICCS) != 3 || rec.MovesICCS[0] != "h2e2" { t.Fatalf("record moves=%v", rec.MovesICCS) }
}
