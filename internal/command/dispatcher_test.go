package command

import (
    "context"
    "fmt"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/park285/Cheese-Xiangqi-bot/internal/adapter/xqpresenter"
    "github.com/park285/Cheese-Xiangqi-bot/internal/irisfast"
    "github.com/park285/Cheese-Xiangqi-bot/internal/msgcat"
    "github.com/park285/Cheese-Xiangqi-bot/internal/session"
    "github.com/park285/Cheese-Xiangqi-bot/internal/xiangqi"
)

type outbox struct {
    mu   sync.Mutex
    msgs map[string][]string
}

func (o *outbox) send(room, text string) error {
    o.mu.Lock()
    defer o.mu.Unlock()
    o.msgs[room] = append(o.msgs[room], text)
    return nil
}

// take returns and clears everything sent to room.
func (o *outbox) take(room string) []string {
    o.mu.Lock()
    defer o.mu.Unlock()
    out := o.msgs[room]
    delete(o.msgs, room)
    return out
}

func (o *outbox) last(t *testing.T, room string) string {
    t.Helper()
    got := o.take(room)
    if len(got) == 0 { t.Fatalf("nothing sent to %s", room) }
    return got[len(got)-1]
}

type harness struct {
    d   *Dispatcher
    reg *session.Registry
    out *outbox
}

func newHarness(t *testing.T, allowed func(string) bool) *harness {
    t.Helper()
    cat, err := msgcat.New("")
    if err != nil { t.Fatalf("catalog: %v", err) }
    seq := 0
    reg := session.NewRegistry(session.Options{
        Coin:  func() bool { return true },
        NewID: func() string { seq++; return fmt.Sprintf("XQ-%c", 'A'+seq-1) },
    })
    t.Cleanup(reg.Close)
    out := &outbox{msgs: map[string][]string{}}
    pres := xqpresenter.NewPresenter(out.send, xqpresenter.NewFormatter(cat, "!"), time.Minute)
    reg.Subscribe(pres.Notify)
    return &harness{d: New(reg, pres, "!", allowed), reg: reg, out: out}
}

func (h *harness) say(t *testing.T, user, room, text string) bool {
    t.Helper()
    name := strings.ToUpper(user[:1]) + user[1:]
    return h.d.HandleMessage(context.Background(), &irisfast.Message{Msg: text, Room: room, Sender: &name, JSON: &irisfast.MessageJSON{UserID: user}})
}

func TestParse(t *testing.T) {
    cases := []struct {
        in   string
        ok   bool
        verb verb
        rest string
    }{
        {"!샹치", true, verbHelp, ""},
        {"  !샹치 참가 XQ-1 pw", true, verbJoin, "XQ-1 pw"},
        {"!xq H2E2", true, verbMove, "H2E2"},
        {"!XQ 배치 4/9 w 흑", true, verbSetup, "4/9 w 흑"},
        {"!체스 시작", false, "", ""},
        {"샹치 현황", false, "", ""},
    }
    for _, c := range cases {
        req, ok := Parse("!", c.in)
        if ok != c.ok || req.Verb != c.verb || req.Rest != c.rest { t.Fatalf("%q -> %+v ok=%v", c.in, req, ok) }
    }
}

func TestDispatch_FullMatchFlow(t *testing.T) {
    h := newHarness(t, nil)
    if !h.say(t, "alice", "room-a", "!샹치 생성 홍") { t.Fatalf("create not handled") }
    if got := h.out.last(t, "room-a"); !strings.Contains(got, "XQ-A") { t.Fatalf("created=%q", got) }

    h.say(t, "bob", "room-b", "!샹치 참가 xq-a")
    for _, room := range []string{"room-a", "room-b"} {
        if got := h.out.last(t, room); !strings.Contains(got, "홍 Alice vs 흑 Bob") { t.Fatalf("%s started=%q", room, got) }
    }

    h.say(t, "bob", "room-b", "!샹치 h7e7")
    if got := h.out.last(t, "room-b"); got != "지금은 상대 차례입니다." { t.Fatalf("turn error=%q", got) }
    if len(h.out.take("room-a")) != 0 { t.Fatalf("rejected move leaked to opponent") }

    h.say(t, "alice", "room-a", "!샹치 h2e2")
    for _, room := range []string{"room-a", "room-b"} {
        if got := h.out.last(t, room); !strings.Contains(got, "홍 포 h2e2") { t.Fatalf("%s moved=%q", room, got) }
    }

    h.say(t, "carol", "room-c", "!샹치 현황")
    if got := h.out.last(t, "room-c"); got != "참여 중인 대국이 없습니다." { t.Fatalf("no session=%q", got) }
    h.say(t, "carol", "room-c", "!샹치 통계")
    if got := h.out.last(t, "room-c"); !strings.Contains(got, "착수 1") { t.Fatalf("stats=%q", got) }

    h.say(t, "bob", "room-b", "!샹치 기권")
    if got := h.out.last(t, "room-a"); !strings.Contains(got, "홍 승 (기권)") { t.Fatalf("resign=%q", got) }
    h.out.take("room-b")

    h.say(t, "carol", "room-c", "!샹치 기보 XQ-A")
    got := h.out.last(t, "room-c")
    if !strings.Contains(got, "1. h2e2") || !strings.Contains(got, "[Result \"1-0\"]") { t.Fatalf("replay=%q", got) }
}

func TestDispatch_SetupAndRules(t *testing.T) {
    h := newHarness(t, nil)
    h.say(t, "alice", "room-a", "!샹치 생성")
    h.out.take("room-a")

    h.say(t, "alice", "room-a", "!샹치 규칙 standard+super_soldier")
    if got := h.out.last(t, "room-a"); !strings.Contains(got, "standard+super_soldier") { t.Fatalf("rules changed=%q", got) }
    h.say(t, "alice", "room-a", "!샹치 규칙 nope")
    if got := h.out.last(t, "room-a"); got != "잘못된 입력입니다." { t.Fatalf("unknown overlay=%q", got) }
    h.say(t, "alice", "room-a", "!샹치 규칙")
    if got := h.out.last(t, "room-a"); !strings.Contains(got, "long_horse") { t.Fatalf("rules info=%q", got) }

    // two generals on open files plus one red rook
    h.say(t, "alice", "room-a", `!샹치 배치 [{"type":"general","side":"red","x":3,"y":9},{"type":"general","side":"black","x":4,"y":0},{"type":"rook","side":"red","x":0,"y":5}]`)
    if got := h.out.last(t, "room-a"); !strings.Contains(got, "사용자 배치") { t.Fatalf("seeded=%q", got) }

    h.say(t, "alice", "room-a", `!샹치 배치 [{"type":"general","side":"red","x":4,"y":9},{"type":"general","side":"black","x":4,"y":0}]`)
    if got := h.out.last(t, "room-a"); !strings.Contains(got, "king_facing") { t.Fatalf("facing=%q", got) }

    h.say(t, "alice", "room-a", "!샹치 기보")
    if got := h.out.last(t, "room-a"); !strings.Contains(got, "시작 배치: 4k4/") || !strings.Contains(got, "/R8/") { t.Fatalf("seed replay=%q", got) }
}

func TestDispatch_ValidateAndMisc(t *testing.T) {
    h := newHarness(t, func(room string) bool { return room != "blocked" })
    if h.say(t, "alice", "blocked", "!샹치 도움말") { t.Fatalf("blocked room handled") }
    if h.say(t, "alice", "room-a", "hello") { t.Fatalf("chatter handled") }

    h.say(t, "alice", "room-a", `!샹치 검증 [{"type":"general","side":"red","x":4,"y":9},{"type":"general","side":"red","x":4,"y":8}]`)
    got := h.out.last(t, "room-a")
    if !strings.Contains(got, "배치 오류") || !strings.Contains(got, xiangqi.CodeGeneralCountRed) { t.Fatalf("validate=%q", got) }

    h.say(t, "alice", "room-a", "!샹치 zz99")
    if got := h.out.last(t, "room-a"); !strings.Contains(got, "zz99") { t.Fatalf("bad move=%q", got) }

    h.say(t, "alice", "room-a", "!샹치 매칭")
    if got := h.out.last(t, "room-a"); !strings.Contains(got, "standard 매칭 대기") { t.Fatalf("queued=%q", got) }
    h.say(t, "alice", "room-a", "!샹치 매칭")
    if got := h.out.last(t, "room-a"); got != "이미 매칭 대기 중입니다." { t.Fatalf("double queue=%q", got) }
    h.say(t, "bob", "room-b", "!샹치 매칭")
    if got := h.out.last(t, "room-b"); !strings.Contains(got, "대국 시작") { t.Fatalf("paired=%q", got) }
    if _, ok := h.reg.SessionOf("alice"); !ok { t.Fatalf("alice not seated") }
    h.say(t, "alice", "room-a", "!샹치 매칭취소")
    if got := h.out.last(t, "room-a"); got != "대기 중인 매칭이 없습니다." { t.Fatalf("unmatch=%q", got) }
}

func TestParseSeed(t *testing.T) {
    pieces, turn, err := ParseSeed(`{"pieces":[{"type":"general","side":"red","x":4,"y":9}],"turn":"흑"}`)
    if err != nil || len(pieces) != 1 || turn != xiangqi.Black { t.Fatalf("object: %v %v %v", pieces, turn, err) }

    std := xiangqi.NewStandardBoard().FEN(xiangqi.Black)
    pieces, turn, err = ParseSeed(std)
    if err != nil || len(pieces) != 32 || turn != xiangqi.Black { t.Fatalf("fen: %d %v %v", len(pieces), turn, err) }
    _, turn, _ = ParseSeed(std + " 홍")
    if turn != xiangqi.Red { t.Fatalf("override turn=%v", turn) }

    if _, _, err := ParseSeed("  "); err == nil { t.Fatalf("empty accepted") }
    if _, _, err := ParseSeed("[{"); err == nil { t.Fatalf("broken json accepted") }
    if got := ParseOverlays([]string{"standard+super_soldier,long_horse", "SUPER_SOLDIER"}); strings.Join(got, "|") != "super_soldier|long_horse" { t.Fatalf("overlays=%v", got) }
}

func TestDispatch_Lobby(t *testing.T) {
    h := newHarness(t, nil)
    h.say(t, "carol", "room-c", "!샹치 목록")
    if got := h.out.last(t, "room-c"); !strings.Contains(got, "열린 대기실이 없습니다") { t.Fatalf("empty lobby=%q", got) }

    h.say(t, "alice", "room-a", "!샹치 생성")
    h.say(t, "bob", "room-b", "!샹치 생성 흑 pw")
    h.say(t, "carol", "room-c", "!샹치 목록")
    got := h.out.last(t, "room-c")
    if !strings.Contains(got, "공개 대기실 1곳") || !strings.Contains(got, "XQ-A · Alice") || strings.Contains(got, "XQ-B") { t.Fatalf("lobby=%q", got) }
}
