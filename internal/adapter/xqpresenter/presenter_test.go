package xqpresenter

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/park285/Cheese-Xiangqi-bot/internal/msgcat"
	"github.com/park285/Cheese-Xiangqi-bot/internal/replay"
	"github.com/park285/Cheese-Xiangqi-bot/internal/session"
	"github.com/park285/Cheese-Xiangqi-bot/internal/xiangqi"
	"github.com/park285/Cheese-Xiangqi-bot/pkg/xqdto"
)

type sent struct{ room, text string }

func newTestPresenter(t *testing.T, fail map[string]error) (*Presenter, *[]sent) {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	var out []sent
	send := func(room, msg string) error {
		if err := fail[room]; err != nil {
			return err
		}
		out = append(out, sent{room, msg})
		return nil
	}
	return NewPresenter(send, NewFormatter(cat, "!"), 90*time.Second), &out
}

func activeView() session.View {
	b := xiangqi.NewStandardBoard()
	return session.View{
		ID:    "XQ-1",
		State: session.StateActive,
		Host:  "a",
		Players: []session.PlayerView{
			{Identity: session.Identity{ID: "a", Name: "앨리스", Room: "room-a"}, Side: xiangqi.Red, Connected: true},
			{Identity: session.Identity{ID: "b", Name: "밥", Room: "room-b"}, Side: xiangqi.Black, Connected: true},
		},
		Spectators: []session.Identity{{ID: "c", Name: "캐롤", Room: "room-a"}},
		Turn:       xiangqi.Red,
		FEN:        b.FEN(xiangqi.Red),
		Pieces:     b.Pieces(),
		Rules:      "standard",
	}
}

func TestNotify_BroadcastsOncePerRoom(t *testing.T) {
	p, out := newTestPresenter(t, nil)
	p.Notify(session.Event{Type: session.EventJoined, PlayerID: "b", View: activeView()})
	if len(*out) != 2 {
		t.Fatalf("sent=%d want 2", len(*out))
	}
	if (*out)[0].room != "room-a" || (*out)[1].room != "room-b" {
		t.Fatalf("rooms=%+v", *out)
	}
	if !strings.Contains((*out)[0].text, "홍 앨리스 vs 흑 밥") || !strings.Contains((*out)[0].text, "帥") {
		t.Fatalf("text=%q", (*out)[0].text)
	}
}

func TestRender_MoveAndEnding(t *testing.T) {
	p, _ := newTestPresenter(t, nil)
	v := activeView()
	from, to, _ := xiangqi.ParseMove("h2e2")
	v.LastMove = &replay.Move{Index: 0, Side: xiangqi.Red, Piece: xiangqi.Cannon, From: from, To: to}
	v.MoveCount = 1
	v.Turn = xiangqi.Black
	out := p.Render(session.Event{Type: session.EventMoved, View: v})
	if !strings.Contains(out, "1. 홍 포 h2e2") || !strings.Contains(out, "다음 차례: 흑 밥") {
		t.Fatalf("moved=%q", out)
	}

	v.State = session.StateEnded
	v.Result = session.ResultRed
	v.Reason = session.ReasonCheckmate
	out = p.Render(session.Event{Type: session.EventMoved, View: v})
	if !strings.Contains(out, "홍 승 (외통)") || strings.Contains(out, "다음 차례") {
		t.Fatalf("final move=%q", out)
	}
	if got := p.Render(session.Event{Type: session.EventEnded, View: v}); got != "" {
		t.Fatalf("checkmate announced twice: %q", got)
	}

	v.Reason = session.ReasonResign
	if got := p.Render(session.Event{Type: session.EventEnded, View: v}); !strings.Contains(got, "기권") {
		t.Fatalf("resign=%q", got)
	}
}

func TestRender_DisconnectAndQueue(t *testing.T) {
	p, _ := newTestPresenter(t, nil)
	out := p.Render(session.Event{Type: session.EventDisconnected, PlayerID: "b", View: activeView()})
	if !strings.Contains(out, "밥 님 연결 끊김") || !strings.Contains(out, "1분 30초") || !strings.Contains(out, "!샹치 재접속") {
		t.Fatalf("disconnect=%q", out)
	}
	q := session.View{Mode: "ranked", Players: []session.PlayerView{{Identity: session.Identity{ID: "z", Room: "r"}}}}
	if out := p.Render(session.Event{Type: session.EventQueueExpired, PlayerID: "z", View: q}); !strings.Contains(out, "z 님의 ranked") {
		t.Fatalf("queue=%q", out)
	}
	if out := p.Render(session.Event{Type: "unknown"}); out != "" {
		t.Fatalf("unknown event rendered %q", out)
	}
}

func TestBroadcast_ContinuesPastFailures(t *testing.T) {
	boom := errors.New("boom")
	p, out := newTestPresenter(t, map[string]error{"room-a": boom})
	err := p.Broadcast([]string{"room-a", "room-b", "room-b", ""}, "hi")
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
	if len(*out) != 1 || (*out)[0].room != "room-b" {
		t.Fatalf("sent=%+v", *out)
	}
}

func TestFormatter_ErrorFallbacks(t *testing.T) {
	p, _ := newTestPresenter(t, nil)
	f := p.Formatter()
	if got := f.Error(xqdto.DomainError{Code: "not_your_turn"}); got != "지금은 상대 차례입니다." {
		t.Fatalf("known=%q", got)
	}
	if got := f.Error(xqdto.DomainError{Code: "internal"}); !strings.Contains(got, "(internal)") {
		t.Fatalf("generic=%q", got)
	}
	x, y := 4, 0
	got := f.Error(xqdto.DomainError{Code: "invalid_setup", Details: []xqdto.ValidationItem{{Code: "missing_general", Message: "red general missing", X: &x, Y: &y}}})
	if !strings.Contains(got, "missing_general @e9") {
		t.Fatalf("details=%q", got)
	}
}
