package command

import (
    "context"
    "strings"

    "go.uber.org/zap"

    "github.com/park285/Cheese-Xiangqi-bot/internal/adapter/xqpresenter"
    "github.com/park285/Cheese-Xiangqi-bot/internal/irisfast"
    "github.com/park285/Cheese-Xiangqi-bot/internal/obslog"
    "github.com/park285/Cheese-Xiangqi-bot/internal/session"
    "github.com/park285/Cheese-Xiangqi-bot/internal/xiangqi"
    "github.com/park285/Cheese-Xiangqi-bot/internal/xiangqi/rules"
    "github.com/park285/Cheese-Xiangqi-bot/pkg/xqdto"
)

// Root keywords that address this bot after the prefix.
var roots = map[string]bool{"샹치": true, "xq": true, "xiangqi": true}

type verb string

const (
    verbHelp      verb = "help"
    verbCreate    verb = "create"
    verbJoin      verb = "join"
    verbMatch     verb = "match"
    verbUnmatch   verb = "unmatch"
    verbCancel    verb = "cancel"
    verbLeave     verb = "leave"
    verbReconnect verb = "reconnect"
    verbResign    verb = "resign"
    verbStatus    verb = "status"
    verbRules     verb = "rules"
    verbSetup     verb = "setup"
    verbReplay    verb = "replay"
    verbWatch     verb = "watch"
    verbValidate  verb = "validate"
    verbStats     verb = "stats"
    verbLobby     verb = "lobby"
    verbMove      verb = "move"
)

var aliases = map[string]verb{
    "도움말": verbHelp, "help": verbHelp,
    "생성": verbCreate, "create": verbCreate,
    "참가": verbJoin, "join": verbJoin,
    "매칭": verbMatch, "match": verbMatch,
    "매칭취소": verbUnmatch, "unmatch": verbUnmatch,
    "취소": verbCancel, "cancel": verbCancel,
    "나가기": verbLeave, "leave": verbLeave,
    "재접속": verbReconnect, "reconnect": verbReconnect,
    "기권": verbResign, "resign": verbResign,
    "현황": verbStatus, "status": verbStatus,
    "규칙": verbRules, "rules": verbRules,
    "배치": verbSetup, "setup": verbSetup,
    "기보": verbReplay, "replay": verbReplay,
    "관전": verbWatch, "watch": verbWatch,
    "검증": verbValidate, "validate": verbValidate,
    "통계": verbStats, "stats": verbStats,
    "목록": verbLobby, "lobby": verbLobby, "list": verbLobby,
    "수": verbMove, "move": verbMove,
}

// Request is one parsed chat command.
type Request struct {
    Room   string
    Player session.Identity
    Verb   verb
    Args   []string
    // Rest is the raw text after the verb, kept for FEN and JSON payloads.
    Rest string
}

// Parse extracts a command from text. ok is false when text is not addressed to this bot.
func Parse(prefix, text string) (Request, bool) {
    raw := strings.TrimSpace(text)
    if prefix != "" {
        if !strings.HasPrefix(raw, prefix) { return Request{}, false }
        raw = strings.TrimSpace(strings.TrimPrefix(raw, prefix))
    }
    root, rest := cut(raw)
    if !roots[strings.ToLower(root)] { return Request{}, false }
    if rest == "" { return Request{Verb: verbHelp}, true }

    head, tail := cut(rest)
    v, known := aliases[strings.ToLower(head)]
    if !known {
        // bare ICCS move
        return Request{Verb: verbMove, Args: strings.Fields(rest), Rest: rest}, true
    }
    return Request{Verb: v, Args: strings.Fields(tail), Rest: tail}, true
}

func cut(s string) (string, string) {
    s = strings.TrimSpace(s)
    i := strings.IndexAny(s, " \t\n")
    if i < 0 { return s, "" }
    return s[:i], strings.TrimSpace(s[i+1:])
}

// Dispatcher routes chat commands to the session registry. Outcomes that change a session
// are announced by the presenter's event subscription; the dispatcher itself replies only
// with errors and read results.
type Dispatcher struct {
    reg     *session.Registry
    pres    *xqpresenter.Presenter
    format  *xqpresenter.Formatter
    prefix  string
    allowed func(room string) bool
}

func New(reg *session.Registry, pres *xqpresenter.Presenter, prefix string, allowed func(room string) bool) *Dispatcher {
    if allowed == nil { allowed = func(string) bool { return true } }
    return &Dispatcher{reg: reg, pres: pres, format: pres.Formatter(), prefix: prefix, allowed: allowed}
}

// HandleMessage is the websocket callback. It reports whether msg was a command for this bot.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg *irisfast.Message) bool {
    if msg == nil || strings.TrimSpace(msg.Msg) == "" { return false }
    req, ok := Parse(d.prefix, msg.Msg)
    if !ok { return false }
    if !d.allowed(msg.Room) {
        obslog.L().Debug("xq_room_ignored", zap.String("room", msg.Room))
        return false
    }
    req.Room = msg.Room
    req.Player = session.Identity{ID: msg.UserID(), Name: msg.SenderName(), Room: msg.Room}
    d.Dispatch(ctx, req)
    return true
}

// Dispatch executes req and sends any direct reply to req.Room.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) {
    if req.Player.ID == "" && req.Verb != verbHelp && req.Verb != verbValidate && req.Verb != verbStats && req.Verb != verbLobby {
        d.fail(req, session.ErrInvalidArgs)
        return
    }
    if v, ok := d.reg.SessionOf(req.Player.ID); ok { _ = d.reg.Heartbeat(v.ID, req.Player.ID) }

    switch req.Verb {
    case verbHelp:
        d.reply(req, d.format.Help())
    case verbCreate:
        d.create(ctx, req)
    case verbJoin:
        if len(req.Args) < 1 { d.usage(req, "샹치 참가 <ID> [비밀번호]"); return }
        _, err := d.reg.Join(ctx, strings.ToUpper(req.Args[0]), req.Player, argAt(req.Args, 1))
        d.failIf(req, err)
    case verbMatch:
        d.match(ctx, req)
    case verbUnmatch:
        d.reply(req, d.format.MatchCancelled(d.reg.CancelMatch(req.Player.ID)))
    case verbCancel:
        d.withSession(req, func(v session.View) error { _, err := d.reg.Cancel(ctx, v.ID, req.Player.ID); return err })
    case verbLeave:
        if _, ok := d.reg.SessionOf(req.Player.ID); !ok && d.reg.CancelMatch(req.Player.ID) {
            d.reply(req, d.format.MatchCancelled(true))
            return
        }
        d.withSession(req, func(v session.View) error { _, err := d.reg.Leave(ctx, v.ID, req.Player.ID); return err })
    case verbReconnect:
        d.withSession(req, func(v session.View) error {
            nv, err := d.reg.Reconnect(ctx, v.ID, req.Player.ID)
            if err == nil { d.reply(req, d.format.Status(xqpresenter.ToDTOState(nv))) }
            return err
        })
    case verbResign:
        d.withSession(req, func(v session.View) error { _, err := d.reg.Resign(ctx, v.ID, req.Player.ID); return err })
    case verbStatus:
        d.status(ctx, req)
    case verbRules:
        d.rules(ctx, req)
    case verbSetup:
        d.setup(ctx, req)
    case verbReplay:
        d.replay(ctx, req)
    case verbWatch:
        if len(req.Args) < 1 { d.usage(req, "샹치 관전 <ID>"); return }
        v, err := d.reg.Spectate(ctx, strings.ToUpper(req.Args[0]), req.Player)
        if err != nil { d.fail(req, err); return }
        d.reply(req, d.format.Status(xqpresenter.ToDTOState(v)))
    case verbValidate:
        pieces, _, err := ParseSeed(req.Rest)
        if err != nil { d.reply(req, d.format.Notice("error.invalid_arguments", nil)); return }
        d.reply(req, d.format.Validation(xqpresenter.ToDTOValidation(xiangqi.Validate(pieces))))
    case verbStats:
        c := d.reg.Counters()
        d.reply(req, d.format.Stats(xqdto.Counters{MovesApplied: c.MovesApplied, WaitingRoomsCleaned: c.WaitingRoomsCleaned, DisconnectDraws: c.DisconnectDraws}))
    case verbLobby:
        var rooms []*xqdto.SessionState
        for _, v := range d.reg.Lobby() { rooms = append(rooms, xqpresenter.ToDTOState(v)) }
        d.reply(req, d.format.Lobby(rooms))
    case verbMove:
        d.move(ctx, req)
    default:
        d.reply(req, d.format.Notice("error.unknown_command", nil))
    }
}

func (d *Dispatcher) create(ctx context.Context, req Request) {
    pref, password := session.PrefRandom, ""
    args := req.Args
    if len(args) > 0 {
        if p, ok := parseSideWord(args[0]); ok {
            pref = p
            args = args[1:]
        }
    }
    if len(args) > 0 { password = args[0] }
    _, err := d.reg.Create(ctx, req.Player, pref, password)
    d.failIf(req, err)
}

func (d *Dispatcher) match(ctx context.Context, req Request) {
    t, err := d.reg.Match(ctx, argAt(req.Args, 0), req.Player)
    if err != nil { d.fail(req, err); return }
    if _, done, err := t.Result(); done {
        d.failIf(req, err)
        return
    }
    d.reply(req, d.format.Queued(t.Entry.Mode))
}

func (d *Dispatcher) status(ctx context.Context, req Request) {
    if id := argAt(req.Args, 0); id != "" {
        v, err := d.reg.Snapshot(ctx, strings.ToUpper(id))
        if err != nil { d.fail(req, err); return }
        d.reply(req, d.format.Status(xqpresenter.ToDTOState(v)))
        return
    }
    d.withSession(req, func(v session.View) error {
        d.reply(req, d.format.Status(xqpresenter.ToDTOState(v)))
        return nil
    })
}

func (d *Dispatcher) rules(ctx context.Context, req Request) {
    cat := d.reg.Catalog()
    v, inSession := d.reg.SessionOf(req.Player.ID)
    if len(req.Args) == 0 {
        rs, variant := cat.Base.Clone(), rules.Variant{}
        if inSession {
            var err error
            if rs, variant, err = d.reg.GetRules(ctx, v.ID); err != nil { d.fail(req, err); return }
        }
        d.reply(req, d.format.Rules(xqpresenter.ToDTORules(rs, variant, cat.OverlayNames())))
        return
    }
    if !inSession { d.reply(req, d.format.Notice("error.no_session", nil)); return }
    _, err := d.reg.SetRules(ctx, v.ID, req.Player.ID, rules.Variant{Overlays: ParseOverlays(req.Args)})
    d.failIf(req, err)
}

func (d *Dispatcher) setup(ctx context.Context, req Request) {
    if strings.TrimSpace(req.Rest) == "" { d.usage(req, "샹치 배치 <JSON|FEN> [홍|흑]"); return }
    pieces, turn, err := ParseSeed(req.Rest)
    if err != nil { d.fail(req, &session.Error{Code: session.ErrInvalidArgs.Code, Message: err.Error()}); return }
    d.withSession(req, func(v session.View) error {
        _, err := d.reg.SetReplay(ctx, v.ID, req.Player.ID, session.Seed{Pieces: pieces, Turn: turn})
        return err
    })
}

func (d *Dispatcher) replay(ctx context.Context, req Request) {
    id := strings.ToUpper(argAt(req.Args, 0))
    if id == "" {
        v, ok := d.reg.SessionOf(req.Player.ID)
        if !ok { d.usage(req, "샹치 기보 <ID>"); return }
        id = v.ID
    }
    rv, err := d.reg.GetReplay(ctx, id)
    if err != nil { d.fail(req, err); return }
    d.reply(req, d.format.Replay(xqpresenter.ToDTOReplay(rv)))
}

func (d *Dispatcher) move(ctx context.Context, req Request) {
    in := strings.Join(req.Args, "")
    from, to, err := xiangqi.ParseMove(in)
    if err != nil {
        d.reply(req, d.format.Notice("error.invalid_move", map[string]any{"Input": in}))
        return
    }
    d.withSession(req, func(v session.View) error {
        _, err := d.reg.Move(ctx, v.ID, req.Player.ID, from, to)
        return err
    })
}

func (d *Dispatcher) withSession(req Request, fn func(session.View) error) {
    v, ok := d.reg.SessionOf(req.Player.ID)
    if !ok { d.reply(req, d.format.Notice("error.no_session", nil)); return }
    d.failIf(req, fn(v))
}

func (d *Dispatcher) reply(req Request, text string) {
    if err := d.pres.Reply(req.Room, text); err != nil {
        obslog.L().Warn("xq_reply_error", zap.String("room", req.Room), zap.String("verb", string(req.Verb)), zap.Error(err))
    }
}

func (d *Dispatcher) usage(req Request, usage string) { d.reply(req, d.format.Usage(usage)) }

func (d *Dispatcher) failIf(req Request, err error) {
    if err != nil { d.fail(req, err) }
}

func (d *Dispatcher) fail(req Request, err error) {
    de := xqpresenter.ToDomainError(err)
    if de.Code == "internal" {
        obslog.L().Error("xq_command_error", zap.String("verb", string(req.Verb)), zap.String("player_id", req.Player.ID), zap.Error(err))
    } else {
        obslog.L().Debug("xq_command_rejected", zap.String("verb", string(req.Verb)), zap.String("player_id", req.Player.ID), zap.String("code", de.Code))
    }
    d.reply(req, d.format.Error(de))
}

func argAt(args []string, i int) string {
    if i < len(args) { return strings.TrimSpace(args[i]) }
    return ""
}

func parseSideWord(s string) (session.SidePref, bool) {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "홍", "red", "r":
        return session.PrefRed, true
    case "흑", "black", "b":
        return session.PrefBlack, true
    case "랜덤", "random", "무작위":
        return session.PrefRandom, true
    }
    return "", false
}
