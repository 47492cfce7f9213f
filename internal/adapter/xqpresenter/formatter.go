package xqpresenter

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/Cheese-Xiangqi-bot/internal/msgcat"
	"github.com/park285/Cheese-Xiangqi-bot/internal/xiangqi"
	"github.com/park285/Cheese-Xiangqi-bot/pkg/xqdto"
)

const (
	statusInstruction = "♞ 샹치 현황"
	replayInstruction = "📼 기보 전체보기"
	helpInstruction   = "♜ 샹치 명령어 안내"
)

// Formatter renders DTOs into Kakao-friendly text using the message catalog.
type Formatter struct {
	cat    *msgcat.Catalog
	prefix string
}

func NewFormatter(cat *msgcat.Catalog, prefix string) *Formatter {
	return &Formatter{cat: cat, prefix: strings.TrimSpace(prefix)}
}

func (f *Formatter) text(key string, data map[string]any) string {
	if data == nil {
		data = map[string]any{}
	}
	data["P"] = f.prefix
	return f.cat.Text(key, data)
}

func (f *Formatter) SideName(side string) string {
	if side == "" {
		return "-"
	}
	return f.text("side."+side, nil)
}

func (f *Formatter) pieceName(p string) string {
	if p == "" {
		return ""
	}
	return f.text("piece."+p, nil)
}

func playerName(p *xqdto.Player) string {
	if p == nil {
		return "-"
	}
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

func (f *Formatter) Help() string {
	return seeMore(helpInstruction, f.text("help", nil))
}

func (f *Formatter) Created(st *xqdto.SessionState) string {
	host := st.Host
	if len(st.Players) > 0 {
		host = playerName(&st.Players[0])
	}
	return f.text("session.created", map[string]any{"ID": st.ID, "Host": host, "Private": st.Private})
}

func (f *Formatter) Started(st *xqdto.SessionState) string {
	head := f.text("session.started", map[string]any{
		"ID":    st.ID,
		"Red":   playerName(st.PlayerOn(string(xiangqi.Red))),
		"Black": playerName(st.PlayerOn(string(xiangqi.Black))),
		"Rules": st.Rules,
		"Turn":  f.SideName(st.Turn),
	})
	return head + "\n\n" + f.Board(st)
}

// Board draws the current position with the last move marked.
func (f *Formatter) Board(st *xqdto.SessionState) string {
	b, _, err := xiangqi.ParseFEN(st.FEN)
	if err != nil {
		return st.FEN
	}
	var marks []xiangqi.Pos
	if st.LastMove != nil {
		if from, to, err := xiangqi.ParseMove(st.LastMove.ICCS); err == nil {
			marks = append(marks, from, to)
		}
	}
	return RenderBoard(b.Pieces(), marks...)
}

func (f *Formatter) Moved(st *xqdto.SessionState) string {
	if st.LastMove == nil {
		return f.Board(st)
	}
	mv := st.LastMove
	var sb strings.Builder
	sb.WriteString(f.text("session.moved", map[string]any{
		"Index":    mv.Index + 1,
		"Side":     f.SideName(mv.Side),
		"Piece":    f.pieceName(mv.Piece),
		"Move":     mv.ICCS,
		"Captured": f.pieceName(mv.Captured),
		"InCheck":  st.InCheck && st.State == "active",
	}))
	sb.WriteString("\n\n")
	sb.WriteString(f.Board(st))
	if st.State == "active" {
		sb.WriteString("\n")
		sb.WriteString(f.text("session.turn", map[string]any{"Turn": f.SideName(st.Turn), "Name": playerName(st.PlayerOn(st.Turn))}))
	}
	return sb.String()
}

func (f *Formatter) Ended(st *xqdto.SessionState) string {
	return f.text("session.ended", map[string]any{
		"Result": f.text("result."+st.Result, nil),
		"Reason": f.text("reason."+st.Reason, nil),
		"Moves":  st.MoveCount,
	})
}

func (f *Formatter) Removed(st *xqdto.SessionState) string {
	return f.text("session.removed", map[string]any{"ID": st.ID, "Reason": f.text("reason."+st.Reason, nil)})
}

func (f *Formatter) Disconnected(st *xqdto.SessionState, playerID string, ttl time.Duration) string {
	return f.text("session.disconnected", map[string]any{"Name": f.nameOf(st, playerID), "TTL": formatDuration(ttl)})
}

func (f *Formatter) Reconnected(st *xqdto.SessionState, playerID string) string {
	return f.text("session.reconnected", map[string]any{"Name": f.nameOf(st, playerID)})
}

func (f *Formatter) RulesChanged(st *xqdto.SessionState) string {
	return f.text("session.rules_changed", map[string]any{"Rules": st.Rules, "Seeded": st.Seeded})
}

func (f *Formatter) Spectating(name string) string {
	return f.text("session.spectating", map[string]any{"Name": name})
}

func (f *Formatter) nameOf(st *xqdto.SessionState, playerID string) string {
	for i := range st.Players {
		if st.Players[i].ID == playerID {
			return playerName(&st.Players[i])
		}
	}
	return playerID
}

func (f *Formatter) Status(st *xqdto.SessionState) string {
	var sb strings.Builder
	sb.WriteString(f.text("session.status_players", map[string]any{
		"Red":        playerName(st.PlayerOn(string(xiangqi.Red))),
		"Black":      playerName(st.PlayerOn(string(xiangqi.Black))),
		"Moves":      st.MoveCount,
		"Spectators": st.Spectators,
	}))
	sb.WriteString("\n규칙: ")
	sb.WriteString(st.Rules)
	sb.WriteString("\n\n")
	sb.WriteString(f.Board(st))
	switch st.State {
	case "active":
		sb.WriteString("\n")
		sb.WriteString(f.text("session.turn", map[string]any{"Turn": f.SideName(st.Turn), "Name": playerName(st.PlayerOn(st.Turn))}))
	case "ended":
		sb.WriteString("\n")
		sb.WriteString(f.Ended(st))
	}
	header := f.text("session.status_header", map[string]any{"ID": st.ID, "State": st.State})
	return seeMore(statusInstruction, header+"\n"+sb.String())
}

// Lobby lists open rooms, oldest first.
func (f *Formatter) Lobby(rooms []*xqdto.SessionState) string {
	if len(rooms) == 0 {
		return f.text("lobby.empty", nil)
	}
	lines := []string{f.text("lobby.header", map[string]any{"Count": len(rooms)})}
	for _, st := range rooms {
		lines = append(lines, f.text("lobby.item", map[string]any{"ID": st.ID, "Host": f.nameOf(st, st.Host), "Rules": st.Rules}))
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) Queued(mode string) string {
	return f.text("match.queued", map[string]any{"Mode": mode})
}

func (f *Formatter) MatchCancelled(ok bool) string {
	if !ok {
		return f.text("match.none", nil)
	}
	return f.text("match.cancelled", nil)
}

func (f *Formatter) QueueExpired(name, mode string) string {
	return f.text("match.expired", map[string]any{"Name": name, "Mode": mode})
}

func (f *Formatter) Rules(info xqdto.RulesInfo) string {
	return f.text("rules.info", map[string]any{
		"Name":      info.Name,
		"Count":     info.RuleCount,
		"Flags":     strings.Join(info.Flags, ", "),
		"Available": strings.Join(info.Available, ", "),
	})
}

func (f *Formatter) Replay(info *xqdto.ReplayInfo) string {
	if !info.Started {
		return f.text("replay.seed", map[string]any{"FEN": info.FEN})
	}
	header := f.text("replay.header", map[string]any{"ID": info.SessionID})
	return seeMore(replayInstruction, header+"\n"+info.Transcript)
}

func (f *Formatter) Validation(res xqdto.ValidationResult) string {
	if res.Valid {
		return f.text("validate.ok", nil)
	}
	lines := []string{f.text("validate.fail", map[string]any{"Count": len(res.Errors)})}
	lines = append(lines, f.items(res.Errors)...)
	return strings.Join(lines, "\n")
}

func (f *Formatter) items(items []xqdto.ValidationItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		at := ""
		if it.X != nil && it.Y != nil {
			at = xiangqi.Pos{X: *it.X, Y: *it.Y}.String()
		}
		out = append(out, f.text("validate.item", map[string]any{"Code": it.Code, "At": at, "Message": it.Message}))
	}
	return out
}

// Error renders a domain error. Codes without a dedicated message fall back to the generic one.
func (f *Formatter) Error(e xqdto.DomainError) string {
	key := "error." + e.Code
	if e.Code == "" || !f.cat.Has(key) {
		return f.text("error.generic", map[string]any{"Code": e.Code})
	}
	msg := f.text(key, nil)
	if len(e.Details) > 0 {
		msg = strings.Join(append([]string{msg}, f.items(e.Details)...), "\n")
	}
	return msg
}

func (f *Formatter) Usage(usage string) string {
	return f.text("error.usage", map[string]any{"Usage": f.prefix + usage})
}

func (f *Formatter) Notice(key string, data map[string]any) string { return f.text(key, data) }

func (f *Formatter) Stats(c xqdto.Counters) string {
	return f.text("stats", map[string]any{"Moves": c.MovesApplied, "Cleaned": c.WaitingRoomsCleaned, "Draws": c.DisconnectDraws})
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%d분", int(d/time.Minute))
	case d >= time.Minute:
		return fmt.Sprintf("%d분 %d초", int(d/time.Minute), int(d%time.Minute/time.Second))
	default:
		return fmt.Sprintf("%d초", int(d/time.Second))
	}
}
