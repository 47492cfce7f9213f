package xqpresenter

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Xiangqi-bot/internal/obslog"
	"github.com/park285/Cheese-Xiangqi-bot/internal/session"
)

// Presenter delivers formatted text without coupling to the command layer.
type Presenter struct {
	sendMessage   func(room, message string) error
	format        *Formatter
	disconnectTTL time.Duration
}

func NewPresenter(sendMessage func(room, message string) error, format *Formatter, disconnectTTL time.Duration) *Presenter {
	return &Presenter{sendMessage: sendMessage, format: format, disconnectTTL: disconnectTTL}
}

func (p *Presenter) Formatter() *Formatter { return p.format }

// Reply sends message to a single room. Blank messages are dropped.
func (p *Presenter) Reply(room, message string) error {
	if p == nil || p.sendMessage == nil {
		return nil
	}
	if strings.TrimSpace(message) == "" || strings.TrimSpace(room) == "" {
		return nil
	}
	return p.sendMessage(room, message)
}

// Broadcast sends message once to every distinct room. The first failure is returned
// after all rooms were attempted.
func (p *Presenter) Broadcast(rooms []string, message string) error {
	var first error
	seen := make(map[string]struct{}, len(rooms))
	for _, room := range rooms {
		if _, dup := seen[room]; dup {
			continue
		}
		seen[room] = struct{}{}
		if err := p.Reply(room, message); err != nil {
			obslog.L().Warn("xq_broadcast_error", zap.String("room", room), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Render turns a registry event into its announcement. Events that carry nothing worth
// announcing render as "".
func (p *Presenter) Render(ev session.Event) string {
	st := ToDTOState(ev.View)
	f := p.format
	switch ev.Type {
	case session.EventCreated:
		return f.Created(st)
	case session.EventJoined, session.EventPaired:
		return f.Started(st)
	case session.EventMoved:
		out := f.Moved(st)
		if st.State == string(session.StateEnded) {
			out += "\n" + f.Ended(st)
		}
		return out
	case session.EventEnded:
		// move-driven endings are already announced with the move
		if ev.View.Reason == session.ReasonCheckmate || ev.View.Reason == session.ReasonStalemate || ev.View.Reason == session.ReasonGeneralMissing {
			return ""
		}
		return f.Ended(st)
	case session.EventRemoved:
		return f.Removed(st)
	case session.EventDisconnected:
		return f.Disconnected(st, ev.PlayerID, p.disconnectTTL)
	case session.EventReconnected:
		return f.Reconnected(st, ev.PlayerID)
	case session.EventRulesChanged:
		return f.RulesChanged(st)
	case session.EventSpectating:
		for _, sp := range ev.View.Spectators {
			if sp.ID == ev.PlayerID {
				return f.Spectating(nameOr(sp.Name, sp.ID))
			}
		}
		return f.Spectating(ev.PlayerID)
	case session.EventQueueExpired:
		name := ev.PlayerID
		if len(ev.View.Players) > 0 {
			name = nameOr(ev.View.Players[0].Name, ev.PlayerID)
		}
		return f.QueueExpired(name, ev.View.Mode)
	default:
		return ""
	}
}

// Notify is the registry subscriber: it announces ev to every room tied to the session.
func (p *Presenter) Notify(ev session.Event) {
	msg := p.Render(ev)
	if msg == "" {
		return
	}
	if err := p.Broadcast(ev.View.Rooms(), msg); err != nil {
		obslog.L().Warn("xq_notify_error", zap.String("event", string(ev.Type)), zap.String("session_id", ev.View.ID), zap.Error(err))
	}
}

func nameOr(name, id string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return id
}
