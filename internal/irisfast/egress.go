package irisfast

import (
    "context"
    "errors"
    "strings"

    "go.uber.org/zap"
)

var ErrEgressUnavailable = errors.New("egress transport not available")

// Egress sends chat replies over HTTP or the Iris WebSocket.
type Egress interface {
    SendText(ctx context.Context, room, message string) error
}

const (
    ModeHTTP = "http"
    ModeWS   = "ws"
    ModeAuto = "auto"
)

// NewEgress picks the transport for mode. auto prefers a connected socket and falls back
// to HTTP once per message. dryrun logs instead of writing to the socket.
func NewEgress(mode string, dryrun bool, c *Client, ws *WebSocket, logger *zap.Logger) Egress {
    if logger == nil { logger = zap.NewNop() }
    wse := &wsEgress{ws: ws, dryrun: dryrun, logger: logger}
    switch strings.ToLower(strings.TrimSpace(mode)) {
    case ModeWS:
        return wse
    case ModeAuto:
        return &autoEgress{ws: wse, http: &httpEgress{c: c}, logger: logger}
    default:
        return &httpEgress{c: c}
    }
}

type httpEgress struct{ c *Client }

func (h *httpEgress) SendText(ctx context.Context, room, message string) error {
    if h == nil || h.c == nil { return ErrEgressUnavailable }
    return h.c.SendMessage(ctx, room, message)
}

type wsEgress struct {
    ws     *WebSocket
    dryrun bool
    logger *zap.Logger
}

func (w *wsEgress) ready() bool { return w != nil && w.ws != nil && w.ws.State() == WSStateConnected }

func (w *wsEgress) SendText(ctx context.Context, room, message string) error {
    if w == nil || w.ws == nil { return ErrEgressUnavailable }
    if w.dryrun {
        w.logger.Info("ws_egress_dryrun", zap.String("room", room), zap.Int("len", len(message)))
        return nil
    }
    return w.ws.WriteJSON(ctx, &ReplyRequest{Type: "text", Room: room, Data: message})
}

type autoEgress struct {
    ws     *wsEgress
    http   *httpEgress
    logger *zap.Logger
}

func (a *autoEgress) SendText(ctx context.Context, room, message string) error {
    if a.ws.ready() {
        err := a.ws.SendText(ctx, room, message)
        if err == nil { return nil }
        a.logger.Warn("egress_fallback", zap.String("room", room), zap.Error(err))
    }
    return a.http.SendText(ctx, room, message)
}
