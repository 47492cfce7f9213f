package irisfast

import (
    "context"
    "errors"
    "net/http"
    "strings"
    "sync"
    "time"

    "go.uber.org/zap"
    "nhooyr.io/websocket"
    "nhooyr.io/websocket/wsjson"

    "github.com/park285/Cheese-Xiangqi-bot/internal/obslog"
)

var ErrNotConnected = errors.New("ws not connected")

type callbackEntry[T any] struct {
    id int
    fn T
}

// WebSocket is the Iris message stream. It redials with backoff after read or ping failures.
type WebSocket struct {
    wsURL string

    connM sync.RWMutex
    conn  *websocket.Conn
    state WebSocketState

    // nhooyr allows one concurrent writer
    writeM sync.Mutex

    cbM      sync.RWMutex
    cbSeq    int
    msgCbs   []callbackEntry[MessageCallback]
    stateCbs []callbackEntry[StateCallback]

    maxReconnectAttempts int
    pingInterval         time.Duration

    stopCh   chan struct{}
    stopOnce sync.Once
    wg       sync.WaitGroup

    rootCtx    context.Context
    rootCancel context.CancelFunc

    headerProvider HeaderProvider
}

func NewWebSocket(wsURL string, maxReconnectAttempts int, pingInterval time.Duration) *WebSocket {
    if pingInterval <= 0 { pingInterval = 30 * time.Second }
    ctx, cancel := context.WithCancel(context.Background())
    return &WebSocket{
        wsURL:                wsURL,
        state:                WSStateDisconnected,
        maxReconnectAttempts: maxReconnectAttempts,
        pingInterval:         pingInterval,
        stopCh:               make(chan struct{}),
        rootCtx:              ctx,
        rootCancel:           cancel,
    }
}

// SetHeaderProvider injects headers into the handshake.
func (ws *WebSocket) SetHeaderProvider(h HeaderProvider) { ws.headerProvider = h }

func (ws *WebSocket) State() WebSocketState {
    ws.connM.RLock()
    defer ws.connM.RUnlock()
    return ws.state
}

func (ws *WebSocket) Connect(ctx context.Context) error {
    if s := ws.State(); s == WSStateConnected || s == WSStateConnecting { return nil }
    ws.setState(WSStateConnecting)
    if err := ws.dial(ctx); err != nil {
        ws.setState(WSStateFailed)
        ws.scheduleReconnect()
        return err
    }
    return nil
}

func (ws *WebSocket) dial(ctx context.Context) error {
    dctx, cancel := context.WithTimeout(ctx, 10*time.Second)
    defer cancel()
    conn, _, err := websocket.Dial(dctx, ws.wsURL, &websocket.DialOptions{
        CompressionMode: websocket.CompressionNoContextTakeover,
        HTTPHeader:      ws.buildHeaders(),
    })
    if err != nil { return err }
    ws.connM.Lock()
    ws.conn = conn
    ws.connM.Unlock()
    ws.setState(WSStateConnected)
    ws.wg.Add(2)
    go ws.listen(conn)
    go ws.pingLoop(conn)
    return nil
}

func (ws *WebSocket) listen(conn *websocket.Conn) {
    defer ws.wg.Done()
    for {
        var msg Message
        if err := wsjson.Read(ws.rootCtx, conn, &msg); err != nil {
            ws.drop(conn, "read failure", err)
            return
        }
        ws.cbM.RLock()
        cbs := append([]callbackEntry[MessageCallback](nil), ws.msgCbs...)
        ws.cbM.RUnlock()
        for _, e := range cbs {
            if e.fn != nil { e.fn(&msg) }
        }
    }
}

func (ws *WebSocket) pingLoop(conn *websocket.Conn) {
    defer ws.wg.Done()
    t := time.NewTicker(ws.pingInterval)
    defer t.Stop()
    failures := 0
    for {
        select {
        case <-ws.stopCh:
            return
        case <-ws.rootCtx.Done():
            return
        case <-t.C:
        }
        if ws.current() != conn { return }
        ctx, cancel := context.WithTimeout(ws.rootCtx, 3*time.Second)
        err := conn.Ping(ctx)
        cancel()
        if err == nil {
            failures = 0
            continue
        }
        if failures++; failures >= 2 {
            ws.drop(conn, "ping failure", err)
            return
        }
    }
}

func (ws *WebSocket) current() *websocket.Conn {
    ws.connM.RLock()
    defer ws.connM.RUnlock()
    return ws.conn
}

// drop closes conn if it is still current and starts reconnecting. Later calls for the
// same conn are no-ops.
func (ws *WebSocket) drop(conn *websocket.Conn, reason string, cause error) {
    if ws.isStopping() { return }
    ws.connM.Lock()
    if ws.conn != conn {
        ws.connM.Unlock()
        return
    }
    ws.conn = nil
    ws.connM.Unlock()
    _ = conn.Close(websocket.StatusGoingAway, reason)
    obslog.L().Warn("iris_ws_dropped", zap.String("reason", reason), zap.Error(cause))
    ws.setState(WSStateDisconnected)
    ws.scheduleReconnect()
}

func (ws *WebSocket) scheduleReconnect() {
    if ws.maxReconnectAttempts <= 0 { return }
    ws.setState(WSStateReconnecting)
    go func() {
        for attempt := 1; attempt <= ws.maxReconnectAttempts; attempt++ {
            select {
            case <-ws.stopCh:
                return
            case <-time.After(backoffDuration(attempt)):
            }
            if err := ws.dial(ws.rootCtx); err != nil {
                obslog.L().Debug("iris_ws_redial_failed", zap.Int("attempt", attempt), zap.Error(err))
                continue
            }
            return
        }
        ws.setState(WSStateFailed)
    }()
}

// WriteJSON sends v as one text frame. Calls are serialized.
func (ws *WebSocket) WriteJSON(ctx context.Context, v any) error {
    conn := ws.current()
    if conn == nil || ws.State() != WSStateConnected { return ErrNotConnected }
    if _, ok := ctx.Deadline(); !ok {
        var cancel context.CancelFunc
        ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
        defer cancel()
    }
    ws.writeM.Lock()
    defer ws.writeM.Unlock()
    return wsjson.Write(ctx, conn, v)
}

func (ws *WebSocket) OnMessage(cb MessageCallback) int {
    ws.cbM.Lock()
    defer ws.cbM.Unlock()
    ws.cbSeq++
    ws.msgCbs = append(ws.msgCbs, callbackEntry[MessageCallback]{id: ws.cbSeq, fn: cb})
    return ws.cbSeq
}

func (ws *WebSocket) RemoveMessageCallback(id int) {
    ws.cbM.Lock()
    defer ws.cbM.Unlock()
    ws.msgCbs = removeEntry(ws.msgCbs, id)
}

func (ws *WebSocket) OnStateChange(cb StateCallback) int {
    ws.cbM.Lock()
    defer ws.cbM.Unlock()
    ws.cbSeq++
    ws.stateCbs = append(ws.stateCbs, callbackEntry[StateCallback]{id: ws.cbSeq, fn: cb})
    return ws.cbSeq
}

func (ws *WebSocket) RemoveStateCallback(id int) {
    ws.cbM.Lock()
    defer ws.cbM.Unlock()
    ws.stateCbs = removeEntry(ws.stateCbs, id)
}

func removeEntry[T any](list []callbackEntry[T], id int) []callbackEntry[T] {
    for i, e := range list {
        if e.id == id { return append(list[:i:i], list[i+1:]...) }
    }
    return list
}

func (ws *WebSocket) setState(state WebSocketState) {
    ws.connM.Lock()
    ws.state = state
    ws.connM.Unlock()

    ws.cbM.RLock()
    cbs := append([]callbackEntry[StateCallback](nil), ws.stateCbs...)
    ws.cbM.RUnlock()
    for _, e := range cbs {
        if e.fn != nil { e.fn(state) }
    }
}

func (ws *WebSocket) Close(ctx context.Context) error {
    ws.stopOnce.Do(func() { close(ws.stopCh) })
    ws.connM.Lock()
    conn := ws.conn
    ws.conn = nil
    ws.connM.Unlock()
    if conn != nil { _ = conn.Close(websocket.StatusNormalClosure, "close") }
    ws.rootCancel()

    done := make(chan struct{})
    go func() {
        ws.wg.Wait()
        close(done)
    }()
    select {
    case <-ctx.Done():
        return ctx.Err()
    case <-done:
        ws.setState(WSStateDisconnected)
        return nil
    }
}

func (ws *WebSocket) isStopping() bool {
    select {
    case <-ws.stopCh:
        return true
    default:
        return false
    }
}

func (ws *WebSocket) buildHeaders() http.Header {
    hdr := http.Header{}
    if ws.headerProvider == nil { return hdr }
    for k, v := range ws.headerProvider() {
        if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" { continue }
        hdr.Set(k, v)
    }
    return hdr
}
