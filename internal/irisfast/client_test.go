package irisfast

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "net/http/httptest"
    "sync"
    "sync/atomic"
    "testing"
    "time"

    "nhooyr.io/websocket"
    "nhooyr.io/websocket/wsjson"
)

func noWait(int) time.Duration { return time.Millisecond }

func TestClient_SendMessage(t *testing.T) {
    var got ReplyRequest
    var hdr string
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.URL.Path != "/reply" || r.Method != http.MethodPost { t.Errorf("unexpected %s %s", r.Method, r.URL.Path) }
        hdr = r.Header.Get("X-User-Id")
        _ = json.NewDecoder(r.Body).Decode(&got)
        w.WriteHeader(http.StatusOK)
    }))
    defer srv.Close()

    c := NewClient(srv.URL+"/", WithHeaderProvider(func() map[string]string { return map[string]string{"X-User-Id": "bot", "X-Empty": " "} }))
    if err := c.SendMessage(context.Background(), "room-1", "안녕"); err != nil { t.Fatalf("send: %v", err) }
    if got.Type != "text" || got.Room != "room-1" || got.Data != "안녕" { t.Fatalf("body=%+v", got) }
    if hdr != "bot" { t.Fatalf("header=%q", hdr) }
}

func TestClient_RetriesIdempotentCalls(t *testing.T) {
    var calls atomic.Int32
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if calls.Add(1) < 3 {
            w.WriteHeader(http.StatusServiceUnavailable)
            return
        }
        _ = json.NewEncoder(w).Encode(Config{BotName: "iris", Port: 3000})
    }))
    defer srv.Close()

    c := NewClient(srv.URL, WithRetry(3), withBackoff(noWait))
    cfg, err := c.GetConfig(context.Background())
    if err != nil { t.Fatalf("config: %v", err) }
    if cfg.Port != 3000 || calls.Load() != 3 { t.Fatalf("cfg=%+v calls=%d", cfg, calls.Load()) }
}

func TestClient_NoRetryOnReplyOrClientError(t *testing.T) {
    var calls atomic.Int32
    status := http.StatusServiceUnavailable
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        calls.Add(1)
        w.WriteHeader(status)
        _, _ = w.Write([]byte("nope"))
    }))
    defer srv.Close()

    c := NewClient(srv.URL, WithRetry(5), withBackoff(noWait))
    err := c.SendMessage(context.Background(), "r", "x")
    var apiErr *APIError
    if !errors.As(err, &apiErr) || apiErr.Status != http.StatusServiceUnavailable || calls.Load() != 1 { t.Fatalf("err=%v calls=%d", err, calls.Load()) }

    status = http.StatusBadRequest
    calls.Store(0)
    if _, err := c.Decrypt(context.Background(), "abc"); !errors.As(err, &apiErr) || apiErr.Retryable() || calls.Load() != 1 { t.Fatalf("err=%v calls=%d", err, calls.Load()) }
}

func TestMessage_UserID(t *testing.T) {
    name := " Alice "
    m := &Message{Sender: &name}
    if m.UserID() != "Alice" { t.Fatalf("fallback=%q", m.UserID()) }
    m.JSON = &MessageJSON{UserID: "42"}
    if m.UserID() != "42" || m.SenderName() != "Alice" { t.Fatalf("id=%q name=%q", m.UserID(), m.SenderName()) }
    var nilMsg *Message
    if nilMsg.UserID() != "" { t.Fatalf("nil message") }
}

func TestWebSocket_RoundTrip(t *testing.T) {
    replies := make(chan ReplyRequest, 1)
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        c, err := websocket.Accept(w, r, nil)
        if err != nil { return }
        defer c.Close(websocket.StatusNormalClosure, "")
        ctx := r.Context()
        sender := "Bob"
        if err := wsjson.Write(ctx, c, Message{Msg: "!xq status", Room: "room-9", Sender: &sender}); err != nil { return }
        var rep ReplyRequest
        if err := wsjson.Read(ctx, c, &rep); err == nil { replies <- rep }
        _, _, _ = c.Read(ctx)
    }))
    defer srv.Close()

    ws := NewWebSocket("ws"+srv.URL[len("http"):], 0, time.Minute)
    var mu sync.Mutex
    var states []WebSocketState
    ws.OnStateChange(func(s WebSocketState) {
        mu.Lock()
        states = append(states, s)
        mu.Unlock()
    })
    inbound := make(chan *Message, 1)
    ws.OnMessage(func(m *Message) { inbound <- m })

    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := ws.Connect(ctx); err != nil { t.Fatalf("connect: %v", err) }

    var msg *Message
    select {
    case msg = <-inbound:
    case <-ctx.Done():
        t.Fatalf("no inbound message")
    }
    if msg.Room != "room-9" || msg.UserID() != "Bob" { t.Fatalf("msg=%+v", msg) }

    eg := NewEgress(ModeWS, false, nil, ws, nil)
    if err := eg.SendText(ctx, msg.Room, "ok"); err != nil { t.Fatalf("egress: %v", err) }
    select {
    case rep := <-replies:
        if rep.Room != "room-9" || rep.Data != "ok" { t.Fatalf("reply=%+v", rep) }
    case <-ctx.Done():
        t.Fatalf("no reply frame")
    }

    if err := ws.Close(ctx); err != nil { t.Fatalf("close: %v", err) }
    if err := ws.WriteJSON(ctx, ReplyRequest{}); !errors.Is(err, ErrNotConnected) { t.Fatalf("write after close err=%v", err) }
    mu.Lock()
    defer mu.Unlock()
    if len(states) < 2 || states[0] != WSStateConnecting || states[1] != WSStateConnected { t.Fatalf("states=%v", states) }
}
