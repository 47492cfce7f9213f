package app

import (
    "context"
    "crypto/tls"
    "fmt"
    "net/url"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/hashicorp/go-multierror"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/park285/Cheese-Xiangqi-bot/internal/adapter/xqpresenter"
    "github.com/park285/Cheese-Xiangqi-bot/internal/command"
    "github.com/park285/Cheese-Xiangqi-bot/internal/config"
    "github.com/park285/Cheese-Xiangqi-bot/internal/irisfast"
    "github.com/park285/Cheese-Xiangqi-bot/internal/msgcat"
    "github.com/park285/Cheese-Xiangqi-bot/internal/obslog"
    "github.com/park285/Cheese-Xiangqi-bot/internal/replay"
    "github.com/park285/Cheese-Xiangqi-bot/internal/session"
    "github.com/park285/Cheese-Xiangqi-bot/internal/xiangqi/rules"
)

const (
    wsMaxReconnect = 5
    wsPingInterval = 30 * time.Second
    irisMaxConns   = 16
    sendTimeout    = 10 * time.Second
    commandTimeout = 15 * time.Second
)

// App is the wired bot: Iris transport in, session registry in the middle, presenter out.
type App struct {
    Config     *config.AppConfig
    Registry   *session.Registry
    Dispatcher *command.Dispatcher
    Presenter  *xqpresenter.Presenter
    Client     *irisfast.Client
    WS         *irisfast.WebSocket

    rdb         *redis.Client
    archive     *replay.Repository
    unsubscribe func()
}

// New builds every dependency from cfg. Redis and Postgres are optional: without REDIS_URL
// replay logs stay in memory, without DATABASE_URL sealed logs are not archived.
func New(ctx context.Context, cfg *config.AppConfig) (*App, error) {
    if cfg == nil { return nil, fmt.Errorf("nil config") }
    a := &App{Config: cfg}

    catalog, err := loadCatalog(cfg.RulesFile)
    if err != nil { return nil, err }
    messages, err := msgcat.New(cfg.TemplateDir)
    if err != nil { return nil, fmt.Errorf("init messages: %w", err) }

    var store replay.Store = replay.NewMemoryStore()
    if strings.TrimSpace(cfg.RedisURL) != "" {
        rdb, err := openRedis(ctx, cfg.RedisURL)
        if err != nil { return nil, err }
        a.rdb = rdb
        store = replay.NewRedisStore(rdb, cfg.ReplayTTL)
    }

    opts := session.Options{
        WaitingTTL:     cfg.WaitingTTL,
        DisconnectTTL:  cfg.DisconnectTTL,
        EndedRetention: cfg.EndedRetention,
        SnapshotEvery:  cfg.SnapshotEvery,
        MaxSessions:    cfg.MaxSessions,
        Catalog:        catalog,
        Store:          store,
    }
    if strings.TrimSpace(cfg.DatabaseURL) != "" {
        repo, err := replay.NewRepository(cfg.DatabaseURL)
        if err != nil {
            _ = a.Close()
            return nil, fmt.Errorf("init archive: %w", err)
        }
        a.archive = repo
        if err := repo.EnsureSchema(ctx); err != nil {
            _ = a.Close()
            return nil, fmt.Errorf("archive schema: %w", err)
        }
        opts.Archive = repo
    }
    if a.rdb == nil && a.archive == nil {
        obslog.L().Warn("xq_replay_not_durable", zap.String("hint", "set REDIS_URL or DATABASE_URL to keep replays across restarts"))
    }
    a.Registry = session.NewRegistry(opts)

    headers := headerProvider(cfg)
    a.Client = irisfast.NewClient(cfg.IrisBaseURL, irisfast.WithHeaderProvider(headers), irisfast.WithRetry(3), irisfast.WithMaxConnsPerHost(irisMaxConns))
    a.WS = irisfast.NewWebSocket(cfg.IrisWSURL, wsMaxReconnect, wsPingInterval)
    a.WS.SetHeaderProvider(headers)
    a.WS.OnStateChange(func(state irisfast.WebSocketState) {
        obslog.L().Info("iris_ws_state", zap.String("state", string(state)))
    })

    egress := irisfast.NewEgress(cfg.EgressMode, false, a.Client, a.WS, obslog.L())
    send := func(room, message string) error {
        sctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
        defer cancel()
        return egress.SendText(sctx, room, message)
    }
    a.Presenter = xqpresenter.NewPresenter(send, xqpresenter.NewFormatter(messages, cfg.BotPrefix), cfg.DisconnectTTL)
    a.unsubscribe = a.Registry.Subscribe(a.Presenter.Notify)
    a.Dispatcher = command.New(a.Registry, a.Presenter, cfg.BotPrefix, cfg.RoomAllowed)

    a.WS.OnMessage(func(msg *irisfast.Message) {
        // keep the socket reader free
        go func() {
            cctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
            defer cancel()
            a.Dispatcher.HandleMessage(cctx, msg)
        }()
    })

    obslog.L().Info("xq_app_ready",
        zap.Bool("redis", a.rdb != nil),
        zap.Bool("archive", a.archive != nil),
        zap.String("egress", cfg.EgressMode),
        zap.Strings("overlays", catalog.OverlayNames()),
        zap.Int("allowed_rooms", len(cfg.AllowedRooms)),
    )
    return a, nil
}

// Start connects the Iris socket.
func (a *App) Start(ctx context.Context) error {
    if err := a.WS.Connect(ctx); err != nil { return fmt.Errorf("ws connect: %w", err) }
    return nil
}

// Close stops timers and releases every connection, collecting all failures.
func (a *App) Close() error {
    var errs error
    if a.unsubscribe != nil { a.unsubscribe() }
    if a.Registry != nil { a.Registry.Close() }
    if a.WS != nil {
        ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        if err := a.WS.Close(ctx); err != nil { errs = multierror.Append(errs, fmt.Errorf("ws: %w", err)) }
        cancel()
    }
    if a.rdb != nil {
        if err := a.rdb.Close(); err != nil { errs = multierror.Append(errs, fmt.Errorf("redis: %w", err)) }
    }
    if a.archive != nil {
        if err := a.archive.Close(); err != nil { errs = multierror.Append(errs, fmt.Errorf("archive: %w", err)) }
    }
    return errs
}

func headerProvider(cfg *config.AppConfig) func() map[string]string {
    return func() map[string]string {
        h := map[string]string{}
        if cfg.XUserID != "" { h["X-User-Id"] = cfg.XUserID }
        if cfg.XUserEmail != "" { h["X-User-Email"] = cfg.XUserEmail }
        if cfg.XSessionID != "" { h["X-Session-Id"] = cfg.XSessionID }
        return h
    }
}

func loadCatalog(path string) (*rules.Catalog, error) {
    path = strings.TrimSpace(path)
    if path == "" { return rules.DefaultCatalog(), nil }
    raw, err := os.ReadFile(path)
    if err != nil { return nil, fmt.Errorf("read rules file: %w", err) }
    cat, err := rules.ParseCatalog(raw)
    if err != nil { return nil, fmt.Errorf("rules file %s: %w", path, err) }
    return cat, nil
}

func openRedis(ctx context.Context, raw string) (*redis.Client, error) {
    opts, err := parseRedisURL(raw)
    if err != nil { return nil, fmt.Errorf("parse redis url: %w", err) }
    rdb := redis.NewClient(opts)
    pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    if err := rdb.Ping(pctx).Err(); err != nil {
        _ = rdb.Close()
        return nil, fmt.Errorf("redis ping: %w", err)
    }
    return rdb, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
    u, err := url.Parse(strings.TrimSpace(raw))
    if err != nil { return nil, err }
    if u.Scheme != "redis" && u.Scheme != "rediss" { return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme) }
    db := 0
    if p := strings.TrimPrefix(u.Path, "/"); p != "" {
        n, err := strconv.Atoi(p)
        if err != nil { return nil, fmt.Errorf("invalid redis db %q", p) }
        db = n
    }
    pass, _ := u.User.Password()
    opts := &redis.Options{Addr: u.Host, Username: u.User.Username(), Password: pass, DB: db}
    if u.Scheme == "rediss" { opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: u.Hostname()} }
    return opts, nil
}
