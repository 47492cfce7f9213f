package main

import (
    "context"
    "log"
    "os"
    "os/signal"
    "syscall"
    "time"

    "go.uber.org/zap"

    "github.com/park285/Cheese-Xiangqi-bot/internal/app"
    appcfg "github.com/park285/Cheese-Xiangqi-bot/internal/config"
    "github.com/park285/Cheese-Xiangqi-bot/internal/obslog"
)

func main() {
    cfg, err := appcfg.Load()
    if err != nil {
        log.Fatalf("config error: %v", err)
    }
    if err := obslog.Init(obslog.Options{
        Level:   cfg.Log.Level,
        Console: cfg.Log.Console,
        ToFile:  cfg.Log.ToFile,
        Caller:  cfg.Log.Caller,
        Format:  cfg.Log.Format,
        File:    cfg.Log.File,
    }); err != nil {
        log.Fatalf("logger init error: %v", err)
    }
    defer obslog.Sync()
    logger := obslog.L()

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    bot, err := app.New(ctx, cfg)
    if err != nil {
        logger.Fatal("app_init_error", zap.Error(err))
    }

    cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
    err = bot.Start(cctx)
    cancel()
    if err != nil {
        _ = bot.Close()
        logger.Fatal("app_start_error", zap.Error(err))
    }
    logger.Info("xiangqi_bot_started", zap.String("prefix", cfg.BotPrefix), zap.String("iris", cfg.IrisBaseURL))

    <-ctx.Done()
    logger.Info("xiangqi_bot_stopping")
    if err := bot.Close(); err != nil {
        logger.Warn("app_close_error", zap.Error(err))
    }
}
