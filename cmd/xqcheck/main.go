// Command xqcheck runs offline checks against the bot's inputs and its Iris endpoint.
//
//	xqcheck iris                 probe IRIS_BASE_URL and IRIS_WS_URL
//	xqcheck validate [file|-]    validate a placement (JSON or FEN)
//	xqcheck replay <file>        rebuild a replay log and print its transcript
//	xqcheck -at N replay <file>  also print the position after move N (-1 = start)
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/park285/Cheese-Xiangqi-bot/internal/adapter/xqpresenter"
	"github.com/park285/Cheese-Xiangqi-bot/internal/command"
	"github.com/park285/Cheese-Xiangqi-bot/internal/irisfast"
	"github.com/park285/Cheese-Xiangqi-bot/internal/replay"
	"github.com/park285/Cheese-Xiangqi-bot/internal/xiangqi"
)

func main() {
	observe := flag.Duration("observe", 10*time.Second, "how long to watch the socket in iris mode")
	sample := flag.String("decrypt", "", "iris: also round-trip this payload through /decrypt")
	at := flag.Int("at", -2, "replay: also print the position after move index N (-1 = start)")
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: xqcheck iris | validate [file|-] | replay <file>")
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "iris":
		err = checkIris(*observe, *sample)
	case "validate":
		err = validate(argOr(args, 1, "-"))
	case "replay":
		if len(args) < 2 {
			log.Fatal("replay needs a log file")
		}
		err = rebuild(args[1], *at)
	default:
		log.Fatalf("unknown check %q", args[0])
	}
	if err != nil {
		log.Fatal(err)
	}
}

func argOr(args []string, i int, def string) string {
	if i < len(args) {
		return args[i]
	}
	return def
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func validate(path string) error {
	raw, err := readInput(path)
	if err != nil {
		return err
	}
	pieces, turn, err := command.ParseSeed(string(raw))
	if err != nil {
		return fmt.Errorf("parse placement: %w", err)
	}
	res := xqpresenter.ToDTOValidation(xiangqi.Validate(pieces))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if !res.Valid {
		os.Exit(1)
	}
	b, err := xiangqi.BoardFromPlacements(pieces)
	if err != nil {
		return err
	}
	fmt.Println(b.FEN(turn))
	fmt.Println(xqpresenter.RenderBoard(b.Pieces()))
	return nil
}

func rebuild(path string, at int) error {
	raw, err := readInput(path)
	if err != nil {
		return err
	}
	var l replay.Log
	if err := json.Unmarshal(raw, &l); err != nil {
		return fmt.Errorf("decode log: %w", err)
	}
	b, turn, err := replay.Rebuild(&l)
	if err != nil {
		return err
	}
	fmt.Println(replay.Transcript(&l))
	fmt.Println()
	fmt.Println(xqpresenter.RenderBoard(b.Pieces()))
	fmt.Printf("final: %s\n", b.FEN(turn))
	if at < -1 {
		return nil
	}
	return printPosition(&l, at)
}

func printPosition(l *replay.Log, n int) error {
	if n >= len(l.Moves) {
		n = len(l.Moves) - 1
	}
	b, err := replay.BoardAt(l, n)
	if err != nil {
		return fmt.Errorf("position after %d: %w", n, err)
	}
	turn := l.Meta.FirstTurn
	var highlight []xiangqi.Pos
	if n >= 0 {
		mv := l.Moves[n]
		turn = mv.Side.Opponent()
		highlight = []xiangqi.Pos{mv.From, mv.To}
	}
	fmt.Println()
	fmt.Printf("after move %d:\n", n)
	fmt.Println(xqpresenter.RenderBoard(b.Pieces(), highlight...))
	fmt.Printf("fen: %s\n", b.FEN(turn))
	return nil
}

func checkIris(observe time.Duration, sample string) error {
	baseURL := os.Getenv("IRIS_BASE_URL")
	wsURL := os.Getenv("IRIS_WS_URL")
	if baseURL == "" {
		return fmt.Errorf("IRIS_BASE_URL is required")
	}
	headers := func() map[string]string {
		m := map[string]string{}
		for env, h := range map[string]string{"X_USER_ID": "X-User-Id", "X_USER_EMAIL": "X-User-Email", "X_SESSION_ID": "X-Session-Id"} {
			if v := os.Getenv(env); v != "" {
				m[h] = v
			}
		}
		return m
	}

	client := irisfast.NewClient(baseURL, irisfast.WithHeaderProvider(headers), irisfast.WithTimeout(8*time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cfg, err := client.GetConfig(ctx)
	if err != nil {
		log.Printf("/config error: %v", err)
	} else {
		log.Printf("/config ok: port=%d polling=%d rate=%d endpoint=%s", cfg.Port, cfg.PollingSpeed, cfg.MessageRate, cfg.WebserverEndpoint)
	}
	if sample != "" {
		if out, err := client.Decrypt(ctx, sample); err != nil {
			log.Printf("/decrypt error: %v", err)
		} else {
			log.Printf("/decrypt ok: %q", out)
		}
	}

	if wsURL == "" {
		log.Println("IRIS_WS_URL not set; skipping WS check")
		return nil
	}
	ws := irisfast.NewWebSocket(wsURL, 0, time.Second)
	ws.SetHeaderProvider(headers)
	ws.OnStateChange(func(state irisfast.WebSocketState) { log.Printf("WS state: %s", state) })
	ws.OnMessage(func(msg *irisfast.Message) {
		fmt.Printf("WS msg room=%s from=%s text=%q\n", msg.Room, msg.SenderName(), msg.Msg)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := ws.Connect(cctx); err != nil {
		return fmt.Errorf("WS connect: %w", err)
	}
	time.Sleep(observe)
	return ws.Close(context.Background())
}
