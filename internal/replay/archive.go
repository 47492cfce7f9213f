package replay

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/park285/Cheese-Xiangqi-bot/internal/domain"
    _ "github.com/lib/pq"
)

// Repository archives sealed logs in Postgres so they stay replayable after the live log expires.
type Repository struct {
    db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
    if strings.TrimSpace(databaseURL) == "" {
        return nil, fmt.Errorf("DATABASE_URL is required")
    }
    db, err := sql.Open("postgres", databaseURL)
    if err != nil {
        return nil, err
    }
    db.SetMaxOpenConns(16)
    db.SetMaxIdleConns(8)
    db.SetConnMaxLifetime(30 * time.Minute)
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := db.PingContext(ctx); err != nil {
        _ = db.Close()
        return nil, err
    }
    return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
    if r == nil || r.db == nil { return nil }
    return r.db.Close()
}

const schema = `CREATE TABLE IF NOT EXISTS xiangqi_matches (
    session_id  TEXT PRIMARY KEY,
    mode        TEXT NOT NULL DEFAULT '',
    rules       TEXT NOT NULL DEFAULT '',
    red_id      TEXT NOT NULL,
    red_name    TEXT NOT NULL DEFAULT '',
    black_id    TEXT NOT NULL,
    black_name  TEXT NOT NULL DEFAULT '',
    result      TEXT NOT NULL DEFAULT '',
    reason      TEXT NOT NULL DEFAULT '',
    initial_fen TEXT NOT NULL,
    first_turn  TEXT NOT NULL,
    moves_iccs  JSONB NOT NULL,
    transcript  TEXT NOT NULL DEFAULT '',
    log_json    JSONB NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    ended_at    TIMESTAMPTZ NOT NULL,
    duration_ms BIGINT NOT NULL DEFAULT 0
)`

// EnsureSchema creates the archive table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
    if r == nil || r.db == nil { return nil }
    _, err := r.db.ExecContext(ctx, schema)
    return err
}

// RecordOf flattens a sealed log into its archived form.
func RecordOf(l *Log) (*domain.MatchRecord, error) {
    if l == nil { return nil, ErrNotFound }
    raw, err := json.Marshal(l)
    if err != nil { return nil, err }
    moves := make([]string, 0, len(l.Moves))
    for _, mv := range l.Moves { moves = append(moves, mv.ICCS()) }
    m := l.Meta
    dur := m.EndedAt.Sub(m.StartedAt)
    if dur < 0 { dur = 0 }
    return &domain.MatchRecord{
        SessionID:  m.SessionID,
        Mode:       m.Mode,
        Rules:      m.Rules,
        RedID:      m.RedID,
        RedName:    m.RedName,
        BlackID:    m.BlackID,
        BlackName:  m.BlackName,
        Result:     m.Result,
        Reason:     m.Reason,
        InitialFEN: m.InitialFEN,
        FirstTurn:  string(m.FirstTurn),
        MovesICCS:  moves,
        Transcript: Transcript(l),
        LogJSON:    raw,
        StartedAt:  m.StartedAt,
        EndedAt:    m.EndedAt,
        Duration:   dur,
    }, nil
}

// Save upserts a sealed log.
func (r *Repository) Save(ctx context.Context, l *Log) error {
    if r == nil || r.db == nil || l == nil {
        return nil
    }
    if !l.Meta.Sealed {
        return fmt.Errorf("archive %s: log not sealed", l.Meta.SessionID)
    }
    rec, err := RecordOf(l)
    if err != nil { return err }
    movesRaw, _ := json.Marshal(rec.MovesICCS)

    q := `INSERT INTO xiangqi_matches (
        session_id, mode, rules, red_id, red_name, black_id, black_name,
        result, reason, initial_fen, first_turn, moves_iccs, transcript, log_json,
        started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
      ) ON CONFLICT (session_id) DO UPDATE SET
        result=EXCLUDED.result,
        reason=EXCLUDED.reason,
        moves_iccs=EXCLUDED.moves_iccs,
        transcript=EXCLUDED.transcript,
        log_json=EXCLUDED.log_json,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

    _, err = r.db.ExecContext(ctx, q,
        rec.SessionID, rec.Mode, rec.Rules,
        rec.RedID, rec.RedName, rec.BlackID, rec.BlackName,
        rec.Result, rec.Reason, rec.InitialFEN, rec.FirstTurn,
        string(movesRaw), rec.Transcript, string(rec.LogJSON),
        rec.StartedAt, rec.EndedAt, rec.Duration.Milliseconds(),
    )
    return err
}

// Load returns an archived log, or ErrNotFound.
func (r *Repository) Load(ctx context.Context, sessionID string) (*Log, error) {
    if r == nil || r.db == nil { return nil, ErrNotFound }
    var raw []byte
    err := r.db.QueryRowContext(ctx, `SELECT log_json FROM xiangqi_matches WHERE session_id = $1`, sessionID).Scan(&raw)
    if errors.Is(err, sql.ErrNoRows) { return nil, ErrNotFound }
    if err != nil { return nil, err }
    var l Log
    if err := json.Unmarshal(raw, &l); err != nil { return nil, fmt.Errorf("archive %s: decode: %w", sessionID, err) }
    return &l, nil
}
