package replay

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"
)

const defaultTTL = 24 * time.Hour

// RedisStore keeps logs as a JSON meta key plus RPUSH lists of moves and snapshots.
type RedisStore struct {
    rdb *redis.Client
    ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
    if ttl <= 0 { ttl = defaultTTL }
    return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) keyMeta(id string) string  { return "xq:replay:" + strings.TrimSpace(id) }
func (s *RedisStore) keyMoves(id string) string { return s.keyMeta(id) + ":moves" }
func (s *RedisStore) keySnaps(id string) string { return s.keyMeta(id) + ":snaps" }

func (s *RedisStore) Begin(ctx context.Context, meta Meta) error {
    meta.Sealed = false
    raw, err := json.Marshal(meta)
    if err != nil { return err }
    ok, err := s.rdb.SetNX(ctx, s.keyMeta(meta.SessionID), raw, s.ttl).Result()
    if err != nil { return fmt.Errorf("replay begin: %w", err) }
    if !ok { return ErrExists }
    return nil
}

type getter interface {
    Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) loadMeta(ctx context.Context, c getter, id string) (*Meta, error) {
    raw, err := c.Get(ctx, s.keyMeta(id)).Bytes()
    if errors.Is(err, redis.Nil) { return nil, ErrNotFound }
    if err != nil { return nil, err }
    var m Meta
    if err := json.Unmarshal(raw, &m); err != nil { return nil, err }
    return &m, nil
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, mv Move) error {
    raw, err := json.Marshal(mv)
    if err != nil { return err }
    metaKey, movesKey := s.keyMeta(sessionID), s.keyMoves(sessionID)
    return s.rdb.Watch(ctx, func(tx *redis.Tx) error {
        meta, err := s.loadMeta(ctx, tx, sessionID)
        if err != nil { return err }
        if meta.Sealed { return ErrSealed }
        n, err := tx.LLen(ctx, movesKey).Result()
        if err != nil { return err }
        if int64(mv.Index) != n { return ErrOutOfOrder }
        _, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
            pipe.RPush(ctx, movesKey, raw)
            pipe.Expire(ctx, movesKey, s.ttl)
            pipe.Expire(ctx, metaKey, s.ttl)
            return nil
        })
        return err
    }, metaKey, movesKey)
}

func (s *RedisStore) Snapshot(ctx context.Context, sessionID string, snap Snapshot) error {
    raw, err := json.Marshal(snap)
    if err != nil { return err }
    metaKey, snapsKey := s.keyMeta(sessionID), s.keySnaps(sessionID)
    return s.rdb.Watch(ctx, func(tx *redis.Tx) error {
        meta, err := s.loadMeta(ctx, tx, sessionID)
        if err != nil { return err }
        if meta.Sealed { return ErrSealed }
        _, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
            pipe.RPush(ctx, snapsKey, raw)
            pipe.Expire(ctx, snapsKey, s.ttl)
            return nil
        })
        return err
    }, metaKey)
}

func (s *RedisStore) Seal(ctx context.Context, sessionID, result, reason string, at time.Time) (*Log, error) {
    metaKey := s.keyMeta(sessionID)
    err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
        meta, err := s.loadMeta(ctx, tx, sessionID)
        if err != nil { return err }
        if meta.Sealed { return ErrSealed }
        meta.Sealed = true
        meta.Result = result
        meta.Reason = reason
        meta.EndedAt = at
        raw, err := json.Marshal(meta)
        if err != nil { return err }
        _, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
            pipe.Set(ctx, metaKey, raw, s.ttl)
            pipe.Expire(ctx, s.keyMoves(sessionID), s.ttl)
            pipe.Expire(ctx, s.keySnaps(sessionID), s.ttl)
            return nil
        })
        return err
    }, metaKey)
    if err != nil { return nil, err }
    return s.Load(ctx, sessionID)
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*Log, error) {
    meta, err := s.loadMeta(ctx, s.rdb, sessionID)
    if err != nil { return nil, err }
    l := &Log{Meta: *meta, Moves: []Move{}}
    rawMoves, err := s.rdb.LRange(ctx, s.keyMoves(sessionID), 0, -1).Result()
    if err != nil { return nil, err }
    for _, r := range rawMoves {
        var mv Move
        if err := json.Unmarshal([]byte(r), &mv); err != nil { return nil, fmt.Errorf("replay %s: decode move: %w", sessionID, err) }
        l.Moves = append(l.Moves, mv)
    }
    rawSnaps, err := s.rdb.LRange(ctx, s.keySnaps(sessionID), 0, -1).Result()
    if err != nil { return nil, err }
    for _, r := range rawSnaps {
        var sn Snapshot
        if err := json.Unmarshal([]byte(r), &sn); err != nil { return nil, fmt.Errorf("replay %s: decode snapshot: %w", sessionID, err) }
        l.Snapshots = append(l.Snapshots, sn)
    }
    return l, nil
}
