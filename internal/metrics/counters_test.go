package metrics

import (
    "sync"
    "testing"
)

func TestCounters_ConcurrentIncrements(t *testing.T) {
    c := NewCounters()
    var wg sync.WaitGroup
    for i := 0; i < 8; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            for j := 0; j < 100; j++ { c.IncMovesApplied() }
            c.IncWaitingRoomsCleaned()
        }()
    }
    wg.Wait()
    c.IncDisconnectDraws()
    got := c.Snapshot()
    if got != (Snapshot{MovesApplied: 800, WaitingRoomsCleaned: 8, DisconnectDraws: 1}) { t.Fatalf("snapshot=%+v", got) }
}
