package metrics

import "sync/atomic"

// Counters are the monotonic match counters read by the external collector.
type Counters struct {
    movesApplied        atomic.Uint64
    waitingRoomsCleaned atomic.Uint64
    disconnectDraws     atomic.Uint64
}

func NewCounters() *Counters { return &Counters{} }

func (c *Counters) IncMovesApplied()        { c.movesApplied.Add(1) }
func (c *Counters) IncWaitingRoomsCleaned() { c.waitingRoomsCleaned.Add(1) }
func (c *Counters) IncDisconnectDraws()     { c.disconnectDraws.Add(1) }

type Snapshot struct {
    MovesApplied        uint64 `json:"moves_applied"`
    WaitingRoomsCleaned uint64 `json:"waiting_rooms_cleaned"`
    DisconnectDraws     uint64 `json:"disconnect_draws"`
}

func (c *Counters) Snapshot() Snapshot {
    return Snapshot{
        MovesApplied:        c.movesApplied.Load(),
        WaitingRoomsCleaned: c.waitingRoomsCleaned.Load(),
        DisconnectDraws:     c.disconnectDraws.Load(),
    }
}
