package xqdto

import "time"

type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Room      string `json:"room,omitempty"`
	Side      string `json:"side,omitempty"`
	Connected bool   `json:"connected"`
}

type MoveRecord struct {
	Index    int       `json:"index"`
	Side     string    `json:"side"`
	Piece    string    `json:"piece"`
	ICCS     string    `json:"iccs"`
	Captured string    `json:"captured,omitempty"`
	At       time.Time `json:"at"`
}

// SessionState is the externally visible snapshot of one match.
type SessionState struct {
	ID         string      `json:"id"`
	Mode       string      `json:"mode,omitempty"`
	State      string      `json:"state"`
	Host       string      `json:"host"`
	Private    bool        `json:"private"`
	Players    []Player    `json:"players"`
	Spectators int         `json:"spectators"`
	Turn       string      `json:"turn,omitempty"`
	InCheck    bool        `json:"in_check"`
	FEN        string      `json:"fen"`
	Rules      string      `json:"rules"`
	Seeded     bool        `json:"seeded"`
	MoveCount  int         `json:"move_count"`
	LastMove   *MoveRecord `json:"last_move,omitempty"`
	Result     string      `json:"result,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	StartedAt  time.Time   `json:"started_at,omitempty"`
	EndedAt    time.Time   `json:"ended_at,omitempty"`
}

// PlayerOn returns the participant on side, if any.
func (s *SessionState) PlayerOn(side string) *Player {
	if s == nil {
		return nil
	}
	for i := range s.Players {
		if s.Players[i].Side == side {
			return &s.Players[i]
		}
	}
	return nil
}
