package domain

import "time"

// MatchRecord is an archived, finished match.
type MatchRecord struct {
	SessionID  string
	Mode       string
	Rules      string
	RedID      string
	RedName    string
	BlackID    string
	BlackName  string
	Result     string
	Reason     string
	InitialFEN string
	FirstTurn  string
	MovesICCS  []string
	Transcript string
	LogJSON    []byte
	StartedAt  time.Time
	EndedAt    time.Time
	Duration   time.Duration
}
