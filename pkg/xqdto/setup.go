package xqdto

type ValidationItem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	X       *int   `json:"x,omitempty"`
	Y       *int   `json:"y,omitempty"`
}

type ValidationResult struct {
	Valid  bool             `json:"valid"`
	Errors []ValidationItem `json:"errors"`
}

type RulesInfo struct {
	Name      string   `json:"name"`
	Overlays  []string `json:"overlays,omitempty"`
	Flags     []string `json:"flags,omitempty"`
	RuleCount int      `json:"rule_count"`
	Available []string `json:"available"`
}

type ReplayInfo struct {
	SessionID  string       `json:"session_id"`
	Started    bool         `json:"started"`
	FEN        string       `json:"fen,omitempty"`
	Moves      []MoveRecord `json:"moves,omitempty"`
	Transcript string       `json:"transcript,omitempty"`
	Result     string       `json:"result,omitempty"`
	Reason     string       `json:"reason,omitempty"`
}

type Counters struct {
	MovesApplied        uint64 `json:"moves_applied"`
	WaitingRoomsCleaned uint64 `json:"waiting_rooms_cleaned"`
	DisconnectDraws     uint64 `json:"disconnect_draws"`
}
