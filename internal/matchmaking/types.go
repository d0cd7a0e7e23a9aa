package matchmaking

import "time"

// Player is the identity/skill summary carried by join requests and echoed
// back in match notices.
type Player struct {
	ID   string `json:"player_id"`
	Name string `json:"name"`
	Elo  int    `json:"elo"`
}

// Ticket is a queued player awaiting a match. WaitingTime is refreshed on
// every matcher tick; it is never read between ticks.
type Ticket struct {
	Player
	JoinTime    time.Time
	WaitingTime time.Duration
}

// MatchNotice is the long-poll payload delivered to one side of a pairing.
// The zero value doubles as the "unmatched" sentinel on poll timeout.
type MatchNotice struct {
	SessionID     string `json:"session_id"`
	Self          Player `json:"self"`
	Opponent      Player `json:"opponent"`
	IsFirstPlayer bool   `json:"is_first_player"`
}

// Matched reports whether the notice carries a real pairing.
func (n MatchNotice) Matched() bool { return n.SessionID != "" }
