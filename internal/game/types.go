package game

import "time"

// Status represents the session lifecycle. Sessions stay in the store after
// they finish; only the state machine stops accepting moves.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusFinished Status = "FINISHED"
	StatusDraw     Status = "DRAW"
)

// Participant is one side of a session, captured at pairing time.
type Participant struct {
	ID   string `json:"player_id"`
	Name string `json:"name"`
	Elo  int    `json:"elo"`
}

// MoveRecord is one accepted move, append-only.
type MoveRecord struct {
	PlayerID string    `json:"player_id"`
	Color    string    `json:"color"`
	Piece    string    `json:"piece"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Flags    string    `json:"flags"`
	SAN      string    `json:"san"`
	PlayedAt time.Time `json:"played_at"`
}

// Session is the live two-player game state, stored as JSON in Redis.
// CurrentTurn always names exactly one of the two participants and flips
// strictly after each accepted move.
type Session struct {
	ID          string       `json:"id"`
	Player1     Participant  `json:"player1"`
	Player2     Participant  `json:"player2"`
	CurrentTurn string       `json:"current_turn"`
	FEN         string       `json:"fen"`
	Moves       []MoveRecord `json:"moves"`
	Status      Status       `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// LegalMove is the verbose move descriptor returned by the move query.
type LegalMove struct {
	Color string `json:"color"`
	Piece string `json:"piece"`
	From  string `json:"from"`
	To    string `json:"to"`
	Flags string `json:"flags"`
	SAN   string `json:"san"`
}

var (
	ErrSessionNotFound  = errf("session not found")
	ErrIllegalMove      = errf("illegal move")
	ErrNotYourTurn      = errf("not your turn")
	ErrNotParticipant   = errf("player not in session")
	ErrStoreUnavailable = errf("session store unavailable")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
