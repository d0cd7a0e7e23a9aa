package gamedto

type PlayerSummary struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Elo      int    `json:"elo"`
}

// MatchedResponse resolves a matchmaking long-poll that found a pairing.
type MatchedResponse struct {
	Status        string        `json:"status"`
	Self          PlayerSummary `json:"self"`
	Opponent      PlayerSummary `json:"opponent"`
	SessionID     string        `json:"session_id"`
	IsFirstPlayer bool          `json:"is_first_player"`
}

// UnmatchedResponse resolves a matchmaking long-poll that timed out.
// JoinTime is unix milliseconds so clients can show accumulated wait.
type UnmatchedResponse struct {
	Status   string `json:"status"`
	JoinTime int64  `json:"join_time"`
}

type MoveResponse struct {
	FEN string `json:"fen"`
}

type ChatMessage struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
