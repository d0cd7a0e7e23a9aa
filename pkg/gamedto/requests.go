// Package gamedto holds the JSON shapes of the HTTP surface.
package gamedto

type JoinRequest struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Elo      int    `json:"elo"`
}

type MovesRequest struct {
	PlayerID string `json:"player_id"`
	Square   string `json:"square"`
}

type MoveRequest struct {
	PlayerID string `json:"player_id"`
	SAN      string `json:"san"`
}

type ChatConnectRequest struct {
	PlayerID string `json:"player_id"`
}

type ChatSendRequest struct {
	PlayerID string `json:"player_id"`
	Message  string `json:"message"`
}
