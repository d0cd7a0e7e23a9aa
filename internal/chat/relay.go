// Package chat relays in-session messages over long-poll registrations.
// Delivery is fire-and-forget: a participant with no pending poll at send
// time simply misses the message. No backlog, no ordering beyond arrival.
package chat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/imzii/Online-Chess-PPT/internal/game"
	"github.com/imzii/Online-Chess-PPT/internal/longpoll"
	"github.com/imzii/Online-Chess-PPT/internal/obslog"
)

// Message is the chat long-poll payload. The zero value is the "no message"
// sentinel a poll resolves to on timeout.
type Message struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// SessionDirectory is the slice of the session manager the relay needs.
type SessionDirectory interface {
	Participants(ctx context.Context, sessionID string) ([]game.Participant, error)
}

type Relay struct {
	sessions SessionDirectory
	hub      *longpoll.Hub[Message]
	timeout  time.Duration
}

func NewRelay(sessions SessionDirectory, timeout time.Duration) *Relay {
	return &Relay{sessions: sessions, hub: longpoll.NewHub[Message](), timeout: timeout}
}

// Connect registers a chat poll for playerID in sessionID, replacing any
// prior one (a re-polling client supersedes its stale request). The returned
// channel yields one Message or the sentinel on timeout.
func (r *Relay) Connect(ctx context.Context, sessionID, playerID string) (<-chan Message, error) {
	ps, err := r.sessions.Participants(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !contains(ps, playerID) {
		return nil, game.ErrNotParticipant
	}
	return r.hub.Register(chatKey(sessionID, playerID), r.timeout), nil
}

// Send fans the message out to every participant with a live poll, the
// sender included. Returns how many polls were resolved.
func (r *Relay) Send(ctx context.Context, sessionID, from, message string) (int, error) {
	ps, err := r.sessions.Participants(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for _, p := range ps {
		if r.hub.Signal(chatKey(sessionID, p.ID), Message{From: from, Message: message}) {
			delivered++
		}
	}
	obslog.L().Info("chat_send",
		zap.String("session_id", sessionID),
		zap.String("from", from),
		zap.Int("delivered", delivered),
	)
	return delivered, nil
}

func contains(ps []game.Participant, id string) bool {
	for _, p := range ps {
		if p.ID == id {
			return true
		}
	}
	return false
}

func chatKey(sessionID, playerID string) string { return sessionID + "|" + playerID }
