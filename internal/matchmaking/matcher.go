package matchmaking

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/imzii/Online-Chess-PPT/internal/longpoll"
	"github.com/imzii/Online-Chess-PPT/internal/obslog"
)

// StartFunc creates a game session for a pairing. first is the player who
// moves first; the returned id is handed to both clients.
type StartFunc func(ctx context.Context, first, second Player) (sessionID string, err error)

// Matcher drives the periodic pairing pass over the queue and resolves the
// paired players' pending long-poll registrations.
type Matcher struct {
	queue *Queue
	hub   *longpoll.Hub[MatchNotice]
	start StartFunc

	interval     time.Duration
	maxEloDiff   int
	tightenAfter time.Duration
}

func NewMatcher(q *Queue, hub *longpoll.Hub[MatchNotice], start StartFunc, interval time.Duration, maxEloDiff int, tightenAfter time.Duration) *Matcher {
	return &Matcher{
		queue:        q,
		hub:          hub,
		start:        start,
		interval:     interval,
		maxEloDiff:   maxEloDiff,
		tightenAfter: tightenAfter,
	}
}

// Run ticks until ctx is cancelled. Pairing is synchronous in-memory work;
// nothing in a tick waits on the database, so the cadence holds under load.
func (m *Matcher) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.tick(ctx, now)
		}
	}
}

func (m *Matcher) tick(ctx context.Context, now time.Time) {
	if m.queue.Len() < 2 {
		return
	}
	t1, t2, ok := m.queue.Pair(now, m.maxEloDiff, m.tightenAfter)
	if !ok {
		return
	}

	// a ticket without a live poll cannot be told about its match; starting
	// a session anyway would strand an unaware player in it. Requeue and let
	// the next tick retry (a timed-out poll withdraws its ticket itself).
	if !m.hub.Live(t1.ID) || !m.hub.Live(t2.ID) {
		obslog.L().Warn("match_deferred_no_poll",
			zap.String("player1", t1.ID),
			zap.String("player2", t2.ID),
		)
		m.queue.Restore(t1)
		m.queue.Restore(t2)
		return
	}

	// the lower-rated player moves first; on equal ratings the longest
	// waiter (the pairing head) keeps the first move
	first, second := t1, t2
	if t1.Elo > t2.Elo {
		first, second = t2, t1
	}

	sessionID, err := m.start(ctx, first.Player, second.Player)
	if err != nil {
		// leave both players queued with their accumulated wait; they pair
		// again next tick or poll out unmatched
		obslog.L().Error("match_start_failed",
			zap.String("player1", t1.ID),
			zap.String("player2", t2.ID),
			zap.Error(err),
		)
		m.queue.Restore(t1)
		m.queue.Restore(t2)
		return
	}

	obslog.L().Info("match_paired",
		zap.String("session_id", sessionID),
		zap.String("player1", t1.ID),
		zap.Int("elo1", t1.Elo),
		zap.String("player2", t2.ID),
		zap.Int("elo2", t2.Elo),
		zap.Duration("head_wait", t1.WaitingTime),
	)

	m.hub.Signal(t1.ID, MatchNotice{
		SessionID:     sessionID,
		Self:          t1.Player,
		Opponent:      t2.Player,
		IsFirstPlayer: t1.Elo < t2.Elo,
	})
	m.hub.Signal(t2.ID, MatchNotice{
		SessionID:     sessionID,
		Self:          t2.Player,
		Opponent:      t1.Player,
		IsFirstPlayer: t2.Elo < t1.Elo,
	})
}
