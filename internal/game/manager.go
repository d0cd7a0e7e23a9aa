package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/imzii/Online-Chess-PPT/internal/elo"
	"github.com/imzii/Online-Chess-PPT/internal/obslog"
)

// applyRetries bounds WATCH retries when two moves race on one session.
const applyRetries = 3

// Manager owns the session state machine. Live state lives in Redis as JSON
// blobs; move application is a WATCH-guarded read-modify-write so concurrent
// moves on the same session cannot interleave. An optional Repository adds a
// durable session row and append-only move log.
type Manager struct {
	rdb  *redis.Client
	repo recorder
}

// recorder is the durable-store slice the manager writes through. Writes
// happen outside the WATCH transaction and never gate a move.
type recorder interface {
	InsertSession(ctx context.Context, s *Session) error
	AppendMove(ctx context.Context, s *Session, rec MoveRecord, ply int) error
}

func NewManager(redisURL string) (*Manager, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for session manager")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Manager{rdb: rdb}, nil
}

func (m *Manager) Close() error {
	if m == nil || m.rdb == nil {
		return nil
	}
	return m.rdb.Close()
}

// AttachRepository wires the durable store. Without one the manager runs on
// Redis alone (dev mode).
func (m *Manager) AttachRepository(r *Repository) {
	if m != nil && r != nil {
		m.repo = r
	}
}

// Ping reports store liveness for the health endpoint.
func (m *Manager) Ping(ctx context.Context) error {
	return m.rdb.Ping(ctx).Err()
}

// Create starts a session between p1 and p2 with firstTurn to move, at the
// rules engine's starting position. The durable session row is written off
// this goroutine so a slow database never stalls the matcher tick.
func (m *Manager) Create(ctx context.Context, p1, p2 Participant, firstTurn string) (*Session, error) {
	now := time.Now()
	s := &Session{
		ID:          uuid.NewString(),
		Player1:     p1,
		Player2:     p2,
		CurrentTurn: firstTurn,
		FEN:         startingFEN(),
		Moves:       []MoveRecord{},
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.save(ctx, s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	obslog.L().Info("session_create",
		zap.String("session_id", s.ID),
		zap.String("player1", p1.ID),
		zap.String("player2", p2.ID),
		zap.String("first_turn", firstTurn),
	)
	if m.repo != nil {
		snapshot := *s
		go func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.repo.InsertSession(dctx, &snapshot); err != nil {
				obslog.L().Error("session_row_insert_failed", zap.String("session_id", snapshot.ID), zap.Error(err))
			}
		}()
	}
	return s, nil
}

// Get loads a session or fails with ErrSessionNotFound.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := m.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Participants returns both sides of the session, relay-facing.
func (m *Manager) Participants(ctx context.Context, id string) ([]Participant, error) {
	s, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return []Participant{s.Player1, s.Player2}, nil
}

// LegalMoves lists the rules engine's legal moves originating from square.
// An out-of-board square yields an empty list, matching the engine's own
// behavior for squares with nothing to move.
func (m *Manager) LegalMoves(ctx context.Context, id, square string) ([]LegalMove, error) {
	s, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sq, ok := parseSquare(square)
	if !ok {
		return []LegalMove{}, nil
	}
	g, err := gameFromFEN(s.FEN)
	if err != nil {
		return nil, fmt.Errorf("restore position: %w", err)
	}
	pos := g.Position()
	out := []LegalMove{}
	for _, mv := range g.ValidMoves() {
		if mv.S1() != sq {
			continue
		}
		out = append(out, describeMove(pos, &mv))
	}
	return out, nil
}

// ApplyMove validates and applies a SAN move for playerID. On success the
// position advances, the turn flips to the other participant, and exactly one
// move record is appended — to the session and, when a repository is
// attached, to the durable move log. Any failure leaves the session
// untouched.
//
// The turn-ownership check was disabled in the service this replaces; it is
// enforced here because strict alternation is the invariant everything else
// leans on.
func (m *Manager) ApplyMove(ctx context.Context, sessionID, playerID, san string) (*Session, error) {
	key := sessionKey(sessionID)
	var updated *Session

	apply := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		var cur Session
		if err := json.Unmarshal(raw, &cur); err != nil {
			return err
		}
		if cur.Player1.ID != playerID && cur.Player2.ID != playerID {
			return ErrNotParticipant
		}
		if cur.Status != StatusActive {
			return ErrIllegalMove
		}
		if cur.CurrentTurn != playerID {
			return ErrNotYourTurn
		}

		g, err := gameFromFEN(cur.FEN)
		if err != nil {
			return fmt.Errorf("restore position: %w", err)
		}
		pos := g.Position()
		if err := g.PushNotationMove(strings.TrimSpace(san), nchess.AlgebraicNotation{}, nil); err != nil {
			return ErrIllegalMove
		}
		mv := lastMove(g)
		if mv == nil {
			return ErrIllegalMove
		}

		desc := describeMove(pos, mv)
		rec := MoveRecord{
			PlayerID: playerID,
			Color:    desc.Color,
			Piece:    desc.Piece,
			From:     desc.From,
			To:       desc.To,
			Flags:    desc.Flags,
			SAN:      desc.SAN,
			PlayedAt: time.Now(),
		}

		cur.FEN = g.FEN()
		cur.CurrentTurn = otherParticipant(&cur, playerID)
		cur.Moves = append(cur.Moves, rec)
		cur.UpdatedAt = rec.PlayedAt
		switch g.Outcome() {
		case nchess.WhiteWon, nchess.BlackWon:
			cur.Status = StatusFinished
			settleRatings(&cur, playerID)
		case nchess.Draw:
			cur.Status = StatusDraw
			settleRatings(&cur, "")
		}

		pipe := tx.TxPipeline()
		newRaw, _ := json.Marshal(&cur)
		pipe.Set(ctx, key, newRaw, 0)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		updated = &cur
		return nil
	}

	var err error
	for attempt := 0; attempt < applyRetries; attempt++ {
		err = m.rdb.Watch(ctx, apply, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if errors.Is(err, redis.TxFailedErr) {
		return nil, fmt.Errorf("%w: concurrent update", ErrStoreUnavailable)
	}
	if err != nil {
		return nil, err
	}

	// durable append only after the live commit: a WATCH retry must never
	// replay the insert. The ply index plus ON CONFLICT keeps the moves log
	// duplicate-free even if it does run twice.
	if m.repo != nil {
		rec := updated.Moves[len(updated.Moves)-1]
		if err := m.repo.AppendMove(ctx, updated, rec, len(updated.Moves)); err != nil {
			obslog.L().Error("move_row_append_failed",
				zap.String("session_id", updated.ID),
				zap.Int("ply", len(updated.Moves)),
				zap.Error(err),
			)
		}
	}

	obslog.L().Info("session_move",
		zap.String("session_id", updated.ID),
		zap.String("player_id", playerID),
		zap.String("san", updated.Moves[len(updated.Moves)-1].SAN),
		zap.String("next_turn", updated.CurrentTurn),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}

// settleRatings folds the game result into both participants' stored
// ratings. winnerID is the player whose move ended the game, or empty for a
// draw. The session blob carries the post-game ratings; the ratings a future
// join advertises are the client's concern.
func settleRatings(s *Session, winnerID string) {
	score := 0.5
	switch winnerID {
	case s.Player1.ID:
		score = 1
	case s.Player2.ID:
		score = 0
	}
	r1, r2 := elo.Update(float64(s.Player1.Elo), float64(s.Player2.Elo), score, elo.DefaultK)
	s.Player1.Elo = int(math.Round(r1))
	s.Player2.Elo = int(math.Round(r2))
}

func otherParticipant(s *Session, playerID string) string {
	if s.Player1.ID == playerID {
		return s.Player2.ID
	}
	return s.Player1.ID
}

func (m *Manager) save(ctx context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return m.rdb.Set(ctx, sessionKey(s.ID), raw, 0).Err()
}

func sessionKey(id string) string { return "arena:session:" + strings.TrimSpace(id) }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
