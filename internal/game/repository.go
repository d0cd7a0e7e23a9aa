package game

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Repository is the durable side of the collaborator store: a sessions table
// plus an append-only moves log. Single-row semantics only; no multi-row
// transaction is assumed by callers.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// InsertSession writes the session row at pairing time.
func (r *Repository) InsertSession(ctx context.Context, s *Session) error {
	if r == nil || r.db == nil || s == nil {
		return nil
	}
	q := `INSERT INTO sessions (session_id, player1_id, player2_id, current_turn, fen, created_at)
	      VALUES ($1,$2,$3,$4,$5,$6)
	      ON CONFLICT (session_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, q, s.ID, s.Player1.ID, s.Player2.ID, s.CurrentTurn, s.FEN, s.CreatedAt)
	return err
}

// AppendMove records one accepted move and brings the session row up to the
// post-move state. ply is the 1-based move count after the move; the unique
// (session_id, ply) key makes a replayed append a no-op.
func (r *Repository) AppendMove(ctx context.Context, s *Session, rec MoveRecord, ply int) error {
	if r == nil || r.db == nil || s == nil {
		return nil
	}
	q := `INSERT INTO moves (session_id, ply, player_id, color, piece, move_from, move_to, flags, san, played_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	      ON CONFLICT (session_id, ply) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, q,
		s.ID, ply, rec.PlayerID, rec.Color, rec.Piece, rec.From, rec.To, rec.Flags, rec.SAN, rec.PlayedAt,
	); err != nil {
		return err
	}
	u := `UPDATE sessions SET fen = $1, current_turn = $2 WHERE session_id = $3`
	_, err := r.db.ExecContext(ctx, u, s.FEN, s.CurrentTurn, s.ID)
	return err
}
