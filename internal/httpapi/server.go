// Package httpapi exposes the arena over plain request/response JSON. Two of
// the handlers (matchmaking join, chat connect) are long polls: they hold the
// request until a hub signal or the configured timeout resolves it. fasthttp
// runs each request on its own goroutine, so the hold blocks nobody else.
package httpapi

import (
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/imzii/Online-Chess-PPT/internal/chat"
	"github.com/imzii/Online-Chess-PPT/internal/game"
	"github.com/imzii/Online-Chess-PPT/internal/longpoll"
	"github.com/imzii/Online-Chess-PPT/internal/matchmaking"
	"github.com/imzii/Online-Chess-PPT/internal/obslog"
	"github.com/imzii/Online-Chess-PPT/pkg/gamedto"
)

type Server struct {
	queue       *matchmaking.Queue
	matchHub    *longpoll.Hub[matchmaking.MatchNotice]
	games       *game.Manager
	relay       *chat.Relay
	pollTimeout time.Duration

	srv *fasthttp.Server
}

func New(queue *matchmaking.Queue, matchHub *longpoll.Hub[matchmaking.MatchNotice], games *game.Manager, relay *chat.Relay, pollTimeout time.Duration) *Server {
	return &Server{
		queue:       queue,
		matchHub:    matchHub,
		games:       games,
		relay:       relay,
		pollTimeout: pollTimeout,
	}
}

func (s *Server) ListenAndServe(addr string) error {
	s.srv = &fasthttp.Server{
		Handler: s.Handler,
		Name:    "chess-arena",
		// long polls hold requests for pollTimeout; keep read/write limits
		// comfortably above it
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	obslog.L().Info("http_listen", zap.String("addr", addr))
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Shutdown() error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown()
}

// Handler is the root route switch. Paths follow the original client
// contract: /matchmaking plus /game/{id}/{action}.
func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	switch {
	case path == "/healthz" && ctx.IsGet():
		s.handleHealth(ctx)
	case path == "/matchmaking" && ctx.IsPost():
		s.handleJoin(ctx)
	case strings.HasPrefix(path, "/game/") && ctx.IsPost():
		s.handleGame(ctx, strings.TrimPrefix(path, "/game/"))
	default:
		writeError(ctx, fasthttp.StatusNotFound, "not found")
	}
}

func (s *Server) handleGame(ctx *fasthttp.RequestCtx, rest string) {
	idx := strings.IndexByte(rest, '/')
	if idx <= 0 {
		writeError(ctx, fasthttp.StatusNotFound, "not found")
		return
	}
	sessionID, action := rest[:idx], rest[idx+1:]
	switch action {
	case "moves":
		s.handleMoves(ctx, sessionID)
	case "move":
		s.handleMove(ctx, sessionID)
	case "chatting/connect":
		s.handleChatConnect(ctx, sessionID)
	case "chatting/chat":
		s.handleChatSend(ctx, sessionID)
	default:
		writeError(ctx, fasthttp.StatusNotFound, "not found")
	}
}

func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	if err := s.games.Ping(ctx); err != nil {
		writeError(ctx, fasthttp.StatusServiceUnavailable, "store unreachable")
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, gamedto.HealthResponse{Status: "ok"})
}

// handleJoin enqueues the player (idempotently) and holds the request until
// the matcher signals a pairing or the poll times out. On timeout the ticket
// is withdrawn, mirroring the client's own give-up.
func (s *Server) handleJoin(ctx *fasthttp.RequestCtx) {
	var req gamedto.JoinRequest
	if !readJSON(ctx, &req) {
		return
	}
	if strings.TrimSpace(req.PlayerID) == "" {
		writeError(ctx, fasthttp.StatusBadRequest, "player_id required")
		return
	}

	now := time.Now()
	player := matchmaking.Player{ID: req.PlayerID, Name: req.Name, Elo: req.Elo}

	// register before enqueueing: once the ticket is visible to a matcher
	// tick the poll must already be live, or the match signal is dropped
	// and the client resolves unmatched against a session that exists.
	// A re-poll supersedes its stale registration while the single ticket
	// stays put.
	ch := s.matchHub.Register(req.PlayerID, s.pollTimeout)
	s.queue.Join(player, now)

	notice := <-ch
	if notice.Matched() {
		writeJSON(ctx, fasthttp.StatusOK, gamedto.MatchedResponse{
			Status:        "matched",
			Self:          summaryOf(notice.Self),
			Opponent:      summaryOf(notice.Opponent),
			SessionID:     notice.SessionID,
			IsFirstPlayer: notice.IsFirstPlayer,
		})
		return
	}
	s.queue.RemoveIfPresent(req.PlayerID)
	writeJSON(ctx, fasthttp.StatusOK, gamedto.UnmatchedResponse{
		Status:   "unmatched",
		JoinTime: now.UnixMilli(),
	})
}

func (s *Server) handleMoves(ctx *fasthttp.RequestCtx, sessionID string) {
	var req gamedto.MovesRequest
	if !readJSON(ctx, &req) {
		return
	}
	moves, err := s.games.LegalMoves(ctx, sessionID, req.Square)
	if err != nil {
		writeDomainError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, moves)
}

func (s *Server) handleMove(ctx *fasthttp.RequestCtx, sessionID string) {
	var req gamedto.MoveRequest
	if !readJSON(ctx, &req) {
		return
	}
	updated, err := s.games.ApplyMove(ctx, sessionID, req.PlayerID, req.SAN)
	if err != nil {
		writeDomainError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, gamedto.MoveResponse{FEN: updated.FEN})
}

func (s *Server) handleChatConnect(ctx *fasthttp.RequestCtx, sessionID string) {
	var req gamedto.ChatConnectRequest
	if !readJSON(ctx, &req) {
		return
	}
	ch, err := s.relay.Connect(ctx, sessionID, req.PlayerID)
	if err != nil {
		writeDomainError(ctx, err)
		return
	}
	msg := <-ch
	writeJSON(ctx, fasthttp.StatusOK, gamedto.ChatMessage{From: msg.From, Message: msg.Message})
}

func (s *Server) handleChatSend(ctx *fasthttp.RequestCtx, sessionID string) {
	var req gamedto.ChatSendRequest
	if !readJSON(ctx, &req) {
		return
	}
	if _, err := s.relay.Send(ctx, sessionID, req.PlayerID, req.Message); err != nil {
		writeDomainError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, struct{}{})
}

func summaryOf(p matchmaking.Player) gamedto.PlayerSummary {
	return gamedto.PlayerSummary{PlayerID: p.ID, Name: p.Name, Elo: p.Elo}
}
