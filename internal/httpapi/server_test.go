package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/valyala/fasthttp"

	"github.com/imzii/Online-Chess-PPT/internal/chat"
	"github.com/imzii/Online-Chess-PPT/internal/game"
	"github.com/imzii/Online-Chess-PPT/internal/longpoll"
	"github.com/imzii/Online-Chess-PPT/internal/matchmaking"
	"github.com/imzii/Online-Chess-PPT/pkg/gamedto"
)

func newTestServer(t *testing.T, pollTimeout time.Duration) (*Server, *game.Manager, *matchmaking.Queue, *longpoll.Hub[matchmaking.MatchNotice]) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	m, err := game.NewManager(fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	queue := matchmaking.NewQueue()
	hub := longpoll.NewHub[matchmaking.MatchNotice]()
	relay := chat.NewRelay(m, pollTimeout)
	return New(queue, hub, m, relay, pollTimeout), m, queue, hub
}

func doRequest(t *testing.T, s *Server, method, path, body string) *fasthttp.RequestCtx {
	t.Helper()
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI("http://test" + path)
	if body != "" {
		req.Header.SetContentType("application/json")
		req.SetBodyString(body)
	}
	rctx := &fasthttp.RequestCtx{}
	rctx.Init(&req, nil, nil)
	s.Handler(rctx)
	return rctx
}

func decodeBody(t *testing.T, rctx *fasthttp.RequestCtx, dst any) {
	t.Helper()
	if err := json.Unmarshal(rctx.Response.Body(), dst); err != nil {
		t.Fatalf("decode %q: %v", rctx.Response.Body(), err)
	}
}

func newTestGame(t *testing.T, m *game.Manager) *game.Session {
	t.Helper()
	s, err := m.Create(context.Background(),
		game.Participant{ID: "alice", Name: "Alice", Elo: 1200},
		game.Participant{ID: "bob", Name: "Bob", Elo: 1350},
		"alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return s
}

func TestUnknownRouteIs404(t *testing.T) {
	s, _, _, _ := newTestServer(t, 50*time.Millisecond)
	for _, req := range []struct{ method, path string }{
		{"GET", "/nope"},
		{"POST", "/game/abc/teleport"},
		{"GET", "/matchmaking"}, // wrong verb
	} {
		rctx := doRequest(t, s, req.method, req.path, "")
		if rctx.Response.StatusCode() != fasthttp.StatusNotFound {
			t.Fatalf("%s %s: status = %d, want 404", req.method, req.path, rctx.Response.StatusCode())
		}
	}
}

func TestHealthz(t *testing.T) {
	s, _, _, _ := newTestServer(t, 50*time.Millisecond)
	rctx := doRequest(t, s, "GET", "/healthz", "")
	if rctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d, want 200", rctx.Response.StatusCode())
	}
	var resp gamedto.HealthResponse
	decodeBody(t, rctx, &resp)
	if resp.Status != "ok" {
		t.Fatalf("status field = %q, want ok", resp.Status)
	}
}

func TestMovesEndpoint(t *testing.T) {
	s, m, _, _ := newTestServer(t, 50*time.Millisecond)
	sess := newTestGame(t, m)

	rctx := doRequest(t, s, "POST", "/game/"+sess.ID+"/moves",
		`{"player_id":"alice","square":"e2"}`)
	if rctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d, body %s", rctx.Response.StatusCode(), rctx.Response.Body())
	}
	var moves []game.LegalMove
	decodeBody(t, rctx, &moves)
	if len(moves) != 2 {
		t.Fatalf("e2 moves = %d, want 2", len(moves))
	}

	rctx = doRequest(t, s, "POST", "/game/missing/moves", `{"player_id":"alice","square":"e2"}`)
	if rctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("unknown session status = %d, want 404", rctx.Response.StatusCode())
	}
}

func TestMoveEndpoint(t *testing.T) {
	s, m, _, _ := newTestServer(t, 50*time.Millisecond)
	sess := newTestGame(t, m)
	path := "/game/" + sess.ID + "/move"

	rctx := doRequest(t, s, "POST", path, `{"player_id":"bob","san":"e5"}`)
	if rctx.Response.StatusCode() != fasthttp.StatusForbidden {
		t.Fatalf("out-of-turn status = %d, want 403", rctx.Response.StatusCode())
	}

	rctx = doRequest(t, s, "POST", path, `{"player_id":"alice","san":"Ke2"}`)
	if rctx.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("illegal move status = %d, want 400", rctx.Response.StatusCode())
	}

	rctx = doRequest(t, s, "POST", path, `{"player_id":"alice","san":"e4"}`)
	if rctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d, body %s", rctx.Response.StatusCode(), rctx.Response.Body())
	}
	var resp gamedto.MoveResponse
	decodeBody(t, rctx, &resp)
	if resp.FEN == "" || resp.FEN == sess.FEN {
		t.Fatalf("fen not advanced: %q", resp.FEN)
	}

	rctx = doRequest(t, s, "POST", path, `not json`)
	if rctx.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("bad body status = %d, want 400", rctx.Response.StatusCode())
	}
}

func TestJoinTimesOutUnmatchedAndWithdraws(t *testing.T) {
	s, _, queue, _ := newTestServer(t, 30*time.Millisecond)
	rctx := doRequest(t, s, "POST", "/matchmaking",
		`{"player_id":"solo","name":"Solo","elo":1000}`)
	if rctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d", rctx.Response.StatusCode())
	}
	var resp gamedto.UnmatchedResponse
	decodeBody(t, rctx, &resp)
	if resp.Status != "unmatched" {
		t.Fatalf("status field = %q, want unmatched", resp.Status)
	}
	if resp.JoinTime == 0 {
		t.Fatalf("join_time missing")
	}
	if queue.Len() != 0 {
		t.Fatalf("ticket not withdrawn, queue len = %d", queue.Len())
	}
}

func TestJoinRejectsEmptyPlayerID(t *testing.T) {
	s, _, _, _ := newTestServer(t, 30*time.Millisecond)
	rctx := doRequest(t, s, "POST", "/matchmaking", `{"player_id":"  ","elo":1000}`)
	if rctx.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rctx.Response.StatusCode())
	}
}

func TestJoinMatchesTwoPlayers(t *testing.T) {
	s, m, queue, hub := newTestServer(t, 2*time.Second)

	start := func(ctx context.Context, first, second matchmaking.Player) (string, error) {
		sess, err := m.Create(ctx,
			game.Participant{ID: first.ID, Name: first.Name, Elo: first.Elo},
			game.Participant{ID: second.ID, Name: second.Name, Elo: second.Elo},
			first.ID)
		if err != nil {
			return "", err
		}
		return sess.ID, nil
	}
	matcher := matchmaking.NewMatcher(queue, hub, start, 20*time.Millisecond, 200, 5*time.Minute)

	responses := make(map[string]*fasthttp.RequestCtx, 2)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, body := range []string{
		`{"player_id":"low","name":"Low","elo":1000}`,
		`{"player_id":"high","name":"High","elo":1100}`,
	} {
		wg.Add(1)
		go func(body string) {
			defer wg.Done()
			rctx := doRequest(t, s, "POST", "/matchmaking", body)
			mu.Lock()
			responses[body] = rctx
			mu.Unlock()
		}(body)
	}

	// let both polls register before the first pairing tick
	deadline := time.Now().Add(time.Second)
	for queue.Len() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("players never enqueued")
		}
		time.Sleep(time.Millisecond)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go matcher.Run(ctx)
	wg.Wait()

	var low, high gamedto.MatchedResponse
	for key, rctx := range responses {
		var resp gamedto.MatchedResponse
		decodeBody(t, rctx, &resp)
		if resp.Status != "matched" {
			t.Fatalf("response %q not matched: %s", key, rctx.Response.Body())
		}
		switch resp.Self.PlayerID {
		case "low":
			low = resp
		case "high":
			high = resp
		default:
			t.Fatalf("unexpected self %q", resp.Self.PlayerID)
		}
	}
	if low.SessionID == "" || low.SessionID != high.SessionID {
		t.Fatalf("session ids differ: %q vs %q", low.SessionID, high.SessionID)
	}
	if !low.IsFirstPlayer || high.IsFirstPlayer {
		t.Fatalf("is_first_player: low=%v high=%v", low.IsFirstPlayer, high.IsFirstPlayer)
	}
	if low.Opponent.PlayerID != "high" || high.Opponent.PlayerID != "low" {
		t.Fatalf("opponents misrouted: %+v / %+v", low.Opponent, high.Opponent)
	}

	sess, err := m.Get(context.Background(), low.SessionID)
	if err != nil {
		t.Fatalf("Get session: %v", err)
	}
	if sess.CurrentTurn != "low" {
		t.Fatalf("first turn = %q, want low", sess.CurrentTurn)
	}
}

func TestChatRoundTrip(t *testing.T) {
	s, m, _, _ := newTestServer(t, time.Second)
	sess := newTestGame(t, m)

	type result struct {
		rctx *fasthttp.RequestCtx
	}
	got := make(chan result, 1)
	go func() {
		rctx := doRequest(t, s, "POST", "/game/"+sess.ID+"/chatting/connect",
			`{"player_id":"bob"}`)
		got <- result{rctx}
	}()
	time.Sleep(50 * time.Millisecond)

	rctx := doRequest(t, s, "POST", "/game/"+sess.ID+"/chatting/chat",
		`{"player_id":"alice","message":"gg"}`)
	if rctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("send status = %d, body %s", rctx.Response.StatusCode(), rctx.Response.Body())
	}

	select {
	case r := <-got:
		var msg gamedto.ChatMessage
		decodeBody(t, r.rctx, &msg)
		if msg.From != "alice" || msg.Message != "gg" {
			t.Fatalf("message = %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("connect never resolved")
	}
}

func TestChatRejectsOutsiders(t *testing.T) {
	s, m, _, _ := newTestServer(t, 30*time.Millisecond)
	sess := newTestGame(t, m)

	rctx := doRequest(t, s, "POST", "/game/"+sess.ID+"/chatting/connect",
		`{"player_id":"mallory"}`)
	if rctx.Response.StatusCode() != fasthttp.StatusForbidden {
		t.Fatalf("outsider connect status = %d, want 403", rctx.Response.StatusCode())
	}

	rctx = doRequest(t, s, "POST", "/game/missing/chatting/chat",
		`{"player_id":"alice","message":"hi"}`)
	if rctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("unknown session status = %d, want 404", rctx.Response.StatusCode())
	}
}
