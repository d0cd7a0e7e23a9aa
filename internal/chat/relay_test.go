package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/imzii/Online-Chess-PPT/internal/game"
)

func newTestRelay(t *testing.T) (*Relay, *game.Session) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	mgr, err := game.NewManager(fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("game.NewManager: %v", err)
	}
	s, err := mgr.Create(context.Background(),
		game.Participant{ID: "alice", Name: "Alice", Elo: 1200},
		game.Participant{ID: "bob", Name: "Bob", Elo: 1350},
		"alice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return NewRelay(mgr, time.Second), s
}

func TestSendDeliversOnlyToConnected(t *testing.T) {
	r, s := newTestRelay(t)
	ctx := context.Background()

	ch, err := r.Connect(ctx, s.ID, "bob")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	// alice has no pending poll; bob alone receives
	delivered, err := r.Send(ctx, s.ID, "alice", "good luck")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if delivered != 1 {
		t.Fatalf("delivered = %d, want 1", delivered)
	}
	select {
	case msg := <-ch:
		if msg.From != "alice" || msg.Message != "good luck" {
			t.Fatalf("got %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("message never arrived")
	}
	// no buffering: a second send with no poll resolves nothing
	if delivered, _ = r.Send(ctx, s.ID, "alice", "hello?"); delivered != 0 {
		t.Fatalf("second send delivered %d, want 0", delivered)
	}
}

func TestSenderWithPollReceivesOwnMessage(t *testing.T) {
	r, s := newTestRelay(t)
	ctx := context.Background()

	aliceCh, err := r.Connect(ctx, s.ID, "alice")
	if err != nil {
		t.Fatalf("Connect alice: %v", err)
	}
	bobCh, err := r.Connect(ctx, s.ID, "bob")
	if err != nil {
		t.Fatalf("Connect bob: %v", err)
	}
	delivered, err := r.Send(ctx, s.ID, "alice", "hi")
	if err != nil || delivered != 2 {
		t.Fatalf("Send: delivered=%d err=%v, want 2", delivered, err)
	}
	for _, ch := range []<-chan Message{aliceCh, bobCh} {
		select {
		case msg := <-ch:
			if msg.From != "alice" {
				t.Fatalf("got %+v", msg)
			}
		case <-time.After(time.Second):
			t.Fatalf("participant missed the broadcast")
		}
	}
}

func TestConnectTimeoutSentinel(t *testing.T) {
	mrRelay, s := newTestRelay(t)
	// short-timeout relay against the same sessions
	r := NewRelay(mrRelay.sessions, 20*time.Millisecond)
	ch, err := r.Connect(context.Background(), s.ID, "alice")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	select {
	case msg := <-ch:
		if msg.From != "" || msg.Message != "" {
			t.Fatalf("timeout sentinel should be empty, got %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("sentinel never arrived")
	}
}

func TestUnknownSessionAndOutsider(t *testing.T) {
	r, s := newTestRelay(t)
	ctx := context.Background()

	if _, err := r.Connect(ctx, "nope", "alice"); !errors.Is(err, game.ErrSessionNotFound) {
		t.Fatalf("Connect unknown session: %v", err)
	}
	if _, err := r.Send(ctx, "nope", "alice", "hi"); !errors.Is(err, game.ErrSessionNotFound) {
		t.Fatalf("Send unknown session: %v", err)
	}
	if _, err := r.Connect(ctx, s.ID, "mallory"); !errors.Is(err, game.ErrNotParticipant) {
		t.Fatalf("Connect outsider: %v", err)
	}
}
