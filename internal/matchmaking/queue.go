package matchmaking

import (
	"sort"
	"sync"
	"time"
)

// Queue is the shared set of waiting tickets. All access goes through the
// internal mutex: join handlers and the matcher tick serialize here.
//
// Duplicate-join protection is a linear scan keyed by player id. Queue sizes
// are small (two digits in practice) and the scan is the invariant that makes
// join idempotent, so it stays a scan rather than an index.
type Queue struct {
	mu      sync.Mutex
	tickets []*Ticket
}

func NewQueue() *Queue { return &Queue{} }

// Join enqueues a ticket for p unless the player already has one. The second
// join is silently absorbed; both callers resolve from the same pairing.
// Returns true when a new ticket was created.
func (q *Queue) Join(p Player, now time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.tickets {
		if t.ID == p.ID {
			return false
		}
	}
	q.tickets = append(q.tickets, &Ticket{Player: p, JoinTime: now})
	return true
}

// Restore puts a previously-taken ticket back, keeping its original JoinTime
// so the player's accumulated wait survives a failed session start.
func (q *Queue) Restore(t *Ticket) {
	if t == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.tickets {
		if e.ID == t.ID {
			return
		}
	}
	q.tickets = append(q.tickets, t)
}

// RemoveIfPresent drops the ticket for playerID, if any. Called when a
// long-poll join expires unmatched.
func (q *Queue) RemoveIfPresent(playerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, t := range q.tickets {
		if t.ID == playerID {
			q.tickets = append(q.tickets[:i], q.tickets[i+1:]...)
			return true
		}
	}
	return false
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tickets)
}

// Pair runs one pairing pass: refresh every ticket's waiting time, give the
// longest-waiting player the pairing attempt, and scan the rest for the
// closest rating inside the allowed window. The whole read-modify-write runs
// under the queue lock so a concurrent join can never observe a half-taken
// pair.
//
// The window is maxEloDiff, multiplied by 0.5 once the head ticket has waited
// longer than tightenAfter. That direction (tighter, not looser, after a long
// wait) is kept from the original matchmaking rules; see the pinning test
// before "fixing" it.
func (q *Queue) Pair(now time.Time, maxEloDiff int, tightenAfter time.Duration) (head, partner *Ticket, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tickets) < 2 {
		return nil, nil, false
	}

	for _, t := range q.tickets {
		t.WaitingTime = now.Sub(t.JoinTime)
	}
	sort.SliceStable(q.tickets, func(i, j int) bool {
		return q.tickets[i].WaitingTime > q.tickets[j].WaitingTime
	})

	head = q.tickets[0]
	rest := q.tickets[1:]

	consideration := 1.0
	if head.WaitingTime > tightenAfter {
		consideration = 0.5
	}
	limit := float64(maxEloDiff) * consideration

	best := -1
	closest := int(^uint(0) >> 1)
	for i, c := range rest {
		d := head.Elo - c.Elo
		if d < 0 {
			d = -d
		}
		// strict < keeps the first-encountered candidate on a tie
		if float64(d) <= limit && d < closest {
			closest = d
			best = i
		}
	}
	if best < 0 {
		// no candidate in window: requeue the head at the tail; the sort
		// next tick churns the order again anyway
		q.tickets = append(rest, head)
		return nil, nil, false
	}

	partner = rest[best]
	q.tickets = append(rest[:best], rest[best+1:]...)
	return head, partner, true
}
