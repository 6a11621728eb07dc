package relay

import (
	"github.com/jpillora/bittorrent-relay/infohash"
	"testing"
)

func newTestClient(id string, hash infohash.InfoHash, want int) *ClientConn {
	return &ClientConn{
		id:   id,
		hash: hash,
		want: want,
		ids:  map[string]struct{}{},
		web:  map[string]struct{}{},
	}
}

// TestMatchSkipsSelfPendingAndDone ensures match() never returns c itself,
// a candidate already pending with c, or one already completed with c.
func TestMatchSkipsSelfPendingAndDone(t *testing.T) {
	s := newTestServer(t)
	h := infohash.InfoHash("swarm-a")

	a := newTestClient("a", h, 3)
	pending := newTestClient("pending", h, 3)
	done := newTestClient("done", h, 3)
	eligible := newTestClient("eligible", h, 3)

	a.ids["pending"] = struct{}{}
	a.web["done"] = struct{}{}

	s.clients[a.id] = a
	s.clients[pending.id] = pending
	s.clients[done.id] = done
	s.clients[eligible.id] = eligible

	s.enqueueOffer(h, a.id)
	s.enqueueOffer(h, pending.id)
	s.enqueueOffer(h, done.id)
	s.enqueueOffer(h, eligible.id)

	got := s.match(a)
	if got == nil || got.id != "eligible" {
		t.Fatalf("match() = %v, want eligible", got)
	}
}

// TestMatchReturnsNilWhenQueueEmpty covers the match half of S2: with no
// waiting partner, match finds nothing to pair with. The enqueue half is
// covered by TestInitiateWithNilEnqueues.
func TestMatchReturnsNilWhenQueueEmpty(t *testing.T) {
	s := newTestServer(t)
	h := infohash.InfoHash("swarm-a")
	a := newTestClient("a", h, 3)
	s.clients[a.id] = a

	if got := s.match(a); got != nil {
		t.Fatalf("match() on empty queue = %v, want nil", got)
	}
}

func TestInitiateWithNilEnqueues(t *testing.T) {
	s := newTestServer(t)
	h := infohash.InfoHash("swarm-a")
	a := newTestClient("a", h, 3)
	s.clients[a.id] = a

	s.initiate(a, nil)

	if _, ok := s.waitingFor(h)["a"]; !ok {
		t.Fatalf("initiate(a, nil) did not enqueue a")
	}
	if len(a.ids) != 0 {
		t.Fatalf("initiate(a, nil) set a pending peering, want none")
	}
}

// initiate's full a<->b pairing, including the outbound "init" send, is
// covered end-to-end by TestSignalHandshake in server_test.go, which
// exercises it over real WebSocket connections rather than bare structs.
