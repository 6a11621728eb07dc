package relay

import (
	"testing"

	"github.com/jpillora/bittorrent-relay/infohash"
)

func newTestServer(t *testing.T, hashes ...string) *Server {
	t.Helper()
	if len(hashes) == 0 {
		hashes = []string{"swarm-a"}
	}
	s, err := New(Options{Host: "127.0.0.1", Port: 0, Hashes: hashes})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestAttachRelayIsIdempotent(t *testing.T) {
	s := newTestServer(t)
	digest := "deadbeef"
	r := &RelayConn{id: "peer-1"}
	s.attachRelay(digest, r)
	s.attachRelay(digest, r)
	if got := len(s.relays[digest]); got != 1 {
		t.Fatalf("relays[digest] len = %d, want 1", got)
	}
}

func TestDetachRelay(t *testing.T) {
	s := newTestServer(t)
	digest := "deadbeef"
	a := &RelayConn{id: "peer-a"}
	b := &RelayConn{id: "peer-b"}
	s.attachRelay(digest, a)
	s.attachRelay(digest, b)
	s.detachRelay(digest, a)
	list := s.relays[digest]
	if len(list) != 1 || list[0].id != "peer-b" {
		t.Fatalf("relays[digest] after detach = %v, want only peer-b", list)
	}
}

func TestDetachRelayFromAll(t *testing.T) {
	s := newTestServer(t)
	r := &RelayConn{id: "peer-1"}
	s.attachRelay("hash-a", r)
	s.attachRelay("hash-b", r)
	s.detachRelayFromAll(r)
	if len(s.relays["hash-a"]) != 0 || len(s.relays["hash-b"]) != 0 {
		t.Fatalf("relay still present in a membership list after detachRelayFromAll")
	}
}

func TestOfferQueue(t *testing.T) {
	s := newTestServer(t)
	h := infohash.InfoHash("swarm-a")
	s.enqueueOffer(h, "client-1")
	if _, ok := s.waitingFor(h)["client-1"]; !ok {
		t.Fatalf("client-1 not found in offer queue after enqueue")
	}
	s.dequeueOffer(h, "client-1")
	if _, ok := s.waitingFor(h)["client-1"]; ok {
		t.Fatalf("client-1 still in offer queue after dequeue")
	}
}

// TestRandomRelayExcludesNonSessions covers spec.md testable property 5: a
// RelayConn with session==false, or an empty web address, is never
// returned by randomRelay.
func TestRandomRelayExcludesNonSessions(t *testing.T) {
	s := newTestServer(t)
	h := infohash.InfoHash("swarm-a")
	digest := h.Digest()

	notSession := &RelayConn{id: "peer-1", web: "peer-1.example.com:6881", session: false}
	noWeb := &RelayConn{id: "peer-2", session: true, web: ""}
	s.attachRelay(digest, notSession)
	s.attachRelay(digest, noWeb)

	if got := s.randomRelay(h); got != "" {
		t.Fatalf("randomRelay = %q, want \"\" (no eligible candidates)", got)
	}

	eligible := &RelayConn{id: "peer-3", session: true, web: "peer-3.example.com:6881"}
	s.attachRelay(digest, eligible)

	for i := 0; i < 20; i++ {
		if got := s.randomRelay(h); got != eligible.web {
			t.Fatalf("randomRelay = %q, want %q", got, eligible.web)
		}
	}
}
