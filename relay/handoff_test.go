package relay

import "testing"

// TestGracefulHandoffPicksRandomLiveRelay covers S6: with two session==true
// relay peers registered for a client's info-hash, gracefulHandoff must
// point the client at one of their web addresses rather than a nil relay.
func TestGracefulHandoffPicksRandomLiveRelay(t *testing.T) {
	s, port := startTestServer(t, "swarm-a")
	digest := mustDigest(t, "swarm-a")

	r1 := &RelayConn{id: "peer-1", session: true, web: "peer-1.example.com:6881"}
	r2 := &RelayConn{id: "peer-2", session: true, web: "peer-2.example.com:6881"}
	s.mu.Lock()
	s.attachRelay(digest, r1)
	s.attachRelay(digest, r2)
	s.mu.Unlock()

	conn := dialSignal(t, port, "swarm-a", "client-a", "")
	defer conn.Close()

	s.Stop()

	var got frame
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON hand-off frame: %v", err)
	}
	if got.Action != "relay" {
		t.Fatalf("action = %q, want relay", got.Action)
	}
	web, _ := got.Relay.(string)
	if web != r1.web && web != r2.web {
		t.Fatalf("hand-off relay = %q, want one of %q or %q", web, r1.web, r2.web)
	}

	// the client socket is closed as part of the hand-off.
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected client connection closed after hand-off")
	}
}
