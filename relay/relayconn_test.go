package relay

import "testing"

// TestSendBeforeMarkOpenIsNoop is a regression test for the mid-dial nil
// conn panic: a RelayConn placed in servers[pid] before its dial completes
// (spec.md §4.3 step 6) has no conn yet, so send must not deref it.
func TestSendBeforeMarkOpenIsNoop(t *testing.T) {
	r := &RelayConn{id: "peer-1"}
	r.send(map[string]string{"action": "ping"}) // must not panic
}

// TestMarkOpenRequiredBeforeSend confirms a freshly-constructed RelayConn
// starts unopen, and markOpen is what flips send from a no-op to live.
func TestMarkOpenRequiredBeforeSend(t *testing.T) {
	r := &RelayConn{id: "peer-1"}
	if r.open {
		t.Fatalf("RelayConn.open = true before markOpen, want false")
	}
	r.markOpen(nil)
	if !r.open {
		t.Fatalf("RelayConn.open = false after markOpen, want true")
	}
}
