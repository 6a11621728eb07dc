package relay

// Metrics is a point-in-time snapshot of mesh size, grounded on the
// teacher's server/server.go state.Stats block (which publishes the same
// shape of counters for its own domain over velox). spec.md §1 scopes the
// front-end/live-push UI out, so this is exposed as a plain method rather
// than wired to any push transport.
type Metrics struct {
	Clients       int
	RelayPeers    int
	MembersByHash map[string]int // info-hash digest -> relay peer count
}

// Metrics returns a snapshot of the current mesh state.
func (s *Server) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := Metrics{
		Clients:       len(s.clients),
		RelayPeers:    len(s.servers),
		MembersByHash: make(map[string]int, len(s.relays)),
	}
	for digest, list := range s.relays {
		m.MembersByHash[digest] = len(list)
	}
	return m
}
