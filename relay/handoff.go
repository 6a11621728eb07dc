package relay

// gracefulHandoff implements spec.md §4.9: when the HTTP server closes,
// every live client is pointed at another relay and disconnected, and
// every relay peer is told we're going offline.
func (s *Server) gracefulHandoff() {
	s.mu.Lock()
	clients := make([]*ClientConn, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	peers := make([]*RelayConn, 0, len(s.servers))
	for _, r := range s.servers {
		peers = append(peers, r)
	}
	s.mu.Unlock()

	for _, c := range clients {
		s.mu.Lock()
		web := s.randomRelay(c.hash)
		s.mu.Unlock()
		var relayField interface{}
		if web != "" {
			relayField = web
		}
		c.send(map[string]interface{}{"action": "relay", "relay": relayField})
		c.close()
	}

	for _, r := range peers {
		r.send(map[string]string{"action": "off"})
	}
}
