package relay

import "time"

// This file implements SignalingBroker (spec.md §4.5). Every method here
// assumes the caller holds s.mu.

// match picks any waiting client id on c.hash other than c itself, not
// already pending or completed with c, removes it from the queue and
// returns the corresponding ClientConn (or nil if no eligible candidate
// exists). Tie-breaking is arbitrary map iteration order, as permitted by
// spec.md §4.5.
func (s *Server) match(c *ClientConn) *ClientConn {
	queue := s.waitingFor(c.hash)
	for candidateID := range queue {
		if candidateID == c.id {
			continue
		}
		if _, pending := c.ids[candidateID]; pending {
			continue
		}
		if _, done := c.web[candidateID]; done {
			continue
		}
		candidate := s.getClient(candidateID)
		if candidate == nil {
			delete(queue, candidateID)
			continue
		}
		delete(queue, candidateID)
		return candidate
	}
	return nil
}

// initiate implements spec.md §4.5's initiate(a, b): pairs a and b if b is
// non-nil, otherwise enqueues a.
func (s *Server) initiate(a, b *ClientConn) {
	if b == nil {
		s.enqueueOffer(a.hash, a.id)
		return
	}
	a.ids[b.id] = struct{}{}
	b.ids[a.id] = struct{}{}
	now := time.Now()
	a.stamp = &now
	a.send(map[string]interface{}{"req": a.id, "res": b.id, "action": "init"})
}

// matchAndInitiate is the entry point used whenever a client becomes
// eligible for a new peering: on connect and after settling a "proc".
func (s *Server) matchAndInitiate(c *ClientConn) {
	s.initiate(c, s.match(c))
}
