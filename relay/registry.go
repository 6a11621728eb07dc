package relay

import (
	"math/rand"

	"github.com/jpillora/bittorrent-relay/infohash"
)

// All methods in this file assume the caller holds s.mu; they are the
// PeerRegistry operations of spec.md §4.1, implemented as an explicit
// adjacency table (servers-by-id, relays-by-digest over the same
// *RelayConn values) per the §9 redesign note, rather than two
// independently-maintained mirrors.

// addClient inserts c, failing if id is already live.
func (s *Server) addClient(c *ClientConn) error {
	if _, exists := s.clients[c.id]; exists {
		return errDuplicateClientID
	}
	s.clients[c.id] = c
	return nil
}

func (s *Server) removeClient(id string) {
	delete(s.clients, id)
}

func (s *Server) getClient(id string) *ClientConn {
	return s.clients[id]
}

// addServer inserts c, failing if its peer id is already live.
func (s *Server) addServer(c *RelayConn) error {
	if _, exists := s.servers[c.id]; exists {
		return errDuplicatePeerID
	}
	s.servers[c.id] = c
	return nil
}

func (s *Server) removeServer(id string) {
	delete(s.servers, id)
}

func (s *Server) getServer(id string) *RelayConn {
	return s.servers[id]
}

// relaysFor returns the membership list for digest; callers must not
// mutate the returned slice.
func (s *Server) relaysFor(digest string) []*RelayConn {
	return s.relays[digest]
}

// attachRelay appends c to relays[digest] if it is not already present,
// matched by peer id (idempotent per spec.md §4.1).
func (s *Server) attachRelay(digest string, c *RelayConn) {
	for _, existing := range s.relays[digest] {
		if existing.id == c.id {
			return
		}
	}
	s.relays[digest] = append(s.relays[digest], c)
}

// detachRelay removes c from relays[digest], matched by peer id.
func (s *Server) detachRelay(digest string, c *RelayConn) {
	list := s.relays[digest]
	for i, existing := range list {
		if existing.id == c.id {
			s.relays[digest] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// detachRelayFromAll removes c from every digest's membership list it
// appears in, used on RelayConn disconnect (spec.md §4.6 Disconnect).
func (s *Server) detachRelayFromAll(c *RelayConn) {
	for digest := range s.relays {
		s.detachRelay(digest, c)
	}
}

// waitingFor returns the offer queue for hash, creating it if the hash is
// (surprisingly) not yet tracked — in steady state every subscribed hash
// already has an entry from New.
func (s *Server) waitingFor(hash infohash.InfoHash) map[string]struct{} {
	q, ok := s.offers[hash]
	if !ok {
		q = map[string]struct{}{}
		s.offers[hash] = q
	}
	return q
}

func (s *Server) enqueueOffer(hash infohash.InfoHash, clientID string) {
	s.waitingFor(hash)[clientID] = struct{}{}
}

func (s *Server) dequeueOffer(hash infohash.InfoHash, clientID string) {
	delete(s.waitingFor(hash), clientID)
}

// randomRelay returns the web address of a uniformly random RelayConn in
// relays[digest] with session==true and a non-empty web field, or "" if
// none qualify. Implements spec.md §4.9's randomRelay and testable
// property 5 (a session==false RelayConn is never returned).
func (s *Server) randomRelay(hash infohash.InfoHash) string {
	digest := hash.Digest()
	var candidates []*RelayConn
	for _, r := range s.relaysFor(digest) {
		if r.session && r.web != "" {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	return candidates[rand.Intn(len(candidates))].web
}
