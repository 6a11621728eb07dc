package relay

import (
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/jpillora/bittorrent-relay/identity"
)

// This file implements RelayDialer (spec.md §4.3), triggered by DHTSource
// events.

// considerPeer applies §4.3's ordered policy to one DHT peer-found event.
func (s *Server) considerPeer(host string, port int, digest string) {
	s.mu.Lock()
	if _, ok := s.subscribedDigests[digest]; !ok {
		s.mu.Unlock()
		return
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	pid := identity.SHA1Hex(addr)
	if addr == s.self.Address || pid == s.self.ID {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if !s.backoff.shouldTry(pid) {
		return
	}

	s.mu.Lock()
	if existing := s.getServer(pid); existing != nil {
		if existing.closed {
			s.mu.Unlock()
			return
		}
		if !existing.hasDigest(digest) {
			existing.addDigest(digest)
			s.attachRelay(digest, existing)
			existing.send(map[string]interface{}{"action": "add", "relay": digest, "reply": true})
		}
		s.mu.Unlock()
		return
	}
	if s.limits.ServerConnections > 0 && len(s.relays[digest]) >= s.limits.ServerConnections {
		s.mu.Unlock()
		return
	}

	rc := &RelayConn{id: pid, server: false, active: true, s: s, limiter: newMsgLimiter(s.limits.MessageRate)}
	rc.addDigest(digest)
	// attach immediately, before the dial completes, so racing DHT
	// notifications for the same peer see it in servers[pid] and take the
	// "already dialing" branch above instead of opening a second socket.
	s.servers[pid] = rc
	s.mu.Unlock()

	go s.dial(rc, addr, digest)
}

// dial opens the outbound WebSocket for a freshly-registered RelayConn.
func (s *Server) dial(rc *RelayConn, addr, digest string) {
	q := url.Values{"hash": {digest}, "id": {s.self.ID}}
	u := url.URL{Scheme: "ws", Host: addr, Path: "/relay", RawQuery: q.Encode()}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		s.backoff.recordFailure(rc.id)
		s.mu.Lock()
		s.removeServer(rc.id)
		s.mu.Unlock()
		s.log.Warnw("relay dial failed", "peer", rc.id, "address", addr, "error", err)
		return
	}

	rc.markOpen(conn)
	s.backoff.clearOne(rc.id)

	rc.send(s.sessionFrame(digest))
	rc.readLoop(digest)
}
