package relay

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// RelayConn is one connected sibling relay, dialed or accepted, per
// spec.md §3.
type RelayConn struct {
	id      string // peer nodeId
	server  bool   // false = we dialed, true = they dialed
	active  bool
	relays  []string // info-hash digests shared with this peer
	session bool

	address string
	web     string
	host    string
	port    int
	domain  string

	conn    *websocket.Conn
	open    bool // conn is established; see markOpen
	writeMu sync.Mutex
	s       *Server
	closed  bool
	closeMu sync.Mutex

	limiter *rate.Limiter
}

// markOpen records the established connection and marks the RelayConn
// sendable. Accepted peers are open immediately (the socket is already
// upgraded by the time a RelayConn exists); dialed peers stay unopen while
// servers[pid] holds a placeholder entry mid-dial (spec.md §4.3 step 6),
// so a racing send during that window is a no-op rather than a nil-conn
// dereference.
func (r *RelayConn) markOpen(conn *websocket.Conn) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.conn = conn
	r.open = true
}

func (r *RelayConn) send(v interface{}) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if !r.open {
		return
	}
	r.conn.WriteJSON(v)
}

func (r *RelayConn) close() {
	r.closeMu.Lock()
	defer r.closeMu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.conn.Close()
}

// hasDigest reports whether digest is already in r.relays.
func (r *RelayConn) hasDigest(digest string) bool {
	for _, d := range r.relays {
		if d == digest {
			return true
		}
	}
	return false
}

func (r *RelayConn) addDigest(digest string) {
	if !r.hasDigest(digest) {
		r.relays = append(r.relays, digest)
	}
}

func (r *RelayConn) removeDigest(digest string) {
	for i, d := range r.relays {
		if d == digest {
			r.relays = append(r.relays[:i], r.relays[i+1:]...)
			return
		}
	}
}

// sessionFrame builds the {action:"session", ...} frame this node sends
// about itself, used both on accept and on dial-open (spec.md §4.6).
func (s *Server) sessionFrame(digest string) map[string]interface{} {
	return map[string]interface{}{
		"action":  "session",
		"id":      s.self.ID,
		"address": s.self.Address,
		"web":     s.self.Web,
		"host":    s.self.Host,
		"port":    s.self.Port,
		"domain":  s.self.Domain,
		"relay":   digest,
	}
}

// handleRelay accepts a /relay connection per spec.md §4.6's Accept step.
func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	digest := q.Get("hash")
	peerID := q.Get("id")
	if digest == "" || peerID == "" {
		s.rejectUpgrade(w, r, errMissingParam)
		return
	}

	s.mu.Lock()
	if _, ok := s.subscribedDigests[digest]; !ok {
		s.mu.Unlock()
		s.rejectUpgrade(w, r, errUnsubscribedHash)
		return
	}
	if _, exists := s.servers[peerID]; exists {
		s.mu.Unlock()
		s.rejectUpgrade(w, r, errDuplicatePeerID)
		return
	}
	if s.limits.ServerConnections > 0 && len(s.relays[digest]) >= s.limits.ServerConnections {
		s.mu.Unlock()
		s.rejectUpgrade(w, r, errRelayCapacity)
		return
	}
	s.mu.Unlock()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("relay upgrade failed", "error", err)
		return
	}

	rc := &RelayConn{
		id:      peerID,
		server:  true,
		active:  true,
		s:       s,
		limiter: newMsgLimiter(s.limits.MessageRate),
	}
	rc.markOpen(conn)

	s.mu.Lock()
	if err := s.addServer(rc); err != nil {
		s.mu.Unlock()
		writeWSError(conn, err.Error())
		conn.Close()
		return
	}
	rc.send(s.sessionFrame(digest))
	s.mu.Unlock()

	rc.readLoop(digest)
}

// readLoop blocks reading frames until the socket closes.
func (r *RelayConn) readLoop(expectedDigest string) {
	for {
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			break
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			r.close()
			break
		}
		r.s.handleRelayMessage(r, f, expectedDigest)
	}
	r.s.closeRelay(r)
}

// handleRelayMessage dispatches one ingress action per spec.md §4.6, after
// the same per-connection message-rate guard applied on /signal.
func (s *Server) handleRelayMessage(r *RelayConn, f frame, expectedDigest string) {
	if !r.limiter.Allow() {
		return
	}
	switch f.Action {
	case "session":
		s.handleSession(r, f, expectedDigest)
	case "add":
		s.handleAdd(r, f.relayDigest())
	case "sub":
		s.handleSub(r, f.relayDigest())
	case "ping":
		r.send(map[string]string{"action": "pong"})
	case "pong":
		s.mu.Lock()
		r.active = true
		s.mu.Unlock()
	case "on", "off":
		s.handleSessionToggle(r, f.Action == "on")
	default:
		// unknown actions are ignored per spec.md §6
	}
}

// handleSession validates and applies a "session" handshake frame per
// spec.md §4.6. Duplicate/retransmitted frames are idempotent (attachRelay
// and addDigest both dedup), satisfying the session-handshake round-trip
// property in spec.md §8.
func (s *Server) handleSession(r *RelayConn, f frame, expectedDigest string) {
	digest := f.relayDigest()
	if digest != expectedDigest {
		writeWSError(r.conn, errSessionMismatch.Error())
		r.close()
		return
	}
	if f.Address == "" || f.ID != digestOf(f.Address) {
		writeWSError(r.conn, errSessionSpoofed.Error())
		r.close()
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, collision := s.subscribedDigests[f.ID]; collision {
		writeWSError(r.conn, errSessionSpoofed.Error())
		r.close()
		return
	}
	r.addDigest(digest)
	r.address = f.Address
	r.web = f.Web
	r.host = f.Host
	r.port = f.Port
	r.domain = f.Domain
	r.session = true
	s.attachRelay(digest, r)
}

func (s *Server) handleAdd(r *RelayConn, digest string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribedDigests[digest]; !ok {
		return
	}
	s.attachRelay(digest, r)
	r.addDigest(digest)
}

func (s *Server) handleSub(r *RelayConn, digest string) {
	s.mu.Lock()
	s.detachRelay(digest, r)
	r.removeDigest(digest)
	empty := len(r.relays) == 0
	s.mu.Unlock()
	if empty {
		r.close()
	}
}

// handleSessionToggle implements "on"/"off": the liveness bit propagating
// the remote's own HTTP up/down, applied to the matching RelayConn within
// every relays[d] membership entry it belongs to.
func (s *Server) handleSessionToggle(r *RelayConn, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.session = on
}

// closeRelay implements spec.md §4.6's Disconnect: remove from every
// relays[d] it belongs to and from servers[id].
func (s *Server) closeRelay(r *RelayConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachRelayFromAll(r)
	s.removeServer(r.id)
	r.close()
}
