package relay

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/jpillora/bittorrent-relay/infohash"
)

// ClientConn is one accepted /signal session, per spec.md §3.
type ClientConn struct {
	id   string
	hash infohash.InfoHash
	want int

	active bool
	ids    map[string]struct{} // pending peerings, awaiting offer/answer
	web    map[string]struct{} // completed peerings
	stamp  *time.Time          // last outbound-signal timestamp

	conn    *websocket.Conn
	writeMu sync.Mutex
	s       *Server
	closed  bool
	closeMu sync.Mutex

	limiter *rate.Limiter
}

func (c *ClientConn) send(v interface{}) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.WriteJSON(v)
}

// close is idempotent; it closes the underlying socket exactly once. It
// does not perform registry cleanup — callers that initiate closure for a
// protocol reason should also call s.closeClient so disconnect handling
// (interrupt notifications, re-queueing) still runs.
func (c *ClientConn) close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.conn.Close()
}

// handleSignal accepts a /signal connection per spec.md §4.4's Accept step.
func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rawHash := q.Get("hash")
	id := q.Get("id")
	if rawHash == "" || id == "" {
		s.rejectUpgrade(w, r, errMissingParam)
		return
	}
	hash, err := infohash.New(rawHash)
	if err != nil {
		s.rejectUpgrade(w, r, err)
		return
	}

	s.mu.Lock()
	if _, ok := s.subscribed[hash]; !ok {
		s.mu.Unlock()
		s.rejectUpgrade(w, r, errUnsubscribedHash)
		return
	}
	if _, ok := s.clients[id]; ok {
		s.mu.Unlock()
		s.rejectUpgrade(w, r, errDuplicateClientID)
		return
	}
	s.mu.Unlock()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("signal upgrade failed", "error", err)
		return
	}

	c := &ClientConn{
		id:      id,
		hash:    hash,
		want:    parseWant(q.Get("want")),
		active:  true,
		ids:     map[string]struct{}{},
		web:     map[string]struct{}{},
		conn:    conn,
		s:       s,
		limiter: newMsgLimiter(s.limits.MessageRate),
	}

	s.mu.Lock()
	if err := s.addClient(c); err != nil {
		s.mu.Unlock()
		writeWSError(conn, err.Error())
		conn.Close()
		return
	}
	overCap := s.limits.ClientConnections > 0 && len(s.clients) > s.limits.ClientConnections
	s.mu.Unlock()

	s.log.Debugw("client connected", "id", id, "hash", string(hash), "want", c.want)

	if overCap {
		s.triggerOverflowClose()
		// no readLoop runs for c, so its registry cleanup happens here.
		s.closeClient(c)
		return
	}

	// every new client immediately tries to pair with a waiting peer.
	s.mu.Lock()
	s.matchAndInitiate(c)
	s.mu.Unlock()

	c.readLoop()
}

func (s *Server) rejectUpgrade(w http.ResponseWriter, r *http.Request, cause error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	writeWSError(conn, cause.Error())
	conn.Close()
}

// readLoop blocks reading frames until the socket closes, grounded on
// transport_ws.go's deadline-based read loop.
func (c *ClientConn) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.close()
			break
		}
		c.s.handleClientMessage(c, f, data)
	}
	c.s.closeClient(c)
}

// handleClientMessage dispatches one ingress action per spec.md §4.4. A
// frame arriving faster than c.limiter allows is dropped rather than
// processed, protecting the broker from a single flooding client.
func (s *Server) handleClientMessage(c *ClientConn, f frame, raw []byte) {
	if !c.limiter.Allow() {
		return
	}
	switch f.Action {
	case "proc":
		s.handleProc(c, f)
	case "request":
		s.forwardSignal(c, f, raw, f.Res)
	case "response":
		s.forwardSignal(c, f, raw, f.Req)
	default:
		// unknown actions are ignored per spec.md §6
	}
}

// handleProc implements spec.md §4.4's "proc" action. Settlement is
// symmetric and independent of which side sent the frame: {req,res} names
// both participants, and each settles the *other*'s id.
func (s *Server) handleProc(_ *ClientConn, f frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req := s.getClient(f.Req); req != nil {
		s.settlePeering(req, f.Res)
	}
	if res := s.getClient(f.Res); res != nil {
		s.settlePeering(res, f.Req)
	}
}

func (s *Server) settlePeering(side *ClientConn, target string) {
	if _, pending := side.ids[target]; !pending {
		return
	}
	if _, done := side.web[target]; done {
		return
	}
	delete(side.ids, target)
	side.web[target] = struct{}{}
	side.stamp = nil
	if len(side.web) < side.want {
		s.matchAndInitiate(side)
	} else {
		s.closeClientLocked(side)
	}
}

// forwardSignal implements spec.md §4.4's "request"/"response" forwarding:
// verbatim passthrough, gated on the sender having target in its pending
// set and target being a live client.
func (s *Server) forwardSignal(sender *ClientConn, f frame, raw []byte, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := sender.ids[target]; !ok {
		return
	}
	dst := s.getClient(target)
	if dst == nil {
		return
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}
	now := time.Now()
	sender.stamp = nil
	dst.stamp = &now
	dst.send(payload)
}

// closeClient tears a client down: registry removal plus disconnect
// notification. Safe to call from the read loop after the socket is
// already gone.
func (s *Server) closeClient(c *ClientConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeClientLocked(c)
}

// closeClientLocked implements spec.md §4.4's Disconnect behavior,
// including the §9-flagged fix: peers are re-queued into offers[peer.hash]
// (the peer's own hash), not a queue keyed by the closing client's id.
func (s *Server) closeClientLocked(c *ClientConn) {
	if s.getClient(c.id) == nil {
		c.close()
		return
	}
	s.removeClient(c.id)
	for peerID := range c.ids {
		peer := s.getClient(peerID)
		if peer == nil {
			continue
		}
		delete(peer.ids, c.id)
		peer.send(map[string]interface{}{"action": "interrupt", "id": c.id})
		s.enqueueOffer(peer.hash, peer.id)
	}
	s.dequeueOffer(c.hash, c.id)
	c.close()
}
