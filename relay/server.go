// Package relay implements the dual-role WebRTC signaling relay mesh: it
// serves browser torrent clients over /signal and sibling relays over
// /relay, discovers peers through the DHT, and brokers offer/answer
// exchanges between clients on the same info-hash.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jpillora/bittorrent-relay/identity"
	"github.com/jpillora/bittorrent-relay/infohash"
	"github.com/jpillora/bittorrent-relay/internal/rlog"
	"github.com/jpillora/bittorrent-relay/meshdht"
)

// Limits caps resource usage per spec.md §6. Zero means unlimited.
type Limits struct {
	ServerConnections int
	ClientConnections int

	// MessageRate caps inbound WebSocket frames per second, per
	// connection, on both /signal and /relay. Zero means unlimited.
	// Grounded on engine/config.go's UploadLimiter/DownloadLimiter: a
	// plain token-bucket guard against a single misbehaving connection
	// flooding the broker or relay dispatch loop.
	MessageRate int
}

// newMsgLimiter builds a token bucket for perSecond messages with a burst
// of 3x, the same ratio engine/utils.go's rateLimiter uses for bandwidth.
// perSecond <= 0 means unlimited, mirroring rateLimiter's "unlimited" case.
func newMsgLimiter(perSecond int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(perSecond), perSecond*3)
}

// Options configures a Server. It is the in-process counterpart of
// config.Config — see cmd/bittorrent-relay for the glue between them.
type Options struct {
	Host   string
	Port   int
	Server string // listen interface, defaults to 0.0.0.0
	Domain string
	Hashes []string
	Limits Limits
	Relay  bool // not read by New; the DHT listener is started by Start's useRelay argument
	Dev    bool // verbose logging
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the "State" portion of the relay: the dual registry indexes,
// the backoff table, the dialer, the broker and the DHT subscription all
// hang off it, synchronized by mu per spec.md §5's single serialization
// domain.
type Server struct {
	self        identity.Node
	limits      Limits
	dev         bool
	listenIface string

	mu                sync.Mutex
	subscribed        map[infohash.InfoHash]struct{}
	subscribedDigests map[string]infohash.InfoHash // digest -> raw info-hash
	clients           map[string]*ClientConn       // by client id
	servers           map[string]*RelayConn        // by peer node id
	relays            map[string][]*RelayConn      // by info-hash digest
	offers            map[infohash.InfoHash]map[string]struct{}

	backoff *backoffTable

	dht *meshdht.Source

	httpSrv  *http.Server
	listener net.Listener
	closing  bool
	restart  bool
	useRelay bool

	health *ticker

	log *zap.SugaredLogger
}

// New builds a Server from opts. It does not start listening; call Start.
func New(opts Options) (*Server, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("relay: host is required")
	}
	if len(opts.Hashes) == 0 {
		return nil, fmt.Errorf("relay: at least one info-hash is required")
	}
	iface := opts.Server
	if iface == "" {
		iface = "0.0.0.0"
	}
	s := &Server{
		self:              identity.New(opts.Host, opts.Port, opts.Domain),
		limits:            opts.Limits,
		dev:               opts.Dev,
		subscribed:        map[infohash.InfoHash]struct{}{},
		subscribedDigests: map[string]infohash.InfoHash{},
		clients:           map[string]*ClientConn{},
		servers:           map[string]*RelayConn{},
		relays:            map[string][]*RelayConn{},
		offers:            map[infohash.InfoHash]map[string]struct{}{},
		backoff:           newBackoffTable(),
		log:               rlog.Named("relay"),
	}
	for _, raw := range opts.Hashes {
		h, err := infohash.New(raw)
		if err != nil {
			return nil, fmt.Errorf("relay: invalid info-hash %q: %w", raw, err)
		}
		s.subscribed[h] = struct{}{}
		s.subscribedDigests[h.Digest()] = h
		s.offers[h] = map[string]struct{}{}
	}
	s.listenIface = iface
	return s, nil
}

// Start binds the HTTP+WebSocket listener and, when useRelay is true, also
// starts the DHT subscription for every subscribed digest. Mirrors
// spec.md §4.8.
func (s *Server) Start(useRelay bool) error {
	s.mu.Lock()
	addr := fmt.Sprintf("%s:%d", s.listenIface, s.self.Port)
	s.mu.Unlock()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("relay: listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/signal", s.handleSignal)
	mux.HandleFunc("/relay", s.handleRelay)

	s.mu.Lock()
	s.listener = ln
	s.httpSrv = &http.Server{Handler: mux}
	s.closing = false
	s.useRelay = useRelay
	s.mu.Unlock()

	if s.health != nil {
		s.health.stop()
	}
	s.health = newTicker(s, 300*time.Second, 60*time.Second)
	s.health.start()

	s.mu.Lock()
	dhtRunning := s.dht != nil
	s.mu.Unlock()
	if useRelay && !dhtRunning {
		if err := s.startDHT(); err != nil {
			ln.Close()
			return err
		}
	}

	s.log.Infow("listening", "address", addr, "web", s.self.Web, "id", s.self.ID, "relay", useRelay)

	go func() {
		err := s.httpSrv.Serve(ln)
		if err != nil && err != http.ErrServerClosed {
			s.log.Errorw("listener failed", "error", err)
			s.mu.Lock()
			wantRestart := !s.closing
			s.mu.Unlock()
			if wantRestart {
				s.scheduleRestart(useRelay)
			}
		}
	}()
	return nil
}

// scheduleRestart reopens the HTTP listener 300000ms after an unexpected
// close, per spec.md §4.8.
func (s *Server) scheduleRestart(useRelay bool) {
	s.mu.Lock()
	if s.restart {
		s.mu.Unlock()
		return
	}
	s.restart = true
	s.mu.Unlock()
	time.AfterFunc(300*time.Second, func() {
		s.mu.Lock()
		s.restart = false
		s.mu.Unlock()
		if err := s.Start(useRelay); err != nil {
			s.log.Errorw("scheduled restart failed", "error", err)
		}
	})
}

// Stop detaches handlers, closes the HTTP listener (triggering the §4.9
// graceful hand-off) and tears down the DHT subscription if owned.
func (s *Server) Stop() error {
	s.mu.Lock()
	s.closing = true
	srv := s.httpSrv
	s.mu.Unlock()

	if s.health != nil {
		s.health.stop()
	}

	s.gracefulHandoff()
	s.backoff.clear()
	s.stopDHT()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
	return nil
}

// triggerOverflowClose implements spec.md §7(c): resource exhaustion
// (the hard client-connection cap exceeded) initiates a graceful HTTP
// close with hand-off, same as an operator-driven Stop, except the DHT
// subscription is left running and the listener is scheduled to reopen
// per §4.8's restart timer instead of staying down.
func (s *Server) triggerOverflowClose() {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return
	}
	s.closing = true
	ln := s.listener
	useRelay := s.useRelay
	s.mu.Unlock()

	s.log.Warnw("client connection cap reached, closing for hand-off", "limit", s.limits.ClientConnections)
	s.gracefulHandoff()
	s.backoff.clear()
	if ln != nil {
		ln.Close()
	}
	s.scheduleRestart(useRelay)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/":
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("thanks for testing bittorrent-relay"))
	case r.Method == http.MethodHead && r.URL.Path == "/":
		w.WriteHeader(http.StatusOK)
	case websocket.IsWebSocketUpgrade(r):
		// spec.md §6: an upgrade attempt on any path other than /signal or
		// /relay gets the WS error frame, not the plain-HTTP 400 body.
		s.rejectUpgrade(w, r, errUnsupportedRoute)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		b, _ := json.Marshal(errInvalidHTTPRoute.Error())
		w.Write(b)
	}
}

// parseWant implements spec.md §4.4's want-clamping rule.
func parseWant(raw string) int {
	if raw == "" {
		return 3
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(n) {
		return 3
	}
	if n != 0 && (n < 1 || n > 6) {
		return 3
	}
	if n == 0 {
		return 3
	}
	return int(n)
}

func writeWSError(conn *websocket.Conn, message string) {
	conn.WriteJSON(map[string]string{"action": "error", "error": message})
}

// digestOf is a small readability helper: SHA1_hex(s).
func digestOf(s string) string { return identity.SHA1Hex(s) }
