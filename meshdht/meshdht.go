// Package meshdht adapts github.com/anacrolix/dht/v2 to the narrow
// DHTSource interface spec.md §9 calls for: listen(host,port),
// announce(digest), lookup(digest), on("peer", fn), destroy(). The relay
// treats the DHT implementation as an opaque, non-reentrant peer-discovery
// source — this package is the only place that imports the DHT library.
package meshdht

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"sync"

	anadht "github.com/anacrolix/dht/v2"
	"github.com/anacrolix/dht/v2/krpc"
	analog "github.com/anacrolix/log"
)

// PeerEvent is one "peer found for info-hash" notification, per spec.md
// §6's DHT interface ((peer.host, peer.port, infoHashBytes, fromAddress)).
type PeerEvent struct {
	Host   string
	Port   int
	Digest string // lowercase-hex SHA-1, matches the relay mesh's key space
}

// Source is a thin adapter over a single *dht.Server, one per relay
// process. It is single-consumer: PeerEvents is meant to be drained by one
// goroutine (the relay's dialer loop), matching the "must not assume the
// DHT implementation is reentrant" design note.
type Source struct {
	server *anadht.Server
	conn   net.PacketConn

	mu         sync.Mutex
	subscribed map[string]context.CancelFunc // digest -> cancel for its Announce

	PeerEvents chan PeerEvent
}

// Listen starts the DHT server bound to host:port. Mirrors
// anacrolix/dht/v2's Server.Announce-returning-*Announce shape, grounded
// on the teacher's vendored dht/announce.go and dht/server.go.
func Listen(host string, port int, verbose bool) (*Source, error) {
	conn, err := net.ListenPacket("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("meshdht: listen udp %s:%d: %w", host, port, err)
	}

	cfg := anadht.NewDefaultServerConfig()
	cfg.Conn = conn
	if !verbose {
		cfg.Logger = analog.Discard
	}

	server, err := anadht.NewServer(cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("meshdht: new server: %w", err)
	}

	return &Source{
		server:     server,
		conn:       conn,
		subscribed: map[string]context.CancelFunc{},
		PeerEvents: make(chan PeerEvent, 256),
	}, nil
}

// Announce begins announcing and looking up peers for digest (a 40-char
// lowercase-hex SHA-1, per spec.md's InfoHash digest). Announcing is
// idempotent: a second call for an already-subscribed digest is a no-op.
func (s *Source) Announce(digest string, announcePort int) error {
	s.mu.Lock()
	if _, already := s.subscribed[digest]; already {
		s.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.subscribed[digest] = cancel
	s.mu.Unlock()

	raw, err := hex.DecodeString(digest)
	if err != nil || len(raw) != 20 {
		cancel()
		return fmt.Errorf("meshdht: bad digest %q", digest)
	}
	var id krpc.ID
	copy(id[:], raw)

	ann, err := s.server.Announce(id, announcePort, true)
	if err != nil {
		cancel()
		return fmt.Errorf("meshdht: announce %q: %w", digest, err)
	}

	go func() {
		defer ann.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case psv, ok := <-ann.Peers:
				if !ok {
					return
				}
				for _, p := range psv.Peers {
					select {
					case s.PeerEvents <- PeerEvent{Host: p.IP.String(), Port: p.Port, Digest: digest}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return nil
}

// Unannounce stops a previously-started Announce for digest.
func (s *Source) Unannounce(digest string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.subscribed[digest]; ok {
		cancel()
		delete(s.subscribed, digest)
	}
}

// Destroy stops every announce and closes the DHT server and its socket.
func (s *Source) Destroy() {
	s.mu.Lock()
	for digest, cancel := range s.subscribed {
		cancel()
		delete(s.subscribed, digest)
	}
	s.mu.Unlock()
	s.server.Close()
	close(s.PeerEvents)
}
