package relay

import (
	"fmt"

	"github.com/jpillora/bittorrent-relay/meshdht"
)

// startDHT implements the "relay" half of spec.md §4.8: bind the DHT
// listener on the same port and announce/subscribe every subscribed
// digest.
func (s *Server) startDHT() error {
	src, err := meshdht.Listen(s.self.Host, s.self.Port, s.dev)
	if err != nil {
		return fmt.Errorf("relay: dht listen: %w", err)
	}

	s.mu.Lock()
	s.dht = src
	digests := make([]string, 0, len(s.subscribedDigests))
	for digest := range s.subscribedDigests {
		digests = append(digests, digest)
	}
	s.mu.Unlock()

	for _, digest := range digests {
		if err := src.Announce(digest, s.self.Port); err != nil {
			s.log.Warnw("dht announce failed", "digest", digest, "error", err)
		}
	}

	go s.consumeDHTEvents(src)
	return nil
}

// consumeDHTEvents is the DHTSource subscriber: every discovered peer is
// handed to RelayDialer's policy (spec.md §4.3).
func (s *Server) consumeDHTEvents(src *meshdht.Source) {
	for ev := range src.PeerEvents {
		s.considerPeer(ev.Host, ev.Port, ev.Digest)
	}
}

// stopDHT tears down the DHT subscription if this Server owns one.
func (s *Server) stopDHT() {
	s.mu.Lock()
	src := s.dht
	s.dht = nil
	s.mu.Unlock()
	if src != nil {
		src.Destroy()
	}
}
