package relay

import (
	"sync"
	"time"
)

// ticker implements HealthTicker (spec.md §4.7). It is installed on
// Server.Start and cleared on Server.Stop.
type ticker struct {
	s           *Server
	sweepEvery  time.Duration
	clientStale time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func newTicker(s *Server, sweepEvery, clientStale time.Duration) *ticker {
	return &ticker{s: s, sweepEvery: sweepEvery, clientStale: clientStale, stopCh: make(chan struct{})}
}

func (t *ticker) start() {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		tk := time.NewTicker(t.sweepEvery)
		defer tk.Stop()
		for {
			select {
			case <-tk.C:
				t.sweep()
			case <-t.stopCh:
				return
			}
		}
	}()
}

func (t *ticker) stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
	t.wg.Wait()
}

// sweep runs one pass of spec.md §4.7's liveness sweep. It iterates the
// actual RelayConn values of the server index — the §9-flagged bug in the
// original ("for...in over values()") is not replicated.
func (t *ticker) sweep() {
	s := t.s
	now := time.Now()

	s.mu.Lock()
	relayConns := make([]*RelayConn, 0, len(s.servers))
	for _, rc := range s.servers {
		relayConns = append(relayConns, rc)
	}
	staleClients := make([]*ClientConn, 0)
	for _, c := range s.clients {
		if c.stamp != nil && now.Sub(*c.stamp) > t.clientStale {
			staleClients = append(staleClients, c)
		}
	}
	s.mu.Unlock()

	for _, rc := range relayConns {
		s.mu.Lock()
		wasActive := rc.active
		if wasActive {
			rc.active = false
		}
		s.mu.Unlock()
		if !wasActive {
			s.closeRelay(rc)
			continue
		}
		rc.send(map[string]string{"action": "ping"})
	}

	for _, c := range staleClients {
		s.closeClient(c)
	}
}
