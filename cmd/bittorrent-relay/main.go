package main

import (
	"flag"
	"log"

	"github.com/jpillora/bittorrent-relay/config"
	"github.com/jpillora/bittorrent-relay/internal/rlog"
	"github.com/jpillora/bittorrent-relay/relay"
)

// VERSION is set with ldflags at build time.
var VERSION = "0.0.0-src"

func main() {
	configPath := flag.String("c", "bittorrent-relay.yaml", "Configuration file path")
	flag.Parse()

	c, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	rlog.Configure(c.Dev)
	defer rlog.Sync()

	s, err := relay.New(relay.Options{
		Host:   c.Host,
		Port:   c.Port,
		Server: c.Server,
		Domain: c.Domain,
		Hashes: c.Hashes,
		Limits: relay.Limits{
			ServerConnections: c.LimitServerConnections,
			ClientConnections: c.LimitClientConnections,
			MessageRate:       c.LimitMessageRate,
		},
		Relay: c.Relay,
		Dev:   c.Dev,
	})
	if err != nil {
		log.Fatal(err)
	}

	if c.Init {
		if err := s.Start(c.Relay); err != nil {
			log.Fatal(err)
		}
	}

	select {}
}
