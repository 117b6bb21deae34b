// Command kava-node runs one cluster node: it loads a configuration
// file, builds the hash ring and storage engine, starts the gossip
// talker and listener, optionally starts the metrics HTTP server, and
// serves the client-facing request plane until the process exits.
package main

import (
	"fmt"
	"os"

	"kava/internal/config"
	"kava/internal/gossip"
	"kava/internal/logging"
	"kava/internal/metrics"
	"kava/internal/ring"
	"kava/internal/server"
	"kava/internal/storage"
)

// vnodesPerNode is the reference design's fan-out: how many virtual
// tokens each physical node contributes to the ring.
const vnodesPerNode = 32

func main() {
	path := config.DefaultPath
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kava-node: %v\n", err)
		os.Exit(1)
	}

	logging.Init(cfg.LogEnabled)

	self, ok := selfNode(cfg)
	if !ok {
		fmt.Fprintf(os.Stderr, "kava-node: self node %q missing from roster\n", cfg.Me)
		os.Exit(1)
	}

	hashRing := ring.Build(cfg.Roster, vnodesPerNode)
	store := storage.New(cfg.Storage)
	snapshot := gossip.NewSnapshot(cfg.Me, self.ClientAddr())

	var m *metrics.Metrics
	if cfg.MetricsPort != 0 {
		m = metrics.New()
		metricsSrv := metrics.NewServer(fmt.Sprintf("%s:%d", cfg.Host, cfg.MetricsPort), m)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil {
				logging.Error("metrics server exited: %v", err)
			}
		}()
		logging.Info("metrics listening on %s:%d", cfg.Host, cfg.MetricsPort)
	}

	listener := gossip.NewListener(self.GossipAddr(), snapshot)
	go func() {
		if err := listener.Run(); err != nil {
			logging.Error("gossip listener exited: %v", err)
			os.Exit(1)
		}
	}()

	talker := gossip.NewTalker(cfg.Me, cfg.Roster, snapshot, gossip.DefaultInterval)
	go talker.Run()

	logging.Info("kava-node %s starting: client=%s gossip=%s storage=%s peers=%d",
		cfg.Me, self.ClientAddr(), self.GossipAddr(), cfg.Storage, len(cfg.Roster)-1)

	requestPlane := server.New(self.ClientAddr(), cfg.Me, store, hashRing, snapshot, m)
	if err := requestPlane.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "kava-node: request plane: %v\n", err)
		os.Exit(1)
	}
}

func selfNode(cfg *config.Config) (ring.ClusterNode, bool) {
	for _, n := range cfg.Roster {
		if n.ID == cfg.Me {
			return n, true
		}
	}
	return ring.ClusterNode{}, false
}
