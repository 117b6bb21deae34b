package gossip

import (
	"fmt"
	"net"
	"time"

	"kava/internal/logging"
	"kava/internal/ring"
)

// DefaultInterval is the reference design's pause between dialing two
// peers within one talker pass.
const DefaultInterval = 10 * time.Second

// Talker is the gossip task that announces self to every peer in turn
// and evicts any peer it cannot reach. It only ever removes entries
// from the snapshot; the Listener is the only writer of inserts.
type Talker struct {
	selfID   string
	peers    []ring.ClusterNode
	snapshot *Snapshot
	interval time.Duration
	dialer   net.Dialer
}

// NewTalker builds a Talker over the given roster. roster may include
// self; the talker filters self out by node identifier (never by
// address comparison, which is ambiguous under loopback/DNS aliasing).
func NewTalker(selfID string, roster []ring.ClusterNode, snapshot *Snapshot, interval time.Duration) *Talker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	peers := make([]ring.ClusterNode, 0, len(roster))
	for _, n := range roster {
		if n.ID != selfID {
			peers = append(peers, n)
		}
	}
	return &Talker{
		selfID:   selfID,
		peers:    peers,
		snapshot: snapshot,
		interval: interval,
		dialer:   net.Dialer{Timeout: 2 * time.Second},
	}
}

// Run loops forever, making one pass over the peer list per iteration
// and sleeping interval between each peer contacted. It never returns
// under normal operation; callers start it in its own goroutine.
func (t *Talker) Run() {
	for {
		t.pass()
	}
}

func (t *Talker) pass() {
	for _, peer := range t.peers {
		t.contact(peer)
		time.Sleep(t.interval)
	}
}

// contact dials one peer's gossip endpoint, announces self, and evicts
// the peer from the snapshot on any connect or write failure.
func (t *Talker) contact(peer ring.ClusterNode) {
	conn, err := t.dialer.Dial("tcp", peer.GossipAddr())
	if err != nil {
		logging.Debug("gossip: failed to reach %s at %s: %v", peer.ID, peer.GossipAddr(), err)
		t.snapshot.Remove(peer.ID)
		return
	}
	defer conn.Close()

	_, err = fmt.Fprintf(conn, "OK:%s", t.selfID)
	if err != nil {
		logging.Debug("gossip: failed to announce to %s: %v", peer.ID, err)
		t.snapshot.Remove(peer.ID)
	}
}
