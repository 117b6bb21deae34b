package gossip

import (
	"net"
	"strconv"
	"testing"
	"time"

	"kava/internal/ring"
)

func TestTalkerFiltersSelfByID(t *testing.T) {
	roster := []ring.ClusterNode{
		{ID: "A", Host: "127.0.0.1", GossipPort: 1},
		{ID: "B", Host: "127.0.0.1", GossipPort: 2},
	}
	snapshot := NewSnapshot("A", "127.0.0.1:7000")
	talker := NewTalker("A", roster, snapshot, time.Millisecond)

	if len(talker.peers) != 1 || talker.peers[0].ID != "B" {
		t.Fatalf("peers = %+v, want only B", talker.peers)
	}
}

func TestTalkerEvictsUnreachablePeer(t *testing.T) {
	roster := []ring.ClusterNode{
		{ID: "A", Host: "127.0.0.1", GossipPort: 1},
		// Port 1 on loopback is not listening; dialing it fails fast.
		{ID: "B", Host: "127.0.0.1", GossipPort: 1},
	}
	snapshot := NewSnapshot("A", "127.0.0.1:7000")
	snapshot.Put("B", "127.0.0.1:8001")

	talker := NewTalker("A", roster, snapshot, time.Millisecond)
	talker.pass()

	if _, ok := snapshot.Lookup("B"); ok {
		t.Fatal("unreachable peer B was not evicted")
	}
}

func TestTalkerAnnouncesToReachablePeer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer ln.Close()

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		received <- string(buf[:n])
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	roster := []ring.ClusterNode{
		{ID: "A", Host: "127.0.0.1"},
		{ID: "B", Host: host, GossipPort: port},
	}
	snapshot := NewSnapshot("A", "127.0.0.1:7000")
	talker := NewTalker("A", roster, snapshot, time.Millisecond)
	talker.pass()

	select {
	case msg := <-received:
		if msg != "OK:A" {
			t.Fatalf("received %q, want OK:A", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for announcement")
	}
}
