package gossip

import (
	"net"
	"testing"
	"time"
)

func dialAndSend(t *testing.T, addr, payload string) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(payload)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestListenerInsertsOnAnnouncement(t *testing.T) {
	snapshot := NewSnapshot("A", "127.0.0.1:7000")
	listener := NewListener("127.0.0.1:0", snapshot)

	ln, err := net.Listen("tcp", listener.bindAddr)
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	listener.bindAddr = ln.Addr().String()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go listener.handle(conn)
		}
	}()
	defer ln.Close()

	dialAndSend(t, ln.Addr().String(), "OK:B")

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := snapshot.Lookup("B"); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("snapshot never gained entry for B")
}

func TestListenerIgnoresMalformedPayload(t *testing.T) {
	snapshot := NewSnapshot("A", "127.0.0.1:7000")
	listener := NewListener("127.0.0.1:0", snapshot)

	ln, err := net.Listen("tcp", listener.bindAddr)
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	listener.bindAddr = ln.Addr().String()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go listener.handle(conn)
		}
	}()
	defer ln.Close()

	dialAndSend(t, ln.Addr().String(), "garbage")
	time.Sleep(50 * time.Millisecond)

	if snapshot.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (only self)", snapshot.Len())
	}
}

func TestListenerIgnoresEmptyPeerID(t *testing.T) {
	snapshot := NewSnapshot("A", "127.0.0.1:7000")
	listener := NewListener("127.0.0.1:0", snapshot)

	ln, err := net.Listen("tcp", listener.bindAddr)
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	listener.bindAddr = ln.Addr().String()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go listener.handle(conn)
		}
	}()
	defer ln.Close()

	dialAndSend(t, ln.Addr().String(), "OK:")
	time.Sleep(50 * time.Millisecond)

	if snapshot.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (only self)", snapshot.Len())
	}
}
