package gossip

import (
	"io"
	"net"
	"strings"

	"kava/internal/logging"
)

const okPrefix = "OK:"

// Listener is the gossip task that accepts announcements from peers
// and records them in the snapshot. It only ever inserts or updates
// entries; the Talker is the only remover.
type Listener struct {
	bindAddr string
	snapshot *Snapshot
}

// NewListener builds a Listener that will bind bindAddr ("host:port").
func NewListener(bindAddr string, snapshot *Snapshot) *Listener {
	return &Listener{bindAddr: bindAddr, snapshot: snapshot}
}

// Run binds the gossip listener and accepts connections until the
// process exits; it returns only if the bind fails. Accept errors are
// logged and the loop continues. Each connection is handled on its own
// goroutine; a malformed payload is silently ignored.
func (l *Listener) Run() error {
	ln, err := net.Listen("tcp", l.bindAddr)
	if err != nil {
		return err
	}
	defer ln.Close()

	for {
		conn, err := ln.Accept()
		if err != nil {
			logging.Warn("gossip: accept failed: %v", err)
			continue
		}
		go l.handle(conn)
	}
}

func (l *Listener) handle(conn net.Conn) {
	defer conn.Close()

	payload, err := io.ReadAll(conn)
	if err != nil {
		logging.Debug("gossip: failed to read announcement from %s: %v", conn.RemoteAddr(), err)
		return
	}

	body := string(payload)
	if !strings.HasPrefix(body, okPrefix) {
		return
	}

	peerID := strings.TrimPrefix(body, okPrefix)
	if peerID == "" {
		return
	}

	l.snapshot.Put(peerID, conn.RemoteAddr().String())
}
