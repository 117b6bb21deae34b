// Package server implements the request plane: the per-connection
// accept loop that parses one command, executes it locally or
// forwards it to the ring-determined owner, and writes back exactly
// one response.
package server

import (
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"time"

	"kava/internal/command"
	"kava/internal/gossip"
	"kava/internal/logging"
	"kava/internal/metrics"
	"kava/internal/ring"
	"kava/internal/storage"
)

const (
	dialTimeout  = 2 * time.Second
	writeTimeout = 2 * time.Second
	readTimeout  = 5 * time.Second
)

// Server is the request plane.
type Server struct {
	addr     string
	selfID   string
	store    storage.Store
	ring     *ring.Ring
	snapshot *gossip.Snapshot
	metrics  *metrics.Metrics
	dialer   net.Dialer
}

// New builds a request-plane Server. m may be nil to disable metrics.
func New(addr, selfID string, store storage.Store, rng *ring.Ring, snapshot *gossip.Snapshot, m *metrics.Metrics) *Server {
	return &Server{
		addr:     addr,
		selfID:   selfID,
		store:    store,
		ring:     rng,
		snapshot: snapshot,
		metrics:  m,
		dialer:   net.Dialer{Timeout: dialTimeout},
	}
}

// Run binds the client-facing listener and accepts connections until
// the process exits; it returns only if the bind fails. Accept errors
// are logged and the loop continues. Each connection is handled on its
// own goroutine; ordering between connections is not guaranteed.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	logging.Info("request plane listening on %s", s.addr)
	logging.Warn("request plane: forwarding timeouts dial=%s write=%s read=%s", dialTimeout, writeTimeout, readTimeout)

	for {
		conn, err := ln.Accept()
		if err != nil {
			logging.Warn("request plane: accept failed: %v", err)
			continue
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	buf, err := io.ReadAll(conn)
	if err != nil {
		logging.Warn("request plane: failed to read from %s: %v", conn.RemoteAddr(), err)
		return
	}

	cmd, err := command.Parse(buf)
	if err != nil {
		logging.Warn("request plane: malformed command from %s: %q", conn.RemoteAddr(), string(buf))
		return
	}

	resp := s.dispatch(cmd)
	if _, err := conn.Write([]byte(resp)); err != nil {
		logging.Warn("request plane: failed to write response to %s: %v", conn.RemoteAddr(), err)
	}
}

func (s *Server) dispatch(cmd command.Command) string {
	s.updateGossipGauge()

	switch cmd.Kind {
	case command.Put:
		return s.dispatchPut(cmd)
	case command.Read:
		return s.dispatchRead(cmd)
	case command.Delete:
		return s.dispatchDelete(cmd)
	case command.ReadRange:
		return s.dispatchReadRange(cmd)
	case command.BatchPut:
		return s.dispatchBatchPut(cmd)
	default:
		return "Error: unknown command\n"
	}
}

// owner resolves the ring-determined owner of key. The only failure
// mode is an empty ring, which cannot happen once a node has started
// successfully (self is always in the roster), but is handled as a
// regular storage-style error rather than a panic.
func (s *Server) owner(key string) (node ring.ClusterNode, ok bool, errResp string) {
	node, err := s.ring.Primary(key)
	if err != nil {
		return ring.ClusterNode{}, false, "Error: " + err.Error() + "\n"
	}
	return node, true, ""
}

func (s *Server) dispatchPut(cmd command.Command) string {
	owner, ok, errResp := s.owner(cmd.Key)
	if !ok {
		return errResp
	}
	if owner.ID != s.selfID {
		return s.forwardCommand("PUT", cmd, owner)
	}
	if err := s.store.Put(cmd.Key, cmd.Value); err != nil {
		s.recordRequest("PUT", "error")
		return "Error: " + err.Error() + "\n"
	}
	s.recordRequest("PUT", "ok")
	s.updateStorageGauge()
	return "OK\n"
}

func (s *Server) dispatchRead(cmd command.Command) string {
	owner, ok, errResp := s.owner(cmd.Key)
	if !ok {
		return errResp
	}
	if owner.ID != s.selfID {
		return s.forwardCommand("READ", cmd, owner)
	}
	value, err := s.store.Read(cmd.Key)
	if err != nil {
		s.recordRequest("READ", "error")
		return "Error: " + err.Error() + "\n"
	}
	s.recordRequest("READ", "ok")
	return value + "\n"
}

func (s *Server) dispatchDelete(cmd command.Command) string {
	owner, ok, errResp := s.owner(cmd.Key)
	if !ok {
		return errResp
	}
	if owner.ID != s.selfID {
		return s.forwardCommand("DELETE", cmd, owner)
	}
	if err := s.store.Delete(cmd.Key); err != nil {
		s.recordRequest("DELETE", "error")
		return "Error: " + err.Error() + "\n"
	}
	s.recordRequest("DELETE", "ok")
	s.updateStorageGauge()
	return "OK\n"
}

// dispatchReadRange always executes locally: range scans are not
// forwarded, regardless of which node owns any individual key in the
// range.
func (s *Server) dispatchReadRange(cmd command.Command) string {
	pairs, err := s.store.Range(cmd.Start, cmd.End)
	if err != nil {
		s.recordRequest("READRANGE", "error")
		return "Error: " + err.Error() + "\n"
	}
	s.recordRequest("READRANGE", "ok")

	var b strings.Builder
	for _, p := range pairs {
		b.WriteString(p.Key)
		b.WriteByte(' ')
		b.WriteString(p.Value)
		b.WriteByte('\n')
	}
	return b.String()
}

// dispatchBatchPut pairs the flat token sequence, groups pairs by
// owner, applies the local group directly, and forwards every
// non-local group using the live gossip snapshot to resolve the
// owner's address -- never the static roster.
func (s *Server) dispatchBatchPut(cmd command.Command) string {
	groups := map[string][]storage.Pair{}

	for i := 0; i+1 < len(cmd.Pairs); i += 2 {
		key, value := cmd.Pairs[i], cmd.Pairs[i+1]
		owner, err := s.ring.Primary(key)
		if err != nil {
			s.recordRequest("BATCHPUT", "error")
			return "Error: " + err.Error() + "\n"
		}
		groups[owner.ID] = append(groups[owner.ID], storage.Pair{Key: key, Value: value})
	}

	var responses []string
	if local, ok := groups[s.selfID]; ok {
		if err := s.store.BatchPut(local); err != nil {
			responses = append(responses, "Error: "+err.Error()+"\n")
		} else {
			responses = append(responses, "OK\n")
			s.updateStorageGauge()
		}
	}

	ids := make([]string, 0, len(groups))
	for id := range groups {
		if id == s.selfID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		addr, ok := s.snapshot.Lookup(id)
		if !ok {
			// Peer currently believed unreachable: its group is
			// skipped entirely, not counted as an error.
			continue
		}
		sub := command.Command{Kind: command.BatchPut, Pairs: flatten(groups[id])}
		responses = append(responses, s.forward(sub.Text(), addr, id))
	}

	result := aggregate(responses)
	s.recordRequest("BATCHPUT", batchOutcome(result))
	return result
}

func flatten(pairs []storage.Pair) []string {
	out := make([]string, 0, len(pairs)*2)
	for _, p := range pairs {
		out = append(out, p.Key, p.Value)
	}
	return out
}

// aggregate collapses per-owner BatchPut sub-responses per the
// literal-prefix classification rule: OK only if every sub-response is
// exactly "OK\n", Partial OK if at least one starts with "OK", else a
// joined error.
func aggregate(responses []string) string {
	if len(responses) == 0 {
		return "OK\n"
	}

	allOK := true
	anyOK := false
	var reasons []string
	for _, r := range responses {
		if r == "OK\n" {
			anyOK = true
			continue
		}
		allOK = false
		if strings.HasPrefix(r, "OK") {
			anyOK = true
		} else {
			reasons = append(reasons, strings.TrimPrefix(strings.TrimRight(r, "\n"), "Error: "))
		}
	}

	switch {
	case allOK:
		return "OK\n"
	case anyOK:
		return "Partial OK\n"
	default:
		return "Error: " + strings.Join(reasons, "; ") + "\n"
	}
}

func batchOutcome(resp string) string {
	switch {
	case resp == "OK\n":
		return "ok"
	case strings.HasPrefix(resp, "Partial OK"):
		return "partial"
	default:
		return "error"
	}
}

func (s *Server) forwardCommand(kind string, cmd command.Command, owner ring.ClusterNode) string {
	s.recordRequest(kind, "forwarded")
	return s.forward(cmd.Text(), owner.ClientAddr(), owner.ID)
}

// forward dials addr, writes line followed by a half-close, and reads
// the peer's entire response to end-of-stream. Any connect, write, or
// read failure produces a synthetic "Failed to <phase> <peer_id>:
// <reason>" string that is returned verbatim and never rewritten to
// the "Error:" prefix.
func (s *Server) forward(line, addr, peerID string) string {
	conn, err := s.dialer.Dial("tcp", addr)
	if err != nil {
		s.recordForward("error")
		return fmt.Sprintf("Failed to connect %s: %v", peerID, err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		s.recordForward("error")
		return fmt.Sprintf("Failed to write %s: %v", peerID, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.CloseWrite()
	}

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	body, err := io.ReadAll(conn)
	if err != nil {
		s.recordForward("error")
		return fmt.Sprintf("Failed to read %s: %v", peerID, err)
	}

	s.recordForward("ok")
	return string(body)
}

func (s *Server) recordRequest(kind, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RequestsTotal.WithLabelValues(kind, outcome).Inc()
}

func (s *Server) recordForward(outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.ForwardsTotal.WithLabelValues(outcome).Inc()
}

func (s *Server) updateGossipGauge() {
	if s.metrics == nil {
		return
	}
	s.metrics.GossipPeers.Set(float64(s.snapshot.Len()))
}

// keyCounter is implemented by storage engines that can report their
// key count; used opportunistically for the storage gauge without
// widening the Store capability interface.
type keyCounter interface {
	Count() int
}

func (s *Server) updateStorageGauge() {
	if s.metrics == nil {
		return
	}
	if c, ok := s.store.(keyCounter); ok {
		s.metrics.StorageKeys.Set(float64(c.Count()))
	}
}
