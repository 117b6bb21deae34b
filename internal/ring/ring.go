// Package ring implements the consistent-hash ring that maps a key to
// the cluster node that owns it.
package ring

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// ClusterNode is the static description of one peer, loaded at startup
// and immutable for the process lifetime.
type ClusterNode struct {
	ID         string
	Host       string
	Port       int
	GossipPort int
}

// ClientAddr returns the peer's client-facing "host:port" address.
func (n ClusterNode) ClientAddr() string {
	return fmt.Sprintf("%s:%d", n.Host, n.Port)
}

// GossipAddr returns the peer's gossip-facing "host:port" address.
func (n ClusterNode) GossipAddr() string {
	return fmt.Sprintf("%s:%d", n.Host, n.GossipPort)
}

type vnode struct {
	token uint32
	node  ClusterNode
}

// Ring is the sorted sequence of vnodes built once from a cluster
// roster and a virtual-node fan-out. It is immutable after Build and
// safe to share across goroutines without locking.
type Ring struct {
	vnodes []vnode
}

// hash32 computes the 32-bit token used for both vnode placement and
// key lookup. It is the low 32 bits of XXH64, chosen so that any two
// nodes built from identical binaries agree on ownership regardless of
// process-local map iteration order or pointer identity (the failure
// mode of a structural/address hash).
func hash32(s string) uint32 {
	return uint32(xxhash.Sum64String(s))
}

// Build constructs a Ring from the full cluster roster and a fan-out V
// (virtual nodes per physical node, V >= 1). Tokens are derived from
// hash(node_id + "-" + i) for i in [0, V), and the resulting sequence
// is sorted ascending by token; ties are broken by roster order then
// by i, which is deterministic given a fixed roster and V.
func Build(roster []ClusterNode, v int) *Ring {
	if v < 1 {
		v = 1
	}

	vnodes := make([]vnode, 0, len(roster)*v)
	for _, node := range roster {
		for i := 0; i < v; i++ {
			token := hash32(fmt.Sprintf("%s-%d", node.ID, i))
			vnodes = append(vnodes, vnode{token: token, node: node})
		}
	}

	sort.SliceStable(vnodes, func(i, j int) bool {
		return vnodes[i].token < vnodes[j].token
	})

	return &Ring{vnodes: vnodes}
}

// ErrNoOwner is returned by Primary when the ring has no vnodes. The
// request plane must treat this as a fatal configuration error; it is
// expected never to occur since the self node is always in the roster.
var ErrNoOwner = fmt.Errorf("ring has no owner: empty roster")

// Primary returns the ClusterNode that owns key: the node of the first
// vnode whose token is >= hash(key), wrapping to the first vnode when
// every token is smaller.
func (r *Ring) Primary(key string) (ClusterNode, error) {
	if len(r.vnodes) == 0 {
		return ClusterNode{}, ErrNoOwner
	}

	h := hash32(key)
	idx := sort.Search(len(r.vnodes), func(i int) bool {
		return r.vnodes[i].token >= h
	})
	if idx == len(r.vnodes) {
		idx = 0
	}
	return r.vnodes[idx].node, nil
}

// Len returns the number of vnodes in the ring. Used by diagnostics.
func (r *Ring) Len() int {
	return len(r.vnodes)
}
