package membership

import (
	"sort"
	"sync"

	"github.com/0X1A/File-Forklift/rendezvous"
)

// PeerTable is the single-owner view of cluster membership: a set of
// known nodes keyed by address, plus the rendezvous ring derived from
// that set. Exactly one goroutine (the membership engine's control loop)
// mutates a PeerTable; the mutex exists only so read-only callers (the
// walk workers, in a later pipeline stage) can safely snapshot it from
// another goroutine, matching spec.md §5's single-writer/many-reader rule.
type PeerTable struct {
	mu        sync.RWMutex
	self      string
	nodes     map[string]*Node
	ring      *rendezvous.Ring
	startTick int
}

// NewPeerTable returns a table seeded with the local node's own address.
// startTick is the number of missed heartbeat intervals tolerated before
// a peer is declared dead (spec.md §4.3).
func NewPeerTable(self string, startTick int) *PeerTable {
	t := &PeerTable{
		self:      self,
		nodes:     make(map[string]*Node),
		ring:      rendezvous.New(),
		startTick: startTick,
	}
	t.ring.Add(self)
	t.nodes[self] = newNode(self, startTick)
	return t
}

// Self returns the local node's own address.
func (t *PeerTable) Self() string { return t.self }

// Add inserts address into the roster if not already present, marking it
// as learned-from-NODELIST when nodeListed is true. Returns whether it
// was newly added.
func (t *PeerTable) Add(address string, nodeListed bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.nodes[address]; ok {
		return false
	}
	n := newNode(address, t.startTick)
	n.NodeListed = nodeListed
	t.nodes[address] = n
	t.ring.Add(address)
	return true
}

// HeartbeatHeard resets a node's tick budget, adding it first if unknown
// (an inbound message is itself proof of liveness, per spec.md §4.3).
func (t *PeerTable) HeartbeatHeard(address string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[address]
	if !ok {
		n = newNode(address, t.startTick)
		t.nodes[address] = n
		t.ring.Add(address)
		return
	}
	n.heartbeatHeard(t.startTick)
}

// TickDownAll applies one tick to every node except self (decrementing
// the budget of each node not heard from since the previous tick) and
// returns the addresses that have just died (left with a zero or
// negative budget).
// Dead nodes are removed from the roster and the rendezvous ring.
func (t *PeerTable) TickDownAll() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var dead []string
	for addr, n := range t.nodes {
		if addr == t.self {
			continue
		}
		if n.tickDown() {
			dead = append(dead, addr)
		}
	}
	for _, addr := range dead {
		delete(t.nodes, addr)
		t.ring.Remove(addr)
	}
	sort.Strings(dead)
	return dead
}

// Addresses returns every known node's address, sorted, for building a
// NODELIST reply.
func (t *PeerTable) Addresses() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.nodes))
	for addr := range t.nodes {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether address is a known peer.
func (t *PeerTable) Contains(address string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.nodes[address]
	return ok
}

// Len reports the number of known nodes, including self.
func (t *PeerTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// Candidates returns the rendezvous-ranked owner list for key.
func (t *PeerTable) Candidates(key string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ring.Candidates(key)
}

// Owns reports whether the local node is the top-ranked candidate for key.
func (t *PeerTable) Owns(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	owner, ok := t.ring.Owner(key)
	return ok && owner == t.self
}
