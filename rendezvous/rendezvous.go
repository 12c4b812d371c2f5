// Package rendezvous implements highest-random-weight (rendezvous) hashing
// over the live peer set, giving every path a deterministic, ranked list of
// candidate owners without any coordination between peers.
package rendezvous

import (
	"sort"

	"github.com/cespare/xxhash/v2"
)

// candidate is one peer scored against a particular key.
type candidate struct {
	node  string
	score uint64
}

// Ring holds the current set of candidate node names. It is not safe for
// concurrent use; callers (the membership engine) serialize access the
// same way they serialize every other PeerTable mutation.
type Ring struct {
	nodes map[string]struct{}
}

// New returns an empty Ring.
func New() *Ring {
	return &Ring{nodes: make(map[string]struct{})}
}

// Add inserts node into the candidate set. A no-op if already present.
func (r *Ring) Add(node string) {
	r.nodes[node] = struct{}{}
}

// Remove drops node from the candidate set. A no-op if absent.
func (r *Ring) Remove(node string) {
	delete(r.nodes, node)
}

// Len reports the number of candidate nodes.
func (r *Ring) Len() int { return len(r.nodes) }

// Candidates returns every live node for key, ordered by descending score
// (the rank a path owner falls back to when higher-ranked peers depart).
// The zeroth element is the current owner.
func (r *Ring) Candidates(key string) []string {
	cs := make([]candidate, 0, len(r.nodes))
	for n := range r.nodes {
		cs = append(cs, candidate{node: n, score: score(n, key)})
	}
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].score != cs[j].score {
			return cs[i].score > cs[j].score
		}
		return cs[i].node < cs[j].node
	})
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.node
	}
	return out
}

// Owner returns the current top-ranked candidate for key, and false if the
// ring has no candidates.
func (r *Ring) Owner(key string) (string, bool) {
	cs := r.Candidates(key)
	if len(cs) == 0 {
		return "", false
	}
	return cs[0], true
}

// score combines a node name and key the same way dgryski/go-rendezvous
// does: hash the concatenation with a fast non-cryptographic hash. The
// node name and key are joined with a NUL separator and hashed with
// xxhash's Sum64String.
func score(node, key string) uint64 {
	return xxhash.Sum64String(node + "\x00" + key)
}
