package membership

import "time"

// Node is one peer in the cluster's membership roster, keyed by its
// ip:port address. Liveness only ever falls on a tick where the node
// has been silent the whole interval; hearing from the node resets its
// budget to full and sets heartbeatSeen, which the next tick consumes
// instead of decrementing.
type Node struct {
	Address       string
	TicksLeft     int
	LastSeen      time.Time
	NodeListed    bool // learned from an inbound NODELIST rather than dialed directly
	heartbeatSeen bool // heard from this tick; consumed (not decremented) on the next tickDown
}

// newNode creates a freshly-seen node with a full tick budget.
func newNode(address string, startTicks int) *Node {
	return &Node{
		Address:   address,
		TicksLeft: startTicks,
		LastSeen:  time.Now(),
	}
}

// heartbeatHeard marks a node as heard-from this interval, on receipt of
// any message from it (GETLIST, NODELIST, or HEARTBEAT all count, per
// spec.md §4.3). The budget is reset to startTicks; tickDown is what
// consumes heartbeatSeen.
func (n *Node) heartbeatHeard(startTicks int) {
	n.TicksLeft = startTicks
	n.heartbeatSeen = true
	n.LastSeen = time.Now()
}

// tickDown applies one interval's worth of liveness accounting: if the
// node has been heard from since the last tick, that's spent clearing
// heartbeatSeen for next time and the budget holds; otherwise the budget
// is decremented. Returns whether the node has now reached zero (dead).
func (n *Node) tickDown() bool {
	if n.heartbeatSeen {
		n.heartbeatSeen = false
		return false
	}
	n.TicksLeft--
	return n.TicksLeft <= 0
}
