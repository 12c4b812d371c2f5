// Package membership implements the gossip-style peer membership and
// heartbeat protocol: a many-to-many broadcast bus socket, a roster of
// known peers with tick-based liveness, and the rendezvous ring derived
// from that roster.
package membership

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/bus"
	_ "go.nanomsg.org/mangos/v3/transport/tcp"

	"github.com/0X1A/File-Forklift/ferrors"
	"github.com/0X1A/File-Forklift/pulse"
	"github.com/0X1A/File-Forklift/wire"
)

// NodeSink receives a peer's liveness transitions, implemented by
// logsink.Bridge in the composition root; a nil NodeSink is valid and
// simply drops these events.
type NodeSink interface {
	NodeTransition(peer string, alive bool)
}

// Config controls one Engine's behavior.
type Config struct {
	Self             string        // this node's own ip:port
	Join             []string      // addresses to dial at startup (--join)
	HeartbeatPeriod  time.Duration // how often to tick/send
	StartTicks       int           // missed heartbeats tolerated before death
	MinPollFloor     time.Duration // matches the original's 10ms poll floor
}

// Engine owns the bus socket and the single goroutine that is allowed to
// mutate its PeerTable's roster-changing methods (Add/HeartbeatHeard/
// TickDownAll); reads of the table from other goroutines use its RWMutex.
type Engine struct {
	cfg   Config
	sock  mangos.Socket
	table *PeerTable
	pulse *pulse.Pulse
	sink  NodeSink
	log   *logrus.Entry

	haveNodelist bool
	dialed       map[string]struct{}

	inbound chan inboundMsg
}

type inboundMsg struct {
	kind wire.Kind
	body []string
}

// New constructs an Engine bound to cfg.Self but does not yet listen or
// dial; call Run to start it. sink may be nil when no durable event log
// is configured; every liveness transition is simply dropped in that
// case.
func New(cfg Config, sink NodeSink, log *logrus.Entry) (*Engine, error) {
	sock, err := bus.NewSocket()
	if err != nil {
		return nil, ferrors.New(ferrors.KindMembership, "create bus socket", err)
	}
	addr := "tcp://" + cfg.Self
	if err := sock.Listen(addr); err != nil {
		return nil, ferrors.New(ferrors.KindMembership, "listen "+addr, err)
	}
	return &Engine{
		cfg:     cfg,
		sock:    sock,
		table:   NewPeerTable(cfg.Self, cfg.StartTicks),
		pulse:   pulse.New(cfg.HeartbeatPeriod),
		sink:    sink,
		log:     log,
		dialed:  make(map[string]struct{}),
		inbound: make(chan inboundMsg, 64),
	}, nil
}

// Table returns the engine's PeerTable for read access from other
// goroutines (walkworker's ownership checks).
func (e *Engine) Table() *PeerTable { return e.table }

// Run drives the membership engine until ctx is cancelled. It starts the
// receive goroutine, dials any --join addresses, and runs the control
// loop (tick, send, tick-down, dispatch) on the calling goroutine.
func (e *Engine) Run(ctx context.Context) error {
	for _, addr := range e.cfg.Join {
		e.connect(addr)
	}

	recvErrCh := make(chan error, 1)
	go e.recvLoop(ctx, recvErrCh)

	ticker := time.NewTicker(e.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-recvErrCh:
			return err
		case msg := <-e.inbound:
			e.handle(msg)
		case <-ticker.C:
			// Poll at the fast floor rate and only act once e.pulse says
			// the configured heartbeat interval has actually elapsed,
			// the same poll-driven shape pulse.Pulse documents.
			if e.pulse.Beat() {
				e.sendAndTickDown()
			}
		}
	}
}

// pollInterval is the fast loop-polling rate: never slower than
// MinPollFloor, matching the original's 10ms poll floor. The much
// coarser HeartbeatPeriod is what e.pulse actually gates sends on.
func (e *Engine) pollInterval() time.Duration {
	if e.cfg.MinPollFloor > 0 {
		return e.cfg.MinPollFloor
	}
	return e.cfg.HeartbeatPeriod
}

func (e *Engine) recvLoop(ctx context.Context, errCh chan<- error) {
	_ = e.sock.SetOption(mangos.OptionRecvDeadline, e.pollInterval())
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		raw, err := e.sock.Recv()
		if err != nil {
			if err == mangos.ErrRecvTimeout {
				continue
			}
			select {
			case errCh <- ferrors.New(ferrors.KindMembership, "recv", err):
			default:
			}
			return
		}
		kind, body := wire.Decode(raw)
		select {
		case e.inbound <- inboundMsg{kind: kind, body: body}:
		case <-ctx.Done():
			return
		}
	}
}

// handle dispatches one decoded inbound message per spec.md §4.4: any
// message marks its sender alive; GETLIST triggers a NODELIST broadcast;
// NODELIST teaches the roster new peers and connects to them directly.
func (e *Engine) handle(msg inboundMsg) {
	switch msg.kind {
	case wire.GETLIST:
		if len(msg.body) == 1 {
			e.table.HeartbeatHeard(msg.body[0])
			e.connect(msg.body[0])
		}
		e.sendNodelist()
	case wire.HEARTBEAT:
		if len(msg.body) == 1 {
			e.table.HeartbeatHeard(msg.body[0])
			e.connect(msg.body[0])
		}
	case wire.NODELIST:
		e.haveNodelist = true
		for _, addr := range msg.body {
			if addr == e.cfg.Self {
				continue
			}
			if !e.table.Contains(addr) {
				e.table.Add(addr, true)
			} else {
				e.table.HeartbeatHeard(addr)
			}
			e.connect(addr)
		}
	default:
		e.log.WithField("kind", msg.kind).Warn("unrecognized message kind")
	}
}

// connect dials addr once; repeated NODELIST-learned connect attempts to
// an already-dialed peer are tolerated and simply skipped, since Bus
// sockets treat a duplicate Dial as a benign no-op retry target.
func (e *Engine) connect(addr string) {
	if addr == e.cfg.Self {
		return
	}
	if _, ok := e.dialed[addr]; ok {
		return
	}
	e.dialed[addr] = struct{}{}
	if err := e.sock.Dial("tcp://" + addr); err != nil {
		e.log.WithError(err).WithField("addr", addr).Warn("dial failed")
		delete(e.dialed, addr)
		return
	}
	e.table.Add(addr, false)
	if e.sink != nil {
		e.sink.NodeTransition(addr, true)
	}
}

func (e *Engine) sendNodelist() {
	e.send(wire.NODELIST, e.table.Addresses())
}

// sendAndTickDown is the per-tick action: age out dead peers, then send
// either our own heartbeat (once we have a full roster) or a GETLIST
// probe (until we learn one), per spec.md §4.3/§4.4.
func (e *Engine) sendAndTickDown() {
	dead := e.table.TickDownAll()
	for _, addr := range dead {
		e.log.WithField("addr", addr).Info("peer declared dead")
		if e.sink != nil {
			e.sink.NodeTransition(addr, false)
		}
	}
	if e.haveNodelist {
		e.send(wire.HEARTBEAT, []string{e.cfg.Self})
		return
	}
	e.send(wire.GETLIST, []string{e.cfg.Self})
}

func (e *Engine) send(kind wire.Kind, body []string) {
	if err := e.sock.Send(wire.Encode(kind, body)); err != nil {
		e.log.WithError(err).WithField("kind", kind).Warn("send failed")
	}
}

// Close releases the underlying socket.
func (e *Engine) Close() error {
	return e.sock.Close()
}
