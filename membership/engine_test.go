package membership

import (
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// TestEngine_TwoPeersDiscoverEachOther starts two engines on loopback, has
// the second join the first, and waits for both rosters to converge to
// size two, exercising the GETLIST/NODELIST/connect dance end to end.
func TestEngine_TwoPeersDiscoverEachOther(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network roundtrip test in -short mode")
	}

	selfA := "127.0.0.1:" + strconv.Itoa(freePort(t))
	selfB := "127.0.0.1:" + strconv.Itoa(freePort(t))

	a, err := New(Config{
		Self:            selfA,
		HeartbeatPeriod: 20 * time.Millisecond,
		StartTicks:      50,
		MinPollFloor:    10 * time.Millisecond,
	}, nil, testLogger())
	require.NoError(t, err)
	defer a.Close()

	b, err := New(Config{
		Self:            selfB,
		Join:            []string{selfA},
		HeartbeatPeriod: 20 * time.Millisecond,
		StartTicks:      50,
		MinPollFloor:    10 * time.Millisecond,
	}, nil, testLogger())
	require.NoError(t, err)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	go a.Run(ctx)
	go b.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a.Table().Len() == 2 && b.Table().Len() == 2 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("rosters did not converge: a=%d b=%d", a.Table().Len(), b.Table().Len())
}

type recordingNodeSink struct {
	mu          sync.Mutex
	transitions []string
}

func (r *recordingNodeSink) NodeTransition(peer string, alive bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := "dead"
	if alive {
		state = "alive"
	}
	r.transitions = append(r.transitions, peer+":"+state)
}

func (r *recordingNodeSink) seen(entry string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.transitions {
		if t == entry {
			return true
		}
	}
	return false
}

// TestEngine_GetlistFromUnknownSenderConnectsBack exercises the
// GETLIST/HEARTBEAT branches added alongside NODELIST: hearing from a
// peer we've never dialed must make us dial it, not merely record it in
// the roster, and must surface as a NodeSink transition.
func TestEngine_GetlistFromUnknownSenderConnectsBack(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network roundtrip test in -short mode")
	}

	selfA := "127.0.0.1:" + strconv.Itoa(freePort(t))
	selfB := "127.0.0.1:" + strconv.Itoa(freePort(t))

	sinkA := &recordingNodeSink{}
	a, err := New(Config{
		Self:            selfA,
		HeartbeatPeriod: 20 * time.Millisecond,
		StartTicks:      50,
		MinPollFloor:    10 * time.Millisecond,
	}, sinkA, testLogger())
	require.NoError(t, err)
	defer a.Close()

	b, err := New(Config{
		Self:            selfB,
		HeartbeatPeriod: 20 * time.Millisecond,
		StartTicks:      50,
		MinPollFloor:    10 * time.Millisecond,
	}, nil, testLogger())
	require.NoError(t, err)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	go a.Run(ctx)
	go b.Run(ctx)

	// b dials a directly; a never dials b, so a only learns of b by
	// receiving a GETLIST/HEARTBEAT from it.
	b.connect(selfA)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a.Table().Contains(selfB) && sinkA.seen(selfB+":alive") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("a never connected back to b after hearing from it unsolicited")
}
