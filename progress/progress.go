// Package progress aggregates per-entry sync outcomes from every rsync
// worker into one run's running totals and forwards them to the log
// sink, mirroring the original's dedicated progress-reporting thread.
package progress

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/0X1A/File-Forklift/rsyncworker"
)

// Sink receives the events an Aggregator produces, implemented by
// logsink.Bridge in the composition root.
type Sink interface {
	File(relPath string, outcome rsyncworker.Outcome, size int64)
	Error(relPath string, err error)
	TotalSync(stats rsyncworker.Stats)
	Todo(numFiles, totalSize int64)
}

// Aggregator implements rsyncworker.ProgressReporter and
// walkworker.ProgressReporter, folding every worker's outcomes into one
// shared Stats and forwarding each event to Sink, so every rsync worker
// and the walker can report through the same instance without their own
// synchronization.
type Aggregator struct {
	mu sync.Mutex

	stats         *rsyncworker.Stats
	todoFiles     int64
	todoTotalSize int64

	sink Sink
	log  *logrus.Entry
}

// New returns an Aggregator with zeroed stats.
func New(sink Sink, log *logrus.Entry) *Aggregator {
	return &Aggregator{stats: rsyncworker.New(), sink: sink, log: log}
}

// Todo folds one more discovered-but-not-yet-synced entry into the
// running "remaining work" total and forwards the updated total to the
// sink, giving a live view of outstanding work distinct from the
// rsync-outcome events each entry eventually produces (spec.md §4.6).
func (a *Aggregator) Todo(size int64) {
	a.mu.Lock()
	a.todoFiles++
	a.todoTotalSize += size
	files, total := a.todoFiles, a.todoTotalSize
	a.mu.Unlock()
	a.sink.Todo(files, total)
}

// ReportOutcome folds one entry's outcome into the running stats and
// forwards it to the sink. Safe for concurrent use by every rsync
// worker goroutine.
func (a *Aggregator) ReportOutcome(o rsyncworker.Outcome, size int64) {
	a.mu.Lock()
	a.stats.AddOutcome(o, size)
	a.mu.Unlock()
	a.sink.File("", o, size)
}

// ReportError forwards a per-entry failure to the sink without folding
// it into the success-path stats. Called both by rsync workers (a
// failed sync decision) and by the walker (a readdir/stat that never
// became an entry), so every failure reaches the same error table.
func (a *Aggregator) ReportError(relPath string, err error) {
	a.log.WithError(err).WithField("path", relPath).Warn("entry failed")
	a.sink.Error(relPath, err)
}

// EndSync snapshots the run's totals, forwards them to the sink as the
// run's closing totalsync record, and resets for the next run (spec.md
// §4.8's end-of-walk signal).
func (a *Aggregator) EndSync() rsyncworker.Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	snapshot := *a.stats
	a.sink.TotalSync(snapshot)
	a.stats.Reset()
	a.todoFiles = 0
	a.todoTotalSize = 0
	return snapshot
}

// Snapshot returns a copy of the current running totals without
// resetting them.
func (a *Aggregator) Snapshot() rsyncworker.Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return *a.stats
}
