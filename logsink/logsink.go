// Package logsink bridges every producer goroutine (rsync workers via
// progress.Aggregator, the membership engine) to a single postgres
// writer goroutine, the same many-producers/one-consumer shape the
// original's postgres_logger used around an mpsc channel.
package logsink

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/0X1A/File-Forklift/rsyncworker"
)

// EndState is sent on a run's control channel when the log sink decides
// the run is finished.
type EndState int

// End states. EndRerun has no current caller — the original's own
// Rerun variant was commented out — but the slot is kept so a future
// retry policy has somewhere to signal into without changing this type.
const (
	EndProgram EndState = iota
	EndRerun
)

type kind int

const (
	kindFile kind = iota
	kindError
	kindTotalSync
	kindNode
	kindTodo
	kindEnd
)

type message struct {
	kind kind

	relPath string
	outcome rsyncworker.Outcome
	size    int64

	err error

	stats rsyncworker.Stats

	peer     string
	alive    bool
	endState EndState

	numFiles  int64
	totalSize int64
}

// Bridge is the single owner of the postgres connection and the only
// goroutine that ever writes to it. Every other goroutine talks to it
// only through its channel-backed methods.
type Bridge struct {
	db    *sql.DB
	runID uuid.UUID
	log   *logrus.Entry

	in  chan message
	end chan EndState
}

// New wraps db (a `database/sql` handle already opened with the
// `lib/pq` driver) and returns a Bridge with its own fresh run id.
func New(db *sql.DB, log *logrus.Entry) *Bridge {
	return &Bridge{
		db:    db,
		runID: uuid.New(),
		log:   log,
		in:    make(chan message, 256),
		end:   make(chan EndState, 1),
	}
}

// RunID returns the correlation id stamped onto every row this Bridge
// writes, satisfying the (path, run_id) / (peer, run_id, transition_at)
// idempotency keys spec.md's data model requires.
func (b *Bridge) RunID() uuid.UUID { return b.runID }

// File records one synced (or attempted) entry.
func (b *Bridge) File(relPath string, outcome rsyncworker.Outcome, size int64) {
	b.send(message{kind: kindFile, relPath: relPath, outcome: outcome, size: size})
}

// Error records one entry-level failure.
func (b *Bridge) Error(relPath string, err error) {
	b.send(message{kind: kindError, relPath: relPath, err: err})
}

// TotalSync records one run's closing stats snapshot.
func (b *Bridge) TotalSync(stats rsyncworker.Stats) {
	b.send(message{kind: kindTotalSync, stats: stats})
}

// NodeTransition records a peer's liveness transition.
func (b *Bridge) NodeTransition(peer string, alive bool) {
	b.send(message{kind: kindNode, peer: peer, alive: alive})
}

// Todo records the running "work discovered so far" total. Unlike File,
// Error, TotalSync, and NodeTransition this has no stable row identity
// to key a table on — it is superseded by the next Todo and by the
// run's closing TotalSync — so it is surfaced as a log line rather than
// a postgres write.
func (b *Bridge) Todo(numFiles, totalSize int64) {
	b.send(message{kind: kindTodo, numFiles: numFiles, totalSize: totalSize})
}

// End signals that no more events are coming for this run and the
// consumer loop should report endState on its control channel and stop.
func (b *Bridge) End(endState EndState) {
	b.send(message{kind: kindEnd, endState: endState})
}

func (b *Bridge) send(m message) {
	select {
	case b.in <- m:
	default:
		b.log.Warn("log sink queue full, dropping event")
	}
}

// EndCh is signaled once after End is processed by the consumer loop.
func (b *Bridge) EndCh() <-chan EndState { return b.end }

// Run is the single consumer goroutine; call it once, in its own
// goroutine, from the composition root.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-b.in:
			if err := b.handle(ctx, m); err != nil {
				b.log.WithError(err).Warn("log sink write failed")
			}
			if m.kind == kindEnd {
				b.end <- m.endState
				return nil
			}
		}
	}
}

func (b *Bridge) handle(ctx context.Context, m message) error {
	switch m.kind {
	case kindFile:
		return b.postFile(ctx, m.relPath, m.outcome, m.size)
	case kindError:
		return b.postError(ctx, m.relPath, m.err)
	case kindTotalSync:
		return b.postTotalSync(ctx, m.stats)
	case kindNode:
		return b.postNode(ctx, m.peer, m.alive)
	case kindTodo:
		b.log.WithFields(logrus.Fields{"num_files": m.numFiles, "total_size": m.totalSize}).Debug("work remaining")
		return nil
	case kindEnd:
		return nil
	default:
		return nil
	}
}

func (b *Bridge) postFile(ctx context.Context, relPath string, outcome rsyncworker.Outcome, size int64) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO files (path, run_id, outcome, size, synced_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (path, run_id) DO UPDATE
		SET outcome = EXCLUDED.outcome, size = EXCLUDED.size, synced_at = EXCLUDED.synced_at
	`, relPath, b.runID, int(outcome), size, time.Now().UTC())
	return err
}

func (b *Bridge) postError(ctx context.Context, relPath string, cause error) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO errors (path, run_id, message, occurred_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (path, run_id) DO UPDATE
		SET message = EXCLUDED.message, occurred_at = EXCLUDED.occurred_at
	`, relPath, b.runID, cause.Error(), time.Now().UTC())
	return err
}

func (b *Bridge) postTotalSync(ctx context.Context, s rsyncworker.Stats) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO totalsync (
			run_id, num_files, tot_size, num_synced, up_to_date, copied,
			symlink_created, symlink_updated, symlink_skipped,
			permissions_update, checksum_updated, directory_created,
			directory_updated, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (run_id) DO UPDATE SET
			num_files = EXCLUDED.num_files, tot_size = EXCLUDED.tot_size,
			num_synced = EXCLUDED.num_synced, finished_at = EXCLUDED.finished_at
	`,
		b.runID, s.NumFiles, s.TotSize, s.NumSynced, s.UpToDate, s.Copied,
		s.SymlinkCreated, s.SymlinkUpdated, s.SymlinkSkipped,
		s.PermissionsUpdate, s.ChecksumUpdated, s.DirectoryCreated,
		s.DirectoryUpdated, time.Now().UTC(),
	)
	return err
}

func (b *Bridge) postNode(ctx context.Context, peer string, alive bool) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO nodes (peer, run_id, alive, transition_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (peer, run_id, transition_at) DO NOTHING
	`, peer, b.runID, alive, time.Now().UTC())
	return err
}

// Schema is the DDL this package's queries assume. Migrations are out
// of scope for the sync process itself; this is provided so an operator
// (or a one-off `forklift migrate` invocation) can create the tables a
// fresh cluster needs.
const Schema = `
CREATE TABLE IF NOT EXISTS files (
	path       TEXT NOT NULL,
	run_id     UUID NOT NULL,
	outcome    INTEGER NOT NULL,
	size       BIGINT NOT NULL,
	synced_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (path, run_id)
);

CREATE TABLE IF NOT EXISTS errors (
	path        TEXT NOT NULL,
	run_id      UUID NOT NULL,
	message     TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (path, run_id)
);

CREATE TABLE IF NOT EXISTS nodes (
	peer          TEXT NOT NULL,
	run_id        UUID NOT NULL,
	alive         BOOLEAN NOT NULL,
	transition_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (peer, run_id, transition_at)
);

CREATE TABLE IF NOT EXISTS totalsync (
	run_id             UUID PRIMARY KEY,
	num_files          BIGINT NOT NULL,
	tot_size           BIGINT NOT NULL,
	num_synced         BIGINT NOT NULL,
	up_to_date         BIGINT NOT NULL,
	copied             BIGINT NOT NULL,
	symlink_created    BIGINT NOT NULL,
	symlink_updated    BIGINT NOT NULL,
	symlink_skipped    BIGINT NOT NULL,
	permissions_update BIGINT NOT NULL,
	checksum_updated   BIGINT NOT NULL,
	directory_created  BIGINT NOT NULL,
	directory_updated  BIGINT NOT NULL,
	finished_at        TIMESTAMPTZ NOT NULL
);
`
