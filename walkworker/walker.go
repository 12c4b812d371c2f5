// Package walkworker walks the source tree in parallel, assigns each
// entry to an owning peer via rendezvous hashing, and dispatches owned
// entries to the shortest-queued rsync worker. It also walks the
// destination tree to remove entries no longer present on the source.
package walkworker

import (
	"context"
	"path"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/0X1A/File-Forklift/vfscap"
)

// Owner decides whether the local node is responsible for a given path,
// backed by the membership engine's rendezvous-ranked PeerTable.
type Owner interface {
	Owns(path string) bool
}

// ProgressReporter receives the walker's side of the live progress
// picture: Todo marks one more owned entry as discovered (the "how much
// work is left" signal of spec.md §4.6/§4.8, distinct from the
// rsync-outcome event each entry eventually produces), and ReportError
// carries a walk-time failure (a readdir or stat that never became an
// entry) to the same sink a successful sync would have reached.
type ProgressReporter interface {
	Todo(size int64)
	ReportError(relPath string, err error)
}

// Worker walks one source/destination pair and feeds owned entries to a
// fixed pool of rsync worker input channels.
type Worker struct {
	source  vfscap.FileSystem
	dest    vfscap.FileSystem
	owner   Owner
	outputs []chan *vfscap.Entry
	report  ProgressReporter
	log     *logrus.Entry

	nworkers int
}

// New returns a Worker. outputs is the set of rsync worker queues; Walk
// dispatches every owned entry to the shortest of them.
func New(source, dest vfscap.FileSystem, owner Owner, outputs []chan *vfscap.Entry, report ProgressReporter, log *logrus.Entry, nworkers int) *Worker {
	if nworkers < 1 {
		nworkers = 1
	}
	return &Worker{source: source, dest: dest, owner: owner, outputs: outputs, report: report, log: log, nworkers: nworkers}
}

type dirJob struct {
	relPath string
}

// Walk recursively visits every entry under root, relative paths rooted
// at "". It fans the directory listing work out across w.nworkers
// goroutines (the Go-idiomatic replacement for the original's
// rayon::scope recursion), and dispatches every entry this node owns to
// doWork. Walk returns once every directory has been visited.
func (w *Worker) Walk(ctx context.Context, root string) error {
	jobs := make(chan dirJob, 256)
	var wg sync.WaitGroup
	var firstErr error
	var errMu sync.Mutex

	recordErr := func(err error) {
		if err == nil {
			return
		}
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
	}

	wg.Add(1)
	jobs <- dirJob{relPath: root}

	var workerWG sync.WaitGroup
	for i := 0; i < w.nworkers; i++ {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			for job := range jobs {
				w.visitDir(ctx, job.relPath, jobs, &wg, recordErr)
				wg.Done()
			}
		}()
	}

	go func() {
		wg.Wait()
		close(jobs)
	}()
	workerWG.Wait()

	return firstErr
}

func (w *Worker) visitDir(ctx context.Context, relDir string, jobs chan<- dirJob, wg *sync.WaitGroup, recordErr func(error)) {
	d, err := w.source.OpenDir(ctx, relDir)
	if err != nil {
		w.report.ReportError(relDir, err)
		recordErr(err)
		return
	}
	defer d.Close()

	for {
		name, ok, err := d.Next(ctx)
		if err != nil {
			w.report.ReportError(relDir, err)
			recordErr(err)
			return
		}
		if !ok {
			return
		}
		if name == "." || name == ".." {
			continue
		}
		relPath := path.Join(relDir, name)
		st, err := w.source.Stat(ctx, relPath)
		if err != nil {
			w.log.WithError(err).WithField("path", relPath).Warn("stat failed during walk")
			w.report.ReportError(relPath, err)
			continue
		}

		if st.Kind == vfscap.KindDir {
			w.processFile(relPath, st)
			wg.Add(1)
			select {
			case jobs <- dirJob{relPath: relPath}:
			case <-ctx.Done():
				wg.Done()
				return
			}
			continue
		}

		w.processFile(relPath, st)
	}
}

// processFile assigns relPath to an owner via rendezvous ranking and, if
// this node owns it, reports it as discovered work and dispatches it to
// the shortest-queued rsync worker.
func (w *Worker) processFile(relPath string, st vfscap.Stat) {
	if !w.owner.Owns(relPath) {
		return
	}
	w.report.Todo(st.Size)
	w.doWork(&vfscap.Entry{RelPath: relPath, Stat: st})
}

// doWork sends entry to whichever output channel currently holds the
// fewest queued entries, ties broken toward the lowest index, mirroring
// the original's linear scan-for-minimum dispatch.
func (w *Worker) doWork(entry *vfscap.Entry) {
	min := 0
	for i := 1; i < len(w.outputs); i++ {
		if len(w.outputs[i]) < len(w.outputs[min]) {
			min = i
		}
	}
	w.outputs[min] <- entry
}

// Stop sends the nil sentinel on every output channel, signaling rsync
// workers that no more entries are coming for this run.
func (w *Worker) Stop() {
	for _, out := range w.outputs {
		out <- nil
	}
}
