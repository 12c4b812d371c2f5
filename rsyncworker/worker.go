package rsyncworker

import (
	"context"
	"io"
	"path"

	"github.com/sirupsen/logrus"

	"github.com/0X1A/File-Forklift/vfscap"
)

// ProgressReporter receives one outcome per processed entry, the bridge
// to the progress worker's running totals.
type ProgressReporter interface {
	ReportOutcome(o Outcome, size int64)
	ReportError(relPath string, err error)
}

// Worker drains a single input channel of walked entries and applies the
// sync decision for each against a dedicated source/destination
// filesystem context pair, never shared with another worker's in-flight
// operation.
type Worker struct {
	source vfscap.FileSystem
	dest   vfscap.FileSystem
	in     <-chan *vfscap.Entry
	report ProgressReporter
	log    *logrus.Entry
}

// New returns a Worker reading from in until the nil sentinel arrives.
func New(source, dest vfscap.FileSystem, in <-chan *vfscap.Entry, report ProgressReporter, log *logrus.Entry) *Worker {
	return &Worker{source: source, dest: dest, in: in, report: report, log: log}
}

// Run processes entries until the input channel yields the nil sentinel
// or ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-w.in:
			if !ok || entry == nil {
				return
			}
			w.syncEntry(ctx, entry)
		}
	}
}

func (w *Worker) syncEntry(ctx context.Context, entry *vfscap.Entry) {
	outcome, err := w.decide(ctx, entry)
	if err != nil {
		w.log.WithError(err).WithField("path", entry.RelPath).Warn("sync failed")
		w.report.ReportError(entry.RelPath, err)
		return
	}
	w.report.ReportOutcome(outcome, entry.Stat.Size)
}

// decide implements the per-entry sync decision: directories get
// created or have their mode brought in line; symlinks are recreated
// when their target changed and otherwise left alone; regular files are
// copied when size or mtime differ, or have only their permissions
// brought in line when size and mtime both match. File content is not
// compared, so a file whose bytes changed with size and mtime unchanged
// is reported up to date.
func (w *Worker) decide(ctx context.Context, entry *vfscap.Entry) (Outcome, error) {
	switch entry.Stat.Kind {
	case vfscap.KindDir:
		return w.syncDir(ctx, entry)
	case vfscap.KindSymlink:
		return w.syncSymlink(ctx, entry)
	default:
		return w.syncFile(ctx, entry)
	}
}

func (w *Worker) syncDir(ctx context.Context, entry *vfscap.Entry) (Outcome, error) {
	destStat, err := w.dest.Stat(ctx, entry.RelPath)
	if err != nil {
		if err := w.dest.Mkdir(ctx, entry.RelPath); err != nil {
			return 0, err
		}
		if err := w.dest.Chmod(ctx, entry.RelPath, entry.Stat.Mode); err != nil {
			w.log.WithError(err).WithField("path", entry.RelPath).Debug("chmod after mkdir failed")
		}
		return OutcomeDirectoryCreated, nil
	}
	if destStat.Mode.Perm() != entry.Stat.Mode.Perm() {
		if err := w.dest.Chmod(ctx, entry.RelPath, entry.Stat.Mode); err != nil {
			return 0, err
		}
		return OutcomeDirectoryUpdated, nil
	}
	return OutcomeUpToDate, nil
}

func (w *Worker) syncSymlink(ctx context.Context, entry *vfscap.Entry) (Outcome, error) {
	destStat, err := w.dest.Stat(ctx, entry.RelPath)
	if err != nil {
		if err := w.dest.Symlink(ctx, entry.Stat.LinkTgt, entry.RelPath); err != nil {
			return 0, err
		}
		return OutcomeSymlinkCreated, nil
	}
	if destStat.Kind != vfscap.KindSymlink {
		// Something else already occupies this path; never replace a
		// regular file or directory with a symlink.
		return OutcomeSymlinkSkipped, nil
	}

	destTarget, err := w.dest.Readlink(ctx, entry.RelPath)
	if err != nil {
		return 0, err
	}
	if destTarget == entry.Stat.LinkTgt {
		return OutcomeUpToDate, nil
	}
	if err := w.dest.Unlink(ctx, entry.RelPath); err != nil {
		return 0, err
	}
	if err := w.dest.Symlink(ctx, entry.Stat.LinkTgt, entry.RelPath); err != nil {
		return 0, err
	}
	return OutcomeSymlinkUpdated, nil
}

func (w *Worker) syncFile(ctx context.Context, entry *vfscap.Entry) (Outcome, error) {
	destStat, err := w.dest.Stat(ctx, entry.RelPath)
	if err != nil {
		return w.copyFile(ctx, entry)
	}
	if destStat.Size != entry.Stat.Size || destStat.Mtime.Seconds() != entry.Stat.Mtime.Seconds() {
		return w.copyFile(ctx, entry)
	}
	if destStat.Mode.Perm() != entry.Stat.Mode.Perm() {
		if err := w.dest.Chmod(ctx, entry.RelPath, entry.Stat.Mode); err != nil {
			return 0, err
		}
		return OutcomePermissionsUpdate, nil
	}
	return OutcomeUpToDate, nil
}

func (w *Worker) copyFile(ctx context.Context, entry *vfscap.Entry) (Outcome, error) {
	if err := ensureParentDir(ctx, w.dest, entry.RelPath); err != nil {
		return 0, err
	}

	src, err := w.source.Open(ctx, entry.RelPath)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	dst, err := w.dest.Create(ctx, entry.RelPath, entry.Stat.Mode)
	if err != nil {
		return 0, err
	}
	defer dst.Close()

	blockSize := vfscap.ClampBlockSize(entry.Stat.Blksize)
	buf := make([]byte, blockSize)
	var offset int64
	for {
		n, rerr := src.Read(ctx, buf, offset)
		if n > 0 {
			if _, werr := dst.Write(ctx, buf[:n], offset); werr != nil {
				return 0, werr
			}
			offset += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return 0, rerr
		}
		if n == 0 {
			break
		}
	}

	if err := dst.Truncate(ctx, offset); err != nil {
		return 0, err
	}
	if err := w.dest.Chmod(ctx, entry.RelPath, entry.Stat.Mode); err != nil {
		w.log.WithError(err).WithField("path", entry.RelPath).Debug("chmod after copy failed")
	}
	return OutcomeCopied, nil
}

// ensureParentDir creates any missing parent directories on the
// destination before a file copy, since entries arrive from the walk in
// no particular parent-before-child order across goroutines.
func ensureParentDir(ctx context.Context, dest vfscap.FileSystem, relPath string) error {
	dir := path.Dir(relPath)
	if dir == "." || dir == "/" || dir == "" {
		return nil
	}
	if _, err := dest.Stat(ctx, dir); err == nil {
		return nil
	}
	if err := ensureParentDir(ctx, dest, dir); err != nil {
		return err
	}
	if err := dest.Mkdir(ctx, dir); err != nil {
		if _, statErr := dest.Stat(ctx, dir); statErr == nil {
			return nil
		}
		return err
	}
	return nil
}
