package walkworker

import (
	"context"
	"path"

	"github.com/0X1A/File-Forklift/vfscap"
)

// RemoveExtraneous walks the destination tree under relDir and deletes
// anything that no longer exists on the source, recursing into
// directories that are themselves extraneous (post-order: children
// before the directory itself), per spec.md's deletion invariant. Only
// entries this node owns are removed, the same rendezvous check used
// while walking the source.
func (w *Worker) RemoveExtraneous(ctx context.Context, relDir string) error {
	d, err := w.dest.OpenDir(ctx, relDir)
	if err != nil {
		return err
	}
	var names []string
	for {
		name, ok, err := d.Next(ctx)
		if err != nil {
			d.Close()
			return err
		}
		if !ok {
			break
		}
		if name == "." || name == ".." {
			continue
		}
		names = append(names, name)
	}
	d.Close()

	for _, name := range names {
		relPath := path.Join(relDir, name)
		srcStat, err := w.source.Stat(ctx, relPath)
		if err == nil {
			// Still present on the source, nothing to remove here; a
			// directory's own children may still be stale.
			if srcStat.Kind == vfscap.KindDir {
				if err := w.RemoveExtraneous(ctx, relPath); err != nil {
					w.log.WithError(err).WithField("path", relPath).Warn("cleanup recursion failed")
					w.report.ReportError(relPath, err)
				}
			}
			continue
		}
		if !w.owner.Owns(relPath) {
			continue
		}

		destStat, err := w.dest.Stat(ctx, relPath)
		if err != nil {
			w.log.WithError(err).WithField("path", relPath).Warn("stat failed during cleanup")
			w.report.ReportError(relPath, err)
			continue
		}

		if destStat.Kind == vfscap.KindDir {
			if err := w.RemoveExtraneous(ctx, relPath); err != nil {
				w.log.WithError(err).WithField("path", relPath).Warn("cleanup recursion failed")
				w.report.ReportError(relPath, err)
			}
			if err := w.dest.Rmdir(ctx, relPath); err != nil {
				w.log.WithError(err).WithField("path", relPath).Warn("rmdir failed")
				w.report.ReportError(relPath, err)
			}
			continue
		}

		if err := w.dest.Unlink(ctx, relPath); err != nil {
			w.log.WithError(err).WithField("path", relPath).Warn("unlink failed")
			w.report.ReportError(relPath, err)
		}
	}
	return nil
}
