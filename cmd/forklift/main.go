// Command forklift synchronizes an SMB/NFS file tree across a cluster of
// cooperating worker processes: each process joins the cluster's gossip
// membership ring, claims the subset of paths rendezvous hashing assigns
// it, and rsyncs only that subset from source to destination.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-colorable"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/0X1A/File-Forklift/config"
	"github.com/0X1A/File-Forklift/logsink"
	"github.com/0X1A/File-Forklift/membership"
	"github.com/0X1A/File-Forklift/progress"
	"github.com/0X1A/File-Forklift/rsyncworker"
	"github.com/0X1A/File-Forklift/vfscap"
	"github.com/0X1A/File-Forklift/walkworker"
)

func main() {
	root := &cobra.Command{
		Use:   "forklift",
		Short: "Cluster-coordinated SMB/NFS tree sync",
	}
	in := config.BindFlags(root)
	root.RunE = func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), in)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root.SetContext(ctx)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, in *config.Input) error {
	if err := in.Validate(); err != nil {
		return err
	}
	log, closeLog, err := initLogs(in)
	if err != nil {
		return err
	}
	defer closeLog()

	self, join, err := resolveAddresses(in)
	if err != nil {
		return err
	}
	in.Self = self

	var sink progress.Sink = discardSink{}
	var nodeSink membership.NodeSink
	if dsn := os.Getenv("FORKLIFT_POSTGRES_DSN"); dsn != "" {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return err
		}
		defer db.Close()
		bridge := logsink.New(db, log.WithField("component", "logsink"))
		go bridge.Run(ctx)
		sink = bridge
		nodeSink = bridge
		defer bridge.End(logsink.EndProgram)
	}
	reporter := progress.New(sink, log.WithField("component", "progress"))

	eng, err := membership.New(membership.Config{
		Self:            self,
		Join:            join,
		HeartbeatPeriod: 2 * time.Second,
		StartTicks:      5,
		MinPollFloor:    10 * time.Millisecond,
	}, nodeSink, log.WithField("component", "membership"))
	if err != nil {
		return err
	}
	defer eng.Close()

	source, err := openFileSystem(sideSource, in.SrcFilesystem, in)
	if err != nil {
		return err
	}
	defer source.Close()
	dest, err := openFileSystem(sideDest, in.DestFilesystem, in)
	if err != nil {
		return err
	}
	defer dest.Close()

	inputs := make([]chan *vfscap.Entry, in.NumThreads)
	for i := range inputs {
		inputs[i] = make(chan *vfscap.Entry, 256)
	}

	rsyncLog := log.WithField("component", "rsyncworker")
	for i := range inputs {
		workerSrc, err := openFileSystem(sideSource, in.SrcFilesystem, in)
		if err != nil {
			return err
		}
		defer workerSrc.Close()
		workerDest, err := openFileSystem(sideDest, in.DestFilesystem, in)
		if err != nil {
			return err
		}
		defer workerDest.Close()
		w := rsyncworker.New(workerSrc, workerDest, inputs[i], reporter, rsyncLog)
		go w.Run(ctx)
	}

	walker := walkworker.New(source, dest, eng.Table(), inputs, reporter, log.WithField("component", "walkworker"), in.NumThreads)

	go func() {
		if err := eng.Run(ctx); err != nil {
			log.WithError(err).Error("membership engine stopped")
		}
	}()

	if err := walker.Walk(ctx, ""); err != nil {
		log.WithError(err).Error("walk failed")
	}
	if err := walker.RemoveExtraneous(ctx, ""); err != nil {
		log.WithError(err).Error("cleanup pass failed")
	}
	walker.Stop()

	reporter.EndSync()
	log.Info("sync run complete")
	return nil
}

// discardSink is used when no postgres DSN is configured: the cluster
// still syncs, it just keeps no durable record of what happened.
type discardSink struct{}

func (discardSink) File(string, rsyncworker.Outcome, int64) {}
func (discardSink) Error(string, error)                     {}
func (discardSink) TotalSync(rsyncworker.Stats)             {}
func (discardSink) Todo(int64, int64)                       {}

func initLogs(in *config.Input) (*logrus.Entry, func(), error) {
	log := logrus.New()
	level := logrus.InfoLevel
	switch {
	case in.Verbose >= 2:
		level = logrus.TraceLevel
	case in.Verbose == 1:
		level = logrus.DebugLevel
	}
	log.SetLevel(level)

	f, err := os.OpenFile(in.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	log.SetOutput(io.MultiWriter(colorable.NewColorableStderr(), f))

	return logrus.NewEntry(log), func() { f.Close() }, nil
}

// resolveAddresses derives this node's own listen address and its
// initial set of peers to dial from either --namelist (a roster file
// whose first line is this node) or --join (peer, self).
func resolveAddresses(in *config.Input) (self string, join []string, err error) {
	if len(in.Join) == 2 {
		return in.Join[1], []string{in.Join[0]}, nil
	}
	roster, err := config.LoadRoster(in.Namelist)
	if err != nil {
		return "", nil, err
	}
	if len(roster) == 0 {
		return "", nil, fmt.Errorf("roster file %s is empty", in.Namelist)
	}
	self = roster[0]
	if len(roster) > 1 {
		join = roster[1:]
	}
	return self, join, nil
}

// side picks which half of in's dual-endpoint configuration
// openFileSystem reads from: the source server/share or the
// destination's. A sync always has exactly two independently addressed
// endpoints, never just one reused for both ends.
type side int

const (
	sideSource side = iota
	sideDest
)

func openFileSystem(s side, kind string, in *config.Input) (vfscap.FileSystem, error) {
	server, share := in.SrcServer, in.SrcShare
	if s == sideDest {
		server, share = in.DestServer, in.DestShare
	}

	switch kind {
	case "local":
		return vfscap.NewLocal(share), nil
	case "smb":
		pass := ""
		if in.PassObscured != "" {
			revealed, err := config.Reveal(in.PassObscured)
			if err != nil {
				return nil, err
			}
			pass = revealed
		}
		return vfscap.NewSMB(vfscap.SMBOptions{
			Host:   server,
			Share:  share,
			User:   in.User,
			Pass:   pass,
			Domain: in.Workgroup,
		}), nil
	case "nfs":
		return vfscap.NewNFS(vfscap.NFSOptions{
			Host:   server,
			Export: share,
		})
	default:
		return nil, fmt.Errorf("unrecognized filesystem kind %q", kind)
	}
}
