// Package config binds the CLI surface and the on-disk roster file onto a
// validated Input, the composition root's single source of truth for how
// to run one File-Forklift process. SMB/NFS credentials come from the
// --user and --pass flags; no credentials file is read.
package config

import (
	"bufio"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0X1A/File-Forklift/ferrors"
)

// Input is the fully-parsed, validated configuration for one run,
// mirroring the original's clap-derived flag set (main.rs's `App`).
type Input struct {
	Namelist string
	Join     []string // exactly two addresses: the peer to dial, then this node's own advertised listen address
	LogFile  string
	Verbose  int

	SrcFilesystem  string // "smb", "nfs", or "local"
	SrcServer      string
	SrcShare       string
	DestFilesystem string
	DestServer     string
	DestShare      string

	Workgroup  string
	User       string
	PassObscured string

	NumThreads int

	Self string // this node's own ip:port, derived from --namelist or --join
}

// BindFlags registers every flag onto cmd's flag set and returns the
// Input they will populate once cmd.Execute parses arguments. Matches
// the original's flag names one for one: --namelist/-n, --join/-j,
// --logfile/-l, -v (repeatable), plus the filesystem/server/share flags
// the original took from its config file instead of argv.
func BindFlags(cmd *cobra.Command) *Input {
	in := &Input{}
	flags := cmd.Flags()

	flags.StringVarP(&in.Namelist, "namelist", "n", "", "path to the cluster roster file")
	flags.StringSliceVarP(&in.Join, "join", "j", nil, "peer address and this node's own advertised address")
	flags.StringVarP(&in.LogFile, "logfile", "l", defaultLogFile(), "path to the debug log file")
	flags.CountVarP(&in.Verbose, "verbose", "v", "increase logging verbosity, repeatable")

	flags.StringVar(&in.SrcFilesystem, "src-filesystem", "smb", "source filesystem: smb, nfs, or local")
	flags.StringVar(&in.SrcServer, "src-server", "", "source server address")
	flags.StringVar(&in.SrcShare, "src-share", "", "source share or export path")
	flags.StringVar(&in.DestFilesystem, "dest-filesystem", "smb", "destination filesystem: smb, nfs, or local")
	flags.StringVar(&in.DestServer, "dest-server", "", "destination server address")
	flags.StringVar(&in.DestShare, "dest-share", "", "destination share or export path")
	flags.StringVar(&in.Workgroup, "workgroup", "WORKGROUP", "SMB workgroup/domain")
	flags.StringVar(&in.User, "user", "", "SMB/NFS username")
	flags.StringVar(&in.PassObscured, "pass", "", "obscured SMB/NFS password")
	flags.IntVar(&in.NumThreads, "num-threads", 4, "number of rsync worker threads")

	cmd.MarkFlagsMutuallyExclusive("namelist", "join")

	return in
}

func defaultLogFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "debuglog"
	}
	return home + string(os.PathSeparator) + "debuglog"
}

// Validate checks Input for the preconditions the composition root
// needs before starting any component, matching spec.md §6's "validated
// once at startup" rule.
func (in *Input) Validate() error {
	if in.Namelist == "" && len(in.Join) == 0 {
		return ferrors.New(ferrors.KindConfigInvalid, "one of --namelist or --join is required", nil)
	}
	if len(in.Join) != 0 && len(in.Join) != 2 {
		return ferrors.New(ferrors.KindConfigInvalid, "--join takes exactly two addresses: peer and self", nil)
	}
	if in.NumThreads < 1 {
		return ferrors.New(ferrors.KindConfigInvalid, "--num-threads must be at least 1", nil)
	}
	switch in.SrcFilesystem {
	case "smb", "nfs", "local":
	default:
		return ferrors.New(ferrors.KindConfigInvalid, "unrecognized --src-filesystem: "+in.SrcFilesystem, nil)
	}
	switch in.DestFilesystem {
	case "smb", "nfs", "local":
	default:
		return ferrors.New(ferrors.KindConfigInvalid, "unrecognized --dest-filesystem: "+in.DestFilesystem, nil)
	}
	return nil
}

// LoadRoster reads a newline-delimited file of peer ip:port addresses
// (one per --namelist's original format), skipping blank lines and
// '#'-prefixed comments.
func LoadRoster(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ferrors.New(ferrors.KindConfigInvalid, "open roster file", err)
	}
	defer f.Close()

	var addrs []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		addrs = append(addrs, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, ferrors.New(ferrors.KindConfigInvalid, "read roster file", err)
	}
	return addrs, nil
}
