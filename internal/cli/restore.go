package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ephyslab/rigsync/internal/rec"
	"github.com/ephyslab/rigsync/internal/store"
)

// RestoreOptions holds flags for the restore command.
type RestoreOptions struct {
	ParamsPath string
	Harp       bool
}

// NewRestoreCommand creates the archive-restore command. Restoring copies
// the archived pre-alignment arrays back over the current files, making a
// subsequent alignment run numerically equivalent to the first one.
func NewRestoreCommand(root *RootOptions) *cobra.Command {
	opts := &RestoreOptions{}

	cmd := &cobra.Command{
		Use:   "restore <session-dir>",
		Short: "Copy archived timestamp arrays back over the current files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(cmd, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.ParamsPath, "params", "", "parameter file (json or yaml)")
	cmd.Flags().BoolVar(&opts.Harp, "harp", false, "restore the pre-harp (local) archive instead of the original archive")
	return cmd
}

func runRestore(cmd *cobra.Command, opts *RestoreOptions, dir string) error {
	params, err := LoadParams(opts.ParamsPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading parameters", err)
	}
	session, err := rec.OpenSession(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening session", err)
	}

	archive := params.ArchiveFile
	if opts.Harp {
		archive = params.HarpArchiveFile
	}

	ts := store.Timestamps{}
	restored, missing := 0, 0
	for _, ref := range session.Recordings {
		recd, err := session.LoadRecording(ref)
		if err != nil {
			slog.Error("loading recording failed", "recording", ref.Key.String(), "err", err)
			continue
		}
		for _, stream := range recd.Streams {
			for _, streamDir := range []string{stream.ContinuousDir, stream.EventsDir} {
				if streamDir == "" {
					continue
				}
				archived, err := ts.Archived(streamDir, archive)
				if err != nil {
					return WrapExitError(ExitFailure, "checking archive", err)
				}
				if !archived {
					missing++
					continue
				}
				if err := ts.Restore(streamDir, params.TimestampFile, archive); err != nil {
					return WrapExitError(ExitFailure, "restoring archive", err)
				}
				restored++
			}
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "restored %d array(s), %d location(s) had no archive\n", restored, missing)
	return nil
}
