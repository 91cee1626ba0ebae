package cli

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ephyslab/rigsync/internal/align"
	"github.com/ephyslab/rigsync/internal/diag"
	"github.com/ephyslab/rigsync/internal/rec"
	"github.com/ephyslab/rigsync/internal/store"
)

// AlignOptions holds flags for the align command.
type AlignOptions struct {
	ParamsPath string
	RunLogPath string
	DiagDir    string
	Force      bool
}

// NewAlignCommand creates the local-sync alignment command.
func NewAlignCommand(root *RootOptions) *cobra.Command {
	opts := &AlignOptions{}

	cmd := &cobra.Command{
		Use:   "align <session-dir>",
		Short: "Align all streams to the reference stream's sync-line timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlign(cmd, root, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.ParamsPath, "params", "", "parameter file (json or yaml)")
	cmd.Flags().StringVar(&opts.RunLogPath, "run-log", "", "run-log database path (default <session-dir>/rigsync_runs.db)")
	cmd.Flags().StringVar(&opts.DiagDir, "diag-dir", "", "write diagnostic figures as JSON into this directory")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "re-align even when an archive already exists")
	return cmd
}

func runAlign(cmd *cobra.Command, root *RootOptions, opts *AlignOptions, dir string) error {
	ctx := context.Background()
	params, err := LoadParams(opts.ParamsPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading parameters", err)
	}
	session, err := rec.OpenSession(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening session", err)
	}

	runLog, runID, err := openRunLog(ctx, opts.RunLogPath, dir, "align")
	if err != nil {
		return WrapExitError(ExitCommandError, "opening run log", err)
	}
	defer runLog.Close()

	var sink diag.Sink
	if opts.DiagDir != "" {
		sink = &diag.DirSink{Dir: opts.DiagDir}
	}

	report := &batchReport{Mode: "align", RunID: runID}
	ts := store.Timestamps{}
	alignParams := params.AlignParams(opts.Force)

	for _, ref := range session.Recordings {
		recd, err := session.LoadRecording(ref)
		if err != nil {
			// One unreadable recording does not abort the batch.
			slog.Error("loading recording failed", "recording", ref.Key.String(), "err", err)
			report.add(failedRecording(ref.Key, err))
			continue
		}
		result, err := align.AlignRecording(recd, alignParams, ts, sink)
		if err != nil {
			slog.Error("recording not aligned", "recording", ref.Key.String(), "err", err)
		}
		if logErr := runLog.RecordResult(ctx, runID, result); logErr != nil {
			slog.Error("recording run-log entry failed", "err", logErr)
		}
		report.add(result)
	}

	if err := runLog.FinishRun(ctx, runID, report.Failed == 0); err != nil {
		slog.Error("finishing run failed", "err", err)
	}
	if err := report.render(cmd.OutOrStdout(), root.Format); err != nil {
		return err
	}
	if report.Failed > 0 {
		return NewExitError(ExitFailure, "one or more streams failed to align")
	}
	return nil
}

func openRunLog(ctx context.Context, path, sessionDir, mode string) (*store.RunLog, string, error) {
	if path == "" {
		path = filepath.Join(sessionDir, "rigsync_runs.db")
	}
	runLog, err := store.OpenRunLog(path)
	if err != nil {
		return nil, "", err
	}
	runID, err := runLog.BeginRun(ctx, sessionDir, mode)
	if err != nil {
		runLog.Close()
		return nil, "", err
	}
	return runLog, runID, nil
}

// failedRecording synthesizes a result for a recording whose structure
// could not be read at all.
func failedRecording(key rec.RecordingKey, err error) align.RecordingResult {
	return align.RecordingResult{
		Key: key,
		Streams: []align.StreamResult{{
			StreamName: "(structure)",
			Status:     align.StatusFailed,
			Code:       align.CodeMissingFile,
			Err:        err,
		}},
	}
}
