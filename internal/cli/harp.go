package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ephyslab/rigsync/internal/align"
	"github.com/ephyslab/rigsync/internal/diag"
	"github.com/ephyslab/rigsync/internal/harp"
	"github.com/ephyslab/rigsync/internal/rec"
	"github.com/ephyslab/rigsync/internal/store"
)

// HarpOptions holds flags for the harp command.
type HarpOptions struct {
	ParamsPath string
	RunLogPath string
	DiagDir    string
	Line       int
	Unattended bool
	Force      bool
}

// NewHarpCommand creates the absolute-clock alignment command.
func NewHarpCommand(root *RootOptions) *cobra.Command {
	opts := &HarpOptions{}

	cmd := &cobra.Command{
		Use:   "harp <session-dir>",
		Short: "Translate all streams into the absolute barcode clock's time",
		Long: "Detects the barcode line statistically, decodes its serial barcodes\n" +
			"into absolute-time anchors, and remaps every stream's current\n" +
			"timestamps onto that clock. When several lines pass the detection\n" +
			"test the candidates are printed; pick one with --harp-line.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHarp(cmd, root, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.ParamsPath, "params", "", "parameter file (json or yaml)")
	cmd.Flags().StringVar(&opts.RunLogPath, "run-log", "", "run-log database path (default <session-dir>/rigsync_runs.db)")
	cmd.Flags().StringVar(&opts.DiagDir, "diag-dir", "", "write diagnostic figures as JSON into this directory")
	cmd.Flags().IntVar(&opts.Line, "harp-line", 0, "barcode line to use, bypassing ambiguity resolution")
	cmd.Flags().BoolVar(&opts.Unattended, "unattended", false, "fail on ambiguous line sets instead of listing candidates")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "re-align even when an archive already exists")
	return cmd
}

func runHarp(cmd *cobra.Command, root *RootOptions, opts *HarpOptions, dir string) error {
	ctx := context.Background()
	params, err := LoadParams(opts.ParamsPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading parameters", err)
	}
	session, err := rec.OpenSession(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening session", err)
	}

	runLog, runID, err := openRunLog(ctx, opts.RunLogPath, dir, "harp")
	if err != nil {
		return WrapExitError(ExitCommandError, "opening run log", err)
	}
	defer runLog.Close()

	var sink diag.Sink
	if opts.DiagDir != "" {
		sink = &diag.DirSink{Dir: opts.DiagDir}
	}

	report := &batchReport{Mode: "harp", RunID: runID}
	ts := store.Timestamps{}
	harpParams := params.HarpParams(opts.Line, opts.Unattended, opts.Force)

	for _, ref := range session.Recordings {
		recd, err := session.LoadRecording(ref)
		if err != nil {
			slog.Error("loading recording failed", "recording", ref.Key.String(), "err", err)
			report.add(failedRecording(ref.Key, err))
			continue
		}
		result, err := harp.AlignRecording(recd, harpParams, ts, sink)
		if err != nil {
			if ambig, ok := harp.IsAmbiguousLine(err); ok {
				fmt.Fprintf(cmd.OutOrStdout(),
					"%s: multiple barcode lines pass the test: %v\nre-run with --harp-line to choose one\n",
					ref.Key.String(), ambig.Candidates)
			}
			slog.Error("recording not harp-aligned", "recording", ref.Key.String(), "err", err)
			result = harpFailure(result, ref.Key, err)
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
		return NewExitError(ExitFailure, "one or more recordings failed harp alignment")
	}
	return nil
}

// harpFailure converts a recording-level harp error into a recorded
// failure so the run log still carries the outcome.
func harpFailure(result align.RecordingResult, key rec.RecordingKey, err error) align.RecordingResult {
	if len(result.Streams) > 0 {
		return result
	}
	code := align.CodeOf(err)
	if code == "" {
		code = align.CodeDataIntegrity
	}
	return align.RecordingResult{
		Key: key,
		Streams: []align.StreamResult{{
			StreamName: "(barcode)",
			Status:     align.StatusFailed,
			Code:       code,
			Err:        err,
		}},
	}
}
