package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ephyslab/rigsync/internal/align"
	"github.com/ephyslab/rigsync/internal/rec"
	"github.com/ephyslab/rigsync/internal/store"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	ParamsPath string
}

// streamInspection is the read-only QC summary for one stream.
type streamInspection struct {
	Recording       string  `json:"recording"`
	Stream          string  `json:"stream"`
	SampleRate      float64 `json:"sample_rate"`
	Samples         int     `json:"samples"`
	SyncEdges       int     `json:"sync_edges"`
	Discontinuities int     `json:"discontinuities"`
	Realignable     bool    `json:"realignable"`
	Archived        bool    `json:"archived"`
	HarpArchived    bool    `json:"harp_archived"`
	LoadError       string  `json:"load_error,omitempty"`
}

// NewInspectCommand creates the read-only QC command. It scans counters,
// counts sync edges, and reports archive status without writing anything.
func NewInspectCommand(root *RootOptions) *cobra.Command {
	opts := &InspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect <session-dir>",
		Short: "Report counter discontinuities, sync-edge counts, and archive status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, root, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.ParamsPath, "params", "", "parameter file (json or yaml)")
	return cmd
}

func runInspect(cmd *cobra.Command, root *RootOptions, opts *InspectOptions, dir string) error {
	params, err := LoadParams(opts.ParamsPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading parameters", err)
	}
	session, err := rec.OpenSession(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening session", err)
	}

	ts := store.Timestamps{}
	var rows []streamInspection
	for _, ref := range session.Recordings {
		recd, err := session.LoadRecording(ref)
		if err != nil {
			rows = append(rows, streamInspection{Recording: ref.Key.String(), LoadError: err.Error()})
			continue
		}
		for _, stream := range recd.Streams {
			row := streamInspection{
				Recording:  ref.Key.String(),
				Stream:     stream.StreamName,
				SampleRate: stream.SampleRate,
			}
			if stream.LoadErr != nil {
				row.LoadError = stream.LoadErr.Error()
				rows = append(rows, row)
				continue
			}
			report := align.ScanCounter(stream.SampleNumbers, params.DiscontinuityThreshold)
			row.Samples = stream.SampleCount()
			row.Discontinuities = report.Discontinuities
			row.Realignable = report.Realignable
			row.SyncEdges = len(recd.Events.Select(stream.StreamName, stream.SourceNodeID, params.SyncLine, 1))
			row.Archived, _ = ts.Archived(stream.ContinuousDir, params.ArchiveFile)
			row.HarpArchived, _ = ts.Archived(stream.ContinuousDir, params.HarpArchiveFile)
			rows = append(rows, row)
		}
	}

	if root.Format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	for _, row := range rows {
		if row.LoadError != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%-45s %-24s load error: %s\n", row.Recording, row.Stream, row.LoadError)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-45s %-24s %d samples, %d sync edges, %d discontinuit(ies), realignable=%v, archived=%v\n",
			row.Recording, row.Stream, row.Samples, row.SyncEdges, row.Discontinuities, row.Realignable, row.Archived)
	}
	return nil
}
