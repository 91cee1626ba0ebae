package harp

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ephyslab/rigsync/internal/align"
	"github.com/ephyslab/rigsync/internal/diag"
	"github.com/ephyslab/rigsync/internal/rec"
)

// DefaultArchiveFile names the archive of the pre-harp (local) timestamps.
// It differs from the local-sync archive name so both alignment passes can
// coexist in one stream directory.
const DefaultArchiveFile = "local_timestamps.npy"

// DefaultBarcodeStream is the stream-name pattern of the acquisition card
// that digitizes the barcode line.
const DefaultBarcodeStream = "PXIe"

// Params holds the externally configurable knobs of a harp alignment run.
type Params struct {
	// BarcodeStream is a stream-name substring selecting the stream that
	// carries the barcode line.
	BarcodeStream string

	// Line forces a specific barcode line, bypassing ambiguity
	// resolution. Zero means auto-select.
	Line int

	// Unattended fails on an ambiguous line set instead of leaving the
	// choice to the caller.
	Unattended bool

	Select SelectOptions
	Decode DecodeOptions

	TimestampFile string
	ArchiveFile   string
	Subsample     int
	Force         bool
}

func (p Params) withDefaults() Params {
	if p.BarcodeStream == "" {
		p.BarcodeStream = DefaultBarcodeStream
	}
	if p.TimestampFile == "" {
		p.TimestampFile = align.DefaultTimestampFile
	}
	if p.ArchiveFile == "" {
		p.ArchiveFile = DefaultArchiveFile
	}
	if p.Subsample <= 0 {
		p.Subsample = align.DefaultSubsample
	}
	return p
}

// ResolveLine turns a line-selection outcome into a single line number.
// An explicit override always wins. An ambiguous candidate set is an error
// in unattended mode and is otherwise returned to the caller for manual
// resolution.
func ResolveLine(report LineReport, selErr error, override int, unattended bool) (int, error) {
	if override > 0 {
		return override, nil
	}
	if selErr == nil {
		return report.Candidates[0], nil
	}
	if ambig, ok := IsAmbiguousLine(selErr); ok && !unattended {
		// Surfaced for manual selection; the caller owns the prompt.
		return 0, ambig
	}
	return 0, selErr
}

// AlignRecording translates every stream of the recording from local time
// into the absolute barcode clock's time.
//
// The barcode line is auto-selected (or forced via Params.Line), its edge
// train decoded into (local, absolute) anchors, and each stream's current
// timestamp arrays remapped through those anchors. The pre-harp arrays are
// archived under Params.ArchiveFile by the store's first-archival-wins
// protocol.
func AlignRecording(recd *rec.Recording, params Params, store align.TimestampStore, sink diag.Sink) (align.RecordingResult, error) {
	params = params.withDefaults()
	result := align.RecordingResult{Key: recd.Key}

	barcode := findBarcodeStream(recd, params.BarcodeStream)
	if barcode == nil {
		return result, fmt.Errorf("harp: no stream matching %q in %s", params.BarcodeStream, recd.Key.String())
	}
	result.ReferenceStream = barcode.StreamName

	report, selErr := SelectLine(recd.Events, barcode.StreamName, barcode.SourceNodeID, params.Select)
	diag.EmitLineSearch(sink, report.Figure(recd.Key.String()))
	line, err := ResolveLine(report, selErr, params.Line, params.Unattended)
	if err != nil {
		return result, err
	}
	slog.Info("barcode line selected", "recording", recd.Key.String(), "line", line)

	if !params.Force {
		archived, err := store.Archived(barcode.ContinuousDir, params.ArchiveFile)
		if err == nil && archived {
			return result, &align.Error{
				Code:      align.CodeAlreadyAligned,
				Recording: recd.Key.String(),
				Msg:       fmt.Sprintf("archive %s already present; current timestamps are derived data", params.ArchiveFile),
			}
		}
	}

	edges := recd.Events.SelectLine(barcode.StreamName, barcode.SourceNodeID, line).SortBySample()
	anchors, err := DecodeClock(edges.Timestamps(), edges.States(), params.Decode)
	if err != nil {
		return result, err
	}
	if anchors.Len() < 2 {
		return result, &align.Error{
			Code:      align.CodeTooFewAnchors,
			Recording: recd.Key.String(),
			Msg:       fmt.Sprintf("%d decoded barcode(s), need at least 2", anchors.Len()),
		}
	}
	slog.Info("barcodes decoded", "recording", recd.Key.String(), "anchors", anchors.Len())

	fig := diag.AlignmentFigure{
		Recording:       recd.Key.String(),
		ReferenceStream: fmt.Sprintf("%s line %d", barcode.StreamName, line),
		ResidualsMS: []diag.Series{{
			Label:  "barcode interval drift",
			Values: intervalDrift(anchors),
		}},
	}

	for _, stream := range recd.Streams {
		result.Streams = append(result.Streams, alignStreamToClock(stream, anchors, params, store, &fig))
	}
	diag.Emit(sink, fig)
	return result, nil
}

// alignStreamToClock remaps one stream's current (local) timestamps into
// absolute time.
func alignStreamToClock(stream *rec.ContinuousStream, anchors ClockAnchors,
	params Params, store align.TimestampStore, fig *diag.AlignmentFigure) align.StreamResult {

	if stream.LoadErr != nil {
		return align.StreamResult{
			StreamName: stream.StreamName,
			Status:     align.StatusFailed,
			Code:       align.CodeMissingFile,
			Err:        stream.LoadErr,
		}
	}

	fig.Original = append(fig.Original, diag.Series{
		Label:  stream.StreamName,
		Values: diag.Subsample(stream.Timestamps, params.Subsample),
	})

	ts, err := align.Remap(stream.Timestamps, anchors.Local, anchors.Absolute)
	if err != nil {
		return align.StreamResult{StreamName: stream.StreamName, Status: align.StatusFailed, Code: align.CodeOf(err), Err: err}
	}
	slog.Info("updating stream continuous timestamps", "stream", stream.StreamName, "samples", len(ts))
	if err := store.WriteAligned(stream.ContinuousDir, ts, params.TimestampFile, params.ArchiveFile); err != nil {
		return align.StreamResult{StreamName: stream.StreamName, Status: align.StatusFailed, Code: align.CodeStoreWrite, Err: err}
	}
	fig.Aligned = append(fig.Aligned, diag.Series{
		Label:  stream.StreamName,
		Values: diag.Subsample(ts, params.Subsample),
	})

	if stream.EventsDir != "" {
		tsEvents, err := align.Remap(stream.TTLTimes, anchors.Local, anchors.Absolute)
		if err != nil {
			return align.StreamResult{StreamName: stream.StreamName, Status: align.StatusFailed, Code: align.CodeOf(err), Err: err}
		}
		slog.Info("updating stream event timestamps", "stream", stream.StreamName, "events", len(tsEvents))
		if err := store.WriteAligned(stream.EventsDir, tsEvents, params.TimestampFile, params.ArchiveFile); err != nil {
			return align.StreamResult{StreamName: stream.StreamName, Status: align.StatusFailed, Code: align.CodeStoreWrite, Err: err}
		}
	}

	return align.StreamResult{
		StreamName:  stream.StreamName,
		Status:      align.StatusAligned,
		AnchorCount: anchors.Len(),
	}
}

func findBarcodeStream(recd *rec.Recording, pattern string) *rec.ContinuousStream {
	want := strings.ToLower(pattern)
	for _, stream := range recd.Streams {
		if strings.Contains(strings.ToLower(stream.StreamName), want) {
			return stream
		}
	}
	return nil
}

// intervalDrift is the disagreement between consecutive local and absolute
// anchor spacings, in milliseconds. Near-zero values mean the local clock
// tracked the barcode clock over each interval.
func intervalDrift(anchors ClockAnchors) []float64 {
	local := diag.Diff(anchors.Local, 1000)
	abs := diag.Diff(anchors.Absolute, 1000)
	out := make([]float64, len(local))
	for i := range out {
		out[i] = local[i] - abs[i]
	}
	return out
}
