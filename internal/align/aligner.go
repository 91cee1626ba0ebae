package align

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/ephyslab/rigsync/internal/diag"
	"github.com/ephyslab/rigsync/internal/rec"
)

// Params holds the externally configurable knobs of the local-sync
// alignment run. Zero values select the documented defaults.
type Params struct {
	// ReferenceStream is the index of the stream every other stream is
	// aligned to.
	ReferenceStream int

	// SyncLine is the digital line carrying the shared sync signal.
	SyncLine int

	// InvertedStreams lists stream-name substrings whose devices report
	// the sync line inverted relative to the reference (their anchors
	// come from falling edges).
	InvertedStreams []string

	// DiscontinuityThreshold is the gap count at which a counter stops
	// being realignable.
	DiscontinuityThreshold int

	// TrimOffset is the reconciler's front/back decision threshold in
	// seconds.
	TrimOffset float64

	// RemoveResidualChunks enables dropping sync edges that fall in
	// cleanly removable residual counter chunks before anchor building.
	// Off by default: the validated production behavior aligns over the
	// full counter.
	RemoveResidualChunks bool

	// TimestampFile and ArchiveFile name the current and archived
	// timestamp arrays inside each stream directory.
	TimestampFile string
	ArchiveFile   string

	// Subsample thins diagnostic traces: every n-th continuous sample.
	Subsample int

	// Force proceeds even when an archive already exists, i.e. when the
	// current timestamps are themselves the product of an earlier run.
	Force bool
}

// Default filenames follow the on-disk convention of the acquisition
// software.
const (
	DefaultTimestampFile = "timestamps.npy"
	DefaultArchiveFile   = "original_timestamps.npy"
	DefaultSyncLine      = 1
	DefaultSubsample     = 1000
)

func (p Params) withDefaults() Params {
	if p.SyncLine == 0 {
		p.SyncLine = DefaultSyncLine
	}
	if p.DiscontinuityThreshold <= 0 {
		p.DiscontinuityThreshold = DefaultDiscontinuityThreshold
	}
	if p.TrimOffset <= 0 {
		p.TrimOffset = DefaultTrimOffset
	}
	if p.TimestampFile == "" {
		p.TimestampFile = DefaultTimestampFile
	}
	if p.ArchiveFile == "" {
		p.ArchiveFile = DefaultArchiveFile
	}
	if p.Subsample <= 0 {
		p.Subsample = DefaultSubsample
	}
	return p
}

// Inverted reports whether the named stream's sync polarity is inverted.
func (p Params) Inverted(streamName string) bool {
	name := strings.ToLower(streamName)
	for _, pattern := range p.InvertedStreams {
		if pattern != "" && strings.Contains(name, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// TimestampStore is the write side of timestamp persistence. The store
// package provides the production implementation; tests substitute fakes.
type TimestampStore interface {
	// WriteAligned replaces the current timestamp array in dir, archiving
	// the prior array exactly once.
	WriteAligned(dir string, ts []float64, current, archive string) error
	// Archived reports whether the archive already exists in dir.
	Archived(dir, archive string) (bool, error)
}

// StreamStatus is the per-stream outcome of an alignment run.
type StreamStatus string

const (
	StatusAligned StreamStatus = "aligned"
	StatusSkipped StreamStatus = "skipped"
	StatusFailed  StreamStatus = "failed"
)

// StreamResult records one stream's outcome.
type StreamResult struct {
	StreamName      string
	Status          StreamStatus
	Code            ErrorCode
	Err             error
	AnchorCount     int
	RefAnchorCount  int
	Discontinuities int
	Trim            ReconcileOutcome
}

// RecordingResult aggregates the per-stream outcomes of one recording.
type RecordingResult struct {
	Key             rec.RecordingKey
	ReferenceStream string
	Streams         []StreamResult
}

// Failed reports whether any stream failed.
func (r RecordingResult) Failed() bool {
	for _, s := range r.Streams {
		if s.Status == StatusFailed {
			return true
		}
	}
	return false
}

// AlignRecording aligns every stream of one recording to the reference
// stream's sync-edge timeline, strictly one stream at a time.
//
// The reference stream's own counter becomes the timeline: its sync edges
// are converted to seconds and shifted to start at zero, and both its
// continuous and event timestamp arrays are rewritten through the store's
// archive-then-overwrite protocol. Every other stream is reconciled
// against a fresh copy of the full reference anchor set, so one stream's
// trim never leaks into the next.
//
// Failures are localized to the smallest affected unit: a stream that
// cannot be loaded, anchored, or reconciled is recorded as failed and the
// remaining streams continue. The returned error is non-nil only for
// recording-level failures (unusable reference stream, or an existing
// archive without Force).
func AlignRecording(recd *rec.Recording, params Params, store TimestampStore, sink diag.Sink) (RecordingResult, error) {
	params = params.withDefaults()
	result := RecordingResult{Key: recd.Key}

	ref, err := recd.Stream(params.ReferenceStream)
	if err != nil {
		return result, &Error{Code: CodeDataIntegrity, Recording: recd.Key.String(), Msg: err.Error()}
	}
	result.ReferenceStream = ref.StreamName
	if ref.LoadErr != nil {
		result.Streams = append(result.Streams, failedResult(ref.StreamName, ref.LoadErr))
		skipRemaining(&result, recd, params.ReferenceStream, "reference stream unusable")
		return result, &Error{Code: codeFor(ref.LoadErr), Recording: recd.Key.String(), Stream: ref.StreamName,
			Msg: "reference stream failed to load", Err: ref.LoadErr}
	}

	// Re-running against already-aligned current files derives times from
	// already-transformed data. That hazard is surfaced, not tolerated.
	if !params.Force {
		archived, err := store.Archived(ref.ContinuousDir, params.ArchiveFile)
		if err == nil && archived {
			skipAll(&result, recd, "archive exists; restore first or re-run with force")
			return result, &Error{Code: CodeAlreadyAligned, Recording: recd.Key.String(),
				Msg: fmt.Sprintf("archive %s already present; current timestamps are derived data", params.ArchiveFile)}
		}
	}

	refReport := ScanCounter(ref.SampleNumbers, params.DiscontinuityThreshold)
	if !refReport.Realignable {
		// Advisory only: alignment proceeds over the full counter, but
		// the condition is logged and recorded.
		slog.Warn("reference counter not realignable",
			"recording", recd.Key.String(),
			"stream", ref.StreamName,
			"discontinuities", refReport.Discontinuities,
			"overlap_percent", refReport.OverlapPercent)
	}

	events := recd.Events
	if params.RemoveResidualChunks && refReport.Realignable {
		events = dropResidualEvents(events, ref.StreamName, ref.SourceNodeID, refReport.RemovableResiduals())
	}

	refAnchors, err := BuildAnchors(events, ref.StreamName, ref.SourceNodeID,
		params.SyncLine, params.Inverted(ref.StreamName), ref.SampleRate)
	if err != nil {
		result.Streams = append(result.Streams, failedResult(ref.StreamName, err))
		skipRemaining(&result, recd, params.ReferenceStream, "no reference anchors")
		return result, err
	}
	slog.Info("reference anchors built",
		"recording", recd.Key.String(),
		"stream", ref.StreamName,
		"anchors", refAnchors.Len())

	fig := diag.AlignmentFigure{
		Recording:       recd.Key.String(),
		ReferenceStream: ref.StreamName,
	}
	fig.SampleIntervals = append(fig.SampleIntervals, censusHistogram(ref.StreamName, refReport.IntervalCensus))
	fig.Original = append(fig.Original, diag.Series{Label: ref.StreamName, Values: diag.Subsample(ref.Timestamps, params.Subsample)})

	refResult := StreamResult{
		StreamName:      ref.StreamName,
		Status:          StatusAligned,
		AnchorCount:     refAnchors.Len(),
		RefAnchorCount:  refAnchors.Len(),
		Discontinuities: refReport.Discontinuities,
	}
	if err := writeStreamTimestamps(store, ref, refAnchors.SampleFloats(), refAnchors.Times, params, &fig); err != nil {
		refResult = failedResult(ref.StreamName, err)
	}
	result.Streams = append(result.Streams, refResult)

	for idx, stream := range recd.Streams {
		if idx == params.ReferenceStream {
			continue
		}
		res := alignOne(stream, recd, refAnchors, events, params, store, &fig)
		result.Streams = append(result.Streams, res)
	}

	diag.Emit(sink, fig)
	return result, nil
}

// alignOne reconciles and remaps a single non-reference stream.
func alignOne(stream *rec.ContinuousStream, recd *rec.Recording, refAnchors AnchorSet,
	events rec.EventLog, params Params, store TimestampStore, fig *diag.AlignmentFigure) StreamResult {

	if stream.LoadErr != nil {
		return failedResult(stream.StreamName, stream.LoadErr)
	}

	report := ScanCounter(stream.SampleNumbers, params.DiscontinuityThreshold)
	if !report.Realignable {
		slog.Warn("stream counter not realignable",
			"recording", recd.Key.String(),
			"stream", stream.StreamName,
			"discontinuities", report.Discontinuities)
	}
	fig.SampleIntervals = append(fig.SampleIntervals, censusHistogram(stream.StreamName, report.IntervalCensus))
	fig.Original = append(fig.Original, diag.Series{Label: stream.StreamName, Values: diag.Subsample(stream.Timestamps, params.Subsample)})

	streamEvents := events
	if params.RemoveResidualChunks && report.Realignable {
		streamEvents = dropResidualEvents(streamEvents, stream.StreamName, stream.SourceNodeID, report.RemovableResiduals())
	}

	candAnchors, err := BuildAnchors(streamEvents, stream.StreamName, stream.SourceNodeID,
		params.SyncLine, params.Inverted(stream.StreamName), stream.SampleRate)
	if err != nil {
		res := failedResult(stream.StreamName, err)
		res.Discontinuities = report.Discontinuities
		res.RefAnchorCount = refAnchors.Len()
		return res
	}

	refTrimmed, candTrimmed, outcome, err := Reconcile(refAnchors, candAnchors,
		ReconcileOptions{TrimOffset: params.TrimOffset})
	if err != nil {
		tagError(err, recd.Key.String(), stream.StreamName)
		res := failedResult(stream.StreamName, err)
		res.Discontinuities = report.Discontinuities
		res.AnchorCount = candAnchors.Len()
		res.RefAnchorCount = refAnchors.Len()
		return res
	}
	if outcome != ReconcileEqual {
		slog.Info("anchor counts reconciled",
			"recording", recd.Key.String(),
			"stream", stream.StreamName,
			"reference_anchors", refAnchors.Len(),
			"candidate_anchors", candAnchors.Len(),
			"trim", trimName(outcome))
	}

	// Pre-alignment residual: how the stream's inter-anchor spacing
	// disagrees with the reference, in milliseconds.
	fig.ResidualsMS = append(fig.ResidualsMS, diag.Series{
		Label:  stream.StreamName,
		Values: residualMS(candTrimmed.Times, refTrimmed.Times),
	})

	res := StreamResult{
		StreamName:      stream.StreamName,
		Status:          StatusAligned,
		AnchorCount:     candTrimmed.Len(),
		RefAnchorCount:  refTrimmed.Len(),
		Discontinuities: report.Discontinuities,
		Trim:            outcome,
	}
	// The stream's own edge samples map onto the reference times: that
	// pairing is the piecewise-linear anchor set for this stream.
	if err := writeStreamTimestamps(store, stream, candTrimmed.SampleFloats(), refTrimmed.Times, params, fig); err != nil {
		return failedResult(stream.StreamName, err)
	}
	return res
}

// writeStreamTimestamps remaps and persists both timestamp arrays of one
// stream: the continuous per-sample array and the event sub-stream array.
// The event array is remapped from its raw, possibly out-of-order sample
// numbers so persisted order is preserved.
func writeStreamTimestamps(store TimestampStore, stream *rec.ContinuousStream,
	anchorX, anchorT []float64, params Params, fig *diag.AlignmentFigure) error {

	tsCont, err := RemapInts(stream.SampleNumbers, anchorX, anchorT)
	if err != nil {
		return err
	}
	slog.Info("updating stream continuous timestamps", "stream", stream.StreamName, "samples", len(tsCont))
	if err := store.WriteAligned(stream.ContinuousDir, tsCont, params.TimestampFile, params.ArchiveFile); err != nil {
		return &Error{Code: CodeStoreWrite, Stream: stream.StreamName, Msg: "writing continuous timestamps", Err: err}
	}
	fig.Aligned = append(fig.Aligned, diag.Series{
		Label:  stream.StreamName,
		Values: diag.Subsample(tsCont, params.Subsample),
	})

	if stream.EventsDir == "" {
		return nil
	}
	tsEvents, err := RemapInts(stream.TTLSamples, anchorX, anchorT)
	if err != nil {
		return err
	}
	slog.Info("updating stream event timestamps", "stream", stream.StreamName, "events", len(tsEvents))
	if err := store.WriteAligned(stream.EventsDir, tsEvents, params.TimestampFile, params.ArchiveFile); err != nil {
		return &Error{Code: CodeStoreWrite, Stream: stream.StreamName, Msg: "writing event timestamps", Err: err}
	}
	return nil
}

func residualMS(cand, ref []float64) []float64 {
	dc := diag.Diff(cand, 1000)
	dr := diag.Diff(ref, 1000)
	n := len(dc)
	if len(dr) < n {
		n = len(dr)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = dc[i] - dr[i]
	}
	return out
}

func censusHistogram(stream string, census map[int64]float64) diag.Histogram {
	keys := make([]int64, 0, len(census))
	for k := range census {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	hist := diag.Histogram{Label: stream}
	for _, k := range keys {
		hist.Bins = append(hist.Bins, strconv.FormatInt(k, 10))
		hist.Weights = append(hist.Weights, census[k])
	}
	return hist
}

func dropResidualEvents(log rec.EventLog, stream string, processor int, ranges []rec.SampleRange) rec.EventLog {
	if len(ranges) == 0 {
		return log
	}
	var out rec.EventLog
	for _, e := range log {
		if e.StreamName == stream && e.ProcessorID == processor {
			inRange := false
			for _, r := range ranges {
				if r.Contains(e.SampleNumber) {
					inRange = true
					break
				}
			}
			if inRange {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

func failedResult(stream string, err error) StreamResult {
	return StreamResult{
		StreamName: stream,
		Status:     StatusFailed,
		Code:       codeFor(err),
		Err:        err,
	}
}

func skipRemaining(result *RecordingResult, recd *rec.Recording, refIdx int, reason string) {
	for idx, stream := range recd.Streams {
		if idx == refIdx {
			continue
		}
		result.Streams = append(result.Streams, StreamResult{
			StreamName: stream.StreamName,
			Status:     StatusSkipped,
			Err:        fmt.Errorf("align: %s", reason),
		})
	}
}

func skipAll(result *RecordingResult, recd *rec.Recording, reason string) {
	for _, stream := range recd.Streams {
		result.Streams = append(result.Streams, StreamResult{
			StreamName: stream.StreamName,
			Status:     StatusSkipped,
			Code:       CodeAlreadyAligned,
			Err:        fmt.Errorf("align: %s", reason),
		})
	}
}

func codeFor(err error) ErrorCode {
	if code := CodeOf(err); code != "" {
		return code
	}
	if rec.IsMissingFile(err) {
		return CodeMissingFile
	}
	return CodeDataIntegrity
}

func tagError(err error, recording, stream string) {
	var ae *Error
	if errors.As(err, &ae) {
		ae.Recording = recording
		ae.Stream = stream
	}
}

func trimName(o ReconcileOutcome) string {
	switch o {
	case ReconcileTrimmedFront:
		return "front"
	case ReconcileTrimmedBack:
		return "back"
	default:
		return "none"
	}
}
