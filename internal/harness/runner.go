package harness

import (
	"fmt"
	"strings"

	"github.com/ephyslab/rigsync/internal/align"
	"github.com/ephyslab/rigsync/internal/harp"
	"github.com/ephyslab/rigsync/internal/rec"
	"github.com/ephyslab/rigsync/internal/testutil"
)

// Outcome is the deterministic projection of one stream's result: no
// floats, no error text, stable across platforms.
type Outcome struct {
	Recording  string `json:"recording"`
	Stream     string `json:"stream"`
	Status     string `json:"status"`
	Code       string `json:"code,omitempty"`
	Trim       string `json:"trim,omitempty"`
	Anchors    int    `json:"anchors,omitempty"`
	RefAnchors int    `json:"ref_anchors,omitempty"`
}

// Result holds one scenario execution.
type Result struct {
	Scenario  *Scenario
	Recording align.RecordingResult
	Outcomes  []Outcome
	Store     *testutil.MemStore
}

// Run builds the scenario's synthetic session in memory and executes the
// requested alignment mode against it. Recording-level failures (an
// unusable reference, an existing archive) are returned as errors;
// stream-level failures land in the outcomes.
func Run(s *Scenario) (*Result, error) {
	key := rec.RecordingKey{RecordNode: "101", ExperimentIndex: 1, RecordingIndex: 1}
	syncLine := s.SyncLine
	if syncLine == 0 {
		syncLine = align.DefaultSyncLine
	}
	edges := testutil.EvenEdges(s.Edges.Start, s.Edges.Interval, s.Edges.Count)

	specs := make([]testutil.StreamSpec, len(s.Streams))
	for i, st := range s.Streams {
		specs[i] = testutil.StreamSpec{
			Name:        st.Name,
			NodeID:      st.NodeID,
			Rate:        st.Rate,
			Duration:    st.Duration,
			StartSample: st.StartSample,
			ClockOffset: st.ClockOffset,
			Inverted:    st.Inverted,
			DropFront:   st.DropFront,
			DropBack:    st.DropBack,
			ExtraEdges:  st.ExtraEdges,
		}
	}
	recd := testutil.BuildRecording(key, edges, syncLine, specs)

	if s.Barcodes != nil {
		stream := streamByName(recd, s.Barcodes.Stream)
		if stream == nil {
			return nil, fmt.Errorf("harness: barcodes reference unknown stream %q", s.Barcodes.Stream)
		}
		times, states := testutil.BarcodeTrain(s.Barcodes.Start, s.Barcodes.FirstSeconds,
			s.Barcodes.Count, harp.DefaultBaudRate)
		recd.Events = append(recd.Events, testutil.BarcodeEvents(
			stream.StreamName, stream.SourceNodeID, stream.SampleRate,
			s.Barcodes.Line, times, states)...)
	}

	store := testutil.NewMemStore()
	var (
		recording align.RecordingResult
		err       error
	)
	switch s.Mode {
	case ModeAlign:
		recording, err = align.AlignRecording(recd, align.Params{
			ReferenceStream:      s.Params.ReferenceStream,
			SyncLine:             syncLine,
			InvertedStreams:      s.Params.InvertedStreams,
			TrimOffset:           s.Params.TrimOffsetSec,
			RemoveResidualChunks: s.Params.RemoveResidualChunks,
			Force:                s.Params.Force,
		}, store, nil)
	case ModeHarp:
		recording, err = harp.AlignRecording(recd, harp.Params{
			BarcodeStream: s.Barcodes.Stream,
			Line:          s.Params.Line,
			Unattended:    true,
			Force:         s.Params.Force,
		}, store, nil)
	default:
		return nil, fmt.Errorf("harness: unknown mode %q", s.Mode)
	}
	if err != nil {
		return nil, err
	}

	result := &Result{Scenario: s, Recording: recording, Store: store}
	for _, sr := range recording.Streams {
		result.Outcomes = append(result.Outcomes, Outcome{
			Recording:  recording.Key.String(),
			Stream:     sr.StreamName,
			Status:     string(sr.Status),
			Code:       string(sr.Code),
			Trim:       trimString(sr),
			Anchors:    sr.AnchorCount,
			RefAnchors: sr.RefAnchorCount,
		})
	}
	return result, nil
}

// Verify checks every expectation against the outcomes.
func (r *Result) Verify() error {
	var problems []string
	for _, want := range r.Scenario.Expect {
		got, ok := r.outcome(want.Stream)
		if !ok {
			problems = append(problems, fmt.Sprintf("no outcome for stream %q", want.Stream))
			continue
		}
		if got.Status != want.Status {
			problems = append(problems, fmt.Sprintf("%s: status %q, want %q", want.Stream, got.Status, want.Status))
		}
		if want.Code != "" && got.Code != want.Code {
			problems = append(problems, fmt.Sprintf("%s: code %q, want %q", want.Stream, got.Code, want.Code))
		}
		if want.Trim != "" && got.Trim != want.Trim {
			problems = append(problems, fmt.Sprintf("%s: trim %q, want %q", want.Stream, got.Trim, want.Trim))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("harness: scenario %s: %s", r.Scenario.Name, strings.Join(problems, "; "))
	}
	return nil
}

func (r *Result) outcome(stream string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Stream == stream {
			return o, true
		}
	}
	return Outcome{}, false
}

func streamByName(recd *rec.Recording, name string) *rec.ContinuousStream {
	for _, stream := range recd.Streams {
		if stream.StreamName == name {
			return stream
		}
	}
	return nil
}

// trimString renders a reconciliation trim for aligned streams only;
// failed and skipped streams carry no meaningful trim.
func trimString(sr align.StreamResult) string {
	if sr.Status != align.StatusAligned {
		return ""
	}
	switch sr.Trim {
	case align.ReconcileTrimmedFront:
		return "front"
	case align.ReconcileTrimmedBack:
		return "back"
	default:
		return ""
	}
}
