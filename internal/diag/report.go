package diag

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Series is a labeled sequence of values, one plotted line.
type Series struct {
	Label  string    `json:"label"`
	Values []float64 `json:"values"`
}

// Histogram is a labeled binned count. Bins holds the bin labels (numeric
// edges or categorical values rendered as strings) and Weights the height
// per bin.
type Histogram struct {
	Label   string    `json:"label"`
	Bins    []string  `json:"bins"`
	Weights []float64 `json:"weights"`
}

// AlignmentFigure is the per-recording alignment diagnostic: original and
// aligned timestamp traces (subsampled), per-stream inter-anchor residuals
// against the reference in milliseconds, and the sample-interval census per
// stream.
type AlignmentFigure struct {
	Recording       string      `json:"recording"`
	ReferenceStream string      `json:"reference_stream"`
	Original        []Series    `json:"original"`
	Aligned         []Series    `json:"aligned"`
	ResidualsMS     []Series    `json:"residuals_ms"`
	SampleIntervals []Histogram `json:"sample_intervals"`
}

// LineStats summarizes one candidate barcode line in the line-search
// pre-pass.
type LineStats struct {
	Line             int       `json:"line"`
	EdgeCount        int       `json:"edge_count"`
	PValue           float64   `json:"p_value"`
	ShortGapFraction float64   `json:"short_gap_fraction"`
	IntervalHist     Histogram `json:"interval_hist"`
	TimeHist         Histogram `json:"time_hist"`
}

// LineSearchFigure is the barcode line-search diagnostic for one recording.
type LineSearchFigure struct {
	Recording  string      `json:"recording"`
	Stream     string      `json:"stream"`
	Lines      []LineStats `json:"lines"`
	Candidates []int       `json:"candidates"`
}

// Sink receives figures for external embedding. Implementations must not
// influence alignment; the engine ignores anything a sink does.
type Sink interface {
	Alignment(fig AlignmentFigure)
	LineSearch(fig LineSearchFigure)
}

// Emit forwards fig to sink when a sink is present.
func Emit(sink Sink, fig AlignmentFigure) {
	if sink != nil {
		sink.Alignment(fig)
	}
}

// EmitLineSearch forwards fig to sink when a sink is present.
func EmitLineSearch(sink Sink, fig LineSearchFigure) {
	if sink != nil {
		sink.LineSearch(fig)
	}
}

// Subsample returns every step-th value of xs. step <= 1 returns xs
// unchanged. Keeps figure payloads bounded for long recordings.
func Subsample(xs []float64, step int) []float64 {
	if step <= 1 {
		return xs
	}
	out := make([]float64, 0, len(xs)/step+1)
	for i := 0; i < len(xs); i += step {
		out = append(out, xs[i])
	}
	return out
}

// Diff returns pairwise consecutive differences, scaled by scale. Used for
// residual series (scale 1000 gives milliseconds).
func Diff(xs []float64, scale float64) []float64 {
	if len(xs) < 2 {
		return nil
	}
	out := make([]float64, len(xs)-1)
	for i := range out {
		out[i] = (xs[i+1] - xs[i]) * scale
	}
	return out
}

// DirSink writes each figure as an indented JSON file into a directory.
type DirSink struct {
	Dir string
}

// Alignment writes the alignment figure as alignment_<recording>.json.
func (s *DirSink) Alignment(fig AlignmentFigure) {
	s.write(fmt.Sprintf("alignment_%s.json", pathSafe(fig.Recording)), fig)
}

// LineSearch writes the line-search figure as line_search_<recording>.json.
func (s *DirSink) LineSearch(fig LineSearchFigure) {
	s.write(fmt.Sprintf("line_search_%s.json", pathSafe(fig.Recording)), fig)
}

func (s *DirSink) write(name string, v any) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(s.Dir, name), raw, 0o644)
}

func pathSafe(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
