package harp

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ephyslab/rigsync/internal/diag"
	"github.com/ephyslab/rigsync/internal/rec"
)

// Line-selection defaults.
const (
	DefaultBinSize             = 100.0 // s, event-count window for the uniformity test
	DefaultShortGap            = 0.05  // s, gaps below this count as intra-barcode
	DefaultStartGap            = 0.1   // s, gaps above this mark a new barcode start
	DefaultPValueMin           = 0.95
	DefaultShortGapFractionMin = 0.5
)

// SelectOptions tunes the barcode line-selection pre-pass.
type SelectOptions struct {
	BinSize             float64
	ShortGap            float64
	StartGap            float64
	PValueMin           float64
	ShortGapFractionMin float64
}

func (o SelectOptions) withDefaults() SelectOptions {
	if o.BinSize <= 0 {
		o.BinSize = DefaultBinSize
	}
	if o.ShortGap <= 0 {
		o.ShortGap = DefaultShortGap
	}
	if o.StartGap <= 0 {
		o.StartGap = DefaultStartGap
	}
	if o.PValueMin <= 0 {
		o.PValueMin = DefaultPValueMin
	}
	if o.ShortGapFractionMin <= 0 {
		o.ShortGapFractionMin = DefaultShortGapFractionMin
	}
	return o
}

// LineReport holds the per-line statistics and the accepted candidates of
// one line-selection pass.
type LineReport struct {
	Stream     string
	Lines      []diag.LineStats
	Candidates []int
}

// Figure converts the report into its diagnostic form.
func (r LineReport) Figure(recording string) diag.LineSearchFigure {
	return diag.LineSearchFigure{
		Recording:  recording,
		Stream:     r.Stream,
		Lines:      r.Lines,
		Candidates: r.Candidates,
	}
}

// SelectLine scans every digital line with rising edges on the given
// stream and accepts those whose edge distribution matches a barcode feed:
// barcode start times uniform over the session (chi-square p-value above
// the threshold) and a majority of inter-edge gaps shorter than the
// short-gap cutoff.
//
// The report is always returned, including per-line histograms for
// diagnostics. The error is ErrNoHarpLine when nothing passes and an
// AmbiguousLineError when more than one line does; exactly one acceptance
// yields a nil error.
func SelectLine(events rec.EventLog, stream string, processor int, opts SelectOptions) (LineReport, error) {
	opts = opts.withDefaults()
	report := LineReport{Stream: stream}

	for _, line := range events.Lines(stream, processor, 1) {
		ts := events.Select(stream, processor, line, 1).SortBySample().Timestamps()
		stats := lineStats(line, ts, opts)
		report.Lines = append(report.Lines, stats)
		if stats.PValue > opts.PValueMin && stats.ShortGapFraction > opts.ShortGapFractionMin {
			report.Candidates = append(report.Candidates, line)
		}
	}
	sort.Ints(report.Candidates)

	switch len(report.Candidates) {
	case 0:
		return report, ErrNoHarpLine
	case 1:
		return report, nil
	default:
		return report, &AmbiguousLineError{Candidates: report.Candidates}
	}
}

// lineStats computes the two acceptance statistics and the diagnostic
// histograms for one line.
func lineStats(line int, ts []float64, opts SelectOptions) diag.LineStats {
	stats := diag.LineStats{Line: line, EdgeCount: len(ts)}
	if len(ts) < 3 {
		return stats
	}

	intervals := make([]float64, len(ts)-1)
	short := 0
	for i := range intervals {
		intervals[i] = ts[i+1] - ts[i]
		if intervals[i] < opts.ShortGap {
			short++
		}
	}
	stats.ShortGapFraction = float64(short) / float64(len(intervals))
	stats.IntervalHist = intervalHistogram(line, intervals)

	// Uniformity is judged on barcode start edges only: edges preceded by
	// a gap above the start cutoff.
	var starts []float64
	for i, gap := range intervals {
		if gap > opts.StartGap {
			starts = append(starts, ts[i+1])
		}
	}
	if len(starts) < 2 {
		return stats
	}
	counts := binCounts(starts, opts.BinSize)
	stats.TimeHist = startHistogram(line, counts, opts.BinSize)
	stats.PValue = chiSquareUniformP(counts)
	return stats
}

// binCounts counts events in fixed-width windows spanning [min, max).
func binCounts(ts []float64, binSize float64) []float64 {
	lo, hi := ts[0], ts[0]
	for _, t := range ts {
		if t < lo {
			lo = t
		}
		if t > hi {
			hi = t
		}
	}
	n := int(math.Ceil((hi - lo) / binSize))
	if n < 1 {
		n = 1
	}
	counts := make([]float64, n)
	for _, t := range ts {
		idx := int((t - lo) / binSize)
		if idx >= n {
			idx = n - 1
		}
		counts[idx]++
	}
	return counts
}

// chiSquareUniformP runs a goodness-of-fit test of the observed bin counts
// against a uniform expectation and returns the p-value. A high p-value
// means the counts are consistent with a constant event rate.
func chiSquareUniformP(counts []float64) float64 {
	if len(counts) < 2 {
		return 0
	}
	mean := 0.0
	for _, c := range counts {
		mean += c
	}
	mean /= float64(len(counts))
	if mean == 0 {
		return 0
	}
	stat := 0.0
	for _, c := range counts {
		d := c - mean
		stat += d * d / mean
	}
	dist := distuv.ChiSquared{K: float64(len(counts) - 1)}
	p := dist.Survival(stat)
	if math.IsNaN(p) {
		return 0
	}
	return p
}

// intervalHistogram bins inter-edge gaps into 0.1 s buckets up to 1.5 s,
// matching the diagnostic layout reviewers are used to.
func intervalHistogram(line int, intervals []float64) diag.Histogram {
	const width, limit = 0.1, 1.5
	n := int(limit / width)
	hist := diag.Histogram{
		Label:   fmt.Sprintf("line %d inter-event interval (s)", line),
		Weights: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		hist.Bins = append(hist.Bins, fmt.Sprintf("%.1f", float64(i)*width))
	}
	for _, gap := range intervals {
		idx := int(gap / width)
		if idx < 0 || idx >= n {
			continue
		}
		hist.Weights[idx]++
	}
	return hist
}

func startHistogram(line int, counts []float64, binSize float64) diag.Histogram {
	hist := diag.Histogram{
		Label:   fmt.Sprintf("line %d events over session", line),
		Weights: counts,
	}
	for i := range counts {
		hist.Bins = append(hist.Bins, fmt.Sprintf("%.0f", float64(i)*binSize))
	}
	return hist
}
