package align

import "github.com/ephyslab/rigsync/internal/rec"

// DefaultDiscontinuityThreshold is the gap count at and above which a
// counter is reported as not realignable.
const DefaultDiscontinuityThreshold = 3

// ResidualRange is a discontinuous sub-range of the sample counter
// excluded from the main alignment range. Removable is true when dropping
// the range cannot disturb samples inside the main range.
type ResidualRange struct {
	rec.SampleRange
	Removable bool
}

// DiscontinuityReport classifies the gaps found in one stream's raw sample
// counter. The report is advisory: callers decide whether to proceed.
type DiscontinuityReport struct {
	// Realignable is false when the counter has at least the threshold
	// number of discontinuities, or when a residual range ambiguously
	// overlaps the main range.
	Realignable bool

	// Discontinuities is the number of consecutive differences != 1.
	Discontinuities int

	// Main is the counter-value range of the largest contiguous segment.
	Main rec.SampleRange

	// Residuals are the remaining segments' ranges, in counter order of
	// appearance.
	Residuals []ResidualRange

	// OverlapPercent is the share of the main range covered by
	// non-removable residual ranges, as a percentage. Zero when every
	// residual range is cleanly removable.
	OverlapPercent float64

	// IntervalCensus maps each observed consecutive difference to the
	// fraction of steps showing it. Diagnostic only.
	IntervalCensus map[int64]float64
}

// RemovableResiduals returns the residual ranges that can be dropped
// without touching the main range.
func (r DiscontinuityReport) RemovableResiduals() []rec.SampleRange {
	var out []rec.SampleRange
	for _, res := range r.Residuals {
		if res.Removable {
			out = append(out, res.SampleRange)
		}
	}
	return out
}

// ScanCounter detects discontinuities in an ordered sample counter.
// A consecutive difference other than +1 is a discontinuity. With zero
// discontinuities the counter is trivially realignable. With one or two,
// the counter splits into segments; the segment spanning the most counter
// values is the main range and the rest are residual. At or beyond
// threshold gaps the counter is reported as not realignable. threshold <= 0
// selects DefaultDiscontinuityThreshold.
func ScanCounter(samples []int64, threshold int) DiscontinuityReport {
	if threshold <= 0 {
		threshold = DefaultDiscontinuityThreshold
	}
	report := DiscontinuityReport{IntervalCensus: map[int64]float64{}}
	if len(samples) == 0 {
		report.Realignable = false
		return report
	}

	// Positions i where samples[i+1]-samples[i] != 1; each starts a new
	// segment at i+1.
	var breaks []int
	for i := 0; i+1 < len(samples); i++ {
		d := samples[i+1] - samples[i]
		report.IntervalCensus[d] += 1
		if d != 1 {
			breaks = append(breaks, i)
		}
	}
	if n := len(samples) - 1; n > 0 {
		for d := range report.IntervalCensus {
			report.IntervalCensus[d] /= float64(n)
		}
	}
	report.Discontinuities = len(breaks)

	if len(breaks) == 0 {
		report.Realignable = true
		report.Main = rec.SampleRange{Lo: samples[0], Hi: samples[len(samples)-1]}
		return report
	}
	if len(breaks) >= threshold {
		report.Realignable = false
		return report
	}

	// Segment boundaries: [0, b0+1, b1+1, ...]; each segment runs to the
	// element before the next boundary.
	starts := []int{0}
	for _, b := range breaks {
		starts = append(starts, b+1)
	}
	segments := make([]rec.SampleRange, len(starts))
	for i, start := range starts {
		end := len(samples) - 1
		if i+1 < len(starts) {
			end = starts[i+1] - 1
		}
		segments[i] = rec.SampleRange{Lo: samples[start], Hi: samples[end]}
	}

	mainIdx := 0
	for i, seg := range segments {
		if seg.Span() > segments[mainIdx].Span() {
			mainIdx = i
		}
	}
	report.Main = segments[mainIdx]
	report.Realignable = true

	var overlapped int64
	for i, seg := range segments {
		if i == mainIdx {
			continue
		}
		res := ResidualRange{SampleRange: seg}
		// Removable iff neither bound falls strictly inside the main
		// range.
		res.Removable = !strictlyInside(seg.Lo, report.Main) && !strictlyInside(seg.Hi, report.Main)
		if !res.Removable {
			overlapped += overlapSpan(seg, report.Main)
		}
		report.Residuals = append(report.Residuals, res)
	}
	if overlapped > 0 && report.Main.Span() > 0 {
		report.OverlapPercent = 100 * float64(overlapped) / float64(report.Main.Span())
		// Ambiguous overlap with the main range: the report stands but
		// the counter is not safely realignable.
		report.Realignable = false
	}
	return report
}

func strictlyInside(v int64, r rec.SampleRange) bool { return v > r.Lo && v < r.Hi }

func overlapSpan(a, b rec.SampleRange) int64 {
	lo := a.Lo
	if b.Lo > lo {
		lo = b.Lo
	}
	hi := a.Hi
	if b.Hi < hi {
		hi = b.Hi
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}
