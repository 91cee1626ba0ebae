package align

import (
	"fmt"

	"github.com/ephyslab/rigsync/internal/rec"
)

// AnchorSet is an ordered set of (sample number, target time) calibration
// pairs. Samples is strictly increasing and holds at least two entries;
// anything less is a degenerate condition rejected at construction.
//
// Times is shifted so the first anchor of a freshly built set sits at time
// zero. Start preserves the unshifted time of the first anchor, which the
// reconciler needs to compare first-edge offsets across streams.
type AnchorSet struct {
	Samples []int64
	Times   []float64
	Start   float64
}

// Len returns the number of anchors.
func (a AnchorSet) Len() int { return len(a.Samples) }

// SampleFloats returns the anchor sample numbers widened to float64 for
// the remapper.
func (a AnchorSet) SampleFloats() []float64 {
	out := make([]float64, len(a.Samples))
	for i, s := range a.Samples {
		out[i] = float64(s)
	}
	return out
}

// TrimFront drops the first anchor. The remaining times keep their
// original shift; Start advances to the new first anchor's absolute time.
func (a AnchorSet) TrimFront() AnchorSet {
	return AnchorSet{
		Samples: a.Samples[1:],
		Times:   a.Times[1:],
		Start:   a.Start + (a.Times[1] - a.Times[0]),
	}
}

// TrimBack drops the last anchor.
func (a AnchorSet) TrimBack() AnchorSet {
	n := a.Len() - 1
	return AnchorSet{Samples: a.Samples[:n], Times: a.Times[:n], Start: a.Start}
}

// BuildAnchors extracts the sync-edge anchor set for one stream.
//
// Events are selected by (stream, processor, line) and by edge state:
// rising edges normally, falling edges when the stream reports the sync
// line inverted relative to the reference device. The selection is
// re-sorted by sample number because persisted logs are occasionally out
// of order. Times are sample/rate, shifted so the first anchor is zero.
func BuildAnchors(events rec.EventLog, stream string, processor, line int, inverted bool, sampleRate float64) (AnchorSet, error) {
	state := 1
	if inverted {
		state = 0
	}
	selected := events.Select(stream, processor, line, state).SortBySample()
	samples := selected.SampleNumbers()
	if len(samples) < 2 {
		return AnchorSet{}, &Error{
			Code:   CodeTooFewAnchors,
			Stream: stream,
			Msg:    fmt.Sprintf("%d sync edge(s) on line %d (state %d), need at least 2", len(samples), line, state),
		}
	}
	if sampleRate <= 0 {
		return AnchorSet{}, &Error{
			Code:   CodeDataIntegrity,
			Stream: stream,
			Msg:    fmt.Sprintf("invalid sample rate %g", sampleRate),
		}
	}
	for i := 0; i+1 < len(samples); i++ {
		if samples[i+1] <= samples[i] {
			return AnchorSet{}, &Error{
				Code:   CodeDataIntegrity,
				Stream: stream,
				Msg:    fmt.Sprintf("duplicate sync edge at sample %d", samples[i+1]),
			}
		}
	}
	start := float64(samples[0]) / sampleRate
	times := make([]float64, len(samples))
	for i, s := range samples {
		times[i] = float64(s)/sampleRate - start
	}
	return AnchorSet{Samples: samples, Times: times, Start: start}, nil
}
