package align

import (
	"fmt"
	"sort"
)

// Remap maps raw sample indices (or raw local times) into the target
// timeline defined by the anchor pairs (anchorX[k], anchorT[k]).
//
// Between bracketing anchors k and k+1 the mapping is linear:
//
//	t(x) = anchorT[k] + (x-anchorX[k]) / (anchorX[k+1]-anchorX[k]) * (anchorT[k+1]-anchorT[k])
//
// Beyond the first or last anchor the nearest anchor pair's slope is
// extended, so the output is defined for every input. The output always
// has len(raw) entries, and a non-decreasing input with strictly
// increasing anchors yields a non-decreasing output.
//
// Fewer than two anchors is an error: silently passing unaligned data
// through is exactly the failure this system exists to prevent.
func Remap(raw, anchorX, anchorT []float64) ([]float64, error) {
	if len(anchorX) != len(anchorT) {
		return nil, &Error{
			Code: CodeDataIntegrity,
			Msg:  fmt.Sprintf("anchor arrays disagree on length: %d vs %d", len(anchorX), len(anchorT)),
		}
	}
	if len(anchorX) < 2 {
		return nil, &Error{
			Code: CodeTooFewAnchors,
			Msg:  fmt.Sprintf("%d anchor(s), need at least 2 to define a mapping", len(anchorX)),
		}
	}
	for k := 0; k+1 < len(anchorX); k++ {
		if anchorX[k+1] <= anchorX[k] {
			return nil, &Error{
				Code: CodeDataIntegrity,
				Msg:  fmt.Sprintf("anchor samples not strictly increasing at index %d (%g then %g)", k, anchorX[k], anchorX[k+1]),
			}
		}
	}

	out := make([]float64, len(raw))
	for i, x := range raw {
		// Bracketing segment: the last anchor at or before x, clamped so
		// the end segments extrapolate.
		k := sort.SearchFloat64s(anchorX, x)
		if k > 0 && (k == len(anchorX) || anchorX[k] != x) {
			k--
		}
		if k > len(anchorX)-2 {
			k = len(anchorX) - 2
		}
		slope := (anchorT[k+1] - anchorT[k]) / (anchorX[k+1] - anchorX[k])
		out[i] = anchorT[k] + (x-anchorX[k])*slope
	}
	return out, nil
}

// RemapInts is Remap over an integer sample counter.
func RemapInts(raw []int64, anchorX, anchorT []float64) ([]float64, error) {
	widened := make([]float64, len(raw))
	for i, v := range raw {
		widened[i] = float64(v)
	}
	return Remap(widened, anchorX, anchorT)
}

// RemapAnchored is Remap driven by an AnchorSet: the set's sample numbers
// are the source axis and its times the target axis.
func RemapAnchored(raw []int64, anchors AnchorSet) ([]float64, error) {
	return RemapInts(raw, anchors.SampleFloats(), anchors.Times)
}
