package align

import (
	"fmt"
	"math"
)

// DefaultTrimOffset is the first-anchor offset, in seconds, above which a
// count mismatch is attributed to a missing or extra edge at the start of
// one stream rather than at the end. It must exceed legitimate inter-device
// jitter yet stay below one missing edge's worth of skew.
const DefaultTrimOffset = 0.1

// ReconcileOptions tunes the cross-stream anchor reconciliation.
type ReconcileOptions struct {
	// TrimOffset is the front/back decision threshold in seconds.
	// Zero or negative selects DefaultTrimOffset.
	TrimOffset float64
}

func (o ReconcileOptions) trimOffset() float64 {
	if o.TrimOffset <= 0 {
		return DefaultTrimOffset
	}
	return o.TrimOffset
}

// ReconcileOutcome records what Reconcile did, for the run log.
type ReconcileOutcome int

const (
	// ReconcileEqual means the counts already matched.
	ReconcileEqual ReconcileOutcome = iota
	// ReconcileTrimmedFront means one edge was dropped from the front of
	// the longer list.
	ReconcileTrimmedFront
	// ReconcileTrimmedBack means one edge was dropped from the back of
	// the longer list.
	ReconcileTrimmedBack
)

// Reconcile matches anchor counts between the reference stream and a
// candidate stream.
//
// When the counts differ, the absolute offset between the two first-anchor
// times decides where the stray edge sits: an offset above the threshold
// means the very first edges are not the same physical edge, so one edge is
// dropped from the front of the longer list; otherwise one edge is dropped
// from the back of the longer list. Exactly one correction is attempted.
// A mismatch that survives it is fatal for the candidate stream: the
// behavior for two or more stray edges is deliberately not inferred.
//
// The returned sets are views of the inputs; neither input is mutated.
func Reconcile(ref, cand AnchorSet, opts ReconcileOptions) (AnchorSet, AnchorSet, ReconcileOutcome, error) {
	if ref.Len() == cand.Len() {
		return ref, cand, ReconcileEqual, nil
	}

	offset := math.Abs(ref.Start - cand.Start)
	outcome := ReconcileTrimmedBack
	if offset > opts.trimOffset() {
		outcome = ReconcileTrimmedFront
	}
	switch {
	case outcome == ReconcileTrimmedFront && ref.Len() > cand.Len():
		ref = ref.TrimFront()
	case outcome == ReconcileTrimmedFront:
		cand = cand.TrimFront()
	case ref.Len() > cand.Len():
		ref = ref.TrimBack()
	default:
		cand = cand.TrimBack()
	}

	if ref.Len() != cand.Len() {
		return AnchorSet{}, AnchorSet{}, outcome, &Error{
			Code: CodeEventCountMismatch,
			Msg: fmt.Sprintf("anchor counts still differ after one trim: reference %d, candidate %d (first-anchor offset %.3f s)",
				ref.Len(), cand.Len(), offset),
		}
	}
	return ref, cand, outcome, nil
}
