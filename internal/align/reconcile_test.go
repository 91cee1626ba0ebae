package align

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// anchorsAt builds an AnchorSet from absolute edge times at a 1 Hz counter,
// so sample numbers double as seconds.
func anchorsAt(times ...int64) AnchorSet {
	set := AnchorSet{Samples: times, Start: float64(times[0])}
	set.Times = make([]float64, len(times))
	for i, s := range times {
		set.Times[i] = float64(s - times[0])
	}
	return set
}

func TestReconcile_EqualCounts(t *testing.T) {
	ref := anchorsAt(10, 20, 30)
	cand := anchorsAt(10, 20, 30)

	gotRef, gotCand, outcome, err := Reconcile(ref, cand, ReconcileOptions{})
	require.NoError(t, err)
	assert.Equal(t, ReconcileEqual, outcome)
	assert.Equal(t, ref, gotRef)
	assert.Equal(t, cand, gotCand)
}

func TestReconcile_FrontTrim(t *testing.T) {
	// The candidate saw one extra edge before the reference started
	// recording: first-anchor offset of 5 s, far above the threshold.
	ref := anchorsAt(10, 20, 30)
	cand := anchorsAt(5, 10, 20, 30)

	gotRef, gotCand, outcome, err := Reconcile(ref, cand, ReconcileOptions{})
	require.NoError(t, err)
	assert.Equal(t, ReconcileTrimmedFront, outcome)
	assert.Equal(t, []int64{10, 20, 30}, gotCand.Samples)
	assert.InDelta(t, 10.0, gotCand.Start, 1e-9, "Start must advance to the surviving first anchor")
	assert.Equal(t, ref, gotRef, "the shorter list is never touched")
}

func TestReconcile_BackTrim(t *testing.T) {
	// Same first edge on both streams, one extra trailing edge on the
	// candidate: offset below threshold, so the stray edge is at the end.
	ref := anchorsAt(10, 20, 30)
	cand := anchorsAt(10, 20, 30, 40)

	gotRef, gotCand, outcome, err := Reconcile(ref, cand, ReconcileOptions{})
	require.NoError(t, err)
	assert.Equal(t, ReconcileTrimmedBack, outcome)
	assert.Equal(t, []int64{10, 20, 30}, gotCand.Samples)
	assert.Equal(t, ref, gotRef)
}

func TestReconcile_TrimsReferenceWhenLonger(t *testing.T) {
	ref := anchorsAt(5, 10, 20, 30)
	cand := anchorsAt(10, 20, 30)

	gotRef, gotCand, outcome, err := Reconcile(ref, cand, ReconcileOptions{})
	require.NoError(t, err)
	assert.Equal(t, ReconcileTrimmedFront, outcome)
	assert.Equal(t, []int64{10, 20, 30}, gotRef.Samples)
	assert.Equal(t, cand, gotCand)
}

func TestReconcile_PersistingMismatchIsFatal(t *testing.T) {
	ref := anchorsAt(10, 20, 30, 40, 50)
	cand := anchorsAt(10, 20, 30)

	_, _, _, err := Reconcile(ref, cand, ReconcileOptions{})
	require.Error(t, err)
	assert.True(t, IsCountMismatch(err))
}

func TestReconcile_CustomThreshold(t *testing.T) {
	// 5 s offset, threshold raised to 10 s: the stray edge is attributed
	// to the back instead.
	ref := anchorsAt(10, 20, 30)
	cand := anchorsAt(5, 10, 20, 30)

	_, gotCand, outcome, err := Reconcile(ref, cand, ReconcileOptions{TrimOffset: 10})
	require.NoError(t, err)
	assert.Equal(t, ReconcileTrimmedBack, outcome)
	assert.Equal(t, []int64{5, 10, 20}, gotCand.Samples)
}
