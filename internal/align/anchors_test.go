package align

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ephyslab/rigsync/internal/rec"
)

func syncEvents(stream string, node int, samples []int64, state int) rec.EventLog {
	var log rec.EventLog
	for _, s := range samples {
		log = append(log, rec.Event{
			StreamName:   stream,
			ProcessorID:  node,
			Line:         1,
			State:        state,
			SampleNumber: s,
		})
	}
	return log
}

func TestBuildAnchors_FirstTimeZero(t *testing.T) {
	events := syncEvents("ProbeA", 100, []int64{30000, 60000, 90000}, 1)

	anchors, err := BuildAnchors(events, "ProbeA", 100, 1, false, 30000)
	require.NoError(t, err)
	assert.Equal(t, []int64{30000, 60000, 90000}, anchors.Samples)
	assert.Zero(t, anchors.Times[0])
	assert.InDelta(t, 1.0, anchors.Times[1], 1e-9)
	assert.InDelta(t, 2.0, anchors.Times[2], 1e-9)
	assert.InDelta(t, 1.0, anchors.Start, 1e-9, "Start keeps the unshifted first-edge time")
}

func TestBuildAnchors_ResortsOutOfOrderEvents(t *testing.T) {
	events := syncEvents("ProbeA", 100, []int64{60000, 30000, 90000}, 1)

	anchors, err := BuildAnchors(events, "ProbeA", 100, 1, false, 30000)
	require.NoError(t, err)
	assert.Equal(t, []int64{30000, 60000, 90000}, anchors.Samples)
}

func TestBuildAnchors_InvertedPolarity(t *testing.T) {
	events := append(
		syncEvents("NI-DAQmx", 102, []int64{2500, 5000}, 1),
		syncEvents("NI-DAQmx", 102, []int64{2600, 5100}, 0)...)

	anchors, err := BuildAnchors(events, "NI-DAQmx", 102, 1, true, 2500)
	require.NoError(t, err)
	assert.Equal(t, []int64{2600, 5100}, anchors.Samples,
		"an inverted stream anchors on falling edges")
}

func TestBuildAnchors_TooFew(t *testing.T) {
	events := syncEvents("ProbeA", 100, []int64{30000}, 1)

	_, err := BuildAnchors(events, "ProbeA", 100, 1, false, 30000)
	require.Error(t, err)
	assert.True(t, IsTooFewAnchors(err))

	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "ProbeA", aerr.Stream)
}

func TestBuildAnchors_DuplicateEdge(t *testing.T) {
	events := syncEvents("ProbeA", 100, []int64{30000, 30000, 60000}, 1)

	_, err := BuildAnchors(events, "ProbeA", 100, 1, false, 30000)
	require.Error(t, err)
	assert.Equal(t, CodeDataIntegrity, CodeOf(err))
}

func TestBuildAnchors_IgnoresOtherSources(t *testing.T) {
	events := syncEvents("ProbeA", 100, []int64{30000, 60000}, 1)
	events = append(events, syncEvents("ProbeB", 101, []int64{15000, 45000, 75000}, 1)...)
	events = append(events, rec.Event{
		StreamName: "ProbeA", ProcessorID: 100, Line: 3, State: 1, SampleNumber: 40000,
	})

	anchors, err := BuildAnchors(events, "ProbeA", 100, 1, false, 30000)
	require.NoError(t, err)
	assert.Equal(t, []int64{30000, 60000}, anchors.Samples)
}
