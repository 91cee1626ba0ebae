package harp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ephyslab/rigsync/internal/align"
	"github.com/ephyslab/rigsync/internal/rec"
	"github.com/ephyslab/rigsync/internal/testutil"
)

// clockRecording builds a two-stream recording whose barcode stream carries
// a decodable train on line 3: five barcodes, one per second from local
// time 2.0, encoding absolute seconds from 9000.
func clockRecording(t *testing.T) *rec.Recording {
	t.Helper()
	key := rec.RecordingKey{RecordNode: "101", ExperimentIndex: 1, RecordingIndex: 1}
	recd := testutil.BuildRecording(key, testutil.EvenEdges(1.0, 1.0, 10), 1,
		[]testutil.StreamSpec{
			{Name: "ProbeA", NodeID: 100, Rate: 30000, Duration: 12},
			{Name: "PXIe-6341", NodeID: 103, Rate: 30000, Duration: 12},
		})
	times, states := testutil.BarcodeTrain(2.0, 9000, 5, DefaultBaudRate)
	recd.Events = append(recd.Events,
		testutil.BarcodeEvents("PXIe-6341", 103, 30000, 3, times, states)...)
	return recd
}

func TestAlignRecording_RemapsToAbsoluteClock(t *testing.T) {
	recd := clockRecording(t)
	store := testutil.NewMemStore()

	result, err := AlignRecording(recd, Params{Line: 3}, store, nil)
	require.NoError(t, err)
	require.False(t, result.Failed())
	assert.Equal(t, "PXIe-6341", result.ReferenceStream)
	require.Len(t, result.Streams, 2)
	for _, s := range result.Streams {
		assert.Equal(t, align.StatusAligned, s.Status)
		assert.Equal(t, 5, s.AnchorCount)
	}

	// Local second 2 is absolute second 9000, and the mapping advances one
	// absolute second per local second, extrapolated across the session.
	probe := recd.Streams[0]
	ts := store.Written(probe.ContinuousDir, align.DefaultTimestampFile)
	require.Len(t, ts, len(probe.Timestamps))
	assert.InDelta(t, 9000.0, ts[60000], 1e-9)
	assert.InDelta(t, 9004.0, ts[180000], 1e-9)
	assert.InDelta(t, 8998.0, ts[0], 1e-9)

	// Event times go through the same mapping.
	ttl := store.Written(probe.EventsDir, align.DefaultTimestampFile)
	require.Len(t, ttl, len(probe.TTLTimes))
	assert.InDelta(t, probe.TTLTimes[0]+8998.0, ttl[0], 1e-9)
}

func TestAlignRecording_NoBarcodeStream(t *testing.T) {
	recd := clockRecording(t)
	recd.Streams = recd.Streams[:1]

	_, err := AlignRecording(recd, Params{Line: 3}, testutil.NewMemStore(), nil)
	require.Error(t, err)
}

func TestAlignRecording_HarpArchiveGate(t *testing.T) {
	recd := clockRecording(t)
	store := testutil.NewMemStore()
	store.ArchivedDirs[recd.Streams[1].ContinuousDir] = true

	_, err := AlignRecording(recd, Params{Line: 3}, store, nil)
	require.Error(t, err)
	assert.Equal(t, align.CodeAlreadyAligned, align.CodeOf(err))

	result, err := AlignRecording(recd, Params{Line: 3, Force: true}, store, nil)
	require.NoError(t, err)
	assert.False(t, result.Failed())
}

func TestAlignRecording_AutoSelectsLine(t *testing.T) {
	// A short session needs a fine uniformity window for the selector to
	// have enough bins to judge, and enough barcodes to fill them.
	key := rec.RecordingKey{RecordNode: "101", ExperimentIndex: 1, RecordingIndex: 1}
	recd := testutil.BuildRecording(key, testutil.EvenEdges(1.0, 1.0, 10), 1,
		[]testutil.StreamSpec{
			{Name: "PXIe-6341", NodeID: 103, Rate: 30000, Duration: 12},
		})
	times, states := testutil.BarcodeTrain(2.0, 9000, 10, DefaultBaudRate)
	recd.Events = append(recd.Events,
		testutil.BarcodeEvents("PXIe-6341", 103, 30000, 3, times, states)...)
	store := testutil.NewMemStore()

	result, err := AlignRecording(recd, Params{
		Select: SelectOptions{BinSize: 1},
	}, store, nil)
	require.NoError(t, err)
	assert.False(t, result.Failed())
}
