package rec_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ephyslab/rigsync/internal/rec"
	"github.com/ephyslab/rigsync/internal/testutil"
)

func writeTestSession(t *testing.T) (string, string) {
	t.Helper()
	key := rec.RecordingKey{RecordNode: "101", ExperimentIndex: 1, RecordingIndex: 1}
	recd := testutil.BuildRecording(key, testutil.EvenEdges(1.0, 1.0, 3), 1,
		[]testutil.StreamSpec{
			{Name: "ProbeA", NodeID: 100, Rate: 30000, Duration: 4},
			{Name: "NI-DAQmx", NodeID: 102, Rate: 2500, Duration: 4},
		})
	root := t.TempDir()
	dir, err := testutil.WriteSession(root, recd)
	require.NoError(t, err)
	return root, dir
}

func TestOpenSession(t *testing.T) {
	root, dir := writeTestSession(t)

	session, err := rec.OpenSession(root)
	require.NoError(t, err)
	require.Len(t, session.Recordings, 1)

	ref := session.Recordings[0]
	assert.Equal(t, "101", ref.Key.RecordNode)
	assert.Equal(t, 1, ref.Key.ExperimentIndex)
	assert.Equal(t, 1, ref.Key.RecordingIndex)
	assert.Equal(t, dir, ref.Directory)
	assert.Equal(t, "node 101 experiment 1 recording 1", ref.Key.String())
}

func TestOpenSession_EmptyRoot(t *testing.T) {
	_, err := rec.OpenSession(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, rec.ErrNoSession))
}

func TestOpenSession_MissingRoot(t *testing.T) {
	_, err := rec.OpenSession(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestOpenSession_SortsRecordings(t *testing.T) {
	root := t.TempDir()
	for _, key := range []rec.RecordingKey{
		{RecordNode: "102", ExperimentIndex: 1, RecordingIndex: 1},
		{RecordNode: "101", ExperimentIndex: 2, RecordingIndex: 1},
		{RecordNode: "101", ExperimentIndex: 1, RecordingIndex: 2},
		{RecordNode: "101", ExperimentIndex: 1, RecordingIndex: 1},
	} {
		recd := testutil.BuildRecording(key, testutil.EvenEdges(1.0, 1.0, 2), 1,
			[]testutil.StreamSpec{{Name: "ProbeA", NodeID: 100, Rate: 1000, Duration: 3}})
		_, err := testutil.WriteSession(root, recd)
		require.NoError(t, err)
	}

	session, err := rec.OpenSession(root)
	require.NoError(t, err)
	require.Len(t, session.Recordings, 4)
	assert.Equal(t, rec.RecordingKey{RecordNode: "101", ExperimentIndex: 1, RecordingIndex: 1}, session.Recordings[0].Key)
	assert.Equal(t, rec.RecordingKey{RecordNode: "101", ExperimentIndex: 1, RecordingIndex: 2}, session.Recordings[1].Key)
	assert.Equal(t, rec.RecordingKey{RecordNode: "101", ExperimentIndex: 2, RecordingIndex: 1}, session.Recordings[2].Key)
	assert.Equal(t, rec.RecordingKey{RecordNode: "102", ExperimentIndex: 1, RecordingIndex: 1}, session.Recordings[3].Key)
}

func TestLoadRecording(t *testing.T) {
	root, _ := writeTestSession(t)
	session, err := rec.OpenSession(root)
	require.NoError(t, err)

	recd, err := session.LoadRecording(session.Recordings[0])
	require.NoError(t, err)
	require.Len(t, recd.Streams, 2)

	probe := recd.Streams[0]
	assert.Equal(t, "ProbeA", probe.StreamName)
	assert.Equal(t, 100, probe.SourceNodeID)
	assert.Equal(t, 30000.0, probe.SampleRate)
	assert.NoError(t, probe.LoadErr)
	assert.Len(t, probe.SampleNumbers, 4*30000)
	assert.Len(t, probe.Timestamps, 4*30000)
	assert.NotEmpty(t, probe.TTLSamples)

	// Three shared edges, rising and falling, on both streams.
	rising := recd.Events.Select("ProbeA", 100, 1, 1)
	assert.Len(t, rising, 3)
	falling := recd.Events.Select("NI-DAQmx", 102, 1, 0)
	assert.Len(t, falling, 3)
}

func TestLoadRecording_MissingArrayLocalizedToStream(t *testing.T) {
	root, dir := writeTestSession(t)
	removed := filepath.Join(dir, "continuous", "Node-100.ProbeA", "timestamps.npy")
	require.NoError(t, os.Remove(removed))

	session, err := rec.OpenSession(root)
	require.NoError(t, err)
	recd, err := session.LoadRecording(session.Recordings[0])
	require.NoError(t, err, "one broken stream must not fail the recording")

	probe := recd.Streams[0]
	require.Error(t, probe.LoadErr)
	assert.True(t, rec.IsMissingFile(probe.LoadErr))
	var missing *rec.MissingFileError
	require.ErrorAs(t, probe.LoadErr, &missing)
	assert.Equal(t, "ProbeA", missing.Stream)
	assert.Equal(t, removed, missing.Path)

	assert.NoError(t, recd.Streams[1].LoadErr, "the sibling stream still loads")
	assert.NotEmpty(t, recd.Events.Select("NI-DAQmx", 102, 1, 1),
		"events from healthy streams survive")
	assert.Empty(t, recd.Events.Select("ProbeA", 100, 1, 1),
		"a failed stream contributes no events")
}

func TestLoadRecording_MissingStructure(t *testing.T) {
	root, dir := writeTestSession(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "structure.oebin")))

	session, err := rec.OpenSession(root)
	require.NoError(t, err)
	_, err = session.LoadRecording(session.Recordings[0])
	require.Error(t, err)
	assert.True(t, rec.IsMissingFile(err))
}

func TestStreamIndexBounds(t *testing.T) {
	recd := &rec.Recording{}
	_, err := recd.Stream(0)
	require.Error(t, err)
	_, err = recd.Stream(-1)
	require.Error(t, err)
}
