package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ephyslab/rigsync/internal/align"
	"github.com/ephyslab/rigsync/internal/rec"
)

func openTestLog(t *testing.T) *RunLog {
	t.Helper()
	log, err := OpenRunLog(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return log
}

func TestRunLog_RoundTrip(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()

	runID, err := log.BeginRun(ctx, "/data/session1", "align")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	key := rec.RecordingKey{RecordNode: "101", ExperimentIndex: 1, RecordingIndex: 1}
	result := align.RecordingResult{
		Key:             key,
		ReferenceStream: "ProbeA",
		Streams: []align.StreamResult{
			{StreamName: "ProbeA", Status: align.StatusAligned, AnchorCount: 5, RefAnchorCount: 5},
			{
				StreamName: "NI-DAQmx",
				Status:     align.StatusFailed,
				Code:       align.CodeEventCountMismatch,
				Err:        errors.New("anchor counts still differ after one trim"),
			},
		},
	}
	require.NoError(t, log.RecordResult(ctx, runID, result))
	require.NoError(t, log.FinishRun(ctx, runID, false))

	outcomes, err := log.RunOutcomes(ctx, runID)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.Equal(t, key, outcomes[0].Key)
	assert.Equal(t, "ProbeA", outcomes[0].StreamName)
	assert.Equal(t, "aligned", outcomes[0].Status)
	assert.Empty(t, outcomes[0].ErrorCode)

	assert.Equal(t, "NI-DAQmx", outcomes[1].StreamName)
	assert.Equal(t, "failed", outcomes[1].Status)
	assert.Equal(t, string(align.CodeEventCountMismatch), outcomes[1].ErrorCode)
	assert.Contains(t, outcomes[1].ErrorMsg, "one trim")
}

func TestRunLog_ReopenSamePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	log, err := OpenRunLog(path)
	require.NoError(t, err)
	runID, err := log.BeginRun(ctx, "/data/session1", "harp")
	require.NoError(t, err)
	require.NoError(t, log.Close())

	// Schema creation and version checks must be idempotent.
	log, err = OpenRunLog(path)
	require.NoError(t, err)
	defer log.Close()

	outcomes, err := log.RunOutcomes(ctx, runID)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestRunLog_IsolatesRuns(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()

	key := rec.RecordingKey{RecordNode: "101", ExperimentIndex: 1, RecordingIndex: 1}
	first, err := log.BeginRun(ctx, "/data/a", "align")
	require.NoError(t, err)
	second, err := log.BeginRun(ctx, "/data/b", "align")
	require.NoError(t, err)

	require.NoError(t, log.RecordResult(ctx, first, align.RecordingResult{
		Key:     key,
		Streams: []align.StreamResult{{StreamName: "ProbeA", Status: align.StatusAligned}},
	}))

	outcomes, err := log.RunOutcomes(ctx, second)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}
