package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ephyslab/rigsync/internal/harp"
	"github.com/ephyslab/rigsync/internal/rec"
	"github.com/ephyslab/rigsync/internal/testutil"
)

// alignSession writes a two-stream session with five shared sync edges.
func alignSession(t *testing.T, niDropFront int) string {
	t.Helper()
	key := rec.RecordingKey{RecordNode: "101", ExperimentIndex: 1, RecordingIndex: 1}
	recd := testutil.BuildRecording(key, testutil.EvenEdges(1.0, 1.0, 5), 1,
		[]testutil.StreamSpec{
			{Name: "ProbeA", NodeID: 100, Rate: 30000, Duration: 7},
			{Name: "NI-DAQmx", NodeID: 102, Rate: 2500, Duration: 7, DropFront: niDropFront},
		})
	root := t.TempDir()
	_, err := testutil.WriteSession(root, recd)
	require.NoError(t, err)
	return root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAlignCommand(t *testing.T) {
	root := alignSession(t, 0)
	runLog := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, "align", root, "--run-log", runLog)
	require.NoError(t, err)
	assert.Contains(t, out, "2 aligned, 0 skipped, 0 failed")

	// The raw arrays moved into archives next to the rewritten files.
	dir := filepath.Join(root, "Record Node 101", "experiment1", "recording1")
	contDir := filepath.Join(dir, "continuous", "Node-100.ProbeA")
	assert.FileExists(t, filepath.Join(contDir, "original_timestamps.npy"))
	assert.FileExists(t, filepath.Join(contDir, "timestamps.npy"))

	aligned, err := rec.ReadFloat64s(filepath.Join(contDir, "timestamps.npy"))
	require.NoError(t, err)
	assert.InDelta(t, 0.0, aligned[30000], 1e-9, "first sync edge defines time zero")
}

func TestAlignCommand_SecondRunSkips(t *testing.T) {
	root := alignSession(t, 0)
	runLog := filepath.Join(t.TempDir(), "runs.db")

	_, err := execute(t, "align", root, "--run-log", runLog)
	require.NoError(t, err)

	out, err := execute(t, "align", root, "--run-log", runLog)
	require.NoError(t, err, "an existing archive skips, it does not fail")
	assert.Contains(t, out, "0 aligned, 2 skipped, 0 failed")
}

func TestAlignCommand_FailureExitCode(t *testing.T) {
	root := alignSession(t, 2)
	runLog := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, "align", root, "--run-log", runLog)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "EVENT_COUNT_MISMATCH")
	assert.Contains(t, out, "1 aligned, 0 skipped, 1 failed")
}

func TestAlignCommand_MissingSession(t *testing.T) {
	_, err := execute(t, "align", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestAlignCommand_JSONOutput(t *testing.T) {
	root := alignSession(t, 0)
	runLog := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, "--format", "json", "align", root, "--run-log", runLog)
	require.NoError(t, err)

	var report struct {
		Mode    string `json:"mode"`
		RunID   string `json:"run_id"`
		Aligned int    `json:"aligned"`
		Streams []struct {
			Stream string `json:"stream"`
			Status string `json:"status"`
		} `json:"streams"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "align", report.Mode)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Aligned)
	require.Len(t, report.Streams, 2)
}

func TestAlignCommand_DiagDir(t *testing.T) {
	root := alignSession(t, 0)
	diagDir := filepath.Join(t.TempDir(), "figures")

	_, err := execute(t, "align", root,
		"--run-log", filepath.Join(t.TempDir(), "runs.db"),
		"--diag-dir", diagDir)
	require.NoError(t, err)

	entries, err := os.ReadDir(diagDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "alignment_")
}

func TestRestoreCommand(t *testing.T) {
	root := alignSession(t, 0)
	dir := filepath.Join(root, "Record Node 101", "experiment1", "recording1")
	contPath := filepath.Join(dir, "continuous", "Node-100.ProbeA", "timestamps.npy")

	original, err := rec.ReadFloat64s(contPath)
	require.NoError(t, err)

	_, err = execute(t, "align", root, "--run-log", filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)

	out, err := execute(t, "restore", root)
	require.NoError(t, err)
	assert.Contains(t, out, "restored 4 array(s), 0 location(s) had no archive")

	restored, err := rec.ReadFloat64s(contPath)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestRestoreCommand_NothingToRestore(t *testing.T) {
	root := alignSession(t, 0)

	out, err := execute(t, "restore", root)
	require.NoError(t, err)
	assert.Contains(t, out, "restored 0 array(s), 4 location(s) had no archive")
}

func TestInspectCommand(t *testing.T) {
	root := alignSession(t, 0)

	out, err := execute(t, "--format", "json", "inspect", root)
	require.NoError(t, err)

	var rows []struct {
		Stream      string `json:"stream"`
		Samples     int    `json:"samples"`
		SyncEdges   int    `json:"sync_edges"`
		Realignable bool   `json:"realignable"`
		Archived    bool   `json:"archived"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "ProbeA", rows[0].Stream)
	assert.Equal(t, 7*30000, rows[0].Samples)
	assert.Equal(t, 5, rows[0].SyncEdges)
	assert.True(t, rows[0].Realignable)
	assert.False(t, rows[0].Archived, "inspect must not write anything")
}

func TestHarpCommand(t *testing.T) {
	key := rec.RecordingKey{RecordNode: "101", ExperimentIndex: 1, RecordingIndex: 1}
	recd := testutil.BuildRecording(key, testutil.EvenEdges(1.0, 1.0, 10), 1,
		[]testutil.StreamSpec{
			{Name: "ProbeA", NodeID: 100, Rate: 30000, Duration: 12},
			{Name: "PXIe-6341", NodeID: 103, Rate: 30000, Duration: 12},
		})
	times, states := testutil.BarcodeTrain(2.0, 9000, 5, harp.DefaultBaudRate)
	recd.Events = append(recd.Events,
		testutil.BarcodeEvents("PXIe-6341", 103, 30000, 3, times, states)...)
	root := t.TempDir()
	_, err := testutil.WriteSession(root, recd)
	require.NoError(t, err)

	out, err := execute(t, "harp", root,
		"--run-log", filepath.Join(t.TempDir(), "runs.db"),
		"--harp-line", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "2 aligned, 0 skipped, 0 failed")

	dir := filepath.Join(root, "Record Node 101", "experiment1", "recording1")
	contDir := filepath.Join(dir, "continuous", "Node-100.ProbeA")
	assert.FileExists(t, filepath.Join(contDir, "local_timestamps.npy"))

	aligned, err := rec.ReadFloat64s(filepath.Join(contDir, "timestamps.npy"))
	require.NoError(t, err)
	assert.InDelta(t, 9000.0, aligned[60000], 1e-9, "local second 2 is absolute second 9000")
}
