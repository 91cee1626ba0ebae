package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sbinet/npyio"

	"github.com/ephyslab/rigsync/internal/rec"
)

// WriteSession lays a recording out on disk in the session format the
// reader consumes: structure.oebin plus per-stream continuous and TTL .npy
// arrays under Record Node <n>/experiment<e>/recording<r>/.
func WriteSession(root string, recd *rec.Recording) (string, error) {
	dir := filepath.Join(root,
		fmt.Sprintf("Record Node %s", recd.Key.RecordNode),
		fmt.Sprintf("experiment%d", recd.Key.ExperimentIndex),
		fmt.Sprintf("recording%d", recd.Key.RecordingIndex),
	)

	type oebinStream struct {
		FolderName        string  `json:"folder_name"`
		StreamName        string  `json:"stream_name"`
		SourceProcessorID int     `json:"source_processor_id"`
		SampleRate        float64 `json:"sample_rate,omitempty"`
	}
	var structure struct {
		Continuous []oebinStream `json:"continuous"`
		Events     []oebinStream `json:"events"`
	}

	for _, stream := range recd.Streams {
		folder := fmt.Sprintf("Node-%d.%s", stream.SourceNodeID, stream.StreamName)
		structure.Continuous = append(structure.Continuous, oebinStream{
			FolderName:        folder,
			StreamName:        stream.StreamName,
			SourceProcessorID: stream.SourceNodeID,
			SampleRate:        stream.SampleRate,
		})
		structure.Events = append(structure.Events, oebinStream{
			FolderName:        folder,
			StreamName:        stream.StreamName,
			SourceProcessorID: stream.SourceNodeID,
		})

		contDir := filepath.Join(dir, "continuous", folder)
		if err := writeArrays(contDir, map[string]any{
			"sample_numbers.npy": stream.SampleNumbers,
			"timestamps.npy":     stream.Timestamps,
		}); err != nil {
			return "", err
		}

		events := streamEvents(recd.Events, stream)
		states := make([]int16, len(events))
		samples := make([]int64, len(events))
		times := make([]float64, len(events))
		for i, e := range events {
			packed := int16(e.Line)
			if e.State == 0 {
				packed = -packed
			}
			states[i] = packed
			samples[i] = e.SampleNumber
			times[i] = e.Timestamp
		}
		ttlDir := filepath.Join(dir, "events", folder, "TTL")
		if err := writeArrays(ttlDir, map[string]any{
			"sample_numbers.npy": samples,
			"timestamps.npy":     times,
			"states.npy":         states,
		}); err != nil {
			return "", err
		}
	}

	raw, err := json.MarshalIndent(structure, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, "structure.oebin"), raw, 0o644); err != nil {
		return "", err
	}
	return dir, nil
}

func streamEvents(log rec.EventLog, stream *rec.ContinuousStream) rec.EventLog {
	var out rec.EventLog
	for _, e := range log {
		if e.StreamName == stream.StreamName && e.ProcessorID == stream.SourceNodeID {
			out = append(out, e)
		}
	}
	return out
}

func writeArrays(dir string, arrays map[string]any) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for name, data := range arrays {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if err := npyio.Write(f, data); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
