package rec

import "fmt"

// ContinuousStream is one continuously sampled voltage stream within a
// recording. SampleNumbers is the raw hardware sample counter (nominally +1
// per step) and Timestamps the current per-sample time array, both one entry
// per sample. The TTL fields hold the stream's discrete event sub-stream
// exactly as persisted: unsorted, both polarities interleaved.
type ContinuousStream struct {
	StreamName   string
	SourceNodeID int
	SampleRate   float64

	SampleNumbers []int64
	Timestamps    []float64

	// TTL event sub-stream, raw file order.
	TTLSamples []int64
	TTLTimes   []float64
	ttlStates  []int16

	// LoadErr is set when this stream's arrays could not be read. The
	// stream is skipped downstream; siblings are unaffected.
	LoadErr error

	// ContinuousDir and EventsDir are where the stream's continuous and
	// TTL timestamp arrays live on disk. Empty for purely in-memory
	// streams built by tests.
	ContinuousDir string
	EventsDir     string
}

// SampleCount returns the number of samples in the stream.
func (s *ContinuousStream) SampleCount() int { return len(s.SampleNumbers) }

// RecordingKey identifies a recording within a session.
type RecordingKey struct {
	RecordNode      string
	ExperimentIndex int
	RecordingIndex  int
}

func (k RecordingKey) String() string {
	return fmt.Sprintf("node %s experiment %d recording %d",
		k.RecordNode, k.ExperimentIndex, k.RecordingIndex)
}

// Recording groups the continuous streams and the event log that share a
// time origin.
type Recording struct {
	Key       RecordingKey
	Directory string
	Streams   []*ContinuousStream
	Events    EventLog
}

// Stream returns the stream at index i, or an error when the index is out
// of range. Callers pass user-configured indices here, so the bounds check
// is part of the contract rather than a panic.
func (r *Recording) Stream(i int) (*ContinuousStream, error) {
	if i < 0 || i >= len(r.Streams) {
		return nil, fmt.Errorf("rec: stream index %d out of range (recording has %d streams)", i, len(r.Streams))
	}
	return r.Streams[i], nil
}
