package rec

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sbinet/npyio"
	"golang.org/x/text/unicode/norm"
)

// Session is a lazily loaded view of a session root directory.
type Session struct {
	Root       string
	Recordings []RecordingRef
}

// RecordingRef locates one recording directory without loading its arrays.
type RecordingRef struct {
	Key       RecordingKey
	Directory string
}

const recordNodePrefix = "Record Node "

// OpenSession scans the session root for record node / experiment /
// recording directories. It reads no arrays. A missing or empty root is the
// one shared-setup failure that aborts a whole batch.
func OpenSession(root string) (*Session, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("rec: session root %s: %w", root, err)
	}
	s := &Session{Root: root}
	for _, node := range entries {
		if !node.IsDir() || !strings.HasPrefix(node.Name(), recordNodePrefix) {
			continue
		}
		nodeID := strings.TrimPrefix(node.Name(), recordNodePrefix)
		nodeDir := filepath.Join(root, node.Name())
		experiments, err := os.ReadDir(nodeDir)
		if err != nil {
			return nil, fmt.Errorf("rec: record node %s: %w", nodeID, err)
		}
		for _, exp := range experiments {
			expIdx, ok := indexSuffix(exp, "experiment")
			if !ok {
				continue
			}
			expDir := filepath.Join(nodeDir, exp.Name())
			recordings, err := os.ReadDir(expDir)
			if err != nil {
				return nil, fmt.Errorf("rec: experiment %d under node %s: %w", expIdx, nodeID, err)
			}
			for _, recDir := range recordings {
				recIdx, ok := indexSuffix(recDir, "recording")
				if !ok {
					continue
				}
				s.Recordings = append(s.Recordings, RecordingRef{
					Key: RecordingKey{
						RecordNode:      nodeID,
						ExperimentIndex: expIdx,
						RecordingIndex:  recIdx,
					},
					Directory: filepath.Join(expDir, recDir.Name()),
				})
			}
		}
	}
	if len(s.Recordings) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSession, root)
	}
	sort.Slice(s.Recordings, func(i, j int) bool {
		a, b := s.Recordings[i].Key, s.Recordings[j].Key
		if a.RecordNode != b.RecordNode {
			return a.RecordNode < b.RecordNode
		}
		if a.ExperimentIndex != b.ExperimentIndex {
			return a.ExperimentIndex < b.ExperimentIndex
		}
		return a.RecordingIndex < b.RecordingIndex
	})
	return s, nil
}

func indexSuffix(e os.DirEntry, prefix string) (int, bool) {
	if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
		return 0, false
	}
	idx, err := strconv.Atoi(strings.TrimPrefix(e.Name(), prefix))
	if err != nil {
		return 0, false
	}
	return idx, true
}

// oebin mirrors the subset of structure.oebin this system reads.
type oebin struct {
	Continuous []oebinStream `json:"continuous"`
	Events     []oebinStream `json:"events"`
}

type oebinStream struct {
	FolderName        string  `json:"folder_name"`
	StreamName        string  `json:"stream_name"`
	SourceProcessorID int     `json:"source_processor_id"`
	SampleRate        float64 `json:"sample_rate"`
}

// LoadRecording reads the recording's stream metadata and bulk arrays.
// Per-stream load failures do not fail the whole recording: the affected
// stream carries a LoadErr and downstream processing skips it.
func (s *Session) LoadRecording(ref RecordingRef) (*Recording, error) {
	structure, err := readOebin(filepath.Join(ref.Directory, "structure.oebin"))
	if err != nil {
		return nil, err
	}
	r := &Recording{Key: ref.Key, Directory: ref.Directory}
	for _, meta := range structure.Continuous {
		stream := &ContinuousStream{
			StreamName:    meta.StreamName,
			SourceNodeID:  meta.SourceProcessorID,
			SampleRate:    meta.SampleRate,
			ContinuousDir: filepath.Join(ref.Directory, "continuous", cleanFolder(meta.FolderName)),
		}
		if evMeta, ok := matchEventFolder(structure.Events, meta); ok {
			stream.EventsDir = filepath.Join(ref.Directory, "events", cleanFolder(evMeta.FolderName), "TTL")
		}
		stream.LoadErr = loadStreamArrays(stream)
		r.Streams = append(r.Streams, stream)
		if stream.LoadErr == nil {
			r.Events = append(r.Events, streamEvents(stream)...)
		}
	}
	return r, nil
}

// matchEventFolder pairs a continuous stream with its event sub-stream by
// processor ID and NFC-normalized stream name. Folder names originate in
// filesystem metadata, so both sides are normalized before comparing.
func matchEventFolder(events []oebinStream, cont oebinStream) (oebinStream, bool) {
	want := norm.NFC.String(cont.StreamName)
	for _, ev := range events {
		if ev.SourceProcessorID == cont.SourceProcessorID &&
			strings.Contains(norm.NFC.String(ev.FolderName+ev.StreamName), want) {
			return ev, true
		}
	}
	return oebinStream{}, false
}

func cleanFolder(name string) string {
	return strings.Trim(strings.ReplaceAll(name, "\\", "/"), "/")
}

func readOebin(path string) (*oebin, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &MissingFileError{Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("rec: %s: %w", path, err)
	}
	var structure oebin
	if err := json.Unmarshal(raw, &structure); err != nil {
		return nil, fmt.Errorf("rec: parsing %s: %w", path, err)
	}
	return &structure, nil
}

func loadStreamArrays(stream *ContinuousStream) error {
	var err error
	stream.SampleNumbers, err = ReadInt64s(filepath.Join(stream.ContinuousDir, "sample_numbers.npy"))
	if err != nil {
		return tagStream(err, stream.StreamName)
	}
	stream.Timestamps, err = ReadFloat64s(filepath.Join(stream.ContinuousDir, "timestamps.npy"))
	if err != nil {
		return tagStream(err, stream.StreamName)
	}
	if stream.EventsDir == "" {
		return nil
	}
	stream.TTLSamples, err = ReadInt64s(filepath.Join(stream.EventsDir, "sample_numbers.npy"))
	if err != nil {
		return tagStream(err, stream.StreamName)
	}
	stream.TTLTimes, err = ReadFloat64s(filepath.Join(stream.EventsDir, "timestamps.npy"))
	if err != nil {
		return tagStream(err, stream.StreamName)
	}
	stream.ttlStates, err = readInt16s(filepath.Join(stream.EventsDir, "states.npy"))
	if err != nil {
		return tagStream(err, stream.StreamName)
	}
	if len(stream.ttlStates) != len(stream.TTLSamples) || len(stream.TTLTimes) != len(stream.TTLSamples) {
		return fmt.Errorf("rec: stream %s: TTL arrays disagree on length (%d samples, %d times, %d states)",
			stream.StreamName, len(stream.TTLSamples), len(stream.TTLTimes), len(stream.ttlStates))
	}
	return nil
}

func tagStream(err error, stream string) error {
	var m *MissingFileError
	if errors.As(err, &m) {
		m.Stream = stream
	}
	return err
}

// streamEvents expands the packed TTL arrays into typed events. The on-disk
// state is a signed line number: positive for rising edges, negative for
// falling.
func streamEvents(stream *ContinuousStream) EventLog {
	log := make(EventLog, 0, len(stream.TTLSamples))
	for i := range stream.TTLSamples {
		packed := stream.ttlStates[i]
		line := int(packed)
		state := 1
		if line < 0 {
			line = -line
			state = 0
		}
		log = append(log, Event{
			StreamName:   stream.StreamName,
			ProcessorID:  stream.SourceNodeID,
			Line:         line,
			State:        state,
			SampleNumber: stream.TTLSamples[i],
			Timestamp:    stream.TTLTimes[i],
		})
	}
	return log
}

// ReadInt64s reads a one-dimensional int64 .npy array.
func ReadInt64s(path string) ([]int64, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, &MissingFileError{Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("rec: %s: %w", path, err)
	}
	defer f.Close()
	var data []int64
	if err := npyio.Read(f, &data); err != nil {
		return nil, fmt.Errorf("rec: reading %s: %w", path, err)
	}
	return data, nil
}

// ReadFloat64s reads a one-dimensional float64 .npy array.
func ReadFloat64s(path string) ([]float64, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, &MissingFileError{Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("rec: %s: %w", path, err)
	}
	defer f.Close()
	var data []float64
	if err := npyio.Read(f, &data); err != nil {
		return nil, fmt.Errorf("rec: reading %s: %w", path, err)
	}
	return data, nil
}

func readInt16s(path string) ([]int16, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, &MissingFileError{Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("rec: %s: %w", path, err)
	}
	defer f.Close()
	var data []int16
	if err := npyio.Read(f, &data); err != nil {
		return nil, fmt.Errorf("rec: reading %s: %w", path, err)
	}
	return data, nil
}
