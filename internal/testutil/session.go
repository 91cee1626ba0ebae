package testutil

import (
	"fmt"
	"math"
	"path"
	"sort"

	"github.com/ephyslab/rigsync/internal/rec"
)

// CounterBreak injects a discontinuity into a stream's sample counter:
// after sample index AfterIndex the counter jumps by Jump instead of +1.
type CounterBreak struct {
	AfterIndex int
	Jump       int64
}

// StreamSpec describes one synthetic stream.
type StreamSpec struct {
	Name        string
	NodeID      int
	Rate        float64
	Duration    float64 // seconds of continuous data
	StartSample int64

	// ClockOffset shifts how this stream's clock sees the shared edge
	// times, in seconds.
	ClockOffset float64

	// Inverted flips the sync polarity: shared edges arrive as falling
	// edges on this stream.
	Inverted bool

	// DropFront/DropBack remove shared edges this stream missed.
	DropFront int
	DropBack  int

	// ExtraEdges are edge times (in shared true time) seen only by this
	// stream.
	ExtraEdges []float64

	Breaks []CounterBreak
}

// pulseWidth separates an edge from its complementary return edge.
const pulseWidth = 0.005

// BuildRecording assembles an in-memory recording whose streams all saw
// the shared edge times on syncLine, subject to each spec's defects.
func BuildRecording(key rec.RecordingKey, edges []float64, syncLine int, specs []StreamSpec) *rec.Recording {
	recd := &rec.Recording{Key: key}
	for i := range specs {
		stream, events := buildStream(&specs[i], edges, syncLine)
		recd.Streams = append(recd.Streams, stream)
		recd.Events = append(recd.Events, events...)
	}
	return recd
}

func buildStream(spec *StreamSpec, edges []float64, syncLine int) (*rec.ContinuousStream, rec.EventLog) {
	folder := fmt.Sprintf("Node-%d.%s", spec.NodeID, spec.Name)
	stream := &rec.ContinuousStream{
		StreamName:    spec.Name,
		SourceNodeID:  spec.NodeID,
		SampleRate:    spec.Rate,
		ContinuousDir: path.Join("continuous", folder),
		EventsDir:     path.Join("events", folder, "TTL"),
	}

	n := int(spec.Duration * spec.Rate)
	stream.SampleNumbers = make([]int64, n)
	next := spec.StartSample
	for i := 0; i < n; i++ {
		stream.SampleNumbers[i] = next
		next++
		for _, b := range spec.Breaks {
			if b.AfterIndex == i {
				next += b.Jump - 1
			}
		}
	}
	stream.Timestamps = make([]float64, n)
	for i, s := range stream.SampleNumbers {
		stream.Timestamps[i] = float64(s) / spec.Rate
	}

	seen := append([]float64(nil), edges...)
	if spec.DropFront > 0 && spec.DropFront < len(seen) {
		seen = seen[spec.DropFront:]
	}
	if spec.DropBack > 0 && spec.DropBack < len(seen) {
		seen = seen[:len(seen)-spec.DropBack]
	}
	seen = append(seen, spec.ExtraEdges...)
	sort.Float64s(seen)

	var events rec.EventLog
	for _, t := range seen {
		onState, offState := 1, 0
		if spec.Inverted {
			onState, offState = 0, 1
		}
		events = append(events,
			edgeEvent(spec, stream, syncLine, t, onState),
			edgeEvent(spec, stream, syncLine, t+pulseWidth, offState),
		)
	}

	stream.TTLSamples = events.SampleNumbers()
	stream.TTLTimes = events.Timestamps()
	return stream, events
}

func edgeEvent(spec *StreamSpec, stream *rec.ContinuousStream, line int, trueTime float64, state int) rec.Event {
	sample := spec.StartSample + int64(math.Round((trueTime+spec.ClockOffset)*spec.Rate))
	return rec.Event{
		StreamName:   spec.Name,
		ProcessorID:  spec.NodeID,
		Line:         line,
		State:        state,
		SampleNumber: sample,
		Timestamp:    float64(sample) / spec.Rate,
	}
}

// EvenEdges returns n edge times spaced interval seconds apart starting at
// start.
func EvenEdges(start, interval float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*interval
	}
	return out
}
