package rec

import "sort"

// Event is a single digital edge recorded by one stream's event processor.
// State is 1 for a rising edge and 0 for a falling edge. SampleNumber
// references the owning stream's sample counter space.
type Event struct {
	StreamName   string
	ProcessorID  int
	Line         int
	State        int
	SampleNumber int64
	Timestamp    float64
}

// EventLog is an ordered sequence of events. All methods are pure: they
// return new logs and never mutate the receiver.
type EventLog []Event

// Select returns the events matching stream, processor, line and state, in
// the receiver's order.
func (l EventLog) Select(stream string, processor, line, state int) EventLog {
	var out EventLog
	for _, e := range l {
		if e.StreamName == stream && e.ProcessorID == processor &&
			e.Line == line && e.State == state {
			out = append(out, e)
		}
	}
	return out
}

// SelectLine returns every event on the given stream/line regardless of
// state, in the receiver's order. Used by the barcode decoder, which needs
// both edge polarities.
func (l EventLog) SelectLine(stream string, processor, line int) EventLog {
	var out EventLog
	for _, e := range l {
		if e.StreamName == stream && e.ProcessorID == processor && e.Line == line {
			out = append(out, e)
		}
	}
	return out
}

// SortBySample returns a copy sorted by sample number. Persisted event logs
// are occasionally out of order, so every consumer re-sorts defensively.
func (l EventLog) SortBySample() EventLog {
	out := make(EventLog, len(l))
	copy(out, l)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SampleNumber < out[j].SampleNumber
	})
	return out
}

// Lines returns the distinct line numbers present for the given stream and
// state, ascending.
func (l EventLog) Lines(stream string, processor, state int) []int {
	seen := map[int]bool{}
	for _, e := range l {
		if e.StreamName == stream && e.ProcessorID == processor && e.State == state {
			seen[e.Line] = true
		}
	}
	lines := make([]int, 0, len(seen))
	for line := range seen {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	return lines
}

// SampleNumbers extracts the sample numbers in log order.
func (l EventLog) SampleNumbers() []int64 {
	out := make([]int64, len(l))
	for i, e := range l {
		out[i] = e.SampleNumber
	}
	return out
}

// Timestamps extracts the timestamps in log order.
func (l EventLog) Timestamps() []float64 {
	out := make([]float64, len(l))
	for i, e := range l {
		out[i] = e.Timestamp
	}
	return out
}

// States extracts the edge states in log order.
func (l EventLog) States() []int {
	out := make([]int, len(l))
	for i, e := range l {
		out[i] = e.State
	}
	return out
}

// SampleRange is an inclusive range of sample-counter values.
type SampleRange struct {
	Lo, Hi int64
}

// Contains reports whether v falls inside the range.
func (r SampleRange) Contains(v int64) bool { return v >= r.Lo && v <= r.Hi }

// Span is the counter-value extent of the range.
func (r SampleRange) Span() int64 { return r.Hi - r.Lo }

// DropInRanges returns a copy with every event whose sample number falls in
// one of the given ranges removed. Used to discard sync edges that landed in
// residual counter chunks.
func (l EventLog) DropInRanges(ranges []SampleRange) EventLog {
	if len(ranges) == 0 {
		return l
	}
	var out EventLog
	for _, e := range l {
		dropped := false
		for _, r := range ranges {
			if r.Contains(e.SampleNumber) {
				dropped = true
				break
			}
		}
		if !dropped {
			out = append(out, e)
		}
	}
	return out
}
