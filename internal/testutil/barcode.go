package testutil

import "github.com/ephyslab/rigsync/internal/rec"

// BarcodeEdges serializes seconds as one barcode starting at local time
// start: four bytes little-endian, each framed start(1) + 8 data bits
// LSB-first + stop(0), at the given baud rate. Returned edge times and
// post-edge levels describe the transitions; trailing low bits merge into
// the idle gap, exactly as a real line would behave.
func BarcodeEdges(start float64, seconds uint32, baud float64) ([]float64, []int) {
	var bits []int
	for b := 0; b < 4; b++ {
		octet := byte(seconds >> (8 * b))
		bits = append(bits, 1)
		for bit := 0; bit < 8; bit++ {
			bits = append(bits, int(octet>>bit)&1)
		}
		bits = append(bits, 0)
	}

	var times []float64
	var states []int
	level := 0 // idle
	for i, bit := range bits {
		if bit != level {
			times = append(times, start+float64(i)/baud)
			states = append(states, bit)
			level = bit
		}
	}
	return times, states
}

// BarcodeTrain emits count barcodes, one per second starting at start,
// encoding consecutive seconds values from firstSeconds.
func BarcodeTrain(start float64, firstSeconds uint32, count int, baud float64) ([]float64, []int) {
	var times []float64
	var states []int
	for k := 0; k < count; k++ {
		t, s := BarcodeEdges(start+float64(k), firstSeconds+uint32(k), baud)
		times = append(times, t...)
		states = append(states, s...)
	}
	return times, states
}

// BarcodeEvents converts a barcode edge train into events on the given
// stream and line, stamping sample numbers from local time.
func BarcodeEvents(stream string, node int, rate float64, line int, times []float64, states []int) rec.EventLog {
	var events rec.EventLog
	for i := range times {
		sample := int64(times[i]*rate + 0.5)
		events = append(events, rec.Event{
			StreamName:   stream,
			ProcessorID:  node,
			Line:         line,
			State:        states[i],
			SampleNumber: sample,
			Timestamp:    times[i],
		})
	}
	return events
}
