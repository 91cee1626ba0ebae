package harp

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// Barcode framing constants. A barcode is four payload bytes, each framed
// as a start bit (high), eight data bits LSB-first, and a stop bit (low).
// The line idles low between barcodes, so trailing low bits of the final
// frame merge into the idle gap and are implied during decoding.
const (
	DefaultBaudRate   = 1000.0
	DefaultSegmentGap = 0.5 // s

	payloadBytes = 4
	frameBits    = 10
	barcodeBits  = payloadBytes * frameBits
)

// Segments splits an ascending edge-time train into barcode segments.
// A new segment starts wherever the gap between consecutive edges exceeds
// gap seconds. Returned pairs are half-open [start, end) indices into the
// input. gap <= 0 selects DefaultSegmentGap.
func Segments(times []float64, gap float64) [][2]int {
	if gap <= 0 {
		gap = DefaultSegmentGap
	}
	if len(times) == 0 {
		return nil
	}
	var segs [][2]int
	start := 0
	for i := 0; i+1 < len(times); i++ {
		if times[i+1]-times[i] > gap {
			segs = append(segs, [2]int{start, i + 1})
			start = i + 1
		}
	}
	return append(segs, [2]int{start, len(times)})
}

// DecodeSegment decodes one barcode segment into the absolute time it
// encodes, in seconds.
//
// The segment's edge times and levels-after-edge are expanded into a bit
// train at the given baud rate: each inter-edge interval contributes
// round(interval*baud) repetitions of the level entered at its leading
// edge. The train must begin with a rising edge (the first start bit) and
// end with a falling edge back to idle; implied trailing low bits are
// padded to the fixed barcode length. Any framing violation makes the
// segment malformed.
func DecodeSegment(times []float64, states []int, baud float64) (float64, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	if len(times) != len(states) {
		return 0, &DecodeError{Reason: fmt.Sprintf("%d edge times but %d states", len(times), len(states))}
	}
	if len(times) < 2 {
		return 0, &DecodeError{Reason: "too few edges for a barcode"}
	}
	if states[0] != 1 {
		return 0, &DecodeError{Reason: "segment does not begin with a rising edge"}
	}
	if states[len(states)-1] != 0 {
		return 0, &DecodeError{Reason: "segment does not return to idle"}
	}

	bits := make([]int, 0, barcodeBits)
	for i := 0; i+1 < len(times); i++ {
		interval := times[i+1] - times[i]
		n := int(math.Round(interval * baud))
		if n < 1 {
			return 0, &DecodeError{Reason: fmt.Sprintf("inter-edge interval %.6f s shorter than one bit period", interval)}
		}
		if len(bits)+n > barcodeBits {
			return 0, &DecodeError{Reason: fmt.Sprintf("barcode longer than %d bits", barcodeBits)}
		}
		for j := 0; j < n; j++ {
			bits = append(bits, states[i])
		}
	}
	// Trailing low bits merged into the idle gap.
	for len(bits) < barcodeBits {
		bits = append(bits, 0)
	}

	var value uint32
	for b := 0; b < payloadBytes; b++ {
		frame := bits[b*frameBits : (b+1)*frameBits]
		if frame[0] != 1 {
			return 0, &DecodeError{Reason: fmt.Sprintf("byte %d missing start bit", b)}
		}
		if frame[frameBits-1] != 0 {
			return 0, &DecodeError{Reason: fmt.Sprintf("byte %d missing stop bit", b)}
		}
		var octet uint32
		for bit := 0; bit < 8; bit++ {
			if frame[1+bit] == 1 {
				octet |= 1 << bit
			}
		}
		value |= octet << (8 * b)
	}
	return float64(value), nil
}

// ClockAnchors pairs each decoded barcode's local start time with the
// absolute time it encodes. Both sequences are ascending and equal length.
type ClockAnchors struct {
	Local    []float64
	Absolute []float64
}

// Len returns the number of anchors.
func (a ClockAnchors) Len() int { return len(a.Local) }

// DecodeOptions tunes the decode pass.
type DecodeOptions struct {
	SegmentGap float64
	BaudRate   float64
}

// DecodeClock segments the barcode line's full edge train and decodes every
// segment, discarding malformed ones. The anchor for a segment is the local
// time of its first edge. Zero decodable segments is fatal; the error wraps
// ErrNoBarcodes and reports how many segments were discarded.
func DecodeClock(times []float64, states []int, opts DecodeOptions) (ClockAnchors, error) {
	var anchors ClockAnchors
	discarded := 0
	for i, seg := range Segments(times, opts.SegmentGap) {
		absolute, err := DecodeSegment(times[seg[0]:seg[1]], states[seg[0]:seg[1]], opts.BaudRate)
		if err != nil {
			discarded++
			var de *DecodeError
			if errors.As(err, &de) {
				de.Segment = i
			}
			slog.Debug("discarding malformed barcode segment", "segment", i, "err", err)
			continue
		}
		anchors.Local = append(anchors.Local, times[seg[0]])
		anchors.Absolute = append(anchors.Absolute, absolute)
	}
	if anchors.Len() == 0 {
		return ClockAnchors{}, fmt.Errorf("%w (%d segment(s) discarded)", ErrNoBarcodes, discarded)
	}
	return anchors, nil
}
