package harp

import (
	"errors"
	"fmt"
)

// ErrNoHarpLine indicates no candidate line passed the statistical test.
// Fatal for harp alignment of the affected recording.
var ErrNoHarpLine = errors.New("harp: no barcode line detected")

// ErrNoBarcodes indicates zero segments on the chosen line decoded.
// Fatal for harp alignment of the affected recording.
var ErrNoBarcodes = errors.New("harp: no barcode segments decoded")

// AmbiguousLineError reports that more than one line passed the
// statistical test. The candidate set is returned as a value so the
// calling layer can prompt, default, or fail; the core never blocks on
// input.
type AmbiguousLineError struct {
	Candidates []int
}

func (e *AmbiguousLineError) Error() string {
	return fmt.Sprintf("harp: %d lines pass the barcode test: %v", len(e.Candidates), e.Candidates)
}

// IsAmbiguousLine extracts an AmbiguousLineError from err.
func IsAmbiguousLine(err error) (*AmbiguousLineError, bool) {
	var ae *AmbiguousLineError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// DecodeError describes one malformed barcode segment. Recovered locally by
// discarding the segment.
type DecodeError struct {
	Segment int
	Reason  string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("harp: segment %d: %s", e.Segment, e.Reason)
}
