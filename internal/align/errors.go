package align

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes alignment failures for the run log.
type ErrorCode string

const (
	// CodeDataIntegrity indicates counter discontinuities beyond the
	// configured threshold.
	CodeDataIntegrity ErrorCode = "DATA_INTEGRITY"

	// CodeEventCountMismatch indicates anchor counts still differ after
	// the single permitted trim.
	CodeEventCountMismatch ErrorCode = "EVENT_COUNT_MISMATCH"

	// CodeTooFewAnchors indicates fewer than two usable sync edges.
	CodeTooFewAnchors ErrorCode = "TOO_FEW_ANCHORS"

	// CodeMissingFile indicates expected stream data was absent.
	CodeMissingFile ErrorCode = "MISSING_FILE"

	// CodeStoreWrite indicates the timestamp store failed to persist a
	// remapped array.
	CodeStoreWrite ErrorCode = "STORE_WRITE"

	// CodeAlreadyAligned indicates an archive already exists for the
	// stream, so the current timestamps are derived data. Re-aligning
	// them without restoring first compounds the transform.
	CodeAlreadyAligned ErrorCode = "ALREADY_ALIGNED"
)

// Error is a structured alignment failure scoped to one stream of one
// recording.
type Error struct {
	Code      ErrorCode
	Recording string
	Stream    string
	Msg       string
	Err       error
}

func (e *Error) Error() string {
	scope := e.Stream
	if scope == "" {
		scope = e.Recording
	}
	if e.Err != nil {
		return fmt.Sprintf("align: %s: %s: %s: %v", e.Code, scope, e.Msg, e.Err)
	}
	return fmt.Sprintf("align: %s: %s: %s", e.Code, scope, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf extracts the error code from err, or empty when err is not an
// alignment error.
func CodeOf(err error) ErrorCode {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsCountMismatch reports whether err is a persisting anchor-count
// mismatch.
func IsCountMismatch(err error) bool { return CodeOf(err) == CodeEventCountMismatch }

// IsTooFewAnchors reports whether err is the degenerate under-two-anchors
// condition.
func IsTooFewAnchors(err error) bool { return CodeOf(err) == CodeTooFewAnchors }
