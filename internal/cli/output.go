package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ephyslab/rigsync/internal/align"
)

// Exit codes.
const (
	ExitSuccess      = 0 // all streams aligned
	ExitFailure      = 1 // at least one stream or recording failed
	ExitCommandError = 2 // bad arguments, missing session root, unreadable params
)

// ExitError carries a specific exit code out of a command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError creates an ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from err; plain errors map to
// ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// streamReport is the serializable per-stream outcome.
type streamReport struct {
	Recording string `json:"recording"`
	Stream    string `json:"stream"`
	Status    string `json:"status"`
	Code      string `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
	Anchors   int    `json:"anchors,omitempty"`
}

// batchReport aggregates a whole run for output.
type batchReport struct {
	Mode    string         `json:"mode"`
	RunID   string         `json:"run_id,omitempty"`
	Streams []streamReport `json:"streams"`
	Failed  int            `json:"failed"`
	Aligned int            `json:"aligned"`
	Skipped int            `json:"skipped"`
}

func (b *batchReport) add(result align.RecordingResult) {
	for _, s := range result.Streams {
		r := streamReport{
			Recording: result.Key.String(),
			Stream:    s.StreamName,
			Status:    string(s.Status),
			Code:      string(s.Code),
			Anchors:   s.AnchorCount,
		}
		if s.Err != nil {
			r.Error = s.Err.Error()
		}
		switch s.Status {
		case align.StatusAligned:
			b.Aligned++
		case align.StatusSkipped:
			b.Skipped++
		default:
			b.Failed++
		}
		b.Streams = append(b.Streams, r)
	}
}

// render writes the report in the requested format.
func (b *batchReport) render(w io.Writer, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(b)
	}
	for _, s := range b.Streams {
		line := fmt.Sprintf("%-45s %-24s %s", s.Recording, s.Stream, s.Status)
		if s.Code != "" {
			line += " [" + s.Code + "]"
		}
		if s.Error != "" {
			line += ": " + s.Error
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "\n%d aligned, %d skipped, %d failed\n", b.Aligned, b.Skipped, b.Failed)
	return nil
}
