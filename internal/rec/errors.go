package rec

import (
	"errors"
	"fmt"
)

// ErrNoSession indicates the session root does not exist or contains no
// record nodes. This is a shared-setup failure: a batch aborts on it.
var ErrNoSession = errors.New("rec: no record nodes found under session root")

// MissingFileError indicates an expected data file is absent. It is fatal
// for the affected stream only; other streams continue.
type MissingFileError struct {
	Stream string
	Path   string
}

func (e *MissingFileError) Error() string {
	if e.Stream != "" {
		return fmt.Sprintf("rec: stream %s: missing data file %s", e.Stream, e.Path)
	}
	return fmt.Sprintf("rec: missing data file %s", e.Path)
}

// IsMissingFile reports whether err is (or wraps) a MissingFileError.
func IsMissingFile(err error) bool {
	var m *MissingFileError
	return errors.As(err, &m)
}
