package pebble

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/cockroachdb/pebble"
)

var (
	ErrClosed          = errors.New("pebble: database is closed")
	ErrIteratorInvalid = errors.New("pebble: iterator is not positioned at a valid entry")
)

// Code identifies one failure case of the engine. The set is closed: every
// failure the engine can surface carries exactly one of these codes, and
// consumers switch over all of them.
type Code int

const (
	// CodeKeyspaceNotFound reports that an internal keyspace the engine
	// relies on is missing. Resource holds its raw name bytes.
	CodeKeyspaceNotFound Code = iota
	// CodeUnsupported reports that an operation is not supported by the
	// engine. Operation names it.
	CodeUnsupported
	// CodeCorruption reports detected on-storage corruption. Location is the
	// physical location when known, empty otherwise.
	CodeCorruption
	// CodeBug reports an internal defect worth reporting upstream.
	CodeBug
	// CodeIO reports an I/O failure from the underlying filesystem.
	CodeIO
)

// Error is an engine failure. Exactly the fields relevant to the Code are
// populated; Err carries the underlying cause when there is one.
type Error struct {
	Code      Code
	Resource  []byte
	Operation string
	Location  string
	Err       error
}

func (e *Error) Error() string {
	switch e.Code {
	case CodeKeyspaceNotFound:
		return fmt.Sprintf("pebble: keyspace %q not found", e.Resource)
	case CodeUnsupported:
		return fmt.Sprintf("pebble: unsupported operation %q", e.Operation)
	case CodeCorruption:
		if e.Location != "" {
			return fmt.Sprintf("pebble: corruption at %s: %v", e.Location, e.Err)
		}
		return fmt.Sprintf("pebble: corruption: %v", e.Err)
	case CodeBug:
		return fmt.Sprintf("pebble: internal bug: %v", e.Err)
	case CodeIO:
		return fmt.Sprintf("pebble: i/o failure: %v", e.Err)
	}
	return fmt.Sprintf("pebble: unknown failure (code %d): %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// classify normalizes a native pebble error into the closed Error taxonomy.
// Anything unrecognized is a bug, never something more innocuous.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ee *Error
	if errors.As(err, &ee) {
		return ee
	}
	if pebble.IsCorruptionError(err) {
		return &Error{Code: CodeCorruption, Err: err}
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) || errors.Is(err, fs.ErrPermission) || errors.Is(err, os.ErrDeadlineExceeded) {
		return &Error{Code: CodeIO, Err: err}
	}
	return &Error{Code: CodeBug, Err: err}
}
