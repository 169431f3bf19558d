package storage

import "fmt"

// SystemErrorKind classifies a SystemError. I/O failures are reported
// distinctly so a caller may choose to retry them; everything else is
// unrecoverable and requires process-level attention.
type SystemErrorKind int

const (
	KindUnrecoverable SystemErrorKind = iota
	KindIO
)

// SystemError reports an infrastructure-level failure of the backing
// engine, as opposed to an expected domain condition. The cause, when
// present, is for diagnostics only, not for programmatic matching.
type SystemError struct {
	Kind    SystemErrorKind
	Message string
	Cause   error
}

// Unrecoverable builds a SystemError signalling an invariant violation or
// engine failure.
func Unrecoverable(message string) *SystemError {
	return &SystemError{Kind: KindUnrecoverable, Message: message}
}

// UnrecoverableWithCause attaches a diagnostic cause to an unrecoverable
// SystemError.
func UnrecoverableWithCause(message string, cause error) *SystemError {
	return &SystemError{Kind: KindUnrecoverable, Message: message, Cause: cause}
}

// IOError builds a SystemError of I/O kind, preserving the underlying
// error for diagnostics.
func IOError(cause error) *SystemError {
	return &SystemError{Kind: KindIO, Message: "I/O failure", Cause: cause}
}

// Recoverable reports whether the operation may be worth retrying.
func (e *SystemError) Recoverable() bool {
	return e.Kind == KindIO
}

func (e *SystemError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SystemError) Unwrap() error { return e.Cause }
