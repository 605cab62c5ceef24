package scanner

import "fmt"

// ErrorKind is the machine-readable category of a ValidationError.
type ErrorKind string

const (
	KindInvalidHost     ErrorKind = "InvalidHost"
	KindForbiddenTarget ErrorKind = "ForbiddenTarget"
	KindMissingPorts    ErrorKind = "MissingPorts"
	KindInvalidPort     ErrorKind = "InvalidPort"
)

// ValidationError reports a malformed or disallowed scan request. It is raised before any
// network activity.
type ValidationError struct {
	Kind    ErrorKind
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func validationErrorf(kind ErrorKind, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ScanInternalError aborts a whole scan. It signals a broken invariant or a failure of the
// scheduler itself, never a per-port transport failure.
type ScanInternalError struct {
	Err error
}

func (e *ScanInternalError) Error() string {
	return fmt.Sprintf("scan internal error: %v", e.Err)
}

func (e *ScanInternalError) Unwrap() error {
	return e.Err
}
