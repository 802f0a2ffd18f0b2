package harness

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for recovery purposes. Recoverable kinds
// are surfaced as controller state rather than returned as errors, so the
// caller can offer a retry without unwinding.
type ErrorKind int

const (
	// ErrorUnknown is the catch-all; session-fatal.
	ErrorUnknown ErrorKind = iota
	// ErrorPermissionDenied means the user or platform declined a grant;
	// recoverable by retrying RequestPermission.
	ErrorPermissionDenied
	// ErrorDeviceNotFound means zero devices of the requested kind exist;
	// recoverable only by an external re-enumeration trigger.
	ErrorDeviceNotFound
	// ErrorSessionAcquisition means the platform refused to open a session
	// despite permission and device presence; session-fatal.
	ErrorSessionAcquisition
	// ErrorEnumeration is a transient discovery failure; never cached, safe
	// to retry.
	ErrorEnumeration
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorPermissionDenied:
		return "PermissionDeniedError"
	case ErrorDeviceNotFound:
		return "DeviceNotFoundError"
	case ErrorSessionAcquisition:
		return "SessionAcquisitionError"
	case ErrorEnumeration:
		return "EnumerationError"
	default:
		return "UnknownError"
	}
}

// Recoverable reports whether the kind leaves the session in a retryable
// state instead of forcing a failed terminal transition.
func (k ErrorKind) Recoverable() bool {
	return k == ErrorPermissionDenied || k == ErrorDeviceNotFound
}

// HarnessError wraps an underlying error with its classification and the
// component that produced it.
type HarnessError struct {
	Kind      ErrorKind
	Component string
	Err       error
}

func (e *HarnessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Component, e.Kind)
}

func (e *HarnessError) Unwrap() error {
	return e.Err
}

// Classify wraps err with a kind. A nil err returns nil.
func Classify(kind ErrorKind, component string, err error) error {
	if err == nil {
		return nil
	}
	return &HarnessError{Kind: kind, Component: component, Err: err}
}

// KindOf extracts the classification from err, defaulting to ErrorUnknown
// for unclassified errors and a sentinel value of -1 for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKind(-1)
	}
	var he *HarnessError
	if errors.As(err, &he) {
		return he.Kind
	}
	return ErrorUnknown
}

// Sentinel errors for invalid harness usage. These indicate caller bugs, not
// platform failures, and are never recorded on a session.
var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrSuperseded        = errors.New("acquisition superseded")
	ErrNoActiveSession   = errors.New("no active session")
)
