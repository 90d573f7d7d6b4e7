package mhi

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected  = errors.New("mhi: not connected to printer")
	ErrPortNotFound  = errors.New("mhi: printer not found on any serial port")
	ErrPortClosed    = errors.New("mhi: serial port is closed")
	ErrEmptyResponse = errors.New("mhi: empty response")
)

// TransportKind classifies a transport failure.
type TransportKind int

const (
	// TransportTimeout: the printer did not answer within the configured
	// timeout on the final attempt.
	TransportTimeout TransportKind = iota
	// TransportRejected: the printer answered NAK on every attempt.
	TransportRejected
	// TransportMalformed: the answer did not carry a valid terminator.
	TransportMalformed
)

func (k TransportKind) String() string {
	switch k {
	case TransportTimeout:
		return "timeout"
	case TransportRejected:
		return "rejected"
	case TransportMalformed:
		return "malformed"
	}
	return "unknown"
}

// TransportError is returned when the serial exchange itself failed after
// the bounded retries. After a TransportError mid-document the printer may
// be left non-idle; the driver issues a best-effort cancel before
// surfacing it.
type TransportError struct {
	Op       string        // logical operation, e.g. "close document"
	Kind     TransportKind // failure class
	Attempts int           // attempts actually made
	Response []byte        // last raw response, nil on timeout
	Err      error         // underlying I/O error, may be nil
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("mhi: transport %s during %q after %d attempt(s)", e.Kind, e.Op, e.Attempts)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// StateError is returned when the printer refuses an operation that
// conflicts with its own fiscal rules (for example a second Z report on an
// already closed fiscal day). The session is left idle.
type StateError struct {
	Op     string // logical operation
	Code   string // printer response code, "" when unavailable
	Reason string
}

func (e *StateError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("mhi: %s refused (code %s): %s", e.Op, e.Code, e.Reason)
	}
	return fmt.Sprintf("mhi: %s refused: %s", e.Op, e.Reason)
}

// ValidationError is returned before any transport command is issued when
// the payload violates a format invariant. It identifies the offending
// field so callers can log precisely and skip the record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("mhi: invalid %s: %s", e.Field, e.Reason)
}

// ConfigError reports missing or invalid driver configuration. It is fatal
// at connect time.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("mhi: configuration %s: %s", e.Field, e.Reason)
}
