// Package errkind names the error taxonomy from the error-handling design:
// a small enum plus a wrapper so callers can errors.Is/errors.As against a
// kind instead of matching error strings.
package errkind

import "fmt"

// Kind classifies an error for logging and recovery-policy purposes. Kinds
// are not Go types; they are carried alongside a wrapped error.
type Kind int

const (
	// Unknown is the zero value; never attached intentionally.
	Unknown Kind = iota
	// Configuration covers invalid metric names, reserved-name
	// collisions, histogram-on-label, undefined histogram specs, and
	// unreadable config files. Fatal at startup.
	Configuration
	// Parse covers a malformed CSV record or column value. Recovered by
	// dropping the record and incrementing the parser_errors families.
	Parse
	// StreamStarvation is raised when a read does not make progress
	// within the configured read timeout.
	StreamStarvation
	// SSHTimeout is a connect-timeout on the SSH handshake.
	SSHTimeout
	// SSHConnection covers SSH handshake failures that are neither an
	// authentication failure nor a timeout, and session errors after a
	// successful handshake.
	SSHConnection
	// SSHAuth is an authentication failure.
	SSHAuth
	// Socket covers low-level network errors not otherwise classified.
	Socket
	// Unexpected is any error a component does not otherwise recognise;
	// logged at fatal severity but never aborts the process.
	Unexpected
	// SupervisorInventory covers a failed or unparseable inventory
	// script run; the current target set is retained.
	SupervisorInventory
)

// String renders the kind the way it is named in the error-handling design.
func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration_error"
	case Parse:
		return "parse_error"
	case StreamStarvation:
		return "stream_starvation"
	case SSHTimeout:
		return "ssh_timeout"
	case SSHConnection:
		return "ssh_connection_error"
	case SSHAuth:
		return "ssh_auth_error"
	case Socket:
		return "socket_error"
	case Unexpected:
		return "unexpected_error"
	case SupervisorInventory:
		return "supervisor_inventory_error"
	default:
		return "unknown_error"
	}
}

// Error wraps an underlying error with its classification.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}

	return fmt.Sprintf("%s: %s", e.Kind.String(), e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with kind. A nil err still produces a non-nil *Error
// carrying only the kind, useful for sentinel-style construction.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Is reports whether target is an *Error of the same Kind. errors.Is does
// the unwrapping through fmt.Errorf %w chains, so errors.Is(err,
// New(kind, nil)) matches any error in err's chain carrying kind.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}

	return e.Kind == other.Kind
}
