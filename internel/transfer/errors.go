package transfer

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error records why a transfer session failed.
type Error struct {
	Kind     ErrorKind
	Filename string
	Message  string
}

type ErrorKind int

const (
	// ErrProtocol is an explicit failure reported by the remote side.
	ErrProtocol ErrorKind = iota

	// ErrDecode is a malformed encoded payload found at finalization.
	ErrDecode

	// ErrLocalIO is a failure reading or writing a local file.
	ErrLocalIO

	// ErrConnection is a send failure on the shared connection.
	ErrConnection

	// ErrCancelled is a transfer abandoned by the user.
	ErrCancelled

	// ErrTimeout is a session that saw no activity for too long.
	ErrTimeout

	// ErrIncomplete is a download that ended short of its announced size.
	ErrIncomplete
)

func (e *Error) Error() string {
	if e.Filename != "" {
		return fmt.Sprintf("transfer %s: %s: %s", e.Kind, e.Filename, e.Message)
	}
	return fmt.Sprintf("transfer %s: %s", e.Kind, e.Message)
}

func (k ErrorKind) String() string {
	switch k {
	case ErrProtocol:
		return "protocol error"
	case ErrDecode:
		return "decode error"
	case ErrLocalIO:
		return "local I/O error"
	case ErrConnection:
		return "connection error"
	case ErrCancelled:
		return "cancelled"
	case ErrTimeout:
		return "timeout"
	case ErrIncomplete:
		return "incomplete"
	default:
		return "unknown error"
	}
}

func NewError(kind ErrorKind, filename, message string) *Error {
	return &Error{Kind: kind, Filename: filename, Message: message}
}

func kindOf(err error) (ErrorKind, bool) {
	if e, ok := errors.Cause(err).(*Error); ok && e != nil {
		return e.Kind, true
	}
	return 0, false
}

func IsDecode(err error) bool {
	k, ok := kindOf(err)
	return ok && k == ErrDecode
}

func IsCancelled(err error) bool {
	k, ok := kindOf(err)
	return ok && k == ErrCancelled
}

func IsTimeout(err error) bool {
	k, ok := kindOf(err)
	return ok && k == ErrTimeout
}

// IsInactive reports whether err came from advancing a session that is no
// longer accepting data.
func IsInactive(err error) bool {
	return errors.Cause(err) == ErrInactive
}

var (
	ErrNoSession = errors.New("no such transfer session")
	ErrInactive  = errors.New("transfer session is not active")
)

func sizeMismatch(total, transferred uint64, decoded int64) string {
	return fmt.Sprintf("expected %d bytes, counted %d, decoded %d", total, transferred, decoded)
}
