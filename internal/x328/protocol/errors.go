package protocol

import "fmt"

// Kind enumerates every error class the engine can produce. Call sites are
// expected to switch over the full set; nothing in the engine panics on
// malformed or adversarial input.
type Kind int

const (
	KindFraming Kind = iota // unexpected control byte or malformed structure
	KindChecksum            // BCC mismatch
	KindInvalidAddress      // address outside [0, 99]
	KindInvalidParameter    // parameter outside [0, 9999]
	KindInvalidDigit        // byte is not an ASCII decimal digit
	KindValueOutOfRange     // value outside the wire field width
	KindBufferOverflow      // frame would exceed the destination buffer
	KindSequence            // API called out of order by the host
	KindTimedOut            // host-signaled transaction timeout
	KindNak                 // explicit rejection by the peer
)

func (k Kind) String() string {
	switch k {
	case KindFraming:
		return "framing error"
	case KindChecksum:
		return "checksum mismatch"
	case KindInvalidAddress:
		return "invalid address"
	case KindInvalidParameter:
		return "invalid parameter"
	case KindInvalidDigit:
		return "invalid digit"
	case KindValueOutOfRange:
		return "value out of range"
	case KindBufferOverflow:
		return "buffer overflow"
	case KindSequence:
		return "sequence error"
	case KindTimedOut:
		return "timed out"
	case KindNak:
		return "rejected by peer"
	default:
		return fmt.Sprintf("unknown error kind %d", int(k))
	}
}

// Error is the typed error value used across the engine. Errors with the
// same Kind match under errors.Is regardless of detail text, so hosts can
// compare against the exported sentinels.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Detail
}

// Is reports kind equality, which makes errors.Is(err, ErrChecksum) work for
// any checksum error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinel values for errors.Is comparisons.
var (
	ErrFraming          = &Error{Kind: KindFraming}
	ErrChecksum         = &Error{Kind: KindChecksum}
	ErrInvalidAddress   = &Error{Kind: KindInvalidAddress}
	ErrInvalidParameter = &Error{Kind: KindInvalidParameter}
	ErrInvalidDigit     = &Error{Kind: KindInvalidDigit}
	ErrValueOutOfRange  = &Error{Kind: KindValueOutOfRange}
	ErrBufferOverflow   = &Error{Kind: KindBufferOverflow}
	ErrSequence         = &Error{Kind: KindSequence}
	ErrTimedOut         = &Error{Kind: KindTimedOut}
	ErrNak              = &Error{Kind: KindNak}
)

// Errorf builds a typed error with a formatted detail string.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
