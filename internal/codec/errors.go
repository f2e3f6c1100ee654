package codec

import "fmt"

// ErrorKind tags the closed set of codec failure modes.
type ErrorKind string

const (
	ErrInvalidFrame     ErrorKind = "invalid_frame"
	ErrMalformedPayload ErrorKind = "malformed_payload"
	ErrUnknownVariant   ErrorKind = "unknown_variant"
)

// Error is the codec's tagged error type. All three kinds are fatal to the
// stream that produced them but must never crash the caller.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("codec: %s: %s", e.Kind, e.Msg)
}

func invalidFrame(format string, args ...interface{}) error {
	return &Error{Kind: ErrInvalidFrame, Msg: fmt.Sprintf(format, args...)}
}

func malformedPayload(format string, args ...interface{}) error {
	return &Error{Kind: ErrMalformedPayload, Msg: fmt.Sprintf(format, args...)}
}

func unknownVariant(format string, args ...interface{}) error {
	return &Error{Kind: ErrUnknownVariant, Msg: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	ce, ok := err.(*Error)
	return ok && ce.Kind == kind
}
