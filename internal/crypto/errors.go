package crypto

import "fmt"

// ErrorKind tags the closed set of crypto service failure modes.
type ErrorKind string

const (
	ErrKeyGeneration ErrorKind = "key_generation"
	ErrInvalidKey    ErrorKind = "invalid_key"
	ErrEncryption    ErrorKind = "encryption"
	ErrDecryption    ErrorKind = "decryption"
	ErrSigning       ErrorKind = "signing"
	ErrVerification  ErrorKind = "verification"
	ErrHashing       ErrorKind = "hashing"
	ErrIO            ErrorKind = "io"
)

// Error is the crypto package's tagged error type.
type Error struct {
	Kind ErrorKind
	Msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("crypto: %s: %s: %v", e.Kind, e.Msg, e.err)
	}
	return fmt.Sprintf("crypto: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.err }

func newErr(kind ErrorKind, msg string, cause error) error {
	return &Error{Kind: kind, Msg: msg, err: cause}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	ce, ok := err.(*Error)
	return ok && ce.Kind == kind
}
