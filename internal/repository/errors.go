// Package repository abstracts persistence for files, transfers, and
// peers behind small interfaces, each with a volatile in-memory
// implementation and a durable goleveldb-backed one, selected by the
// REPO_BACKEND environment input, in the spirit of the teacher's
// pkg/database.Manager wrapping a single storage handle behind typed
// CRUD methods.
package repository

import "fmt"

// ErrorKind tags the closed set of repository failure modes.
type ErrorKind string

const (
	ErrBackend       ErrorKind = "backend"
	ErrSerialization ErrorKind = "serialization"
)

// Error is the repository package's tagged error type.
type Error struct {
	Kind ErrorKind
	Msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("repository: %s: %s: %v", e.Kind, e.Msg, e.err)
	}
	return fmt.Sprintf("repository: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.err }

func wrapErr(kind ErrorKind, msg string, cause error) error {
	return &Error{Kind: kind, Msg: msg, err: cause}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	re, ok := err.(*Error)
	return ok && re.Kind == kind
}
