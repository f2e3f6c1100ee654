package protocol

import (
	"path/filepath"
	"strings"
)

// AdmissionPolicy is the receiver-side handshake gate: size, filename
// safety, and an optional extension allow-list, matching spec.md §6's
// max_file_size_mb and allowed_file_extensions configuration fields (the
// teacher's FileTransferConfig carries the same two knobs).
type AdmissionPolicy struct {
	MaxFileSize       uint64
	AllowedExtensions []string
}

// Evaluate returns a non-nil error with a short, stable reason string when
// a HandshakeRequest should be rejected.
func (p AdmissionPolicy) Evaluate(filename string, filesize uint64) error {
	if !isSafeBasename(filename) {
		return newErr(ErrRejected, "unsafe filename")
	}
	if p.MaxFileSize > 0 && filesize > p.MaxFileSize {
		return newErr(ErrRejected, "file too large")
	}
	if len(p.AllowedExtensions) > 0 && !extensionAllowed(filename, p.AllowedExtensions) {
		return newErr(ErrRejected, "disallowed extension")
	}
	return nil
}

func isSafeBasename(filename string) bool {
	if filename == "" {
		return false
	}
	if filename != filepath.Base(filename) {
		return false
	}
	if filename == "." || filename == ".." {
		return false
	}
	return true
}

func extensionAllowed(filename string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range allowed {
		if strings.ToLower(a) == ext {
			return true
		}
	}
	return false
}
