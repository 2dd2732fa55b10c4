package harvest

import (
	"errors"
	"fmt"
)

// TransportError wraps network, timeout and non-2xx failures. Downloads
// retry these; page fetches surface them and recover via session resume.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport: %s returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("transport: %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError marks a malformed or unexpected row/document shape.
// Contained at row granularity, never fatal for a page.
type ParseError struct {
	SourceType SourceType
	Detail     string
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.SourceType, e.Detail)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError wraps table or object storage write failures. Already
// written rows stay intact.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsStorage reports whether err is (or wraps) a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
