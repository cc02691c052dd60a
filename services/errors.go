package services

import (
	"errors"
	"strings"
)

// ValidationError carries every field violation of a rejected submission.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// StorageError wraps a record store failure. The cause is logged, never sent
// to clients.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "storage " + e.Op + " failed: " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

// ErrReportNotFound is returned for unknown or expired import report ids.
var ErrReportNotFound = errors.New("import report not found")
