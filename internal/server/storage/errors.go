package storage

import "errors"

// Common storage errors
var (
	// ErrNotFound indicates that a document with the given id does not exist
	ErrNotFound = errors.New("document not found")
)
