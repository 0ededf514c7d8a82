package vector

import "errors"

var (
	// ErrNotFound is returned when a requested document is not in the store.
	ErrNotFound = errors.New("document not found")

	// ErrConnection is returned when the vector store cannot be reached.
	ErrConnection = errors.New("vector store connection failed")
)
