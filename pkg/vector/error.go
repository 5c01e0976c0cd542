package vector

import "errors"

var (
	// ErrNotFound is returned when a document is not in the vector index.
	ErrNotFound = errors.New("document not found")

	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrConnection is returned when the vector index connection fails.
	ErrConnection = errors.New("vector index connection failed")
)
