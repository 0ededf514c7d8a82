package embeddings

import "errors"

// ErrEmbedding is returned when embedding generation fails. Callers that
// retry transient failures match against it.
var ErrEmbedding = errors.New("embedding failed")
