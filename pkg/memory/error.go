package memory

import "errors"

// ErrUnavailable is returned when the memory backend is overloaded or
// unreachable. Transient: callers retry with bounded exponential backoff.
// Any other insert or query error is permanent and is recorded, not
// retried.
var ErrUnavailable = errors.New("memory backend unavailable")

// ErrIndexNotReady is returned when a query targets a conversation whose
// index has no completion marker. The query is skipped and recorded, never
// scored.
var ErrIndexNotReady = errors.New("memory index not ready")
