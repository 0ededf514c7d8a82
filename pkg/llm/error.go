package llm

import "errors"

// ErrChat is returned when a chat completion fails. Callers that retry
// transient failures match against it.
var ErrChat = errors.New("chat completion failed")
