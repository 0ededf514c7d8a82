package dataset

import "errors"

// ErrMalformedConversation marks a conversation whose messages cannot be
// paired into any unit (for example, every message from one speaker with no
// content, or no messages at all). The conversation is skipped and recorded;
// it never aborts a run.
var ErrMalformedConversation = errors.New("malformed conversation")
