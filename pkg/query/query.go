package query

import (
	"github.com/boxabirds/docqa/pkg/common"

	"github.com/google/uuid"
)

// ErrorKind is the closed set of failure classes a chat request can end
// with. Kinds are emitted verbatim in the SSE error event.
type ErrorKind string

const (
	KindEmbeddingUnavailable  ErrorKind = "embedding_unavailable"
	KindRetrievalUnavailable  ErrorKind = "retrieval_unavailable"
	KindGenerationUnavailable ErrorKind = "generation_unavailable"
	KindGenerationInterrupted ErrorKind = "generation_interrupted"
	KindClientSlow            ErrorKind = "client_slow"
	KindInvalidRequest        ErrorKind = "invalid_request"
	KindNotFound              ErrorKind = "not_found"
)

// UserMessage returns the user-safe text for a kind. Internal detail never
// crosses the wire.
func (k ErrorKind) UserMessage() string {
	switch k {
	case KindEmbeddingUnavailable, KindRetrievalUnavailable, KindGenerationUnavailable:
		return "Temporary retrieval failure, please retry."
	case KindGenerationInterrupted:
		return "Answer incomplete; please retry."
	default:
		return "Request failed."
	}
}

// Event is one element of a chat answer stream. A stream is exactly one
// "info", zero or more "chat", then one terminal "done" or "error"; a
// channel closed without a terminal event means the request was aborted.
type Event struct {
	Type string // "info" | "chat" | "done" | "error"

	Sources    []common.Source // info
	Content    string          // chat
	MessageID  string          // chat, done
	TokensUsed int             // done

	Kind    ErrorKind // error
	Message string    // error, user-safe

	// Ack releases this event's share of the backpressure window once the
	// consumer has written it out. Set on chat events only.
	Ack func()
}

// Request is one chat turn against a collection.
type Request struct {
	CollectionID   int64
	ConversationID *uuid.UUID
	Message        string
}
