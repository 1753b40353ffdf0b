package collaboration

import (
	"errors"
	"fmt"
)

// ErrMalformedInput marks an inbound event that was skipped without any state change
var ErrMalformedInput = errors.New("malformed input")

var (
	ErrNotJoined        = fmt.Errorf("%w: connection has not joined this document", ErrMalformedInput)
	ErrAlreadyJoined    = fmt.Errorf("%w: connection already joined a document", ErrMalformedInput)
	ErrIdentityMismatch = fmt.Errorf("%w: identity does not match the authenticated user", ErrMalformedInput)
	ErrMissingIdentity  = fmt.Errorf("%w: identity is required", ErrMalformedInput)
	ErrMissingDocument  = fmt.Errorf("%w: docId is required", ErrMalformedInput)
	ErrEmptyUpload      = fmt.Errorf("%w: no content received", ErrMalformedInput)
)

// ErrConnectionClosed is returned for events arriving after disconnect
var ErrConnectionClosed = errors.New("connection closed")

// syncErrorText maps an event error to the message sent back in syncError.
// An empty string means the client is not notified.
func syncErrorText(err error) string {
	switch {
	case errors.Is(err, ErrConnectionClosed):
		return ""
	case errors.Is(err, ErrEmptyUpload):
		return "No content received"
	case errors.Is(err, ErrNotJoined):
		return "Join a document first"
	case errors.Is(err, ErrAlreadyJoined):
		return "Already joined a document"
	case errors.Is(err, ErrIdentityMismatch):
		return "Identity does not match the authenticated user"
	case errors.Is(err, ErrMissingIdentity):
		return "Identity is required"
	case errors.Is(err, ErrMissingDocument):
		return "Document id is required"
	case errors.Is(err, ErrMalformedInput):
		return "Malformed message"
	default:
		return "Request failed"
	}
}
