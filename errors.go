package findly

import (
	"errors"
	"fmt"
)

// Validation failures caught before any network call.
var (
	// ErrSelfMessage means the resolved receiver is the current user.
	ErrSelfMessage = errors.New("findly: cannot send a message to yourself")

	// ErrMalformedParticipants means a conversation does not have the
	// expected two-party shape, or the current user is not a participant.
	ErrMalformedParticipants = errors.New("findly: conversation participants are malformed")

	// ErrEmptyContent means the message content is empty after trimming.
	ErrEmptyContent = errors.New("findly: message content is empty")

	// ErrNoActiveConversation means Send was called before SelectConversation.
	ErrNoActiveConversation = errors.New("findly: no active conversation")

	// ErrNotAuthenticated means the identity context has no current user.
	ErrNotAuthenticated = errors.New("findly: not logged in")
)

// TransportError is a network or HTTP failure on a read. Callers absorb it:
// prior good state is retained and an error flag is raised for the view.
type TransportError struct {
	Op         string // e.g. "list conversations"
	StatusCode int    // 0 when the request never completed
	Detail     string // server-provided detail, if any
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Detail != "":
		return fmt.Sprintf("findly: %s: HTTP %d: %s", e.Op, e.StatusCode, e.Detail)
	case e.StatusCode != 0:
		return fmt.Sprintf("findly: %s: HTTP %d", e.Op, e.StatusCode)
	default:
		return fmt.Sprintf("findly: %s: %v", e.Op, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// SendFailedError is a failed or timed-out message send. The optimistic
// insert has already been rolled back when this is returned.
type SendFailedError struct {
	LocalID string // placeholder id of the removed pending entry
	Err     error
}

func (e *SendFailedError) Error() string {
	return fmt.Sprintf("findly: send failed: %v", e.Err)
}

func (e *SendFailedError) Unwrap() error { return e.Err }
