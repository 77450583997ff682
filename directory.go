package findly

import (
	"context"
	"sync"
)

// ConversationLister is the slice of the Messages API the directory needs.
type ConversationLister interface {
	Conversations(ctx context.Context, opts *ConversationOptions) (*ConversationListResponse, error)
}

// ConversationDirectory holds the ordered conversation list for the current
// user. The server determines the order (last_message_at descending) and the
// directory never re-sorts it.
//
// A failed refresh keeps the last-known-good list and raises an error flag
// instead of clearing data, so the view can degrade to stale-but-present.
type ConversationDirectory struct {
	transport ConversationLister
	opts      *ConversationOptions

	mu            sync.Mutex
	conversations []Conversation
	loaded        bool
	lastErr       error
}

// NewConversationDirectory creates a directory bound to a transport.
// opts may be nil for server defaults.
func NewConversationDirectory(transport ConversationLister, opts *ConversationOptions) *ConversationDirectory {
	return &ConversationDirectory{transport: transport, opts: opts}
}

// Refresh fetches the conversation list and replaces the held state.
// On failure the previous list is retained and the error is both recorded
// and returned.
func (d *ConversationDirectory) Refresh(ctx context.Context) error {
	resp, err := d.transport.Conversations(ctx, d.opts)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.lastErr = err
		return err
	}
	d.conversations = resp.Conversations
	d.loaded = true
	d.lastErr = nil
	return nil
}

// Snapshot returns a copy of the current list in server order.
func (d *ConversationDirectory) Snapshot() []Conversation {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Conversation, len(d.conversations))
	copy(out, d.conversations)
	return out
}

// Get returns the conversation with the given id from the held list.
func (d *ConversationDirectory) Get(conversationID string) (Conversation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.conversations {
		if c.ConversationID == conversationID {
			return c, true
		}
	}
	return Conversation{}, false
}

// Loaded reports whether at least one refresh has succeeded.
func (d *ConversationDirectory) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

// Err returns the error flag from the most recent refresh, or nil.
func (d *ConversationDirectory) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}
