package findly

import (
	"sync"
	"time"
)

// pendingMatchWindow is how far apart a locally-assigned timestamp and the
// server's authoritative one may be for a polled message to be recognized as
// the confirmed copy of a still-pending optimistic entry.
const pendingMatchWindow = 2 * time.Minute

// ThreadStore holds the ordered message history for one active conversation.
// Ownership is exclusive to the view that selected the conversation; switching
// conversations resets the store rather than caching the old thread.
//
// The visible sequence is: the freshest server page in server order, followed
// by any still-pending optimistic entries in insertion order. Pending entries
// are chronologically last by construction, so no re-sort is ever needed.
type ThreadStore struct {
	mu             sync.Mutex
	conversationID string
	messages       []Message
	loaded         bool
	lastErr        error
}

// NewThreadStore returns an empty store not bound to any conversation.
func NewThreadStore() *ThreadStore {
	return &ThreadStore{}
}

// Reset binds the store to a conversation, discarding all previous state.
// A re-fetch is authoritative; nothing survives a switch.
func (t *ThreadStore) Reset(conversationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conversationID = conversationID
	t.messages = nil
	t.loaded = false
	t.lastErr = nil
}

// ConversationID returns the conversation the store is bound to.
func (t *ThreadStore) ConversationID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conversationID
}

// MergeIncoming reconciles a freshly polled page with the current state.
//
// Pending optimistic entries are matched against the fresh page on
// (sender_id, content, created_at within pendingMatchWindow); a matched
// pending is dropped in favor of its authoritative counterpart so the thread
// never shows both copies once the real message round-trips through a poll.
// Unmatched pendings are kept and re-appended after the fresh page.
//
// The operation is idempotent and does not depend on whether the poll
// response or the send confirmation arrives first.
func (t *ThreadStore) MergeIncoming(fresh []Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var pendings []Message
	for _, m := range t.messages {
		if m.Pending() {
			pendings = append(pendings, m)
		}
	}

	merged := make([]Message, len(fresh))
	copy(merged, fresh)

	consumed := make(map[int]bool)
	for _, p := range pendings {
		if idx := matchPending(p, fresh, consumed); idx >= 0 {
			consumed[idx] = true
			continue // server copy is authoritative, drop the pending
		}
		merged = append(merged, p)
	}

	t.messages = merged
	t.loaded = true
	t.lastErr = nil
}

// matchPending finds the index in fresh of the authoritative counterpart of
// pending p, or -1. Entries already consumed by another pending are skipped
// so two identical in-flight sends cannot collapse into one.
func matchPending(p Message, fresh []Message, consumed map[int]bool) int {
	for i, f := range fresh {
		if consumed[i] {
			continue
		}
		if f.SenderID != p.SenderID || f.Content != p.Content {
			continue
		}
		delta := f.CreatedAt.Sub(p.CreatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= pendingMatchWindow {
			return i
		}
	}
	return -1
}

// RecordError flags a failed refresh. Prior state stays intact so a
// transient network blip does not flicker the thread to empty.
func (t *ThreadStore) RecordError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastErr = err
}

// AppendPending inserts a provisional message at the tail.
func (t *ThreadStore) AppendPending(m Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, m)
}

// ResolvePending atomically swaps the provisional entry identified by localID
// with the server-returned message, preserving its position in the sequence.
// It reports false when no such entry exists anymore (e.g. the conversation
// was switched while the send was in flight), in which case nothing changes.
func (t *ThreadStore) ResolvePending(localID string, server Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, m := range t.messages {
		if m.MessageID == localID && m.Pending() {
			if server.Status == "" || server.Status == StatusPending {
				server.Status = StatusSent
			}
			t.messages[i] = server
			return true
		}
	}
	return false
}

// RemovePending deletes the provisional entry identified by localID,
// restoring the thread to its pre-send state. It reports whether an entry
// was removed.
func (t *ThreadStore) RemovePending(localID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, m := range t.messages {
		if m.MessageID == localID && m.Pending() {
			t.messages = append(t.messages[:i], t.messages[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the visible message sequence.
func (t *ThreadStore) Snapshot() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of visible messages.
func (t *ThreadStore) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// Loaded reports whether at least one page has been applied since the last
// Reset.
func (t *ThreadStore) Loaded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loaded
}

// Err returns the error flag from the most recent refresh, or nil.
func (t *ThreadStore) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}
