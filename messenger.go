package findly

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Poll intervals are configuration constants, not computed. The thread
// interval matches the reference client's 3-second message poll; the
// directory can afford a slower cycle since it only feeds previews and
// unread badges.
const (
	DefaultThreadPollInterval    = 3 * time.Second
	DefaultDirectoryPollInterval = 10 * time.Second
)

// MessageTransport is the slice of the Messages API the synchronization core
// depends on. *MessagesAPI satisfies it; tests substitute fakes.
type MessageTransport interface {
	Conversations(ctx context.Context, opts *ConversationOptions) (*ConversationListResponse, error)
	History(ctx context.Context, conversationID string, opts *HistoryOptions) (*MessageListResponse, error)
	Send(ctx context.Context, req *MessageCreate) (*Message, error)
}

// Messenger is the messaging synchronization core exposed to a view layer.
// It owns a ConversationDirectory and a ThreadStore, drives each with its own
// Poller, and implements optimistic send with swap-or-remove reconciliation.
//
// All exported methods are safe for concurrent use, though the intended
// shape is a single view driving it: select a conversation, read snapshots,
// send messages, close on teardown.
type Messenger struct {
	api      MessageTransport
	identity Identity

	directory *ConversationDirectory
	thread    *ThreadStore

	directoryPoller *Poller
	threadPoller    *Poller

	mu       sync.Mutex
	activeID string
	active   Conversation
	hasConv  bool

	historyLimit int

	// Indirections for tests.
	now        func() time.Time
	newLocalID func() string
}

// MessengerOption configures a Messenger.
type MessengerOption func(*Messenger)

// WithThreadPollInterval overrides the message poll interval.
func WithThreadPollInterval(d time.Duration) MessengerOption {
	return func(m *Messenger) { m.threadPoller = NewPoller(d) }
}

// WithDirectoryPollInterval overrides the conversation list poll interval.
func WithDirectoryPollInterval(d time.Duration) MessengerOption {
	return func(m *Messenger) { m.directoryPoller = NewPoller(d) }
}

// WithHistoryLimit caps how many messages each history poll requests.
func WithHistoryLimit(n int) MessengerOption {
	return func(m *Messenger) { m.historyLimit = n }
}

// NewMessenger creates a messenger bound to a transport and an identity
// context. The identity is read-only to the core.
func NewMessenger(api MessageTransport, identity Identity, opts ...MessengerOption) *Messenger {
	m := &Messenger{
		api:             api,
		identity:        identity,
		thread:          NewThreadStore(),
		directoryPoller: NewPoller(DefaultDirectoryPollInterval),
		threadPoller:    NewPoller(DefaultThreadPollInterval),
		now:             time.Now,
		newLocalID:      func() string { return "local-" + uuid.NewString() },
	}
	m.directory = NewConversationDirectory(api, nil)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start performs the initial conversation list fetch and begins the
// directory poll cycle. The returned error is the initial fetch outcome;
// polling runs either way and will repair a failed first fetch.
func (m *Messenger) Start(ctx context.Context) error {
	err := m.directory.Refresh(ctx)
	m.directoryPoller.Start(func(ctx context.Context) {
		_ = m.directory.Refresh(ctx)
	})
	return err
}

// Close stops both poll cycles. After Close returns no further refresh will
// touch the directory or the thread.
func (m *Messenger) Close() {
	m.threadPoller.Stop()
	m.directoryPoller.Stop()
}

// SelectConversation makes the given conversation the active thread: the
// previous thread state is discarded, the previous thread poller is
// cancelled synchronously, the history is loaded, and the poll cycle is
// rebound to the new target.
//
// The returned error is the initial load outcome; the thread keeps polling
// and retains its error flag either way.
func (m *Messenger) SelectConversation(ctx context.Context, conversationID string) error {
	// Cancel first so no tick for the old target can fire mid-switch.
	m.threadPoller.Stop()

	m.mu.Lock()
	m.activeID = conversationID
	m.active, m.hasConv = m.directory.Get(conversationID)
	m.mu.Unlock()

	m.thread.Reset(conversationID)

	err := m.refreshThread(ctx)
	m.threadPoller.Start(func(ctx context.Context) {
		_ = m.refreshThread(ctx)
	})
	return err
}

// Deselect clears the active conversation and cancels its poll cycle.
func (m *Messenger) Deselect() {
	m.threadPoller.Stop()

	m.mu.Lock()
	m.activeID = ""
	m.hasConv = false
	m.mu.Unlock()

	m.thread.Reset("")
}

// refreshThread fetches the history page for the conversation that was
// active when the fetch was issued, and discards the response if the active
// conversation changed while it was in flight.
func (m *Messenger) refreshThread(ctx context.Context) error {
	target := m.ActiveConversationID()
	if target == "" {
		return nil
	}

	var opts *HistoryOptions
	if m.historyLimit > 0 {
		opts = &HistoryOptions{Limit: m.historyLimit}
	}
	resp, err := m.api.History(ctx, target, opts)

	// Stale-response guard: the fetch was tagged with its target at issue
	// time; a response for a conversation no longer active is dropped, not
	// applied.
	if m.ActiveConversationID() != target {
		return nil
	}
	if err != nil {
		m.thread.RecordError(err)
		return err
	}
	m.thread.MergeIncoming(resp.Messages)
	return nil
}

// Send transmits content to the counterparty of the active conversation,
// giving the sender optimistic feedback: a provisional entry appears in the
// thread immediately and is swapped for the server's message on success or
// removed on failure. Validation failures (empty content, malformed
// participants, messaging oneself) are returned before any network call.
//
// On failure the composed text is not consumed: the caller still holds it
// and should offer a retry rather than drop it.
func (m *Messenger) Send(ctx context.Context, content string) (*Message, error) {
	self := m.identity.CurrentUserID()
	if self == "" {
		return nil, ErrNotAuthenticated
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	m.mu.Lock()
	conversationID := m.activeID
	conv, hasConv := m.active, m.hasConv
	m.mu.Unlock()
	if conversationID == "" {
		return nil, ErrNoActiveConversation
	}
	if !hasConv {
		return nil, ErrMalformedParticipants
	}

	receiver, ok := Counterparty(conv.ParticipantIDs, self)
	if !ok {
		return nil, ErrMalformedParticipants
	}
	if receiver == self {
		return nil, ErrSelfMessage
	}

	return m.transmit(ctx, conversationID, self, receiver, content, "")
}

// SendTo transmits content to an explicit receiver, e.g. when contacting an
// item's finder before any conversation exists. itemID may be "" when the
// message is not about a specific item.
//
// If the receiver's conversation happens to be the active one, the send goes
// through the same optimistic path as Send; otherwise there is no local
// thread to update and the message is transmitted directly.
func (m *Messenger) SendTo(ctx context.Context, receiverID, content, itemID string) (*Message, error) {
	self := m.identity.CurrentUserID()
	if self == "" {
		return nil, ErrNotAuthenticated
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if receiverID == "" {
		return nil, ErrMalformedParticipants
	}
	if receiverID == self {
		return nil, ErrSelfMessage
	}

	m.mu.Lock()
	conversationID := ""
	if m.hasConv {
		if other, ok := Counterparty(m.active.ParticipantIDs, self); ok && other == receiverID {
			conversationID = m.activeID
		}
	}
	m.mu.Unlock()

	if conversationID == "" {
		msg, err := m.api.Send(ctx, &MessageCreate{ReceiverID: receiverID, Content: content, ItemID: itemID})
		if err != nil {
			return nil, &SendFailedError{Err: err}
		}
		return msg, nil
	}
	return m.transmit(ctx, conversationID, self, receiverID, content, itemID)
}

// transmit runs the optimistic send algorithm against the active thread:
// append a provisional entry, call the transport, then swap or remove.
func (m *Messenger) transmit(ctx context.Context, conversationID, self, receiver, content, itemID string) (*Message, error) {
	local := Message{
		MessageID:      m.newLocalID(),
		ConversationID: conversationID,
		SenderID:       self,
		ReceiverID:     receiver,
		ItemID:         itemID,
		Content:        content,
		Status:         StatusPending,
		CreatedAt:      m.now(),
	}
	m.thread.AppendPending(local)

	server, err := m.api.Send(ctx, &MessageCreate{ReceiverID: receiver, Content: content, ItemID: itemID})
	if err != nil {
		m.thread.RemovePending(local.MessageID)
		return nil, &SendFailedError{LocalID: local.MessageID, Err: err}
	}

	// No-op when the user switched conversations while the send was in
	// flight; the next poll of the new thread is authoritative.
	m.thread.ResolvePending(local.MessageID, *server)
	return server, nil
}

// ============================================================================
// Read-only view surface
// ============================================================================

// Conversations returns a snapshot of the conversation list in server order.
func (m *Messenger) Conversations() []Conversation {
	return m.directory.Snapshot()
}

// Thread returns a snapshot of the active conversation's visible messages.
func (m *Messenger) Thread() []Message {
	return m.thread.Snapshot()
}

// ActiveConversationID returns the id of the active conversation, or "".
func (m *Messenger) ActiveConversationID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// ActiveConversation returns the active conversation's directory entry.
func (m *Messenger) ActiveConversation() (Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.hasConv
}

// CounterpartyID resolves the other participant of the active conversation.
// ok is false when no conversation is active, the participant set is
// malformed, or the user is not logged in; render a placeholder then.
func (m *Messenger) CounterpartyID() (string, bool) {
	m.mu.Lock()
	conv, hasConv := m.active, m.hasConv
	m.mu.Unlock()
	if !hasConv {
		return "", false
	}
	return Counterparty(conv.ParticipantIDs, m.identity.CurrentUserID())
}

// DirectoryLoaded reports whether the conversation list has loaded once.
func (m *Messenger) DirectoryLoaded() bool { return m.directory.Loaded() }

// ThreadLoaded reports whether the active thread has loaded once.
func (m *Messenger) ThreadLoaded() bool { return m.thread.Loaded() }

// DirectoryErr is the directory's error flag from its last refresh.
func (m *Messenger) DirectoryErr() error { return m.directory.Err() }

// ThreadErr is the thread's error flag from its last refresh.
func (m *Messenger) ThreadErr() error { return m.thread.Err() }
