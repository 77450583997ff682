package findly

import "time"

// ============================================================================
// Shared Types
// ============================================================================

// MessageStatus is the delivery status of a message.
//
// The server only ever reports sent, delivered, or read. Pending and failed
// are client-local annotations used by the optimistic send path and never
// appear on the wire.
type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// Message is a single message in a two-party conversation.
type Message struct {
	MessageID      string        `json:"message_id"`
	ConversationID string        `json:"conversation_id,omitempty"`
	SenderID       string        `json:"sender_id"`
	ReceiverID     string        `json:"receiver_id,omitempty"`
	ItemID         string        `json:"item_id,omitempty"`
	Content        string        `json:"content"`
	Status         MessageStatus `json:"status,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	ReadAt         *time.Time    `json:"read_at,omitempty"`
	IsDeleted      bool          `json:"is_deleted,omitempty"`
}

// Pending reports whether the message is a local optimistic entry that has
// not been confirmed by the server yet.
func (m *Message) Pending() bool {
	return m.Status == StatusPending
}

// Conversation is a two-party thread with a denormalized last-message preview.
type Conversation struct {
	ConversationID     string    `json:"conversation_id"`
	ParticipantIDs     []string  `json:"participant_ids"`
	ItemID             string    `json:"item_id,omitempty"`
	LastMessageAt      time.Time `json:"last_message_at"`
	LastMessageContent string    `json:"last_message_content,omitempty"`
	LastMessage        *Message  `json:"last_message,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	IsArchived         bool      `json:"is_archived,omitempty"`
	UnreadCount        int       `json:"unread_count"`
}

// Preview returns the last-message preview text, falling back to the embedded
// last message when the denormalized field is absent.
func (c *Conversation) Preview() string {
	if c.LastMessageContent != "" {
		return c.LastMessageContent
	}
	if c.LastMessage != nil {
		return c.LastMessage.Content
	}
	return ""
}

// ============================================================================
// Messaging API Types
// ============================================================================

// MessageCreate is the request body for sending a message.
type MessageCreate struct {
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
	ItemID     string `json:"item_id,omitempty"`
}

// ConversationListResponse is the response of GET /messages/conversations.
type ConversationListResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
}

// MessageListResponse is the paginated response of a message history fetch.
type MessageListResponse struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
	HasMore  bool      `json:"has_more"`
}

// UnreadCountResponse is the response of GET /messages/unread/count.
type UnreadCountResponse struct {
	UnreadCount int `json:"unread_count"`
}

// MarkReadResponse is the response of marking a conversation read.
type MarkReadResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// ConversationOptions controls conversation listing.
type ConversationOptions struct {
	IncludeArchived bool
	Limit           int
}

// HistoryOptions controls message history pagination.
type HistoryOptions struct {
	Limit  int
	Before time.Time
}

// ============================================================================
// Auth API Types
// ============================================================================

// RegisterOptions is the request body for POST /auth/register.
type RegisterOptions struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Password string `json:"passwd"`
	Name     string `json:"name,omitempty"`
}

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"passwd"`
	Email    string `json:"email,omitempty"`
}

// LoginResponse carries the session token issued on login.
type LoginResponse struct {
	UserID  string `json:"user_id"`
	Status  int    `json:"status"`
	Message string `json:"mssg"`
	Token   string `json:"token,omitempty"`
}

// ============================================================================
// Items API Types
// ============================================================================

// ItemImage is an uploaded photo attached to an item.
type ItemImage struct {
	ImageID string `json:"image_id,omitempty"`
	URL     string `json:"url"`
}

// ItemCreate is the request body for posting a found item.
type ItemCreate struct {
	UserID      string      `json:"user_id"`
	Description string      `json:"desc"`
	Type        string      `json:"type"`
	Images      []ItemImage `json:"img,omitempty"`
}

// Item is a posted lost/found item.
type Item struct {
	ItemID      string      `json:"item_id"`
	UserID      string      `json:"user_id"`
	Description string      `json:"desc"`
	Type        string      `json:"type"`
	Images      []ItemImage `json:"img,omitempty"`
	IsClaimed   bool        `json:"is_claimed"`
	CreatedAt   *time.Time  `json:"created_at,omitempty"`
}

// ItemList is the response of GET /items/.
type ItemList struct {
	Items []Item `json:"items"`
	Count int    `json:"count"`
}

// ============================================================================
// Claims API Types
// ============================================================================

// ClaimCreate is the request body for claiming an item.
type ClaimCreate struct {
	ItemID string `json:"item_id"`
	UserID string `json:"user_id"`
	Detail string `json:"detail,omitempty"`
}

// Claim is a claim raised against a posted item.
type Claim struct {
	ClaimID   string     `json:"claim_id"`
	ItemID    string     `json:"item_id"`
	UserID    string     `json:"user_id"`
	Detail    string     `json:"detail,omitempty"`
	Status    string     `json:"status"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// ClaimList is the response of listing claims.
type ClaimList struct {
	Claims []Claim `json:"claims"`
	Count  int     `json:"count"`
}
