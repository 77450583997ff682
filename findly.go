// Package findly provides the Go client for the Findly lost-and-found
// marketplace API.
//
// The package has two layers: thin REST sub-clients (Auth, Items, Claims,
// Messages) that mirror the backend endpoints one-to-one, and the messaging
// synchronization core (Messenger, ConversationDirectory, ThreadStore,
// Poller) that keeps a local view of conversations consistent with the
// server while giving the sender optimistic feedback.
//
// Example:
//
//	client := findly.NewClient(token)
//
//	// REST layer
//	convs, _ := client.Messages.Conversations(ctx, nil)
//	items, _ := client.Items.List(ctx)
//
//	// Sync core
//	m := findly.NewMessenger(client.Messages, session)
//	m.Start(ctx)
//	defer m.Close()
//	m.SelectConversation(ctx, convs.Conversations[0].ConversationID)
//	m.Send(ctx, "Hi, I think I found your bag!")
package findly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the production API endpoint.
	DefaultBaseURL = "https://api.findly.app"

	// DefaultTimeout bounds every request. The sync core imposes no extra
	// timeout of its own; a client timeout is handled like any failure.
	DefaultTimeout = 30 * time.Second
)

// ============================================================================
// Client
// ============================================================================

// Client is the Findly API client. The zero value is not usable; construct
// with NewClient.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client

	Auth     *AuthAPI
	Items    *ItemsAPI
	Claims   *ClaimsAPI
	Messages *MessagesAPI
}

type ClientOption func(*Client)

func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// NewClient creates a new Findly client.
// token is optional — pass "" for unauthenticated calls such as login.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Auth = &AuthAPI{client: c}
	c.Items = &ItemsAPI{client: c}
	c.Claims = &ClaimsAPI{client: c}
	c.Messages = &MessagesAPI{client: c}
	return c
}

// SetToken sets or updates the bearer token, e.g. after login.
func (c *Client) SetToken(token string) {
	c.token = token
}

// ============================================================================
// Internal request helper
// ============================================================================

// apiDetail is the error body FastAPI returns on non-2xx responses.
type apiDetail struct {
	Detail string `json:"detail"`
}

func (c *Client) doRequest(ctx context.Context, op, method, path string, body interface{}, query map[string]string) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		params := url.Values{}
		for k, v := range query {
			params.Set(k, v)
		}
		u += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var d apiDetail
		_ = json.Unmarshal(data, &d)
		return nil, &TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Detail:     d.Detail,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	return data, nil
}

func decodeJSON[T any](data []byte) (*T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// ============================================================================
// Auth API
// ============================================================================

// AuthAPI handles registration and login.
type AuthAPI struct{ client *Client }

func (a *AuthAPI) Register(ctx context.Context, opts *RegisterOptions) (*LoginResponse, error) {
	data, err := a.client.doRequest(ctx, "register", "POST", "/auth/register", opts, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[LoginResponse](data)
}

func (a *AuthAPI) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	data, err := a.client.doRequest(ctx, "login", "POST", "/auth/login", req, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[LoginResponse](data)
}

// ============================================================================
// Items API
// ============================================================================

// ItemsAPI handles posting and browsing lost/found items.
type ItemsAPI struct{ client *Client }

func (i *ItemsAPI) List(ctx context.Context) (*ItemList, error) {
	data, err := i.client.doRequest(ctx, "list items", "GET", "/items/", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[ItemList](data)
}

func (i *ItemsAPI) Get(ctx context.Context, itemID string) (*Item, error) {
	data, err := i.client.doRequest(ctx, "get item", "GET", "/items/"+itemID, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Item](data)
}

func (i *ItemsAPI) Create(ctx context.Context, opts *ItemCreate) (*Item, error) {
	data, err := i.client.doRequest(ctx, "create item", "POST", "/items/", opts, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Item](data)
}

// MarkClaimed flags an item as claimed by its finder.
func (i *ItemsAPI) MarkClaimed(ctx context.Context, itemID string) (*Item, error) {
	data, err := i.client.doRequest(ctx, "mark item claimed", "PATCH", "/items/"+itemID+"/claim", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Item](data)
}

// ============================================================================
// Claims API
// ============================================================================

// ClaimsAPI handles ownership claims against posted items.
type ClaimsAPI struct{ client *Client }

func (cl *ClaimsAPI) Create(ctx context.Context, opts *ClaimCreate) (*Claim, error) {
	data, err := cl.client.doRequest(ctx, "create claim", "POST", "/claims/", opts, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Claim](data)
}

func (cl *ClaimsAPI) List(ctx context.Context) (*ClaimList, error) {
	data, err := cl.client.doRequest(ctx, "list claims", "GET", "/claims/", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[ClaimList](data)
}

// ============================================================================
// Messages API
// ============================================================================

// MessagesAPI handles conversations and messages. It is the transport the
// synchronization core is built on; Messenger consumes it through the
// MessageTransport interface so tests can substitute a fake.
type MessagesAPI struct{ client *Client }

// Conversations lists the current user's conversations, ordered by
// last_message_at descending. The server order is authoritative.
func (m *MessagesAPI) Conversations(ctx context.Context, opts *ConversationOptions) (*ConversationListResponse, error) {
	var query map[string]string
	if opts != nil {
		query = map[string]string{}
		if opts.IncludeArchived {
			query["include_archived"] = "true"
		}
		if opts.Limit > 0 {
			query["limit"] = fmt.Sprintf("%d", opts.Limit)
		}
		if len(query) == 0 {
			query = nil
		}
	}
	data, err := m.client.doRequest(ctx, "list conversations", "GET", "/messages/conversations", nil, query)
	if err != nil {
		return nil, err
	}
	return decodeJSON[ConversationListResponse](data)
}

// History fetches the message page for one conversation, oldest first.
func (m *MessagesAPI) History(ctx context.Context, conversationID string, opts *HistoryOptions) (*MessageListResponse, error) {
	var query map[string]string
	if opts != nil {
		query = map[string]string{}
		if opts.Limit > 0 {
			query["limit"] = fmt.Sprintf("%d", opts.Limit)
		}
		if !opts.Before.IsZero() {
			query["before"] = opts.Before.UTC().Format(time.RFC3339)
		}
		if len(query) == 0 {
			query = nil
		}
	}
	data, err := m.client.doRequest(ctx, "load history", "GET", "/messages/conversations/"+conversationID, nil, query)
	if err != nil {
		return nil, err
	}
	return decodeJSON[MessageListResponse](data)
}

// Send persists a message. Starting a new conversation and replying in an
// existing one go through the same endpoint.
func (m *MessagesAPI) Send(ctx context.Context, req *MessageCreate) (*Message, error) {
	data, err := m.client.doRequest(ctx, "send message", "POST", "/messages/send", req, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Message](data)
}

// MarkConversationRead marks all unread messages in a conversation as read.
func (m *MessagesAPI) MarkConversationRead(ctx context.Context, conversationID string) (*MarkReadResponse, error) {
	data, err := m.client.doRequest(ctx, "mark conversation read", "PATCH", "/messages/conversations/"+conversationID+"/read", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[MarkReadResponse](data)
}

// UnreadCount returns the total number of unread messages.
func (m *MessagesAPI) UnreadCount(ctx context.Context) (*UnreadCountResponse, error) {
	data, err := m.client.doRequest(ctx, "unread count", "GET", "/messages/unread/count", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[UnreadCountResponse](data)
}

// Search searches message content across the user's conversations.
func (m *MessagesAPI) Search(ctx context.Context, q string, limit int) (*MessageListResponse, error) {
	query := map[string]string{"q": q}
	if limit > 0 {
		query["limit"] = fmt.Sprintf("%d", limit)
	}
	data, err := m.client.doRequest(ctx, "search messages", "GET", "/messages/search", nil, query)
	if err != nil {
		return nil, err
	}
	return decodeJSON[MessageListResponse](data)
}
