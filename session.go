package findly

import "sync"

// Identity supplies the current user's stable identifier to the messaging
// core. The core treats it as read-only; "" means not logged in.
type Identity interface {
	CurrentUserID() string
}

// Session is the process-wide auth state, hydrated from a persisted store at
// startup and cleared on logout. It is the only mutable global-ish state the
// SDK carries; the messaging core sees it through the Identity interface
// and never writes to it.
type Session struct {
	mu     sync.RWMutex
	userID string
	token  string
}

// NewSession returns an empty, logged-out session.
func NewSession() *Session {
	return &Session{}
}

// Hydrate installs a persisted user id and token, e.g. at CLI startup.
func (s *Session) Hydrate(userID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.token = token
}

// Clear wipes the session on logout.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = ""
	s.token = ""
}

// CurrentUserID returns the logged-in user id, or "" before login.
func (s *Session) CurrentUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Token returns the bearer token, or "" before login.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// LoggedIn reports whether a user is hydrated.
func (s *Session) LoggedIn() bool {
	return s.CurrentUserID() != ""
}

// Counterparty returns the element of a two-party participant set that is
// not selfID. It is pure and total: ok is false when the set is malformed
// (wrong cardinality, or selfID not present). Callers must treat !ok as
// "unknown participant" and render a placeholder rather than fail.
func Counterparty(participantIDs []string, selfID string) (string, bool) {
	if len(participantIDs) != 2 || selfID == "" {
		return "", false
	}
	if participantIDs[0] == selfID {
		return participantIDs[1], true
	}
	if participantIDs[1] == selfID {
		return participantIDs[0], true
	}
	return "", false
}
