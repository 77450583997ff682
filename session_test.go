package findly

import "testing"

func TestCounterparty(t *testing.T) {
	tests := []struct {
		name         string
		participants []string
		self         string
		want         string
		wantOK       bool
	}{
		{"self first", []string{"alice", "bob"}, "alice", "bob", true},
		{"self second", []string{"alice", "bob"}, "bob", "alice", true},
		{"self absent", []string{"alice", "bob"}, "carol", "", false},
		{"empty self", []string{"alice", "bob"}, "", "", false},
		{"one participant", []string{"alice"}, "alice", "", false},
		{"three participants", []string{"alice", "bob", "carol"}, "alice", "", false},
		{"nil participants", nil, "alice", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Counterparty(tt.participants, tt.self)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Counterparty(%v, %q) = (%q, %v), want (%q, %v)",
					tt.participants, tt.self, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := NewSession()
	if s.LoggedIn() {
		t.Error("fresh session must be logged out")
	}

	s.Hydrate("alice", "tok-123")
	if !s.LoggedIn() {
		t.Error("session not logged in after hydrate")
	}
	if s.CurrentUserID() != "alice" || s.Token() != "tok-123" {
		t.Errorf("hydrated session = (%q, %q)", s.CurrentUserID(), s.Token())
	}

	s.Clear()
	if s.LoggedIn() || s.CurrentUserID() != "" || s.Token() != "" {
		t.Error("session not wiped by Clear")
	}
}
