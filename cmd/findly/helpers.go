package main

import (
	"fmt"
	"os"

	findly "github.com/findly-app/findly/sdk/golang"
)

// getSession loads the persisted login state into a findly.Session and
// returns a client authenticated with it. Exits when not logged in.
func getSession() (*findly.Client, *findly.Session) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.Token == "" || cfg.Auth.UserID == "" {
		fmt.Fprintln(os.Stderr, "Not logged in. Run 'findly login <user-id>' first.")
		os.Exit(1)
	}

	session := findly.NewSession()
	session.Hydrate(cfg.Auth.UserID, cfg.Auth.Token)

	return newClient(cfg, cfg.Auth.Token), session
}

// getAnonymousClient returns an unauthenticated client, e.g. for login.
func getAnonymousClient() *findly.Client {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return newClient(cfg, "")
}

func newClient(cfg *Config, token string) *findly.Client {
	var opts []findly.ClientOption
	if cfg.Default.BaseURL != "" {
		opts = append(opts, findly.WithBaseURL(cfg.Default.BaseURL))
	}
	return findly.NewClient(token, opts...)
}

// shortID abbreviates an opaque user id for display, mirroring the web
// client's "User xxxxxxxx" rendering.
func shortID(id string) string {
	if id == "" {
		return "unknown"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
