// Package creds resolves gym login credentials per invocation. Deployments
// run either single-user (shared credentials from configuration) or
// multi-user (per-alias credentials from the store). Credentials are never
// cached beyond one invocation.
package creds

import (
	"context"
	"errors"
)

var (
	// ErrAliasRequired signals a contract violation: the deployment resolves
	// credentials per user alias and the event carried none.
	ErrAliasRequired = errors.New("user alias required")

	ErrNotConfigured = errors.New("login credentials not configured")
)

// Credentials is what one booking invocation needs to act as a user.
type Credentials struct {
	Alias     string
	Username  string
	Password  string
	GymUserID string
}

// Source resolves credentials for a user alias. An empty alias selects the
// shared single-user credentials where the deployment has them.
type Source interface {
	Resolve(ctx context.Context, alias string) (Credentials, error)
}

// Static serves the shared single-user credentials regardless of alias.
type Static struct {
	Username  string
	Password  string
	GymUserID string
}

func (s Static) Resolve(_ context.Context, _ string) (Credentials, error) {
	if s.Username == "" || s.Password == "" {
		return Credentials{}, ErrNotConfigured
	}
	return Credentials{Username: s.Username, Password: s.Password, GymUserID: s.GymUserID}, nil
}
