// Package session models the caller identity the journal and sync layers key
// their data by. A session is either anonymous (device-scoped) or
// authenticated (account-scoped); the only legal transition is an upgrade
// from anonymous to authenticated.
package session

import (
	"quiettime/internal/fault"
)

// Kind tags a Session.
type Kind int

const (
	KindAnonymous Kind = iota
	KindAuthenticated
)

func (k Kind) String() string {
	if k == KindAuthenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Session identifies the caller. Exactly one of the payloads is set,
// selected by Kind. Construct with Anonymous or Authenticated.
type Session struct {
	kind     Kind
	deviceID string
	userID   string
}

// Anonymous returns a device-scoped session.
func Anonymous(deviceID string) Session {
	return Session{kind: KindAnonymous, deviceID: deviceID}
}

// Authenticated returns an account-scoped session.
func Authenticated(userID string) Session {
	return Session{kind: KindAuthenticated, userID: userID}
}

// Kind reports which variant this session is.
func (s Session) Kind() Kind { return s.kind }

// Key returns the identifier payload: the user ID when authenticated, the
// device ID otherwise. This is the key drafts and quota are scoped by.
func (s Session) Key() string {
	if s.kind == KindAuthenticated {
		return s.userID
	}
	return s.deviceID
}

// IsAuthenticated reports whether the session carries an account identity.
func (s Session) IsAuthenticated() bool { return s.kind == KindAuthenticated }

// Upgrade converts an anonymous session into an authenticated one. Upgrading
// an already-authenticated session is rejected: downgrades and identity
// swaps are not legal transitions.
func (s Session) Upgrade(userID string) (Session, error) {
	if s.kind == KindAuthenticated {
		return Session{}, fault.ValidationFailed("session is already authenticated")
	}
	if userID == "" {
		return Session{}, fault.ValidationFailed("user id required for upgrade")
	}
	return Authenticated(userID), nil
}
